// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package preview

import (
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/jeranaias/vibeforge/internal/segment"
)

// =============================================================================
// SEGMENT RENDERER
// =============================================================================

// Renderer renders parsed segments for terminal display. Markdown segments
// go through glamour, code segments through chroma with a terminal
// formatter matched to the detected color profile.
type Renderer struct {
	markdown *glamour.TermRenderer
	profile  termenv.Profile
	width    int
}

// NewRenderer creates a renderer wrapped to the given width. A failed
// glamour initialization degrades to plain passthrough rather than erroring
// the caller.
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 80
	}

	r := &Renderer{
		profile: termenv.ColorProfile(),
		width:   width,
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.markdown = md
	}
	return r
}

// RenderSegments renders the ordered segments of one AI turn.
func (r *Renderer) RenderSegments(segments []segment.Segment) string {
	var sb strings.Builder
	for _, seg := range segments {
		switch seg.Kind {
		case segment.KindCode:
			sb.WriteString(r.RenderCode(seg.Content))
		default:
			sb.WriteString(r.RenderMarkdown(seg.Content))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderMarkdown renders prose content. Returns the content unchanged when
// rendering is unavailable or fails.
func (r *Renderer) RenderMarkdown(content string) string {
	if r.markdown == nil {
		return content
	}
	rendered, err := r.markdown.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// RenderCode highlights a code segment for the terminal. Generated
// components are JSX, so that lexer is tried first.
func (r *Renderer) RenderCode(code string) string {
	code = strings.TrimRight(code, "\n")

	// No color support means no escape sequences at all.
	if r.profile == termenv.Ascii {
		return code
	}

	lexer := lexers.Get("jsx")
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatterName := "terminal256"
	if r.profile == termenv.TrueColor {
		formatterName = "terminal16m"
	}
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// RenderDependencies formats a dependency map as a stable, sorted list.
func RenderDependencies(deps map[string]string) string {
	if len(deps) == 0 {
		return ""
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Dependencies:\n")
	for _, name := range names {
		sb.WriteString("  ")
		sb.WriteString(name)
		sb.WriteString(" ")
		sb.WriteString(deps[name])
		sb.WriteString("\n")
	}
	return sb.String()
}
