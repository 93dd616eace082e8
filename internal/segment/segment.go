// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package segment

import (
	"regexp"
	"strings"
)

// =============================================================================
// SEGMENT TYPE
// =============================================================================

// Kind classifies a segment as prose or code.
type Kind string

const (
	// KindMarkdown is prose outside any code fence.
	KindMarkdown Kind = "markdown"

	// KindCode is the body of a fenced code block.
	KindCode Kind = "code"
)

// Segment is a contiguous span of a message classified by kind.
// Segments are derived from a message's raw text on demand and are
// never persisted on their own.
type Segment struct {
	Kind    Kind   `json:"kind"`
	Content string `json:"content"`
}

// =============================================================================
// PARSING
// =============================================================================

var (
	// manifestRe captures the dependency manifest prefix: everything from the
	// start of the text up to and including the first `}}`. The first match
	// terminates the manifest region even if a later code block legitimately
	// contains `}}`. This is a known ambiguity that downstream consumers rely on,
	// so it must not be "fixed" silently.
	manifestRe = regexp.MustCompile(`(?s)^.*?}}`)

	// fenceRe matches a triple-backtick fence delimiter with an optional
	// language tag on the same line. The tag (and its newline) is consumed
	// so it never leaks into the code content.
	fenceRe = regexp.MustCompile("```(?:[^\n]*\n)?")
)

// Parse splits raw message text into ordered markdown/code segments and
// extracts the dependency manifest prefix, if any.
//
// Splitting on fence delimiters yields alternating spans: even indices are
// markdown (outside fences), odd indices are code (inside fences). Blank
// markdown spans are dropped; code spans are kept even when empty so an
// opening fence immediately shows an (empty) code segment during streaming.
// An unterminated trailing fence simply yields one trailing code segment.
//
// Parse is safe to call repeatedly on a growing prefix of the same text;
// the result for the full text equals a single parse of the final text.
func Parse(text string) ([]Segment, string) {
	var manifest string

	if m := manifestRe.FindString(text); m != "" {
		manifest = m
		text = text[len(m):]
	}

	parts := fenceRe.Split(text, -1)

	// No fence at all: the whole remainder is one markdown segment,
	// dropped when blank.
	if len(parts) == 1 {
		if strings.TrimSpace(parts[0]) == "" {
			return nil, manifest
		}
		return []Segment{{Kind: KindMarkdown, Content: parts[0]}}, manifest
	}

	segments := make([]Segment, 0, len(parts))
	for i, part := range parts {
		if i%2 == 0 {
			if strings.TrimSpace(part) == "" {
				continue
			}
			segments = append(segments, Segment{Kind: KindMarkdown, Content: part})
		} else {
			segments = append(segments, Segment{Kind: KindCode, Content: part})
		}
	}

	return segments, manifest
}

// FirstCode returns the content of the first code segment, or "" when the
// reply contains no code. This is what the preview renderer executes.
func FirstCode(segments []Segment) string {
	for _, seg := range segments {
		if seg.Kind == KindCode {
			return seg.Content
		}
	}
	return ""
}
