// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"fmt"
	"strings"

	"github.com/jeranaias/vibeforge/internal/preview"
	"github.com/jeranaias/vibeforge/internal/segment"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var sb strings.Builder
	sb.WriteString(m.headerView())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(inputBoxStyle.Render(m.input.View()))
	sb.WriteString("\n")
	sb.WriteString(m.statusView())
	return sb.String()
}

func (m Model) headerView() string {
	title := "New Chat"
	if m.session != nil && m.session.Title != "" {
		title = m.session.Title
	}
	return headerStyle.Render("vibeforge") + " " +
		titleStyle.Render(preview.TruncateTitle(title, 48))
}

func (m Model) statusView() string {
	if m.lastErr != nil {
		return statusStyle.Render(errorStyle.Render("error: " + m.lastErr.Error()))
	}
	if m.statusMsg != "" {
		return statusStyle.Render(m.statusMsg)
	}
	if m.state == stateStreaming {
		return statusStyle.Render(fmt.Sprintf("%s generating...", m.spin.View()))
	}
	return statusStyle.Render("enter send | ctrl+n new session | pgup/pgdn scroll | ctrl+c quit")
}

// renderUserTurn formats a user message for the transcript.
func (m Model) renderUserTurn(text string) string {
	return userLabelStyle.Render("you") + "\n" + text + "\n"
}

// renderAITurn formats a finalized AI turn from its parsed segments.
func (m Model) renderAITurn(segments []segment.Segment) string {
	body := m.renderer.RenderSegments(segments)
	return aiLabelStyle.Render("vibeforge") + "\n" + body + "\n"
}
