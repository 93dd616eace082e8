// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/vibeforge/internal/chat"
	"github.com/jeranaias/vibeforge/internal/model"
	"github.com/jeranaias/vibeforge/internal/segment"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionReadyMsg:
		m.session = msg.session
		m.transcript = m.transcript[:0]
		for _, turn := range msg.history {
			m.appendTurn(turn)
		}
		m.refreshViewport(true)
		return m, nil

	case errMsg:
		m.lastErr = msg.err
		return m, nil

	case streamEventMsg:
		return m.handleStreamEvent(msg.event)

	case streamClosedMsg:
		// Anything the ticker had not displayed yet. Normally empty: the
		// terminal event's authoritative rendering supersedes the buffer.
		if tail, ok := m.buffer.ForceFlush(); ok {
			m.streamText += tail
			m.refreshViewport(true)
		}
		m.state = stateReady
		m.events = nil
		return m, nil

	case tickMsg:
		if content, ok := m.buffer.Flush(); ok {
			m.streamText += content
			m.refreshViewport(true)
		}
		if m.state == stateStreaming {
			return m, tickCmd()
		}
		return m, nil
	}

	// Cursor blink and spinner frames flow through here.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleResize lays out the panes for a new terminal size.
func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	inputHeight := 5 // textarea plus border
	chromeHeight := 3 // header plus status line

	vpHeight := msg.Height - inputHeight - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(msg.Width - 4)
	m.refreshViewport(false)
	return m
}

// handleKey routes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.NewSession):
		if m.state == stateStreaming {
			return m, nil
		}
		m.session = nil
		m.transcript = m.transcript[:0]
		m.streamText = ""
		m.refreshViewport(true)
		return m, m.ensureSessionCmd()

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the drafted message.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.state == stateStreaming || m.session == nil {
		return m, nil
	}

	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	events, err := m.svc.SendMessage(context.Background(), m.session.ID, text)
	if err != nil {
		if errors.Is(err, chat.ErrBusy) {
			m.statusMsg = "a generation is already running"
			return m, nil
		}
		m.lastErr = err
		return m, nil
	}

	m.input.Reset()
	m.lastErr = nil
	m.statusMsg = ""
	m.state = stateStreaming
	m.events = events
	m.streamText = ""
	m.buffer.Reset()

	m.transcript = append(m.transcript, m.renderUserTurn(text))
	m.refreshViewport(true)

	return m, tea.Batch(m.spin.Tick, listenCmd(events), tickCmd())
}

// handleStreamEvent folds one generation event into the view.
func (m Model) handleStreamEvent(ev chat.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case chat.EventDelta:
		m.buffer.Write(ev.Delta)
		return m, listenCmd(m.events)

	case chat.EventTitle:
		if m.session != nil {
			m.session.Title = ev.Title
		}
		return m, listenCmd(m.events)

	case chat.EventDone:
		m.finishStream(ev.Segments)
		return m, listenCmd(m.events)

	case chat.EventError:
		m.lastErr = ev.Err
		m.finishStream(ev.Segments)
		return m, listenCmd(m.events)
	}
	return m, listenCmd(m.events)
}

// finishStream replaces the in-flight text with the authoritative
// rendering of the finalized segments.
func (m *Model) finishStream(segments []segment.Segment) {
	m.buffer.Reset()
	m.streamText = ""
	m.state = stateReady
	m.transcript = append(m.transcript, m.renderAITurn(segments))
	m.refreshViewport(true)
}

// appendTurn renders one persisted turn into the transcript (history
// replay on session open).
func (m *Model) appendTurn(turn *model.Message) {
	if turn.Type == model.TypeUser {
		m.transcript = append(m.transcript, m.renderUserTurn(turn.Text))
		return
	}
	segments, _ := segment.Parse(turn.Text)
	m.transcript = append(m.transcript, m.renderAITurn(segments))
}

// refreshViewport rebuilds the viewport content. gotoBottom keeps the
// latest output in view while streaming.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready {
		return
	}

	var sb strings.Builder
	for _, block := range m.transcript {
		sb.WriteString(block)
		sb.WriteString("\n")
	}
	if m.state == stateStreaming && m.streamText != "" {
		sb.WriteString(aiLabelStyle.Render("vibeforge"))
		sb.WriteString("\n")
		sb.WriteString(m.streamText)
		sb.WriteString("\n")
	}

	m.viewport.SetContent(sb.String())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}
