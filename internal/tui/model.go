// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/vibeforge/internal/chat"
	"github.com/jeranaias/vibeforge/internal/model"
	"github.com/jeranaias/vibeforge/internal/preview"
)

// =============================================================================
// STATE
// =============================================================================

// state tracks what the chat view is doing.
type state int

const (
	stateReady     state = iota // ready for input
	stateStreaming              // generation in flight
)

// Service is the slice of the chat service the TUI drives.
type Service interface {
	CreateSession() (*model.Session, error)
	Session(id string) (*model.Session, error)
	Messages(sessionID string) ([]*model.Message, error)
	SendMessage(ctx context.Context, sessionID, input string) (<-chan chat.Event, error)
}

// =============================================================================
// MESSAGES
// =============================================================================

type streamEventMsg struct{ event chat.Event }

type streamClosedMsg struct{}

type tickMsg struct{}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	svc      Service
	session  *model.Session
	renderer *preview.Renderer

	state  state
	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model
	keys     KeyMap

	// Finalized transcript blocks, already rendered.
	transcript []string

	// In-flight AI turn: raw accumulated text plus the batch buffer the
	// streaming goroutine writes into. Plain string because Model is
	// copied by value on every Update.
	streamText string
	buffer     *flushBuffer
	events     <-chan chat.Event

	statusMsg string
	lastErr   error
}

// New creates the chat view bound to a session. A nil session starts a
// fresh one on Init.
func New(svc Service, session *model.Session, wordWrap int) Model {
	input := textarea.New()
	input.Placeholder = "Describe the app you want to build..."
	input.ShowLineNumbers = false
	input.SetHeight(3)
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		svc:      svc,
		session:  session,
		renderer: preview.NewRenderer(wordWrap),
		input:    input,
		spin:     spin,
		keys:     DefaultKeyMap(),
		buffer:   newFlushBuffer(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.ensureSessionCmd())
}

// =============================================================================
// COMMANDS
// =============================================================================

type sessionReadyMsg struct {
	session *model.Session
	history []*model.Message
}

type errMsg struct{ err error }

// ensureSessionCmd creates a session if none was given and loads its
// history.
func (m Model) ensureSessionCmd() tea.Cmd {
	svc := m.svc
	session := m.session
	return func() tea.Msg {
		var err error
		if session == nil {
			session, err = svc.CreateSession()
			if err != nil {
				return errMsg{err}
			}
		}
		history, err := svc.Messages(session.ID)
		if err != nil {
			return errMsg{err}
		}
		return sessionReadyMsg{session: session, history: history}
	}
}

// listenCmd pulls the next event off the generation channel.
func listenCmd(events <-chan chat.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return streamEventMsg{event: ev}
	}
}

// tickCmd drives buffered redraws while streaming.
func tickCmd() tea.Cmd {
	return tea.Tick(defaultTickRate, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
