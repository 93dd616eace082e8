// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// Doc type discriminators as stored in the document store's `type` field.
const (
	TypeUser       = "user"
	TypeAI         = "ai"
	TypeSession    = "session"
	TypeScreenshot = "screenshot"
)

// Role identifies the author kind of a message as sent to the model API.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// =============================================================================
// MESSAGE
// =============================================================================

// Message represents one conversational turn.
//
// Text is append-only while an AI turn is being generated and immutable once
// the turn is finalized. Segments are never stored here: they are derived
// from Text on demand by the segment package.
type Message struct {
	ID        string    `json:"_id"`
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"` // TypeUser or TypeAI
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage creates a committed user turn.
func NewUserMessage(sessionID, text string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      TypeUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// NewAIPlaceholder creates the empty AI turn that the sync controller
// mutates while the stream is in flight.
func NewAIPlaceholder(sessionID string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      TypeAI,
		CreatedAt: time.Now(),
	}
}

// Role maps the stored type discriminator to the wire role for the model API.
func (m *Message) Role() Role {
	if m.Type == TypeAI {
		return RoleAssistant
	}
	return RoleUser
}

// =============================================================================
// SESSION
// =============================================================================

// Session groups an ordered sequence of messages under a title.
// Title is set at most once automatically (by title generation); a session
// is never split or merged.
type Session struct {
	ID        string    `json:"_id"`
	Type      string    `json:"type"` // always TypeSession
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSession creates an untitled session.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		Type:      TypeSession,
		CreatedAt: time.Now(),
	}
}

// =============================================================================
// SCREENSHOT
// =============================================================================

// Screenshot records a captured preview image for a session. The image bytes
// live on disk; the document only references them.
type Screenshot struct {
	ID        string    `json:"_id"`
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"` // always TypeScreenshot
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}
