// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/vibeforge/internal/docstore"
)

// =============================================================================
// DOCUMENT CONVERSIONS
// =============================================================================

// MessageDocument wraps a message as a store document.
func MessageDocument(m *Message) (*docstore.Document, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return &docstore.Document{
		ID:        m.ID,
		Type:      m.Type,
		SessionID: m.SessionID,
		CreatedAt: m.CreatedAt,
		Body:      body,
	}, nil
}

// MessageFromDocument decodes a user/ai document back into a message.
func MessageFromDocument(doc *docstore.Document) (*Message, error) {
	if doc.Type != TypeUser && doc.Type != TypeAI {
		return nil, fmt.Errorf("document %s is a %q, not a message", doc.ID, doc.Type)
	}
	var m Message
	if err := doc.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", doc.ID, err)
	}
	return &m, nil
}

// SessionDocument wraps a session as a store document.
func SessionDocument(s *Session) (*docstore.Document, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return &docstore.Document{
		ID:        s.ID,
		Type:      TypeSession,
		CreatedAt: s.CreatedAt,
		Body:      body,
	}, nil
}

// SessionFromDocument decodes a session document.
func SessionFromDocument(doc *docstore.Document) (*Session, error) {
	if doc.Type != TypeSession {
		return nil, fmt.Errorf("document %s is a %q, not a session", doc.ID, doc.Type)
	}
	var s Session
	if err := doc.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", doc.ID, err)
	}
	return &s, nil
}

// ScreenshotDocument wraps a screenshot record as a store document.
func ScreenshotDocument(sc *Screenshot) (*docstore.Document, error) {
	body, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal screenshot: %w", err)
	}
	return &docstore.Document{
		ID:        sc.ID,
		Type:      TypeScreenshot,
		SessionID: sc.SessionID,
		CreatedAt: sc.CreatedAt,
		Body:      body,
	}, nil
}
