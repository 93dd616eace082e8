// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("s1", "build me a todo app")

	if msg.ID == "" {
		t.Error("Expected generated ID")
	}
	if msg.Type != TypeUser {
		t.Errorf("Expected type %q, got %q", TypeUser, msg.Type)
	}
	if msg.SessionID != "s1" {
		t.Errorf("Expected session s1, got %q", msg.SessionID)
	}
	if msg.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestNewAIPlaceholderIsEmpty(t *testing.T) {
	msg := NewAIPlaceholder("s1")

	if msg.Text != "" {
		t.Errorf("Placeholder text should be empty, got %q", msg.Text)
	}
	if msg.Type != TypeAI {
		t.Errorf("Expected type %q, got %q", TypeAI, msg.Type)
	}
}

func TestMessageRole(t *testing.T) {
	if got := NewUserMessage("s", "x").Role(); got != RoleUser {
		t.Errorf("User message role = %q", got)
	}
	if got := NewAIPlaceholder("s").Role(); got != RoleAssistant {
		t.Errorf("AI message role = %q", got)
	}
}

func TestMessageDocumentRoundTrip(t *testing.T) {
	msg := NewUserMessage("s1", "hello")

	doc, err := MessageDocument(msg)
	if err != nil {
		t.Fatalf("MessageDocument: %v", err)
	}
	if doc.ID != msg.ID || doc.Type != TypeUser || doc.SessionID != "s1" {
		t.Errorf("Document projection wrong: %+v", doc)
	}

	back, err := MessageFromDocument(doc)
	if err != nil {
		t.Fatalf("MessageFromDocument: %v", err)
	}
	if back.Text != "hello" || back.ID != msg.ID {
		t.Errorf("Round trip mismatch: %+v", back)
	}
}

func TestMessageFromDocumentRejectsOtherTypes(t *testing.T) {
	session := NewSession()
	doc, err := SessionDocument(session)
	if err != nil {
		t.Fatalf("SessionDocument: %v", err)
	}

	if _, err := MessageFromDocument(doc); err == nil {
		t.Error("Expected error decoding a session as a message")
	}
}

func TestSessionDocumentRoundTrip(t *testing.T) {
	session := NewSession()
	session.Title = "Todo App"

	doc, err := SessionDocument(session)
	if err != nil {
		t.Fatalf("SessionDocument: %v", err)
	}

	back, err := SessionFromDocument(doc)
	if err != nil {
		t.Fatalf("SessionFromDocument: %v", err)
	}
	if back.Title != "Todo App" || back.ID != session.ID {
		t.Errorf("Round trip mismatch: %+v", back)
	}
}
