// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Session listing and transcript display.

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/jeranaias/vibeforge/internal/docstore"
	"github.com/jeranaias/vibeforge/internal/model"
	"github.com/jeranaias/vibeforge/internal/preview"
	"github.com/jeranaias/vibeforge/internal/segment"
)

// HandleSessions lists saved sessions, newest first. With --watch the
// list is a live query: it reprints whenever any process writes a
// session to the store.
func HandleSessions(args []string) error {
	parsed := NewArgParser(args)

	rt, err := NewRuntime("")
	if err != nil {
		return err
	}
	defer rt.Close()

	if parsed.BoolFlag("watch") {
		return watchSessions(rt)
	}

	sessions, err := rt.Service.Sessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if parsed.BoolFlag("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions yet. Run 'vibeforge' to start one.")
		return nil
	}

	printSessions(sessions)
	return nil
}

func printSessions(sessions []*model.Session) {
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "New Chat"
		}
		fmt.Printf("%s  %s  %s\n",
			s.ID,
			s.CreatedAt.Format("2006-01-02 15:04"),
			preview.TruncateTitle(title, 48))
	}
}

// watchSessions subscribes to the session list and reprints it on every
// store write until interrupted.
func watchSessions(rt *Runtime) error {
	cancel, err := rt.Store.Subscribe(
		docstore.Query{Type: model.TypeSession, Descending: true},
		func(docs []*docstore.Document) {
			sessions := make([]*model.Session, 0, len(docs))
			for _, doc := range docs {
				session, err := model.SessionFromDocument(doc)
				if err != nil {
					continue
				}
				sessions = append(sessions, session)
			}
			fmt.Printf("--- %d session(s) ---\n", len(sessions))
			printSessions(sessions)
		})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
	return nil
}

// HandleShow prints one session's transcript. Rendered output (markdown,
// syntax highlighting) only when stdout is a terminal; piped output stays
// plain.
func HandleShow(args []string) error {
	parsed := NewArgParser(args)
	id := parsed.Positional(0)
	if id == "" {
		return fmt.Errorf("usage: vibeforge show <session-id>")
	}

	rt, err := NewRuntime("")
	if err != nil {
		return err
	}
	defer rt.Close()

	session, err := rt.Service.Session(id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	messages, err := rt.Service.Messages(id)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	title := session.Title
	if title == "" {
		title = "New Chat"
	}
	fmt.Printf("%s (%s)\n\n", title, session.CreatedAt.Format("2006-01-02 15:04"))

	rendered := IsStdoutTTY() && !parsed.BoolFlag("plain")
	var renderer *preview.Renderer
	if rendered {
		renderer = preview.NewRenderer(TerminalWidth())
	}

	for _, msg := range messages {
		switch msg.Type {
		case model.TypeUser:
			fmt.Printf("[you]\n%s\n\n", msg.Text)
		case model.TypeAI:
			fmt.Println("[vibeforge]")
			if rendered {
				segments, manifest := segment.Parse(msg.Text)
				fmt.Println(renderer.RenderSegments(segments))
				if deps := segment.ParseDependencies(manifest); len(deps) > 0 {
					fmt.Println(preview.RenderDependencies(deps))
				}
			} else {
				fmt.Printf("%s\n\n", msg.Text)
			}
		}
	}
	return nil
}
