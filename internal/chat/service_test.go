// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/vibeforge/internal/docstore"
	"github.com/jeranaias/vibeforge/internal/model"
	"github.com/jeranaias/vibeforge/internal/openrouter"
	"github.com/jeranaias/vibeforge/internal/segment"
)

// fakeLLM drives the service with scripted responses.
type fakeLLM struct {
	chat   func(ctx context.Context, messages []openrouter.ChatMessage) (string, error)
	stream func(ctx context.Context, messages []openrouter.ChatMessage, onDelta openrouter.DeltaFunc) error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []openrouter.ChatMessage) (string, error) {
	if f.chat == nil {
		return "Test Title", nil
	}
	return f.chat(ctx, messages)
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []openrouter.ChatMessage, onDelta openrouter.DeltaFunc) error {
	return f.stream(ctx, messages, onDelta)
}

func (f *fakeLLM) Model() string { return "test-model" }

// streamOf scripts a stream that delivers the given deltas and succeeds.
func streamOf(deltas ...string) func(context.Context, []openrouter.ChatMessage, openrouter.DeltaFunc) error {
	return func(_ context.Context, _ []openrouter.ChatMessage, onDelta openrouter.DeltaFunc) error {
		for _, d := range deltas {
			onDelta(d)
		}
		return nil
	}
}

func newTestService(t *testing.T, llm LLM, preview PreviewFunc) (*Service, *docstore.Store) {
	t.Helper()
	store, err := docstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewService(Config{
		Store:           store,
		LLM:             llm,
		Preview:         preview,
		ScreenshotDir:   t.TempDir(),
		SyncBaseDelay:   time.Millisecond,
		SyncMinInterval: time.Millisecond,
	})
	return svc, store
}

// drain collects all events until the channel closes.
func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, e)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestSendMessageEmptyInput(t *testing.T) {
	svc, _ := newTestService(t, &fakeLLM{stream: streamOf()}, nil)
	session, err := svc.CreateSession()
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), session.ID, "   \n\t  ")
	require.ErrorIs(t, err, ErrEmptyInput)

	// A rejected send leaves no trace in the session.
	messages, err := svc.Messages(session.ID)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestSendMessageSuccess(t *testing.T) {
	reply := `{"dependencies": {"react-router": "^6.0.0"}}` +
		"Here is your router demo.\n\n```jsx\nexport default function App() { return <div/> }\n```\nEnjoy."

	llm := &fakeLLM{
		stream: streamOf(splitRunsOf(reply, 7)...),
		chat: func(_ context.Context, _ []openrouter.ChatMessage) (string, error) {
			return "Router Demo", nil
		},
	}

	var previewCalls int
	var previewCode string
	var previewDeps map[string]string
	preview := func(sessionID, code string, deps map[string]string) {
		previewCalls++
		previewCode = code
		previewDeps = deps
	}

	svc, _ := newTestService(t, llm, preview)
	session, err := svc.CreateSession()
	require.NoError(t, err)

	events, err := svc.SendMessage(context.Background(), session.ID, "build a router demo")
	require.NoError(t, err)
	got := drain(t, events)

	// Deltas arrive in order and reassemble the full reply.
	var assembled string
	var titles []string
	for _, e := range got {
		if e.Kind == EventDelta {
			assembled += e.Delta
		}
		if e.Kind == EventTitle {
			titles = append(titles, e.Title)
		}
	}
	require.Equal(t, reply, assembled)
	require.Equal(t, []string{"Router Demo"}, titles)

	// The terminal event carries the authoritative parse of the complete
	// buffer, not a stitch of incremental parses.
	final := got[len(got)-1]
	require.Equal(t, EventDone, final.Kind)
	require.Equal(t, reply, final.Message.Text)
	require.Equal(t, map[string]string{"react-router": "^6.0.0"}, final.Dependencies)
	require.Len(t, final.Segments, 3)
	require.Equal(t, segment.KindCode, final.Segments[1].Kind)

	// Preview fired exactly once with the code segment and deps.
	require.Equal(t, 1, previewCalls)
	require.Equal(t, final.Segments[1].Content, previewCode)
	require.Equal(t, map[string]string{"react-router": "^6.0.0"}, previewDeps)

	// Both turns are durable and in conversation order: the user turn
	// strictly before the AI turn it caused, even though both were
	// written within the same millisecond.
	messages, err := svc.Messages(session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, model.TypeUser, messages[0].Type)
	require.Equal(t, "build a router demo", messages[0].Text)
	require.Equal(t, model.TypeAI, messages[1].Type)
	require.Equal(t, reply, messages[1].Text)

	// The title was persisted on the session.
	loaded, err := svc.Session(session.ID)
	require.NoError(t, err)
	require.Equal(t, "Router Demo", loaded.Title)
}

func TestSendMessageBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var startOnce sync.Once
	llm := &fakeLLM{
		stream: func(_ context.Context, _ []openrouter.ChatMessage, onDelta openrouter.DeltaFunc) error {
			startOnce.Do(func() { close(started) })
			<-release
			onDelta("done")
			return nil
		},
	}

	svc, _ := newTestService(t, llm, nil)
	session, err := svc.CreateSession()
	require.NoError(t, err)

	events, err := svc.SendMessage(context.Background(), session.ID, "first")
	require.NoError(t, err)
	<-started

	_, err = svc.SendMessage(context.Background(), session.ID, "second")
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	drain(t, events)

	// After the terminal event the session accepts sends again.
	events, err = svc.SendMessage(context.Background(), session.ID, "third")
	require.NoError(t, err)
	drain(t, events)
}

func TestSendMessageStreamFailure(t *testing.T) {
	llm := &fakeLLM{
		stream: func(_ context.Context, _ []openrouter.ChatMessage, onDelta openrouter.DeltaFunc) error {
			onDelta("partial con")
			return &openrouter.StreamReadError{Partial: "partial con", Err: context.DeadlineExceeded}
		},
	}

	var previewCalls int
	svc, _ := newTestService(t, llm, func(string, string, map[string]string) { previewCalls++ })
	session, err := svc.CreateSession()
	require.NoError(t, err)

	events, err := svc.SendMessage(context.Background(), session.ID, "build something")
	require.NoError(t, err)
	got := drain(t, events)

	final := got[len(got)-1]
	require.Equal(t, EventError, final.Kind)
	require.Error(t, final.Err)
	require.Equal(t, apologyText, final.Message.Text)
	require.Equal(t, []segment.Segment{{Kind: segment.KindMarkdown, Content: apologyText}}, final.Segments)

	// No preview delivery for a failed generation.
	require.Zero(t, previewCalls)

	// The user turn survived the failure; the AI turn was replaced
	// wholesale with the apology, never left partial.
	messages, err := svc.Messages(session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	byType := map[string]string{}
	for _, m := range messages {
		byType[m.Type] = m.Text
	}
	require.Equal(t, "build something", byType[model.TypeUser])
	require.Equal(t, apologyText, byType[model.TypeAI])

	// The session is idle again.
	events, err = svc.SendMessage(context.Background(), session.ID, "retry")
	require.NoError(t, err)
	drain(t, events)
}

func TestSendMessagePanicInStream(t *testing.T) {
	llm := &fakeLLM{
		stream: func(_ context.Context, _ []openrouter.ChatMessage, onDelta openrouter.DeltaFunc) error {
			onDelta("partial con")
			panic("codec blew up")
		},
	}

	svc, _ := newTestService(t, llm, nil)
	session, err := svc.CreateSession()
	require.NoError(t, err)

	events, err := svc.SendMessage(context.Background(), session.ID, "build something")
	require.NoError(t, err)
	got := drain(t, events)

	// A panic mid-generation still ends with a terminal error event and
	// a closed channel; consumers never hang on a silent close.
	require.NotEmpty(t, got)
	final := got[len(got)-1]
	require.Equal(t, EventError, final.Kind)
	require.Error(t, final.Err)
	require.Equal(t, apologyText, final.Message.Text)

	// The AI turn was replaced with the apology, not left partial.
	messages, err := svc.Messages(session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, model.TypeUser, messages[0].Type)
	require.Equal(t, model.TypeAI, messages[1].Type)
	require.Equal(t, apologyText, messages[1].Text)

	// The in-flight guard was released.
	llm.stream = streamOf("recovered")
	events, err = svc.SendMessage(context.Background(), session.ID, "retry")
	require.NoError(t, err)
	drain(t, events)
}

func TestTitleFallbackOnFailure(t *testing.T) {
	llm := &fakeLLM{
		stream: streamOf("hello"),
		chat: func(_ context.Context, _ []openrouter.ChatMessage) (string, error) {
			return "", context.DeadlineExceeded
		},
	}

	svc, _ := newTestService(t, llm, nil)
	session, err := svc.CreateSession()
	require.NoError(t, err)

	events, err := svc.SendMessage(context.Background(), session.ID, "hi")
	require.NoError(t, err)
	got := drain(t, events)

	var title string
	for _, e := range got {
		if e.Kind == EventTitle {
			title = e.Title
		}
	}
	require.Equal(t, DefaultTitle, title)

	loaded, err := svc.Session(session.ID)
	require.NoError(t, err)
	require.Equal(t, DefaultTitle, loaded.Title)
}

func TestTitleGeneratedOnlyOnce(t *testing.T) {
	titleCalls := 0
	llm := &fakeLLM{
		stream: streamOf("reply"),
		chat: func(_ context.Context, _ []openrouter.ChatMessage) (string, error) {
			titleCalls++
			return "First Title", nil
		},
	}

	svc, _ := newTestService(t, llm, nil)
	session, err := svc.CreateSession()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		events, err := svc.SendMessage(context.Background(), session.ID, "another prompt")
		require.NoError(t, err)
		drain(t, events)
	}

	require.Equal(t, 1, titleCalls)
	loaded, err := svc.Session(session.ID)
	require.NoError(t, err)
	require.Equal(t, "First Title", loaded.Title)
}

func TestAddScreenshot(t *testing.T) {
	svc, store := newTestService(t, &fakeLLM{stream: streamOf()}, nil)
	session, err := svc.CreateSession()
	require.NoError(t, err)

	shot, err := svc.AddScreenshot(session.ID, []byte("\x89PNG fake"))
	require.NoError(t, err)
	require.FileExists(t, shot.Path)

	docs, err := store.Find(docstore.Query{Type: model.TypeScreenshot, SessionID: session.ID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, shot.ID, docs[0].ID)
}

func TestAddScreenshotCreatesPrivateDir(t *testing.T) {
	store, err := docstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// A screenshot directory that does not exist yet is created private.
	dir := filepath.Join(t.TempDir(), "screenshots")
	svc := NewService(Config{
		Store:         store,
		LLM:           &fakeLLM{stream: streamOf()},
		ScreenshotDir: dir,
	})

	session, err := svc.CreateSession()
	require.NoError(t, err)
	_, err = svc.AddScreenshot(session.ID, []byte("\x89PNG fake"))
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestSessionsNewestFirst(t *testing.T) {
	svc, _ := newTestService(t, &fakeLLM{stream: streamOf()}, nil)

	first, err := svc.CreateSession()
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := svc.CreateSession()
	require.NoError(t, err)

	sessions, err := svc.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, second.ID, sessions[0].ID)
	require.Equal(t, first.ID, sessions[1].ID)
}

// splitRunsOf chops s into n-byte chunks so the stream exercises delta
// boundaries that do not line up with the reply's structure.
func splitRunsOf(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
