// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/vibeforge/internal/docstore"
	"github.com/jeranaias/vibeforge/internal/model"
	"github.com/jeranaias/vibeforge/internal/openrouter"
	"github.com/jeranaias/vibeforge/internal/segment"
	"github.com/jeranaias/vibeforge/internal/syncer"
	"github.com/jeranaias/vibeforge/internal/util"
)

// apologyText replaces a failed generation wholesale. The user never sees
// a partial or garbled AI turn from a failed stream.
const apologyText = "Sorry, there was an error generating the component. Please try again."

// finalizeRetries bounds re-attempts of the finalize write after a
// successful stream; the in-memory result is still delivered either way.
const (
	finalizeRetries = 3
	finalizeBackoff = 100 * time.Millisecond
)

var (
	// ErrEmptyInput is returned for blank input; a no-op by contract.
	ErrEmptyInput = errors.New("input is empty")

	// ErrBusy rejects a send while a generation is already in flight for
	// the session.
	ErrBusy = errors.New("a generation is already in flight for this session")
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Store is the narrow document-store view the service needs.
type Store interface {
	Get(id string) (*docstore.Document, error)
	Put(doc *docstore.Document) (string, error)
	Find(q docstore.Query) ([]*docstore.Document, error)
}

// LLM is the model-endpoint client.
type LLM interface {
	Chat(ctx context.Context, messages []openrouter.ChatMessage) (string, error)
	ChatStream(ctx context.Context, messages []openrouter.ChatMessage, onDelta openrouter.DeltaFunc) error
	Model() string
}

// PreviewFunc receives the generated code and dependency map, exactly once
// per finalized AI turn that contains code.
type PreviewFunc func(sessionID, code string, dependencies map[string]string)

// =============================================================================
// SERVICE
// =============================================================================

// Config configures the chat service.
type Config struct {
	Store   Store
	LLM     LLM
	Preview PreviewFunc

	// ScreenshotDir is where captured preview images are written.
	ScreenshotDir string

	// Sync throttle intervals; zero values use the syncer defaults.
	SyncBaseDelay   time.Duration
	SyncMinInterval time.Duration
}

// Service is the per-process conversation controller.
type Service struct {
	store   Store
	llm     LLM
	preview PreviewFunc

	screenshotDir string

	syncBase time.Duration
	syncMin  time.Duration

	// System prompt is computed once per process lifetime.
	promptOnce sync.Once
	prompt     string

	// At most one in-flight generation per session.
	mu     sync.Mutex
	active map[string]bool
}

// NewService creates the conversation service.
func NewService(cfg Config) *Service {
	return &Service{
		store:         cfg.Store,
		llm:           cfg.LLM,
		preview:       cfg.Preview,
		screenshotDir: cfg.ScreenshotDir,
		syncBase:      cfg.SyncBaseDelay,
		syncMin:       cfg.SyncMinInterval,
		active:        make(map[string]bool),
	}
}

// systemPrompt returns the cached system prompt.
func (s *Service) systemPrompt() string {
	s.promptOnce.Do(func() {
		s.prompt = systemPrompt(s.llm.Model())
	})
	return s.prompt
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// CreateSession creates and persists a new untitled session.
func (s *Service) CreateSession() (*model.Session, error) {
	session := model.NewSession()
	doc, err := model.SessionDocument(session)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Put(doc); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return session, nil
}

// Session loads one session by id.
func (s *Service) Session(id string) (*model.Session, error) {
	doc, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return model.SessionFromDocument(doc)
}

// Sessions lists all sessions, newest first.
func (s *Service) Sessions() ([]*model.Session, error) {
	docs, err := s.store.Find(docstore.Query{Type: model.TypeSession, Descending: true})
	if err != nil {
		return nil, err
	}
	sessions := make([]*model.Session, 0, len(docs))
	for _, doc := range docs {
		session, err := model.SessionFromDocument(doc)
		if err != nil {
			log.Printf("CHAT: skipping bad session document %s: %v", doc.ID, err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Messages returns the ordered turns of a session.
func (s *Service) Messages(sessionID string) ([]*model.Message, error) {
	docs, err := s.store.Find(docstore.Query{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	messages := make([]*model.Message, 0, len(docs))
	for _, doc := range docs {
		if doc.Type != model.TypeUser && doc.Type != model.TypeAI {
			continue
		}
		msg, err := model.MessageFromDocument(doc)
		if err != nil {
			log.Printf("CHAT: skipping bad message document %s: %v", doc.ID, err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// AddScreenshot stores a captured preview image for a session. The bytes
// go to disk (atomically); the store only keeps the reference.
func (s *Service) AddScreenshot(sessionID string, png []byte) (*model.Screenshot, error) {
	if s.screenshotDir == "" {
		return nil, errors.New("screenshot directory not configured")
	}

	shot := &model.Screenshot{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      model.TypeScreenshot,
		CreatedAt: time.Now(),
	}
	shot.Path = filepath.Join(s.screenshotDir, shot.ID+".png")

	// The screenshot directory is user content under the home dir; keep
	// it private when this write has to create it.
	if err := util.AtomicWriteFileWithDir(shot.Path, png, 0644, 0700); err != nil {
		return nil, fmt.Errorf("failed to write screenshot: %w", err)
	}

	doc, err := model.ScreenshotDocument(shot)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Put(doc); err != nil {
		return nil, fmt.Errorf("failed to persist screenshot: %w", err)
	}
	return shot, nil
}

// =============================================================================
// SEND MESSAGE
// =============================================================================

// SendMessage starts one generation for the session and returns the event
// channel the consumer pulls from. The channel is bounded; the pipeline
// applies backpressure rather than dropping or reordering deltas. It is
// closed after the terminal EventDone or EventError.
//
// Blank input and a send while a generation is in flight are rejected up
// front (ErrEmptyInput, ErrBusy). Every other failure is absorbed into the
// event stream; the goroutine never panics out.
func (s *Service) SendMessage(ctx context.Context, sessionID, input string) (<-chan Event, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	if s.active[sessionID] {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.active[sessionID] = true
	s.mu.Unlock()

	events := make(chan Event, 64)

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, sessionID)
			s.mu.Unlock()
			close(events)
		}()

		s.generate(ctx, sessionID, input, events)
	}()

	return events, nil
}

// generate runs the full state machine for one send.
func (s *Service) generate(ctx context.Context, sessionID, input string, events chan<- Event) {
	emit := func(e Event) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	}

	// A panic anywhere in the pipeline runs the same error path as a
	// stream failure: the consumer always receives a terminal event and
	// the AI turn is never left partial.
	placeholder := model.NewAIPlaceholder(sessionID)
	var sync *syncer.Controller
	defer func() {
		if r := recover(); r != nil {
			log.Printf("CHAT: generation panicked: %v", r)
			if sync != nil {
				sync.Cancel()
			}
			s.failGeneration(placeholder, fmt.Errorf("generation panicked: %v", r), emit)
		}
	}()

	// Cached after the first generation.
	prompt := s.systemPrompt()

	// History is captured before the new turns are written.
	history, err := s.Messages(sessionID)
	if err != nil {
		log.Printf("CHAT: failed to load history: %v", err)
		history = nil
	}

	// Submitting: the user turn is durable before any network call.
	userMsg := model.NewUserMessage(sessionID, input)
	if err := s.putMessage(userMsg); err != nil {
		// Logged, not rolled back; the generation still proceeds with
		// the in-memory turn.
		log.Printf("CHAT: failed to persist user message: %v", err)
	}

	// The empty placeholder exists the instant the request is issued,
	// then every delta flows through the throttled syncer.
	if err := s.putMessage(placeholder); err != nil {
		log.Printf("CHAT: failed to persist AI placeholder: %v", err)
	}

	sync = syncer.NewWithIntervals(func(content string) error {
		snapshot := *placeholder
		snapshot.Text = content
		return s.putMessage(&snapshot)
	}, s.syncBase, s.syncMin)

	wire := s.buildWireMessages(prompt, history, input)

	streamErr := s.llm.ChatStream(ctx, wire, func(delta string) {
		sync.OnDelta(delta)
		emit(Event{Kind: EventDelta, Delta: delta})
	})

	if streamErr != nil {
		// Error state: Cancel stops pending propagations and waits out
		// one already mid-write, so the apology written next is the last
		// write for this turn and partial text can never land after it.
		sync.Cancel()
		s.failGeneration(placeholder, streamErr, emit)
		return
	}

	// Finalizing: the last write for this generation. Flush supersedes
	// any pending throttled propagation and carries the complete buffer.
	if err := s.finalize(sync); err != nil {
		log.Printf("CHAT: finalize write failed after retries: %v", err)
	}

	full := sync.Value()
	placeholder.Text = full

	// One authoritative re-parse of the complete buffer.
	segments, manifest := segment.Parse(full)
	deps := segment.ParseDependencies(manifest)

	// Preview delivery: exactly once per finalized turn that has code.
	if code := segment.FirstCode(segments); code != "" && s.preview != nil {
		s.preview(sessionID, code, deps)
	}

	// Title generation: at most once per session lifetime, guarded by the
	// presence of an existing title.
	if title, generated := s.maybeGenerateTitle(ctx, sessionID, full); generated {
		emit(Event{Kind: EventTitle, Title: title})
	}

	emit(Event{
		Kind:         EventDone,
		Message:      placeholder,
		Segments:     segments,
		Dependencies: deps,
	})
}

// buildWireMessages assembles the request: system prompt first, then the
// prior turns in order, then the new user text.
func (s *Service) buildWireMessages(prompt string, history []*model.Message, input string) []openrouter.ChatMessage {
	wire := make([]openrouter.ChatMessage, 0, len(history)+2)
	wire = append(wire, openrouter.ChatMessage{Role: string(model.RoleSystem), Content: prompt})
	for _, msg := range history {
		wire = append(wire, openrouter.ChatMessage{Role: string(msg.Role()), Content: msg.Text})
	}
	wire = append(wire, openrouter.ChatMessage{Role: string(model.RoleUser), Content: input})
	return wire
}

func (s *Service) putMessage(msg *model.Message) error {
	doc, err := model.MessageDocument(msg)
	if err != nil {
		return err
	}
	_, err = s.store.Put(doc)
	return err
}

// finalize performs the guaranteed-last write with bounded retry.
func (s *Service) finalize(sync *syncer.Controller) error {
	var err error
	for attempt := 0; attempt < finalizeRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * finalizeBackoff)
		}
		if err = sync.Flush(); err == nil {
			return nil
		}
	}
	return err
}

// failGeneration replaces the placeholder with the fixed apology message
// and emits the terminal error event.
func (s *Service) failGeneration(placeholder *model.Message, cause error, emit func(Event)) {
	log.Printf("CHAT: generation failed: %v", cause)

	placeholder.Text = apologyText
	if err := s.putMessage(placeholder); err != nil {
		log.Printf("CHAT: failed to persist apology message: %v", err)
	}

	emit(Event{
		Kind:    EventError,
		Err:     cause,
		Message: placeholder,
		Segments: []segment.Segment{
			{Kind: segment.KindMarkdown, Content: apologyText},
		},
		Dependencies: map[string]string{},
	})
}

// maybeGenerateTitle runs title generation when the session has none yet.
// Returns the title and whether one was set during this call.
func (s *Service) maybeGenerateTitle(ctx context.Context, sessionID, content string) (string, bool) {
	session, err := s.Session(sessionID)
	if err != nil {
		log.Printf("CHAT: failed to load session for title generation: %v", err)
		return "", false
	}
	if session.Title != "" {
		return session.Title, false
	}

	title := s.generateTitle(ctx, content)

	session.Title = title
	doc, err := model.SessionDocument(session)
	if err == nil {
		_, err = s.store.Put(doc)
	}
	if err != nil {
		log.Printf("CHAT: failed to persist session title: %v", err)
	}

	return title, true
}

// generateTitle issues the single non-streaming title request. Any
// failure falls back to the fixed default; never surfaced as an error.
func (s *Service) generateTitle(ctx context.Context, content string) string {
	title, err := s.llm.Chat(ctx, []openrouter.ChatMessage{
		{Role: string(model.RoleSystem), Content: titleSystemPrompt},
		{Role: string(model.RoleUser), Content: titleUserPrefix + content},
	})
	if err != nil {
		log.Printf("CHAT: title generation failed: %v", err)
		return DefaultTitle
	}

	title = strings.Trim(strings.TrimSpace(title), `"`)
	if title == "" {
		return DefaultTitle
	}
	return title
}
