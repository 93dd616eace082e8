// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

// doneSentinel is the record marking normal end-of-stream. It is consumed
// here and never reaches the JSON decoder.
var doneSentinel = []byte("[DONE]")

// DeltaFunc receives one incremental content delta. Called synchronously
// in arrival order, before the next network chunk is read.
type DeltaFunc func(delta string)

// StreamReadError reports a failed read mid-stream. Partial preserves the
// content received before the failure.
type StreamReadError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamReadError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream read failed (partial content: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamReadError) Unwrap() error {
	return e.Err
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a response body.
//
// Reading whole lines through bufio keeps UTF-8 sequences intact even when
// the transport splits a multi-byte character across chunk boundaries: the
// decoder only ever sees complete records.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates an SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent reads the next event's data payload. Lines without the
// `data:` prefix (comments, id:, retry:) are ignored. Returns io.EOF at
// end of stream.
func (s *SSEReader) ReadEvent() ([]byte, error) {
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(dataLines) > 0 {
					return bytes.Join(dataLines, []byte("\n")), nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line terminates an event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data: ")) {
			dataLines = append(dataLines, line[6:])
		} else if bytes.HasPrefix(line, []byte("data:")) {
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// streamChunk is one decoded SSE record from the completions stream.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatStream performs a streaming chat completion, invoking onDelta for
// every content delta in arrival order. It returns when the stream
// completes, the context is canceled, or a terminal error occurs.
//
// Single attempt: a *RequestError (non-2xx) or *StreamReadError is
// surfaced to the caller without retry.
func (c *Client) ChatStream(ctx context.Context, messages []ChatMessage, onDelta DeltaFunc) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	reqBody := ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return &StreamReadError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		return &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return c.processStream(ctx, resp.Body, onDelta)
}

// processStream reads SSE records and forwards content deltas. No
// buffering or reordering: each delta is delivered before the next
// record is read.
func (c *Client) processStream(ctx context.Context, body io.Reader, onDelta DeltaFunc) error {
	reader := NewSSEReader(body)

	// PERFORMANCE: strings.Builder avoids quadratic allocations.
	var partial strings.Builder

	for {
		select {
		case <-ctx.Done():
			return &StreamReadError{Err: ctx.Err(), Partial: partial.String()}
		default:
		}

		data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return &StreamReadError{Err: err, Partial: partial.String()}
		}

		if bytes.Equal(data, doneSentinel) {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Tolerant per-record decoding: log and move on.
			log.Printf("STREAM: skipping malformed record: %v", err)
			continue
		}

		if len(chunk.Choices) > 0 {
			if content := chunk.Choices[0].Delta.Content; content != "" {
				partial.WriteString(content)
				onDelta(content)
			}
		}
	}
}
