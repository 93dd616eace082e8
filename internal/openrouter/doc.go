// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openrouter implements the client for the OpenRouter
// chat-completions API, the model endpoint behind every generation.
//
// Two call shapes: ChatStream posts a streaming request and decodes the
// SSE response record by record, invoking a callback for each content
// delta in arrival order; Chat posts a non-streaming request and returns
// the single completion (used for title generation).
//
// A non-success HTTP status surfaces as *RequestError and a mid-stream
// read failure as *StreamReadError; both are terminal for the attempt;
// the client never retries. A single malformed SSE record is logged and
// skipped without aborting the stream.
package openrouter
