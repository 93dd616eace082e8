// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the chat service over HTTP for the browser
// client.
//
// Endpoints:
//   - POST /api/chat                       - start a generation, SSE stream of events
//   - POST /api/sessions                   - create a session
//   - GET  /api/sessions                   - list sessions, newest first
//   - GET  /api/sessions/{id}/messages     - ordered turns of a session
//   - POST /api/sessions/{id}/screenshot   - store a preview capture
//   - GET  /health                         - health check
//
// Generations re-stream the service's event channel as SSE records
// terminated by a [DONE] marker, mirroring the upstream model protocol so
// one client-side parser handles both.
package server
