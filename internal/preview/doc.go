// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package preview turns a finalized generation into something the user can
// see: terminal rendering of the prose and code segments, and an on-disk
// app workspace (component file plus package manifest) that an external
// bundler or dev server can serve.
package preview
