// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package segment classifies raw model output into typed content segments.
//
// A generated reply interleaves prose with fenced code blocks and may start
// with a dependency manifest, a `{"pkg": "version"}`-style prefix terminated
// by the first `}}`. Parse splits the raw text into an ordered list of
// markdown and code segments and captures the manifest prefix;
// ParseDependencies turns the manifest into a package→version map.
//
// Both functions are pure and total: they never fail on malformed input,
// and calling Parse on every growing prefix of a streaming reply converges
// to the same result as a single call on the final text. This property is
// what allows the live preview to re-parse the stream buffer on every
// update without special-casing partial input.
package segment
