// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "strings"

// systemPrompt builds the base system prompt sent with every generation.
// Computed once per process and cached by the service; the reply format it
// mandates is exactly what the segment parser expects: an optional
// dependency manifest prefix, then prose, then a single fenced component.
func systemPrompt(model string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert React developer. The user describes a small web app; ")
	sb.WriteString("you reply with a complete, self-contained implementation.\n\n")
	sb.WriteString("Reply format, in this exact order:\n")
	sb.WriteString("1. If the app needs npm packages beyond react and react-dom, start the reply with\n")
	sb.WriteString("   a dependency manifest: {\"dependencies\": {\"package\": \"version\", ...}}\n")
	sb.WriteString("2. A short explanation of the app in markdown.\n")
	sb.WriteString("3. One fenced ```jsx code block containing a single default-exported component.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Exactly one code block per reply.\n")
	sb.WriteString("- No imports of local files; everything lives in the one component.\n")
	sb.WriteString("- Use plain CSS-in-JS or inline styles; no CSS framework assumptions.\n")
	sb.WriteString("- When the user asks for changes, reply with the full updated component, not a diff.\n")

	// The model identifier is recorded so prompt tweaks can be targeted
	// per model family later.
	sb.WriteString("\n(model: ")
	sb.WriteString(model)
	sb.WriteString(")\n")

	return sb.String()
}

// Title generation prompts, taken verbatim from the product behavior: one
// short descriptive title, no markup, fixed fallback on any failure.
const (
	titleSystemPrompt = "You are a helpful assistant that generates short, descriptive titles. " +
		"Create a concise title (3-5 words) that captures the essence of the content. " +
		"Return only the title, no other text or markup."

	titleUserPrefix = "Generate a short, descriptive title (3-5 words) for this app, " +
		"use the React JSX <h1> tag's value if you can find it:\n\n"

	// DefaultTitle is used whenever title generation fails or returns
	// nothing usable.
	DefaultTitle = "New Chat"
)
