// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package preview

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateTitle fits a session title into the given display width.
// Width-aware so wide CJK characters and emoji count as the columns they
// actually occupy.
func TruncateTitle(title string, width int) string {
	title = strings.TrimSpace(title)
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(title) <= width {
		return title
	}
	return runewidth.Truncate(title, width, "...")
}
