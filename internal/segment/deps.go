// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package segment

import (
	"regexp"
	"strings"
)

// =============================================================================
// DEPENDENCY EXTRACTION
// =============================================================================

// depPairRe matches a quoted key/value pair, whitespace-tolerant around the
// colon. A pattern scan rather than a JSON decode: the manifest may be
// truncated mid-stream and must still yield every complete pair.
var depPairRe = regexp.MustCompile(`"([^"]+)"\s*:\s*"([^"]+)"`)

// ParseDependencies extracts a package→version map from a manifest string.
//
// An empty manifest yields an empty (non-nil) map, never an error. Later
// duplicate keys overwrite earlier ones; pairs whose key or value trims to
// empty are skipped.
func ParseDependencies(manifest string) map[string]string {
	deps := make(map[string]string)
	if manifest == "" {
		return deps
	}

	for _, m := range depPairRe.FindAllStringSubmatch(manifest, -1) {
		key := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])
		if key == "" || value == "" {
			continue
		}
		deps[key] = value
	}

	return deps
}
