// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package preview

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeranaias/vibeforge/internal/util"
)

// =============================================================================
// APP WORKSPACE
// =============================================================================

// Default versions pinned for the packages every generated app needs.
var baseDependencies = map[string]string{
	"react":     "^18.2.0",
	"react-dom": "^18.2.0",
}

// Workspace materializes the latest generated component on disk so an
// external bundler or dev server can pick it up. One directory per session;
// each finalized generation overwrites the previous one.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at dir.
func NewWorkspace(dir string) *Workspace {
	return &Workspace{root: dir}
}

// Apply writes the component and its package manifest for a session. The
// manifest always carries the react base packages; generated dependencies
// are merged over them. Writes are atomic so a watching dev server never
// reads a torn file.
func (w *Workspace) Apply(sessionID, code string, deps map[string]string) error {
	dir := filepath.Join(w.root, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create preview dir: %w", err)
	}

	if err := util.AtomicWriteFile(filepath.Join(dir, "App.jsx"), []byte(code), 0644); err != nil {
		return fmt.Errorf("failed to write component: %w", err)
	}

	manifest, err := packageManifest(deps)
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(filepath.Join(dir, "package.json"), manifest, 0644); err != nil {
		return fmt.Errorf("failed to write package manifest: %w", err)
	}
	return nil
}

// Component reads back the current component for a session, if any.
func (w *Workspace) Component(sessionID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(w.root, sessionID, "App.jsx"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// packageManifest builds a deterministic package.json body. Map keys
// marshal in sorted order, so the file is byte-stable across regenerations
// with the same dependencies.
func packageManifest(deps map[string]string) ([]byte, error) {
	merged := make(map[string]string, len(baseDependencies)+len(deps))
	for name, version := range baseDependencies {
		merged[name] = version
	}
	for name, version := range deps {
		merged[name] = version
	}

	body := struct {
		Name         string            `json:"name"`
		Private      bool              `json:"private"`
		Dependencies map[string]string `json:"dependencies"`
	}{
		Name:         "vibeforge-preview",
		Private:      true,
		Dependencies: merged,
	}

	out, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal package manifest: %w", err)
	}
	return append(out, '\n'), nil
}
