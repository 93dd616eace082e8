// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// runtime.go - Shared wiring: config, store, client, and chat service.

package cli

import (
	"fmt"
	"log"

	"github.com/jeranaias/vibeforge/internal/chat"
	"github.com/jeranaias/vibeforge/internal/config"
	"github.com/jeranaias/vibeforge/internal/docstore"
	"github.com/jeranaias/vibeforge/internal/openrouter"
	"github.com/jeranaias/vibeforge/internal/preview"
)

// Runtime bundles the long-lived pieces a command needs.
type Runtime struct {
	Config  *config.Config
	Store   *docstore.Store
	Service *chat.Service
}

// Close releases held resources.
func (r *Runtime) Close() {
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			log.Printf("CLI: store close: %v", err)
		}
	}
}

// NewRuntime loads configuration and wires the chat service. The model
// flag, when non-empty, overrides the configured model.
func NewRuntime(modelOverride string) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if modelOverride != "" {
		cfg.OpenRouter.Model = modelOverride
	}

	apiKey, err := config.ResolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured; set OPENROUTER_API_KEY or run 'vibeforge config set api_key <key>'")
	}

	storePath, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	store, err := docstore.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	previewDir, err := cfg.PreviewDir()
	if err != nil {
		store.Close()
		return nil, err
	}
	screenshotDir, err := cfg.ScreenshotDir()
	if err != nil {
		store.Close()
		return nil, err
	}

	workspace := preview.NewWorkspace(previewDir)

	client := openrouter.NewClientWithBaseURL(
		cfg.OpenRouter.BaseURL, apiKey, cfg.OpenRouter.Model)

	svc := chat.NewService(chat.Config{
		Store: store,
		LLM:   client,
		Preview: func(sessionID, code string, deps map[string]string) {
			if err := workspace.Apply(sessionID, code, deps); err != nil {
				log.Printf("PREVIEW: workspace write failed: %v", err)
			}
		},
		ScreenshotDir:   screenshotDir,
		SyncBaseDelay:   cfg.SyncBaseDelay(),
		SyncMinInterval: cfg.SyncMinInterval(),
	})

	return &Runtime{Config: cfg, Store: store, Service: svc}, nil
}
