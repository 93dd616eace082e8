// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration management command.

package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/vibeforge/internal/config"
)

// HandleConfig dispatches the config subcommands.
func HandleConfig(args []string) error {
	parsed := NewArgParser(args)

	switch parsed.Subcommand() {
	case "", "show":
		return configShow()
	case "set":
		return configSet(parsed.Positional(1), parsed.Positional(2))
	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "init-key":
		return configInitKey()
	default:
		return fmt.Errorf("unknown config subcommand: %s (want show, set, path, or init-key)", parsed.Subcommand())
	}
}

func configShow() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("model:          %s\n", cfg.OpenRouter.Model)
	fmt.Printf("base_url:       %s\n", cfg.OpenRouter.BaseURL)
	fmt.Printf("api_key:        %s\n", maskKey(cfg.OpenRouter.APIKey))
	fmt.Printf("server.addr:    %s\n", cfg.Server.Addr)
	fmt.Printf("store.path:     %s\n", cfg.Store.Path)
	fmt.Printf("ui.theme:       %s\n", cfg.UI.Theme)
	fmt.Printf("ui.word_wrap:   %d\n", cfg.UI.WordWrap)
	fmt.Printf("sync.base_ms:   %d\n", cfg.Sync.BaseDelayMs)
	fmt.Printf("sync.min_ms:    %d\n", cfg.Sync.MinIntervalMs)
	return nil
}

// configSet writes one key. The API key is encrypted with the local
// keystore before it touches disk.
func configSet(key, value string) error {
	if key == "" || value == "" {
		return fmt.Errorf("usage: vibeforge config set <key> <value>")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch key {
	case "api_key":
		ks, err := config.DefaultKeystore()
		if err != nil {
			return err
		}
		if !ks.Initialized() {
			if err := ks.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize keystore: %w", err)
			}
			fmt.Println("Initialized local keystore.")
		}
		encrypted, err := ks.Encrypt(value)
		if err != nil {
			return fmt.Errorf("failed to encrypt API key: %w", err)
		}
		cfg.OpenRouter.APIKey = encrypted
	case "model":
		cfg.OpenRouter.Model = value
	case "base_url":
		cfg.OpenRouter.BaseURL = value
	case "addr":
		cfg.Server.Addr = value
	case "theme":
		cfg.UI.Theme = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Printf("Set %s.\n", key)
	return nil
}

func configInitKey() error {
	ks, err := config.DefaultKeystore()
	if err != nil {
		return err
	}
	if ks.Initialized() {
		fmt.Println("Keystore already initialized.")
		return nil
	}
	if err := ks.Initialize(); err != nil {
		return err
	}
	fmt.Println("Initialized local keystore.")
	return nil
}

// maskKey hides all but a short suffix of a credential.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if strings.HasPrefix(key, config.EncryptedPrefix) {
		return "(encrypted)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
