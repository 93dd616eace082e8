// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
version = "1.0.0"

[openrouter]
api_key = "sk-test"
model = "anthropic/claude-3.7-sonnet"

[server]
addr = "127.0.0.1:9999"

[sync]
base_delay_ms = 25
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.OpenRouter.APIKey)
	require.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	require.Equal(t, 25, cfg.Sync.BaseDelayMs)

	// Unset fields fall back to defaults.
	require.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouter.BaseURL)
	require.Equal(t, 250, cfg.Sync.MinIntervalMs)
	require.Equal(t, "dark", cfg.UI.Theme)
}

func TestLoadFixesInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`version = "1.0.0"`), 0644))

	_, err := LoadFromPath(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-from-env")
	t.Setenv("VIBEFORGE_MODEL", "openai/gpt-4o")
	t.Setenv("VIBEFORGE_SYNC_BASE_DELAY_MS", "75")

	cfg := Default()
	cfg.OpenRouter.APIKey = "sk-from-file"
	cfg.ApplyEnvOverrides()

	require.Equal(t, "sk-from-env", cfg.OpenRouter.APIKey)
	require.Equal(t, "openai/gpt-4o", cfg.OpenRouter.Model)
	require.Equal(t, 75, cfg.Sync.BaseDelayMs)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.OpenRouter.BaseURL = "not a url at all \x00"
	cfg.UI.Theme = "neon"
	cfg.Server.RatePerSecond = -1

	err := cfg.Validate()
	require.Error(t, err)

	var errs ValidateErrors
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs, 3)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.OpenRouter.APIKey = "sk-persisted"
	cfg.Server.Addr = "0.0.0.0:8080"
	require.NoError(t, SaveTOML(cfg, path))

	// Written with restrictive permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "sk-persisted", loaded.OpenRouter.APIKey)
	require.Equal(t, "0.0.0.0:8080", loaded.Server.Addr)
}

// =============================================================================
// KEYSTORE
// =============================================================================

func TestKeystoreRoundTrip(t *testing.T) {
	ks := NewKeystore(t.TempDir())
	require.False(t, ks.Initialized())
	require.NoError(t, ks.Initialize())
	require.True(t, ks.Initialized())

	sealed, err := ks.Encrypt("sk-secret-key")
	require.NoError(t, err)
	require.True(t, IsEncrypted(sealed))
	require.NotContains(t, sealed, "sk-secret-key")

	plain, err := ks.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "sk-secret-key", plain)
}

func TestKeystorePlaintextPassthrough(t *testing.T) {
	ks := NewKeystore(t.TempDir())
	plain, err := ks.Decrypt("sk-unencrypted")
	require.NoError(t, err)
	require.Equal(t, "sk-unencrypted", plain)
}

func TestKeystoreNotInitialized(t *testing.T) {
	ks := NewKeystore(t.TempDir())
	_, err := ks.Encrypt("anything")
	require.ErrorIs(t, err, ErrKeystoreNotInitialized)
}

func TestKeystoreTamperDetected(t *testing.T) {
	ks := NewKeystore(t.TempDir())
	require.NoError(t, ks.Initialize())

	sealed, err := ks.Encrypt("sk-secret")
	require.NoError(t, err)

	// Flip one character of the ciphertext body.
	tampered := []byte(sealed)
	last := len(tampered) - 2
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = ks.Decrypt(string(tampered))
	require.Error(t, err)
}

func TestKeystoreWrongKeyFails(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()

	ksA := NewKeystore(dirA)
	require.NoError(t, ksA.Initialize())
	sealed, err := ksA.Encrypt("sk-secret")
	require.NoError(t, err)

	ksB := NewKeystore(dirB)
	require.NoError(t, ksB.Initialize())
	_, err = ksB.Decrypt(sealed)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	a := DeriveKey("passphrase", salt)
	b := DeriveKey("passphrase", salt)
	require.Equal(t, a, b)
	require.Len(t, a, 32)

	other := DeriveKey("different", salt)
	require.NotEqual(t, a, other)
}
