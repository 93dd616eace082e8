// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// KEYSTORE
// =============================================================================

// API keys at rest are encrypted with AES-256-GCM under a master key kept
// in a 0600 file next to the config. Encrypted values carry the ENC:
// prefix: ENC:base64(nonce|ciphertext|tag).

const (
	// EncryptedPrefix marks a config value as encrypted.
	EncryptedPrefix = "ENC:"

	nonceSize = 12
	keySize   = 32
	saltSize  = 32

	// OWASP 2023 recommendation for PBKDF2-SHA-256.
	pbkdf2Iterations = 600000
)

var (
	// ErrKeystoreNotInitialized indicates no master key exists yet.
	ErrKeystoreNotInitialized = errors.New("keystore not initialized: run 'vibeforge config init-keystore'")
	// ErrInvalidCiphertext indicates the ciphertext format is invalid.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	// ErrDecryptionFailed indicates decryption failed (wrong key or
	// tampered data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// zeroBytes zeros sensitive byte slices.
// SECURITY: Zero key material to prevent memory disclosure via crash dumps.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Keystore encrypts and decrypts config secrets under a file-held master
// key.
type Keystore struct {
	keyPath string
}

// NewKeystore creates a keystore rooted in the given directory.
func NewKeystore(dir string) *Keystore {
	return &Keystore{keyPath: filepath.Join(dir, "master.key")}
}

// DefaultKeystore returns the keystore under the config directory.
func DefaultKeystore() (*Keystore, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewKeystore(dir), nil
}

// Initialized reports whether a master key exists.
func (k *Keystore) Initialized() bool {
	info, err := os.Stat(k.keyPath)
	return err == nil && info.Mode().IsRegular()
}

// Initialize generates a new random master key.
// SECURITY: The key file is created 0600; an existing key is never
// overwritten.
func (k *Keystore) Initialize() error {
	if k.Initialized() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(k.keyPath), 0755); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	defer zeroBytes(key)

	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(k.keyPath, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to store master key: %w", err)
	}
	return nil
}

// loadKey reads and decodes the master key.
func (k *Keystore) loadKey() ([]byte, error) {
	data, err := os.ReadFile(k.keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeystoreNotInitialized
		}
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("corrupt master key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("corrupt master key: %d bytes", len(key))
	}
	return key, nil
}

// Encrypt encrypts a plaintext value into the ENC: wire form.
func (k *Keystore) Encrypt(plaintext string) (string, error) {
	key, err := k.loadKey()
	if err != nil {
		return "", err
	}
	defer zeroBytes(key)

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts an ENC: value. Plaintext values pass through unchanged
// so configs written before keystore initialization keep working.
func (k *Keystore) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(raw) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	key, err := k.loadKey()
	if err != nil {
		return "", err
	}
	defer zeroBytes(key)

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether a config value carries the ENC: prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// DeriveKey derives an encryption key from a password and salt using
// PBKDF2-SHA-256, for deployments that prefer a passphrase over a key
// file.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New)
}

// GenerateSalt generates a random salt for DeriveKey.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}
	return aead, nil
}

// ResolveAPIKey returns the usable API key for a loaded config, decrypting
// the stored value when it is keystore-encrypted.
func ResolveAPIKey(cfg *Config) (string, error) {
	if !IsEncrypted(cfg.OpenRouter.APIKey) {
		return cfg.OpenRouter.APIKey, nil
	}
	ks, err := DefaultKeystore()
	if err != nil {
		return "", err
	}
	return ks.Decrypt(cfg.OpenRouter.APIKey)
}
