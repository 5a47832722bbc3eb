// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// KEYS
// =============================================================================

const (
	// DefaultKey holds the JSON-encoded session store.
	DefaultKey = "ollama-chat"

	// DefaultLegacyKey is the key older releases stored sessions under.
	DefaultLegacyKey = "ollama-multi-chat"

	// DefaultThemeKey holds the UI theme preference ("light" or "dark").
	DefaultThemeKey = "theme"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a synchronous key-value store. Values are opaque strings.
//
// Load reports ok=false when the key is absent. Save replaces any previous
// value. Delete of an absent key is not an error.
type Store interface {
	Load(key string) (value string, ok bool, err error)
	Save(key, value string) error
	Delete(key string) error
	Close() error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys() ([]string, error)
}

// =============================================================================
// BACKENDS
// =============================================================================

// Backend names a Store implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
)

// ParseBackend validates a backend name (case-insensitive).
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendSQLite, BackendFile, BackendMemory:
		return b, nil
	}
	return "", fmt.Errorf("%w: %q (want sqlite, file or memory)", ErrUnknownBackend, s)
}

// Open returns the Store for backend. path is the database file for sqlite
// and the directory for file; memory ignores it.
func Open(backend Backend, path string) (Store, error) {
	switch backend {
	case BackendSQLite:
		return OpenSQLite(path)
	case BackendFile:
		return OpenFile(path)
	case BackendMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("store is closed")

	// ErrEmptyKey is returned for an empty key.
	ErrEmptyKey = errors.New("empty key")
)

func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
