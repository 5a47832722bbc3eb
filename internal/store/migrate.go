// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "fmt"

// MigrationResult describes what Migrate did.
type MigrationResult int

const (
	// MigrationNone means nothing was moved.
	MigrationNone MigrationResult = iota
	// MigrationCopied means the legacy value now lives under the primary key
	// and the legacy key was erased.
	MigrationCopied
	// MigrationCopiedKeptLegacy means the copy succeeded but erasing the
	// legacy key failed; the next run will leave it alone since the primary
	// key now exists.
	MigrationCopiedKeptLegacy
)

func (r MigrationResult) String() string {
	switch r {
	case MigrationCopied:
		return "copied"
	case MigrationCopiedKeptLegacy:
		return "copied (legacy key kept)"
	default:
		return "none"
	}
}

// Migrate performs the one-time rename of legacy to primary.
//
// When primary is absent (or cannot be read) and legacy is present, the
// legacy payload is saved verbatim under primary and legacy is deleted.
// When primary is present, legacy is never read or touched. If saving the
// primary key fails, legacy is left in place and the error is returned.
func Migrate(s Store, primary, legacy string) (MigrationResult, error) {
	if primary == legacy {
		return MigrationNone, nil
	}
	if _, ok, err := s.Load(primary); err == nil && ok {
		return MigrationNone, nil
	}

	raw, ok, err := s.Load(legacy)
	if err != nil {
		return MigrationNone, fmt.Errorf("read legacy key %q: %w", legacy, err)
	}
	if !ok {
		return MigrationNone, nil
	}

	if err := s.Save(primary, raw); err != nil {
		return MigrationNone, fmt.Errorf("copy legacy key %q to %q: %w", legacy, primary, err)
	}
	if err := s.Delete(legacy); err != nil {
		return MigrationCopiedKeptLegacy, fmt.Errorf("erase legacy key %q: %w", legacy, err)
	}
	return MigrationCopied, nil
}
