// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyPayload = `{"1":{"name":"Chat 1","messages":[{"role":"user","content":"hi"}],"system":""}}`

func TestMigrate_CopiesLegacy(t *testing.T) {
	m := NewMemoryWith(map[string]string{DefaultLegacyKey: legacyPayload})

	res, err := Migrate(m, DefaultKey, DefaultLegacyKey)
	require.NoError(t, err)
	assert.Equal(t, MigrationCopied, res)

	assert.Equal(t, map[string]string{DefaultKey: legacyPayload}, m.Snapshot())
}

func TestMigrate_Idempotent(t *testing.T) {
	m := NewMemoryWith(map[string]string{DefaultLegacyKey: legacyPayload})

	_, err := Migrate(m, DefaultKey, DefaultLegacyKey)
	require.NoError(t, err)

	// A legacy key reappearing after migration must be left alone.
	require.NoError(t, m.Save(DefaultLegacyKey, "stale"))
	res, err := Migrate(m, DefaultKey, DefaultLegacyKey)
	require.NoError(t, err)
	assert.Equal(t, MigrationNone, res)

	assert.Equal(t, map[string]string{
		DefaultKey:       legacyPayload,
		DefaultLegacyKey: "stale",
	}, m.Snapshot())
}

func TestMigrate_PrimaryPresentNeverReadsLegacy(t *testing.T) {
	m := NewMemoryWith(map[string]string{
		DefaultKey:       `{}`,
		DefaultLegacyKey: legacyPayload,
	})
	m.Fail = func(op, key string) error {
		if key == DefaultLegacyKey {
			t.Errorf("legacy key touched: %s", op)
		}
		return nil
	}

	res, err := Migrate(m, DefaultKey, DefaultLegacyKey)
	require.NoError(t, err)
	assert.Equal(t, MigrationNone, res)
}

func TestMigrate_NothingToDo(t *testing.T) {
	m := NewMemory()

	res, err := Migrate(m, DefaultKey, DefaultLegacyKey)
	require.NoError(t, err)
	assert.Equal(t, MigrationNone, res)
	assert.Empty(t, m.Snapshot())
}

func TestMigrate_SaveFailureKeepsLegacy(t *testing.T) {
	m := NewMemoryWith(map[string]string{DefaultLegacyKey: legacyPayload})
	m.Fail = func(op, key string) error {
		if op == "save" {
			return errors.New("read-only")
		}
		return nil
	}

	res, err := Migrate(m, DefaultKey, DefaultLegacyKey)
	require.Error(t, err)
	assert.Equal(t, MigrationNone, res)
	assert.Equal(t, map[string]string{DefaultLegacyKey: legacyPayload}, m.Snapshot())
}

func TestMigrate_DeleteFailureReported(t *testing.T) {
	m := NewMemoryWith(map[string]string{DefaultLegacyKey: legacyPayload})
	m.Fail = func(op, key string) error {
		if op == "delete" {
			return errors.New("locked")
		}
		return nil
	}

	res, err := Migrate(m, DefaultKey, DefaultLegacyKey)
	require.Error(t, err)
	assert.Equal(t, MigrationCopiedKeptLegacy, res)

	v, ok, _ := m.Load(DefaultKey)
	assert.True(t, ok)
	assert.Equal(t, legacyPayload, v)
}

func TestMigrate_UnreadablePrimaryTriggersMigration(t *testing.T) {
	m := NewMemoryWith(map[string]string{DefaultLegacyKey: legacyPayload})
	failPrimaryOnce := true
	m.Fail = func(op, key string) error {
		if op == "load" && key == DefaultKey && failPrimaryOnce {
			failPrimaryOnce = false
			return errors.New("io error")
		}
		return nil
	}

	res, err := Migrate(m, DefaultKey, DefaultLegacyKey)
	require.NoError(t, err)
	assert.Equal(t, MigrationCopied, res)
}

func TestMigrate_SameKeyIsNoop(t *testing.T) {
	m := NewMemoryWith(map[string]string{"k": "v"})

	res, err := Migrate(m, "k", "k")
	require.NoError(t, err)
	assert.Equal(t, MigrationNone, res)
	assert.Equal(t, map[string]string{"k": "v"}, m.Snapshot())
}

func TestMigrationResult_String(t *testing.T) {
	assert.Equal(t, "none", MigrationNone.String())
	assert.Equal(t, "copied", MigrationCopied.String())
}
