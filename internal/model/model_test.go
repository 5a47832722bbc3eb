// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "AI"},
		{RoleSystem, "System"},
	}

	for _, tc := range tests {
		if got := tc.role.DisplayName(); got != tc.want {
			t.Errorf("%s.DisplayName() = %q, want %q", tc.role, got, tc.want)
		}
	}
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleSystem.Valid())
	assert.False(t, Role("tool").Valid())
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_IsBlank(t *testing.T) {
	assert.True(t, NewUserMessage("  \n\t").IsBlank())
	assert.False(t, NewUserMessage(" hi ").IsBlank())
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage("first line that is long\nsecond line")

	assert.Equal(t, "first line that is long", msg.Preview(0))
	assert.Equal(t, "first l...", msg.Preview(10))
	assert.Equal(t, "fir", msg.Preview(3))
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestSession_FoldAssistant(t *testing.T) {
	s := NewSession("Chat 1")
	s.Messages = append(s.Messages, NewUserMessage("Hi"))

	for _, acc := range []string{"H", "Hel", "Hello"} {
		s.FoldAssistant(acc)
	}

	want := []Message{NewUserMessage("Hi"), NewAssistantMessage("Hello")}
	if diff := cmp.Diff(want, s.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_FoldAssistantOnEmpty(t *testing.T) {
	s := NewSession("Chat 1")
	s.FoldAssistant("x")

	require.Len(t, s.Messages, 1)
	assert.Equal(t, RoleAssistant, s.Messages[0].Role)
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("Chat 1")
	s.Messages = append(s.Messages, NewUserMessage("Hi"))

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Name = "other"

	assert.Equal(t, "Hi", s.Messages[0].Content)
	assert.Equal(t, "Chat 1", s.Name)
}

// =============================================================================
// SESSION STORE TESTS
// =============================================================================

func TestSessionStore_RoundTripPreservesOrder(t *testing.T) {
	st := NewSessionStore()
	ids := []string{"300", "100", "200"}
	for i, id := range ids {
		s := NewSession("Chat " + string(rune('1'+i)))
		s.System = "be brief"
		s.Messages = append(s.Messages, NewUserMessage("q"+id), NewAssistantMessage("a"+id))
		st.Set(id, s)
	}

	raw, err := st.Encode()
	require.NoError(t, err)

	loaded, err := ParseSessionStore(raw)
	require.NoError(t, err)

	assert.Equal(t, ids, loaded.Keys())
	for _, id := range ids {
		want, _ := st.Get(id)
		got, ok := loaded.Get(id)
		require.True(t, ok, "missing %s", id)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("session %s mismatch (-want +got):\n%s", id, diff)
		}
	}
}

func TestSessionStore_DecodeKeepsDocumentOrder(t *testing.T) {
	raw := `{"b":{"name":"Chat 2","messages":[],"system":""},"a":{"name":"Chat 1","messages":[],"system":""}}`

	st, err := ParseSessionStore(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a"}, st.Keys())
	assert.Equal(t, "b", st.First())
}

func TestSessionStore_EncodeExactForm(t *testing.T) {
	st := NewSessionStore()
	st.Set("A", NewSession("Chat 1"))

	raw, err := st.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"A":{"name":"Chat 1","messages":[],"system":""}}`, raw)
}

func TestSessionStore_MissingMessagesDecodeAsEmpty(t *testing.T) {
	st, err := ParseSessionStore(`{"A":{"name":"Chat 1"}}`)
	require.NoError(t, err)

	s, ok := st.Get("A")
	require.True(t, ok)
	assert.NotNil(t, s.Messages)
	assert.Empty(t, s.Messages)
}

func TestSessionStore_NullAndEmpty(t *testing.T) {
	st, err := ParseSessionStore("null")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, "", st.First())

	st, err = ParseSessionStore(`{"A":null,"B":{"name":"Chat 1","messages":[],"system":""}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, st.Keys())
}

func TestSessionStore_RejectsNonObject(t *testing.T) {
	_, err := ParseSessionStore(`[1,2,3]`)
	assert.Error(t, err)

	_, err = ParseSessionStore(`{"A":`)
	assert.Error(t, err)
}

func TestSessionStore_SetExistingKeepsPosition(t *testing.T) {
	st := NewSessionStore()
	st.Set("a", NewSession("Chat 1"))
	st.Set("b", NewSession("Chat 2"))
	st.Set("a", NewSession("renamed"))

	assert.Equal(t, []string{"a", "b"}, st.Keys())
	s, _ := st.Get("a")
	assert.Equal(t, "renamed", s.Name)
}

func TestSessionStore_Delete(t *testing.T) {
	st := NewSessionStore()
	st.Set("a", NewSession("Chat 1"))
	st.Set("b", NewSession("Chat 2"))

	assert.True(t, st.Delete("a"))
	assert.False(t, st.Delete("a"))
	assert.Equal(t, "b", st.First())
	assert.Equal(t, 1, st.Len())
}

func TestSessionStore_ZeroValueIsUsable(t *testing.T) {
	var st SessionStore
	assert.Equal(t, 0, st.Len())
	assert.False(t, st.Has("x"))
	assert.Nil(t, st.Keys())

	st.Set("x", NewSession("Chat 1"))
	assert.True(t, st.Has("x"))
}
