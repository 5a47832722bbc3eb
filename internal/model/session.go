// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
package model

import (
	"bytes"
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is one independent conversation thread. Its id is the key it is
// stored under in a SessionStore.
type Session struct {
	Name     string    `json:"name" yaml:"name"`
	Messages []Message `json:"messages" yaml:"messages"`
	System   string    `json:"system" yaml:"system"`
}

// NewSession creates an empty session with the given display name.
func NewSession(name string) *Session {
	return &Session{
		Name:     name,
		Messages: []Message{},
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	return &Session{Name: s.Name, Messages: msgs, System: s.System}
}

// LastMessage returns the trailing message, if any.
func (s *Session) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// FoldAssistant applies the streaming merge rule: the trailing assistant
// message is replaced by one carrying content, otherwise a new assistant
// message is appended.
func (s *Session) FoldAssistant(content string) {
	n := len(s.Messages)
	if n > 0 && s.Messages[n-1].Role == RoleAssistant {
		s.Messages[n-1] = NewAssistantMessage(content)
		return
	}
	s.Messages = append(s.Messages, NewAssistantMessage(content))
}

// UnmarshalJSON keeps Messages non-nil so a decoded session always encodes
// back to "messages": [].
func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Messages == nil {
		p.Messages = []Message{}
	}
	*s = Session(p)
	return nil
}

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore maps session ids to sessions and remembers insertion order.
// The JSON form is a single object whose keys appear in that order, and
// decoding keeps the order of the document.
type SessionStore struct {
	m *orderedmap.OrderedMap[string, *Session]
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{m: orderedmap.New[string, *Session]()}
}

func (st *SessionStore) init() {
	if st.m == nil {
		st.m = orderedmap.New[string, *Session]()
	}
}

// Len returns the number of sessions.
func (st *SessionStore) Len() int {
	if st.m == nil {
		return 0
	}
	return st.m.Len()
}

// Get returns the session stored under id.
func (st *SessionStore) Get(id string) (*Session, bool) {
	if st.m == nil {
		return nil, false
	}
	return st.m.Get(id)
}

// Has reports whether id is present.
func (st *SessionStore) Has(id string) bool {
	_, ok := st.Get(id)
	return ok
}

// Set stores s under id. A new id goes to the end of the iteration order;
// replacing an existing id keeps its position.
func (st *SessionStore) Set(id string, s *Session) {
	st.init()
	st.m.Set(id, s)
}

// Delete removes id and reports whether it was present.
func (st *SessionStore) Delete(id string) bool {
	if st.m == nil {
		return false
	}
	_, ok := st.m.Delete(id)
	return ok
}

// Keys returns the ids in iteration order.
func (st *SessionStore) Keys() []string {
	if st.m == nil {
		return nil
	}
	keys := make([]string, 0, st.m.Len())
	for pair := st.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// First returns the first id in iteration order, or "" when empty.
func (st *SessionStore) First() string {
	if st.m == nil {
		return ""
	}
	if pair := st.m.Oldest(); pair != nil {
		return pair.Key
	}
	return ""
}

// Each calls fn for every session in iteration order until fn returns false.
func (st *SessionStore) Each(fn func(id string, s *Session) bool) {
	if st.m == nil {
		return
	}
	for pair := st.m.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Clone returns a deep copy of the store.
func (st *SessionStore) Clone() *SessionStore {
	out := NewSessionStore()
	st.Each(func(id string, s *Session) bool {
		out.Set(id, s.Clone())
		return true
	})
	return out
}

// MarshalJSON encodes the store as an object in iteration order.
func (st *SessionStore) MarshalJSON() ([]byte, error) {
	st.init()
	return st.m.MarshalJSON()
}

// UnmarshalJSON decodes an object of sessions, keeping document order.
// A JSON null decodes to an empty store.
func (st *SessionStore) UnmarshalJSON(data []byte) error {
	st.m = orderedmap.New[string, *Session]()
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := st.m.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	// Drop null entries so callers never see a nil *Session.
	for _, id := range st.Keys() {
		if s, _ := st.m.Get(id); s == nil {
			st.m.Delete(id)
		}
	}
	return nil
}

// ParseSessionStore decodes raw persisted state.
func ParseSessionStore(raw string) (*SessionStore, error) {
	st := NewSessionStore()
	if err := json.Unmarshal([]byte(raw), st); err != nil {
		return nil, err
	}
	return st, nil
}

// Encode returns the persisted JSON form of the store.
func (st *SessionStore) Encode() (string, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
