// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/store"
)

// =============================================================================
// CONFIG
// =============================================================================

// Naming selects how CreateSession picks display names.
type Naming string

const (
	// NamingCount names a new session "Chat N" where N is the current
	// session count plus one. Deleting sessions can produce duplicates.
	NamingCount Naming = "count"

	// NamingMonotonic uses one more than the highest "Chat N" in use.
	NamingMonotonic Naming = "monotonic"
)

// Config holds configuration for a Registry.
type Config struct {
	// Key is the store key holding the session document.
	Key string

	// LegacyKey is migrated into Key on Open. Empty disables migration.
	LegacyKey string

	// Naming is the default-name policy (default: NamingCount).
	Naming Naming

	// NewID generates session ids (default: UUIDv7).
	NewID func() string

	// Logger receives storage diagnostics (default: no-op).
	Logger *zap.Logger
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		Key:       store.DefaultKey,
		LegacyKey: store.DefaultLegacyKey,
		Naming:    NamingCount,
		NewID:     newUUID,
		Logger:    zap.NewNop(),
	}
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Key == "" {
		c.Key = def.Key
	}
	if c.Naming == "" {
		c.Naming = def.Naming
	}
	if c.NewID == nil {
		c.NewID = def.NewID
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// =============================================================================
// CHANGE NOTIFICATION
// =============================================================================

// ChangeKind identifies the mutation that produced a Change.
type ChangeKind int

const (
	ChangeCreated ChangeKind = iota
	ChangeDeleted
	ChangeRenamed
	ChangeSystem
	ChangeMessage
	ChangeActive
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	case ChangeSystem:
		return "system"
	case ChangeMessage:
		return "message"
	case ChangeActive:
		return "active"
	default:
		return "unknown"
	}
}

// Change describes one applied mutation.
type Change struct {
	Kind ChangeKind
	ID   string
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is the in-memory session set. All methods are safe for
// concurrent use. Hooks run after the registry lock is released, in the
// goroutine that made the change.
type Registry struct {
	mu       sync.Mutex
	sessions *model.SessionStore
	active   string

	st     store.Store
	cfg    Config
	log    *zap.Logger
	hooks  []func(Change)
	saveOK bool
}

// Open builds a Registry from st: the legacy key is migrated, the primary
// key is decoded, and the first session becomes active. A primary value
// that cannot be decoded is copied to "<key>.corrupt" and the registry
// starts empty.
func Open(st store.Store, cfg Config) *Registry {
	cfg.fillDefaults()
	r := &Registry{
		sessions: model.NewSessionStore(),
		st:       st,
		cfg:      cfg,
		log:      cfg.Logger.Named("session"),
		saveOK:   true,
	}
	r.load()
	return r
}

func (r *Registry) load() {
	if r.cfg.LegacyKey != "" {
		res, err := store.Migrate(r.st, r.cfg.Key, r.cfg.LegacyKey)
		if err != nil {
			r.log.Warn("legacy migration failed",
				zap.String("legacy_key", r.cfg.LegacyKey), zap.Error(err))
		} else if res != store.MigrationNone {
			r.log.Info("migrated legacy sessions",
				zap.String("from", r.cfg.LegacyKey), zap.String("to", r.cfg.Key))
		}
	}

	raw, ok, err := r.st.Load(r.cfg.Key)
	if err != nil {
		r.log.Warn("failed to load sessions, starting empty", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	sessions, err := model.ParseSessionStore(raw)
	if err != nil {
		backup := r.cfg.Key + ".corrupt"
		r.log.Warn("stored sessions are not valid JSON, starting empty",
			zap.String("backup_key", backup), zap.Error(err))
		if err := r.st.Save(backup, raw); err != nil {
			r.log.Warn("failed to back up corrupt sessions", zap.Error(err))
		}
		return
	}

	r.sessions = sessions
	r.active = sessions.First()
	r.log.Debug("loaded sessions", zap.Int("count", sessions.Len()))
}

// OnChange registers fn to be called after every applied mutation.
func (r *Registry) OnChange(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// persistLocked writes the whole store through. Caller holds r.mu.
func (r *Registry) persistLocked() {
	raw, err := r.sessions.Encode()
	if err == nil {
		err = r.st.Save(r.cfg.Key, raw)
	}
	if err != nil {
		// Log once per failure streak; folds can fire many times a second.
		if r.saveOK {
			r.log.Warn("failed to save sessions", zap.String("key", r.cfg.Key), zap.Error(err))
		}
		r.saveOK = false
		return
	}
	if !r.saveOK {
		r.log.Info("session saves recovered")
	}
	r.saveOK = true
}

// commit persists, releases the lock and notifies hooks.
func (r *Registry) commit(c Change) {
	r.persistLocked()
	hooks := r.hooks
	r.mu.Unlock()
	r.notify(hooks, c)
}

func (r *Registry) notify(hooks []func(Change), c Change) {
	for _, fn := range hooks {
		fn(c)
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// CreateSession adds an empty session with a default name, makes it
// active and returns its id.
func (r *Registry) CreateSession() string {
	r.mu.Lock()
	id := r.cfg.NewID()
	for id == "" || r.sessions.Has(id) {
		id = newUUID()
	}
	r.sessions.Set(id, model.NewSession(r.nextNameLocked()))
	r.active = id
	r.log.Debug("created session", zap.String("id", id))
	r.commit(Change{Kind: ChangeCreated, ID: id})
	return id
}

var chatNameRE = regexp.MustCompile(`^Chat (\d+)$`)

func (r *Registry) nextNameLocked() string {
	n := r.sessions.Len() + 1
	if r.cfg.Naming == NamingMonotonic {
		n = 1
		r.sessions.Each(func(_ string, s *model.Session) bool {
			if m := chatNameRE.FindStringSubmatch(s.Name); m != nil {
				if v, err := strconv.Atoi(m[1]); err == nil && v >= n {
					n = v + 1
				}
			}
			return true
		})
	}
	return fmt.Sprintf("Chat %d", n)
}

// DeleteSession removes id. If it was active, the first remaining session
// becomes active, or none.
func (r *Registry) DeleteSession(id string) bool {
	r.mu.Lock()
	if !r.sessions.Delete(id) {
		r.mu.Unlock()
		return false
	}
	if r.active == id {
		r.active = r.sessions.First()
	}
	r.log.Debug("deleted session", zap.String("id", id))
	r.commit(Change{Kind: ChangeDeleted, ID: id})
	return true
}

// RenameSession replaces the display name of id.
func (r *Registry) RenameSession(id, name string) bool {
	return r.mutate(id, ChangeRenamed, func(s *model.Session) { s.Name = name })
}

// SetSystemPrompt replaces the system instruction of id.
func (r *Registry) SetSystemPrompt(id, text string) bool {
	return r.mutate(id, ChangeSystem, func(s *model.Session) { s.System = text })
}

// AppendUserMessage appends a user message to id.
func (r *Registry) AppendUserMessage(id, content string) bool {
	return r.mutate(id, ChangeMessage, func(s *model.Session) {
		s.Messages = append(s.Messages, model.NewUserMessage(content))
	})
}

// AppendUserMessageSnapshot appends a user message to id and returns a copy
// of the session as it was just before the append, taken under the same
// lock.
func (r *Registry) AppendUserMessageSnapshot(id, content string) (*model.Session, bool) {
	var before *model.Session
	ok := r.mutate(id, ChangeMessage, func(s *model.Session) {
		before = s.Clone()
		s.Messages = append(s.Messages, model.NewUserMessage(content))
	})
	return before, ok
}

// FoldAssistantFragment merges the accumulated assistant content into id:
// a trailing assistant message is replaced, otherwise one is appended.
// Reports false when id no longer exists.
func (r *Registry) FoldAssistantFragment(id, content string) bool {
	return r.mutate(id, ChangeMessage, func(s *model.Session) { s.FoldAssistant(content) })
}

func (r *Registry) mutate(id string, kind ChangeKind, fn func(*model.Session)) bool {
	r.mu.Lock()
	s, ok := r.sessions.Get(id)
	if !ok {
		r.mu.Unlock()
		return false
	}
	fn(s)
	r.commit(Change{Kind: kind, ID: id})
	return true
}

// SetActive selects id. Selecting an unknown id is a no-op.
func (r *Registry) SetActive(id string) bool {
	r.mu.Lock()
	if !r.sessions.Has(id) {
		r.mu.Unlock()
		return false
	}
	if r.active == id {
		r.mu.Unlock()
		return true
	}
	r.active = id
	hooks := r.hooks
	r.mu.Unlock()
	r.notify(hooks, Change{Kind: ChangeActive, ID: id})
	return true
}

// =============================================================================
// QUERIES
// =============================================================================

// Active returns the active session id, or "" when there is none.
func (r *Registry) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Session returns a copy of the session stored under id.
func (r *Registry) Session(id string) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions.Get(id)
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// IDs returns the session ids in iteration order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Keys()
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Len()
}

// Entry pairs a session id with a copy of the session.
type Entry struct {
	ID      string
	Session *model.Session
}

// Sessions returns copies of all sessions in iteration order.
func (r *Registry) Sessions() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, r.sessions.Len())
	r.sessions.Each(func(id string, s *model.Session) bool {
		out = append(out, Entry{ID: id, Session: s.Clone()})
		return true
	})
	return out
}

// Snapshot returns a deep copy of the whole store.
func (r *Registry) Snapshot() *model.SessionStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Clone()
}

// Find resolves ref to a session id. ref may be an exact id, a unique id
// prefix, or a 1-based position in iteration order.
func (r *Registry) Find(ref string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions.Has(ref) {
		return ref, true
	}
	keys := r.sessions.Keys()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(keys) {
		return keys[n-1], true
	}
	match := ""
	for _, k := range keys {
		if ref != "" && len(k) > len(ref) && k[:len(ref)] == ref {
			if match != "" {
				return "", false
			}
			match = k
		}
	}
	return match, match != ""
}
