// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jasonmcalpin/ollama-chat/internal/util"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ollama-chat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Ollama  OllamaConfig  `toml:"ollama" json:"ollama"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Session SessionConfig `toml:"session" json:"session"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// OllamaConfig contains the chat service settings.
type OllamaConfig struct {
	// URL is the Ollama base URL.
	URL string `toml:"url" json:"url"`
	// DefaultModel is selected at startup when the server lists it.
	DefaultModel string `toml:"default_model" json:"default_model"`
	// RequestTimeoutSecs bounds non-streaming requests (model list, health).
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
	// AutoStart launches `ollama serve` when the server does not answer.
	AutoStart bool `toml:"auto_start" json:"auto_start"`
}

// StorageConfig selects and configures the persistent store.
type StorageConfig struct {
	// Backend is "sqlite", "file" or "memory".
	Backend string `toml:"backend" json:"backend"`
	// Path is the database file (sqlite) or directory (file).
	// Empty means a default under ConfigDir.
	Path      string `toml:"path" json:"path"`
	Key       string `toml:"key" json:"key"`
	LegacyKey string `toml:"legacy_key" json:"legacy_key"`
	ThemeKey  string `toml:"theme_key" json:"theme_key"`
}

// SessionConfig controls session defaults.
type SessionConfig struct {
	// Naming is "count" (Chat N from the current count) or "monotonic".
	Naming string `toml:"naming" json:"naming"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "auto", "light" or "dark". A theme stored by the UI wins
	// over "auto".
	Theme string `toml:"theme" json:"theme"`
	// RefreshPerSecond caps redraws while a reply streams in.
	RefreshPerSecond int `toml:"refresh_per_second" json:"refresh_per_second"`
	// RenderMarkdown toggles glamour rendering of assistant messages.
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level" json:"level"`
	// File receives JSON log lines. Empty means a default under ConfigDir;
	// "-" disables file logging.
	File string `toml:"file" json:"file"`
}

// RequestTimeout returns the non-streaming request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Ollama.RequestTimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Ollama: OllamaConfig{
			URL:                "http://localhost:11434",
			RequestTimeoutSecs: 30,
		},
		Storage: StorageConfig{
			Backend:   "sqlite",
			Key:       "ollama-chat",
			LegacyKey: "ollama-multi-chat",
			ThemeKey:  "theme",
		},
		Session: SessionConfig{
			Naming: "count",
		},
		UI: UIConfig{
			Theme:            "auto",
			RefreshPerSecond: 20,
			RenderMarkdown:   true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults fills empty fields from Default and resolves default paths.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	if c.Ollama.RequestTimeoutSecs == 0 {
		c.Ollama.RequestTimeoutSecs = d.Ollama.RequestTimeoutSecs
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.Key == "" {
		c.Storage.Key = d.Storage.Key
	}
	if c.Storage.LegacyKey == "" {
		c.Storage.LegacyKey = d.Storage.LegacyKey
	}
	if c.Storage.ThemeKey == "" {
		c.Storage.ThemeKey = d.Storage.ThemeKey
	}
	if c.Session.Naming == "" {
		c.Session.Naming = d.Session.Naming
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.RefreshPerSecond == 0 {
		c.UI.RefreshPerSecond = d.UI.RefreshPerSecond
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}

	if dir, err := ConfigDir(); err == nil {
		if c.Storage.Path == "" {
			switch strings.ToLower(c.Storage.Backend) {
			case "sqlite":
				c.Storage.Path = filepath.Join(dir, "sessions.db")
			case "file":
				c.Storage.Path = filepath.Join(dir, "store")
			}
		}
		if c.Log.File == "" {
			c.Log.File = filepath.Join(dir, "ollama-chat.log")
		}
	}
}

// Migrate upgrades older config files in place.
func (c *Config) Migrate() error {
	switch c.Version {
	case "", CurrentVersion:
		c.Version = CurrentVersion
		return nil
	default:
		return fmt.Errorf("unsupported config version %q", c.Version)
	}
}

// =============================================================================
// PATHS
// =============================================================================

// HomeEnv overrides the configuration directory.
const HomeEnv = "OLLAMA_CHAT_HOME"

// ConfigDir returns the configuration directory (~/.ollama-chat).
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ollama-chat"), nil
}

// ConfigPath returns the default TOML config path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens config file permissions to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file. A missing file is not an error:
// defaults plus environment overrides are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads a TOML (or, by extension, JSON) config file, applies
// environment overrides, migrates, fills defaults and validates. A missing
// file yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if strings.HasSuffix(path, ".json") {
			err = LoadJSON(cfg, path)
		} else {
			err = LoadTOML(cfg, path)
		}
		if err != nil {
			return nil, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	// Best effort; some filesystems cannot chmod.
	_ = ensureSecurePermissions(path)

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	_ = ensureSecurePermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# ollama-chat configuration file\n")
	buf.WriteString("# Environment variables OLLAMA_CHAT_* override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate checks field values and returns ValidateErrors when any fail.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Ollama.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL %q", c.Ollama.URL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("unsupported scheme %q, must be http or https", u.Scheme),
		})
	}
	if c.Ollama.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "ollama.request_timeout_secs",
			Message: "cannot be negative",
		})
	}

	if !oneOf(c.Storage.Backend, "sqlite", "file", "memory") {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: sqlite, file, memory", c.Storage.Backend),
		})
	}
	if c.Storage.Key != "" && c.Storage.Key == c.Storage.ThemeKey {
		errs = append(errs, ValidationError{
			Field:   "storage.theme_key",
			Message: "must differ from storage.key",
		})
	}

	if !oneOf(c.Session.Naming, "count", "monotonic") {
		errs = append(errs, ValidationError{
			Field:   "session.naming",
			Message: fmt.Sprintf("invalid naming '%s', must be one of: count, monotonic", c.Session.Naming),
		})
	}

	if !oneOf(c.UI.Theme, "auto", "light", "dark") {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, light, dark", c.UI.Theme),
		})
	}
	if c.UI.RefreshPerSecond < 0 || c.UI.RefreshPerSecond > 120 {
		errs = append(errs, ValidationError{
			Field:   "ui.refresh_per_second",
			Message: "must be between 0 and 120",
		})
	}

	if !oneOf(c.Log.Level, "debug", "info", "warn", "error") {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OLLAMA_CHAT_URL: overrides ollama.url
//   - OLLAMA_CHAT_MODEL: overrides ollama.default_model
//   - OLLAMA_CHAT_TIMEOUT: overrides ollama.request_timeout_secs
//   - OLLAMA_CHAT_AUTO_START: overrides ollama.auto_start
//   - OLLAMA_CHAT_STORAGE: overrides storage.backend
//   - OLLAMA_CHAT_STORAGE_PATH: overrides storage.path
//   - OLLAMA_CHAT_THEME: overrides ui.theme
//   - OLLAMA_CHAT_LOG_LEVEL: overrides log.level
//   - OLLAMA_CHAT_LOG_FILE: overrides log.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OLLAMA_CHAT_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("OLLAMA_CHAT_MODEL"); v != "" {
		c.Ollama.DefaultModel = v
	}
	if v := os.Getenv("OLLAMA_CHAT_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ollama.RequestTimeoutSecs = n
		}
	}
	if v := os.Getenv("OLLAMA_CHAT_AUTO_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Ollama.AutoStart = b
		}
	}
	if v := os.Getenv("OLLAMA_CHAT_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("OLLAMA_CHAT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("OLLAMA_CHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("OLLAMA_CHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("OLLAMA_CHAT_LOG_FILE"); v != "" {
		c.Log.File = v
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
