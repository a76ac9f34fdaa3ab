package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dshills/nvimbed/internal/config/loader"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "NVIMBED_"

// envMapping lists variables whose names do not follow the section_name
// convention.
var envMapping = map[string]string{
	"NVIMBED_LOG_LEVEL":  "logging.level",
	"NVIMBED_LOG_FORMAT": "logging.format",
	"NVIMBED_CONFIG":     "",
}

func defaults() map[string]any {
	return map[string]any{
		"sync": map[string]any{
			"quiescence": "300ms",
		},
		"engine": map[string]any{
			"path":          "nvim",
			"args":          []any{"--embed", "--clean"},
			"address":       "",
			"rpcTimeout":    "2s",
			"retryAttempts": 3,
			"retryDelay":    "100ms",
			"attachBuffers": true,
			"width":         80,
			"height":        24,
		},
		"logging": map[string]any{
			"level":  "info",
			"format": "text",
		},
	}
}

// Config holds merged settings. It is safe for concurrent use.
type Config struct {
	mu   sync.RWMutex
	data map[string]any
	errs map[string]error

	file      *loader.FileLoader
	env       *loader.EnvLoader
	overrides map[string]any
}

// New returns a configuration holding only the defaults.
func New() *Config {
	return &Config{
		data:      defaults(),
		env:       loader.NewEnvLoader(EnvPrefix, envMapping),
		overrides: make(map[string]any),
	}
}

// Load reads path (if not empty) and the environment on top of the
// defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	c := New()
	if path != "" {
		c.file = loader.NewFileLoader(path)
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "nvimbed", "config.toml")
}

// Path returns the configuration file path, or "" if none.
func (c *Config) Path() string {
	if c.file == nil {
		return ""
	}
	return c.file.Path()
}

// Reload re-reads every layer. On error the previous settings stay in
// effect.
func (c *Config) Reload() error {
	data := defaults()

	if c.file != nil {
		fileData, err := c.file.Load()
		if err != nil {
			return err
		}
		data = loader.DeepMerge(data, fileData)
	}

	envData, err := c.env.Load()
	if err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	data = loader.DeepMerge(data, envData)

	c.mu.RLock()
	for path, v := range c.overrides {
		loader.Set(data, path, v)
	}
	c.mu.RUnlock()

	next := &Config{data: data}
	if err := next.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.data = data
	c.errs = nil
	c.mu.Unlock()
	return nil
}

// Set overrides one setting above every other layer, including across
// reloads. Used for command line flags.
func (c *Config) Set(path string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[path] = value
	loader.Set(c.data, path, value)
}

// Get returns the raw value at a dot-separated path.
func (c *Config) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return loader.Get(c.data, path)
}

// GetString returns a string setting.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", ErrSettingNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: %w: got %T, want string", path, ErrTypeMismatch, v)
	}
	return s, nil
}

// GetInt returns an integer setting.
func (c *Config) GetInt(path string) (int, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("%s: %w: got %T, want integer", path, ErrTypeMismatch, v)
}

// GetBool returns a boolean setting.
func (c *Config) GetBool(path string) (bool, error) {
	v, ok := c.Get(path)
	if !ok {
		return false, ErrSettingNotFound
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: %w: got %T, want bool", path, ErrTypeMismatch, v)
	}
	return b, nil
}

// GetDuration returns a duration setting. Strings are parsed with
// time.ParseDuration and integers are milliseconds.
func (c *Config) GetDuration(path string) (time.Duration, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("%s: %w: %v", path, ErrTypeMismatch, err)
		}
		return parsed, nil
	case int:
		return time.Duration(d) * time.Millisecond, nil
	case int64:
		return time.Duration(d) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("%s: %w: got %T, want duration", path, ErrTypeMismatch, v)
}

// GetStringSlice returns a list setting. A single string is split on
// whitespace.
func (c *Config) GetStringSlice(path string) ([]string, error) {
	v, ok := c.Get(path)
	if !ok {
		return nil, ErrSettingNotFound
	}
	switch s := v.(type) {
	case string:
		return strings.Fields(s), nil
	case []string:
		return append([]string(nil), s...), nil
	case []any:
		out := make([]string, len(s))
		for i, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: %w: got %T, want string", path, i, ErrTypeMismatch, item)
			}
			out[i] = str
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: %w: got %T, want list", path, ErrTypeMismatch, v)
}

// Errors returns the type errors met by section accessors since the last
// reload.
func (c *Config) Errors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.errs)
}

func (c *Config) record(path string, err error) {
	if errors.Is(err, ErrSettingNotFound) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errs == nil {
		c.errs = make(map[string]error)
	}
	if _, ok := c.errs[path]; !ok {
		c.errs[path] = err
	}
}

func (c *Config) stringOr(path, def string) string {
	v, err := c.GetString(path)
	if err != nil {
		c.record(path, err)
		return def
	}
	return v
}

func (c *Config) intOr(path string, def int) int {
	v, err := c.GetInt(path)
	if err != nil {
		c.record(path, err)
		return def
	}
	return v
}

func (c *Config) boolOr(path string, def bool) bool {
	v, err := c.GetBool(path)
	if err != nil {
		c.record(path, err)
		return def
	}
	return v
}

func (c *Config) durationOr(path string, def time.Duration) time.Duration {
	v, err := c.GetDuration(path)
	if err != nil {
		c.record(path, err)
		return def
	}
	return v
}

func (c *Config) stringsOr(path string, def []string) []string {
	v, err := c.GetStringSlice(path)
	if err != nil {
		c.record(path, err)
		return append([]string(nil), def...)
	}
	return v
}
