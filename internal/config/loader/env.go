package loader

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvLoader maps prefixed environment variables onto setting paths.
//
// Variables in the mapping go to their mapped path. Any other variable
// with the prefix is converted by name: NVIMBED_ENGINE_RPC_TIMEOUT
// becomes engine.rpcTimeout.
type EnvLoader struct {
	prefix  string
	mapping map[string]string
	environ func() []string
}

// NewEnvLoader creates a loader for prefix, which should include the
// trailing underscore.
func NewEnvLoader(prefix string, mapping map[string]string) *EnvLoader {
	if mapping == nil {
		mapping = make(map[string]string)
	}
	return &EnvLoader{prefix: prefix, mapping: mapping, environ: os.Environ}
}

// Load returns the settings found in the environment. Empty values are
// kept as empty strings.
func (l *EnvLoader) Load() (map[string]any, error) {
	out := make(map[string]any)
	for _, kv := range l.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		Set(out, path, parseValue(value))
	}
	return out, nil
}

// envToPath converts PREFIX_SECTION_SOME_NAME to section.someName.
func (l *EnvLoader) envToPath(env string) string {
	parts := strings.Split(strings.TrimPrefix(env, l.prefix), "_")
	if len(parts) < 2 || parts[0] == "" {
		return ""
	}

	var name strings.Builder
	name.WriteString(strings.ToLower(parts[1]))
	for _, p := range parts[2:] {
		if p == "" {
			continue
		}
		name.WriteString(strings.ToUpper(p[:1]))
		name.WriteString(strings.ToLower(p[1:]))
	}
	return strings.ToLower(parts[0]) + "." + name.String()
}

// parseValue converts a variable to bool, int, duration or a string
// list (comma-separated), falling back to the raw string.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	}
	return s
}
