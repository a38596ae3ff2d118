// Package config provides read-only hierarchical settings assembled from
// layered sources.
//
// Keys are case-insensitive and separated by ':'. Sources added later
// override keys set by earlier ones:
//
//	cfg, err := config.NewBuilder().
//	    AddYAMLFile("appsettings.yaml", false).
//	    AddDotEnvFile(".env", true).
//	    AddEnvironmentVariables("APP_").
//	    AddFlags(flags).
//	    Build()
//
//	level := cfg.Section("logging").Get("level")
package config

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// KeyDelimiter separates the segments of a configuration key.
const KeyDelimiter = ":"

// Configuration is a read-only view over a set of settings. A Section is
// itself a Configuration rooted at a key prefix.
type Configuration interface {
	// Get returns the value for key, or "" when the key is not set.
	Get(key string) string

	// Lookup returns the value for key and whether it was set.
	Lookup(key string) (string, bool)

	// Section returns the sub-tree rooted at key. A section for a missing
	// key is empty but never nil.
	Section(key string) Configuration

	// Keys returns the immediate child key segments, sorted.
	Keys() []string

	// Path returns the full key of this section, "" for the root.
	Path() string

	// All returns every value below this section keyed relative to it.
	All() map[string]string
}

type store struct {
	values map[string]string
}

type section struct {
	store  *store
	prefix string
}

var _ Configuration = (*section)(nil)

func newConfiguration(values map[string]string) Configuration {
	return &section{store: &store{values: values}}
}

// FromMap builds a Configuration from a nested map. Nested maps become
// sections and slices are indexed by position.
func FromMap(m map[string]any) Configuration {
	values := make(map[string]string)
	flatten(values, "", m)
	return newConfiguration(values)
}

func (s *section) full(key string) string {
	key = NormalizeKey(key)
	if s.prefix == "" {
		return key
	}
	if key == "" {
		return s.prefix
	}
	return s.prefix + KeyDelimiter + key
}

func (s *section) Get(key string) string {
	v, _ := s.Lookup(key)
	return v
}

func (s *section) Lookup(key string) (string, bool) {
	v, ok := s.store.values[s.full(key)]
	return v, ok
}

func (s *section) Section(key string) Configuration {
	return &section{store: s.store, prefix: s.full(key)}
}

func (s *section) Keys() []string {
	seen := make(map[string]struct{})
	for k := range s.store.values {
		rest, ok := s.relative(k)
		if !ok || rest == "" {
			continue
		}
		head, _, _ := strings.Cut(rest, KeyDelimiter)
		seen[head] = struct{}{}
	}

	return slices.Sorted(maps.Keys(seen))
}

func (s *section) Path() string { return s.prefix }

func (s *section) All() map[string]string {
	out := make(map[string]string)
	for k, v := range s.store.values {
		if rest, ok := s.relative(k); ok && rest != "" {
			out[rest] = v
		}
	}
	return out
}

func (s *section) relative(key string) (string, bool) {
	if s.prefix == "" {
		return key, true
	}
	if key == s.prefix {
		return "", true
	}
	rest, ok := strings.CutPrefix(key, s.prefix+KeyDelimiter)
	return rest, ok
}

// NormalizeKey lower-cases key and maps the alternative separators "__" and
// "." onto ':'.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "__", KeyDelimiter)
	key = strings.ReplaceAll(key, ".", KeyDelimiter)
	return strings.Trim(key, KeyDelimiter)
}

// GetString returns the value for key or def when it is unset or empty.
func GetString(cfg Configuration, key, def string) string {
	if v, ok := cfg.Lookup(key); ok && v != "" {
		return v
	}
	return def
}

// GetBool parses the value for key, returning def when it is unset or invalid.
func GetBool(cfg Configuration, key string, def bool) bool {
	v, ok := cfg.Lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// GetInt parses the value for key, returning def when it is unset or invalid.
func GetInt(cfg Configuration, key string, def int) int {
	v, ok := cfg.Lookup(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

// GetDuration parses the value for key with time.ParseDuration.
func GetDuration(cfg Configuration, key string, def time.Duration) time.Duration {
	v, ok := cfg.Lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}
