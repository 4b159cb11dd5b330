package config

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// sections are the top-level keys of the config file.
var sections = []string{"gateway", "model", "agent", "tools", "search", "checkpoint", "logging"}

// KeyPath addresses a value in the raw config document, e.g.
// "tools.weather.apiKey".
type KeyPath []string

// ParseKeyPath splits a dotted key. The first segment must name a config
// section.
func ParseKeyPath(raw string) (KeyPath, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	segs := strings.Split(raw, ".")
	for _, s := range segs {
		if s == "" {
			return nil, &ConfigError{Message: "config key contains empty segment: " + raw}
		}
	}
	if !isSection(segs[0]) {
		return nil, &ConfigError{Message: "unknown config section " + segs[0] + " (want one of " + strings.Join(sections, ", ") + ")"}
	}
	return KeyPath(segs), nil
}

func isSection(s string) bool {
	for _, name := range sections {
		if s == name {
			return true
		}
	}
	return false
}

func (k KeyPath) String() string { return strings.Join(k, ".") }

// Lookup returns the value at k, if every segment exists.
func (k KeyPath) Lookup(doc map[string]any) (any, bool) {
	var cur any = doc
	for _, seg := range k {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores v at k. Missing or non-map intermediates are replaced by maps.
func (k KeyPath) Set(doc map[string]any, v any) {
	parent := doc
	for _, seg := range k[:len(k)-1] {
		child, ok := parent[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			parent[seg] = child
		}
		parent = child
	}
	parent[k[len(k)-1]] = v
}

// Unset deletes the value at k and reports whether it existed.
func (k KeyPath) Unset(doc map[string]any) bool {
	parent, ok := k[:len(k)-1].Lookup(doc)
	m, isMap := parent.(map[string]any)
	if !ok || !isMap {
		return false
	}
	last := k[len(k)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}

// DecodeValue interprets a command-line value the way YAML would type it,
// so "8080" is an int, "true" a bool and "[a, b]" a list. Anything that does
// not parse is kept as the literal string.
func DecodeValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	return v
}

// DecodeRaw converts a raw document into a Config with defaults applied, so
// an edit can be checked before it is written.
func DecodeRaw(doc map[string]any) (Config, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ConfigError{Message: "invalid value: " + err.Error()}
	}
	applyDefaults(&cfg)
	return cfg, nil
}
