package fimgs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params holds filter parameters: numbers, booleans and enum strings.
// Getters fall back to the default when a key is missing or has the wrong type.
type Params map[string]any

func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func (p Params) Bool(key string, def bool) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Enum returns the lowercased string value of key if it is one of allowed.
func (p Params) Enum(key, def string, allowed ...string) string {
	s, ok := p[key].(string)
	if !ok {
		return def
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return def
}

// Border reads the "border" parameter, mirror by default.
func (p Params) Border() BorderStrategy {
	if s, ok := p["border"].(string); ok {
		if b, ok := ParseBorderStrategy(s); ok {
			return b
		}
	}
	return BorderMirror
}

// Spec names a filter and its parameters, the serializable form of a chain step.
type Spec struct {
	Name   string `yaml:"name" json:"name"`
	Params Params `yaml:"params,omitempty" json:"params,omitempty"`
}

// String renders s in chain syntax, keys sorted.
func (s Spec) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, ":%s=%v", k, s.Params[k])
	}
	return sb.String()
}
