package resolver

import (
	"fmt"
	"sort"
	"strings"
)

// params wraps a raw parameter map with typed, default-aware accessors.
// Values arrive from TOML definitions (int64) and JSON requests (float64),
// so numeric readers accept both. Consumed keys are tracked so leftovers
// can be rejected as unknown.
type params struct {
	raw  map[string]any
	seen map[string]struct{}
}

func newParams(raw map[string]any) *params {
	return &params{raw: raw, seen: make(map[string]struct{}, len(raw))}
}

func (p *params) lookup(key string) (any, bool) {
	value, ok := p.raw[key]
	if ok {
		p.seen[key] = struct{}{}
	}
	return value, ok
}

// str returns the trimmed string value for key, or fallback when absent.
func (p *params) str(key, fallback string) string {
	value, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	switch v := value.(type) {
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
		return fallback
	case int, int64, float64:
		return fmt.Sprintf("%v", v)
	default:
		return fallback
	}
}

// enum returns the trimmed, lower-cased string value for key.
func (p *params) enum(key, fallback string) string {
	return strings.ToLower(p.str(key, fallback))
}

func (p *params) integer(key string, fallback int) int {
	value, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func (p *params) float(key string, fallback float64) float64 {
	value, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

// strings returns the string slice for key, tolerating []any elements from
// decoded documents.
func (p *params) strings(key string) []string {
	value, ok := p.lookup(key)
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	default:
		return nil
	}
}

// unexpected returns a validation error naming any keys that no accessor
// consumed.
func (p *params) unexpected() error {
	var leftover []string
	for key := range p.raw {
		if _, ok := p.seen[key]; !ok {
			leftover = append(leftover, key)
		}
	}
	if len(leftover) == 0 {
		return nil
	}
	sort.Strings(leftover)
	return validationError("unknown parameters: %s", strings.Join(leftover, ", "))
}
