package redact

import "strings"

// Placeholder replaces values held under sensitive keys.
const Placeholder = "[REDACTED]"

// Redactor scrubs sensitive values out of audit payloads before they are
// persisted. Key matching is case-insensitive and applies at every depth.
type Redactor struct {
	keys map[string]struct{}
}

// New builds a redactor from a denylist of key names.
func New(keys []string) *Redactor {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return &Redactor{keys: set}
}

// Map returns a scrubbed copy of the input; the original is not modified.
func (r *Redactor) Map(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		if r.sensitive(key) {
			out[key] = Placeholder
			continue
		}
		out[key] = r.value(value)
	}
	return out
}

func (r *Redactor) value(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return r.Map(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = r.value(item)
		}
		return out
	default:
		return v
	}
}

func (r *Redactor) sensitive(key string) bool {
	_, ok := r.keys[strings.ToLower(key)]
	return ok
}
