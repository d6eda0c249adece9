package counsel

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"prodigy/pkg/errors"
)

// Payload is one decoded JSON object returned by the model.
// Field access goes through the typed getters below, which never fail:
// missing or mistyped fields yield the zero value.
type Payload map[string]any

// ParsePayload decodes raw model output into a Payload. Only a JSON object is accepted.
func ParsePayload(content string) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(stripCodeFence(content))))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedPayload, err.Error())
	}
	if p == nil {
		return nil, errors.Wrap(errors.ErrMalformedPayload, "payload is null")
	}
	return p, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add despite JSON mode
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimPrefix(t, "json")
	return strings.TrimSuffix(strings.TrimSpace(t), "```")
}

// Float returns a numeric field, accepting JSON numbers and numeric strings
func (p Payload) Float(key string) (float64, bool) {
	return toFloat(p[key])
}

// String returns a string field or ""
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return strings.TrimSpace(s)
}

// Bool returns a boolean field, accepting "true"/"false" strings
func (p Payload) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	default:
		return false
	}
}

// Strings returns a list of strings; a lone string becomes a one-element list
func (p Payload) Strings(key string) []string {
	return toStrings(p[key])
}

// Map returns a nested object or an empty map
func (p Payload) Map(key string) map[string]any {
	if m, ok := p[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Lookup walks nested objects along path and returns the leaf value
func Lookup(m map[string]any, path ...string) (any, bool) {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// toFloat rejects NaN and infinities: they cannot be encoded back to JSON.
func toFloat(v any) (float64, bool) {
	f, ok := rawFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch s := item.(type) {
			case string:
				if strings.TrimSpace(s) != "" {
					out = append(out, s)
				}
			case map[string]any:
				// Some replies use {"risk": "..."} objects instead of plain strings
				for _, field := range []string{"risk", "description", "text", "title"} {
					if text, ok := s[field].(string); ok && text != "" {
						out = append(out, text)
						break
					}
				}
			}
		}
		return out
	case string:
		if strings.TrimSpace(list) == "" {
			return []string{}
		}
		return []string{list}
	default:
		return []string{}
	}
}

// Normalize converts json.Number leaves into float64 so the payload marshals
// and compares like a plain decoded document.
func Normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Normalize(item)
		}
		return out
	case Payload:
		return Normalize(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Normalize(item)
		}
		return out
	default:
		return v
	}
}
