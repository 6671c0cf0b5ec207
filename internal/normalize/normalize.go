// Package normalize turns raw reviewer output into validated structured
// data, tolerating markdown fencing and surrounding prose.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the expected top-level JSON shape.
type Kind int

const (
	KindAny Kind = iota
	KindObject
	KindArray
)

// Hint describes the expected shape of the normalized value. Validation
// against a hint is advisory: a mismatch warns, it never rejects.
type Hint struct {
	Kind         Kind
	RequiredKeys []string
}

// Result is the explicit outcome of a normalization attempt. Callers must
// check Fallback rather than assuming the parse succeeded.
type Result struct {
	Value    json.RawMessage
	Fallback bool
	Warnings []string
}

// JSON extracts the first JSON value from raw. On any parse failure it
// returns the fallback with Fallback=true and a warning; it never errors.
// Normalizing already-valid JSON returns the input unchanged.
func JSON(raw string, fallback json.RawMessage, hint *Hint) Result {
	text := stripFences(strings.TrimSpace(raw))

	value, ok := extract(text)
	if !ok {
		return Result{
			Value:    fallback,
			Fallback: true,
			Warnings: []string{fmt.Sprintf("no parseable JSON in %d-byte response, using fallback", len(raw))},
		}
	}

	res := Result{Value: value}
	if hint != nil {
		res.Warnings = append(res.Warnings, validate(value, hint)...)
	}
	return res
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) > 1 {
		text = lines[1]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// extract finds the first complete JSON value in text, skipping leading and
// trailing prose.
func extract(text string) (json.RawMessage, bool) {
	// Fast path: the whole string is already valid JSON.
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		return json.RawMessage(trimmed), true
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var v any
		if err := dec.Decode(&v); err != nil {
			continue
		}
		end := i + int(dec.InputOffset())
		candidate := strings.TrimSpace(text[i:end])
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), true
		}
	}
	return nil, false
}

func validate(value json.RawMessage, hint *Hint) []string {
	var warnings []string

	switch hint.Kind {
	case KindObject:
		if !strings.HasPrefix(strings.TrimSpace(string(value)), "{") {
			warnings = append(warnings, "expected JSON object, got non-object value")
		}
	case KindArray:
		if !strings.HasPrefix(strings.TrimSpace(string(value)), "[") {
			warnings = append(warnings, "expected JSON array, got non-array value")
		}
	}

	if len(hint.RequiredKeys) > 0 {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(value, &obj); err == nil {
			for _, key := range hint.RequiredKeys {
				if _, ok := obj[key]; !ok {
					warnings = append(warnings, fmt.Sprintf("missing expected key %q", key))
				}
			}
		}
	}
	return warnings
}
