package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotObject reports a payload that parsed as JSON but is not an object.
var ErrNotObject = errors.New("jsonutil: payload is not a JSON object")

// StripFences removes surrounding markdown code-fence markers from model
// output. It handles a leading ```json (or bare ```) line and a trailing
// ``` line, applied repeatedly so nested fences collapse to the payload.
// Input without fences is returned trimmed but otherwise unchanged.
func StripFences(s string) string {
	out := strings.TrimSpace(s)
	for {
		stripped, changed := stripOnce(out)
		if !changed {
			return stripped
		}
		out = stripped
	}
}

func stripOnce(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	rest := s[3:]
	// Drop the fence language tag (e.g. "json") up to the first newline.
	i := strings.IndexByte(rest, '\n')
	if i < 0 {
		return s, false
	}
	tag := strings.TrimSpace(rest[:i])
	if tag != "" && !isFenceTag(tag) {
		return s, false
	}
	rest = strings.TrimSpace(rest[i+1:])
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimSpace(rest), true
}

func isFenceTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "json", "json5", "jsonc":
		return true
	}
	return false
}

// DecodeObject parses model output into a generic mapping. Fences are
// stripped first; string values with double-escaped unicode sequences are
// normalized before a second attempt. A payload that is valid JSON but not
// an object fails with ErrNotObject.
func DecodeObject(s string) (map[string]any, error) {
	raw := []byte(StripFences(s))
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m, nil
	}
	norm, err := NormalizeUnicode(raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(norm, &m); err != nil {
		// Distinguish "valid JSON, wrong shape" for clearer errors upstream.
		var v any
		if err2 := json.Unmarshal(norm, &v); err2 == nil {
			return nil, ErrNotObject
		}
		return nil, err
	}
	return m, nil
}

// MarshalNoEscape encodes v into JSON without escaping <, >, & into < etc.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Serialize renders v the way stage outputs are threaded between pipeline
// stages: compact JSON without HTML escaping. Marshal failures degrade to
// a %v rendering rather than failing the run.
func Serialize(v any) string {
	b, err := MarshalNoEscape(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// UnescapeUnicodeString converts literal JSON unicode escapes like ">"
// left inside a decoded string value into actual characters. Strings whose
// escapes do not form a valid JSON string are returned with an error so the
// caller keeps the original.
func UnescapeUnicodeString(s string) (string, error) {
	if !strings.Contains(s, `\u`) {
		return s, nil
	}
	esc := strings.ReplaceAll(s, `"`, `\"`)
	var out string
	if err := json.Unmarshal([]byte(`"`+esc+`"`), &out); err != nil {
		return "", err
	}
	return out, nil
}

// NormalizeUnicode parses JSON bytes and recursively unescapes any remaining
// double-escaped unicode sequences inside string values. It also unwraps the
// case where the whole payload arrives as a quoted JSON string.
func NormalizeUnicode(raw []byte) ([]byte, error) {
	var anyVal any
	if err := json.Unmarshal(raw, &anyVal); err != nil {
		var s string
		if err2 := json.Unmarshal(raw, &s); err2 != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(s), &anyVal); err != nil {
			return nil, errors.New("jsonutil: cannot parse JSON payload")
		}
	}
	if s, ok := anyVal.(string); ok {
		// One more level: the object itself was string-encoded.
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			anyVal = inner
		}
	}
	return MarshalNoEscape(deepUnescape(anyVal))
}

func deepUnescape(v any) any {
	switch x := v.(type) {
	case string:
		if s, err := UnescapeUnicodeString(x); err == nil {
			return s
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = deepUnescape(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = deepUnescape(vv)
		}
		return out
	default:
		return v
	}
}
