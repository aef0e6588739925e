package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencedJSON matches a JSON object inside a fenced code block.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*?\\})\\n?\\s*```")

// ExtractJSON pulls a JSON object out of raw LLM text. It tries a fenced
// code block first, then balanced-brace scanning from the first '{'. Every
// failure path returns an empty map; this function never errors. All
// direct consumers of LLM output route through it.
func ExtractJSON(text string) map[string]any {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if out := tryParse(m[1]); out != nil {
			return out
		}
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return map[string]any{}
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				if out := tryParse(text[start : i+1]); out != nil {
					return out
				}
				return map[string]any{}
			}
		}
	}

	return map[string]any{}
}

func tryParse(s string) map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// jsonString reads a string field from an extracted map, tolerating
// missing keys and wrong types.
func jsonString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// jsonBool reads a boolean field from an extracted map.
func jsonBool(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// jsonList reads an array field of objects from an extracted map.
func jsonList(m map[string]any, key string) []map[string]any {
	v, ok := m[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// jsonStringList reads an array field of strings from an extracted map.
func jsonStringList(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
