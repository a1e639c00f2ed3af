package util

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when text holds no decodable JSON object.
var ErrNoJSONObject = errors.New("no JSON object found")

// ExtractJSONObject decodes the first JSON object in text. Objects wrapped in
// ```json fences, bare fences or surrounded by prose are accepted.
func ExtractJSONObject(text string) (map[string]any, error) {
	candidates := []string{strings.TrimSpace(text)}

	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			candidates = append([]string{strings.TrimSpace(rest[:j])}, candidates...)
		}
	} else if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			candidates = append([]string{strings.TrimSpace(rest[:j])}, candidates...)
		}
	}

	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		candidates = append(candidates, text[i:j+1])
	}

	for _, c := range candidates {
		if !strings.HasPrefix(c, "{") {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(c), &obj); err == nil {
			return obj, nil
		}
	}
	return nil, ErrNoJSONObject
}
