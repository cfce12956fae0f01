package generate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Decode parses a generated JSON array, tolerating a surrounding code fence.
func Decode[T any](raw string) ([]T, error) {
	text := stripCodeBlock(raw)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}
	var out []T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("parse response json: %w (raw: %s)", err, truncate(text, 200))
	}
	return out, nil
}
