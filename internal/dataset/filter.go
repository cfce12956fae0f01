package dataset

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Bounds for generated text, in characters. Anchors are queries; negatives are passages.
const (
	minAnchorLen   = 3
	maxAnchorLen   = 500
	minNegativeLen = 10
)

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|` +
		`new\s+instructions)`,
)

// ValidAnchor reports whether a generated query is usable.
func ValidAnchor(s string) bool {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n < minAnchorLen || n > maxAnchorLen {
		return false
	}
	return !injectionPattern.MatchString(s)
}

// ValidNegative reports whether a generated negative is usable for anchor.
func ValidNegative(anchor, negative string) bool {
	n := strings.TrimSpace(negative)
	if utf8.RuneCountInString(n) < minNegativeLen {
		return false
	}
	if strings.EqualFold(n, strings.TrimSpace(anchor)) {
		return false
	}
	return !injectionPattern.MatchString(n)
}
