package splitter

import (
	"fmt"
	"strings"
)

const fence = "```"

// protectCodeBlocks replaces every line starting with '#' inside a fenced code
// block with a placeholder so the header locator cannot match it. An
// unterminated fence runs to the end of the document.
func protectCodeBlocks(text string) (string, map[string]string) {
	if !strings.Contains(text, fence) {
		return text, nil
	}

	prefix := tokenPrefix(text)
	lines := strings.SplitAfter(text, "\n")
	placeholders := make(map[string]string)
	inFence := false
	counter := 0

	var sb strings.Builder
	sb.Grow(len(text))
	for _, line := range lines {
		body, eol := splitEOL(line)
		trimmed := strings.TrimLeft(body, " \t")

		switch {
		case strings.HasPrefix(trimmed, fence):
			inFence = !inFence
		case inFence && strings.HasPrefix(trimmed, "#"):
			token := fmt.Sprintf("{{%s%d}}", prefix, counter)
			counter++
			placeholders[token] = body
			sb.WriteString(token)
			sb.WriteString(eol)
			continue
		}
		sb.WriteString(line)
	}
	return sb.String(), placeholders
}

// tokenPrefix picks a placeholder prefix that never occurs in text, so only
// generated placeholders are restored. It is CODE_COMMENT_ unless the
// document already contains that.
func tokenPrefix(text string) string {
	prefix := "CODE_COMMENT_"
	for strings.Contains(text, prefix) {
		prefix += "_"
	}
	return prefix
}

// splitEOL separates a line from its trailing "\n" or "\r\n".
func splitEOL(line string) (string, string) {
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2], "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

// restorer returns a function that puts protected code lines back.
func restorer(placeholders map[string]string) func(string) string {
	if len(placeholders) == 0 {
		return func(s string) string { return s }
	}
	pairs := make([]string, 0, len(placeholders)*2)
	for token, original := range placeholders {
		pairs = append(pairs, token, original)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace
}
