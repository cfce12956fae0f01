package splitter

import (
	"regexp"
	"strings"
)

// headerRe matches ATX-style headers: a run of '#', horizontal whitespace, then a
// non-empty label on the same line.
var headerRe = regexp.MustCompile(`(?m)^(#+)[ \t]+(\S.*)$`)

// headerMatch is a located header line in the code-protected text.
type headerMatch struct {
	level int
	text  string
	start int
	end   int
}

func locateHeaders(text string) []headerMatch {
	locs := headerRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	matches := make([]headerMatch, 0, len(locs))
	for _, loc := range locs {
		label := strings.TrimSpace(text[loc[4]:loc[5]])
		if label == "" {
			continue
		}
		matches = append(matches, headerMatch{
			level: loc[3] - loc[2],
			text:  label,
			start: loc[0],
			end:   loc[1],
		})
	}
	return matches
}

// contents returns the body of each header: everything up to the next header
// of any level, or to the end of the document for the last one.
func contents(text string, matches []headerMatch) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1].start
		}
		out[i] = strings.TrimSpace(text[m.end:end])
	}
	return out
}
