package normalize

import (
	"maps"
	"slices"
	"strings"

	"github.com/dgallion1/embedprep/internal/doctree"
)

// Window splits sections whose text exceeds maxTokens into consecutive parts
// that share the section's header and hierarchy metadata. Tokens are measured
// with counter, the same one that fills token_count; nil means Estimate.
// Consecutive parts repeat up to overlap tokens of trailing text. maxTokens
// <= 0 disables splitting.
func Window(sections []doctree.Section, counter TokenCounter, maxTokens, overlap int) []doctree.Section {
	if maxTokens <= 0 {
		return sections
	}
	if counter == nil {
		counter = Estimate{}
	}
	w := windower{counter: counter, max: maxTokens, overlap: overlap}

	out := make([]doctree.Section, 0, len(sections))
	for _, s := range sections {
		if w.count(s.Text) <= maxTokens {
			out = append(out, s)
			continue
		}
		for _, part := range w.pack(w.units(s.Text)) {
			p := s
			p.Text = part
			p.Metadata.Parents = maps.Clone(s.Metadata.Parents)
			p.Metadata.Siblings = slices.Clone(s.Metadata.Siblings)
			out = append(out, p)
		}
	}
	return out
}

// unit is the smallest piece a window is built from. sep joins it to the
// previous unit.
type unit struct {
	text string
	sep  string
}

type windower struct {
	counter TokenCounter
	max     int
	overlap int
}

func (w windower) count(text string) int {
	n, err := w.counter.Count(text)
	if err != nil {
		return EstimateTokens(text)
	}
	return n
}

// units breaks text into paragraphs, then sentences, then runs of words,
// descending only as far as needed for every unit to fit in the budget.
func (w windower) units(text string) []unit {
	var out []unit
	for _, para := range paragraphs(text) {
		if w.count(para) <= w.max {
			out = append(out, unit{text: para, sep: "\n\n"})
			continue
		}
		sep := "\n\n"
		for _, sent := range sentences(para) {
			if w.count(sent) <= w.max {
				out = append(out, unit{text: sent, sep: sep})
				sep = " "
				continue
			}
			for _, run := range w.wordRuns(sent) {
				out = append(out, unit{text: run, sep: sep})
				sep = " "
			}
		}
	}
	return out
}

// wordRuns packs words greedily. A single word over budget stands alone.
func (w windower) wordRuns(text string) []string {
	var runs []string
	var cur []string
	for _, word := range strings.Fields(text) {
		if len(cur) > 0 && w.count(strings.Join(append(slices.Clip(cur), word), " ")) > w.max {
			runs = append(runs, strings.Join(cur, " "))
			cur = nil
		}
		cur = append(cur, word)
	}
	if len(cur) > 0 {
		runs = append(runs, strings.Join(cur, " "))
	}
	return runs
}

// pack fills windows greedily, measuring each candidate window as a whole so
// separators and tokenizer merges are counted.
func (w windower) pack(units []unit) []string {
	var out []string
	var cur []unit
	for _, u := range units {
		if len(cur) > 0 && w.count(join(append(slices.Clip(cur), u))) > w.max {
			out = append(out, join(cur))
			cur = w.carry(cur, u)
		}
		cur = append(cur, u)
	}
	if len(cur) > 0 {
		out = append(out, join(cur))
	}
	return out
}

// carry returns the trailing units of prev that fit in the overlap budget and
// still leave room for next.
func (w windower) carry(prev []unit, next unit) []unit {
	if w.overlap <= 0 {
		return nil
	}
	keep := len(prev)
	for i := len(prev) - 1; i >= 0; i-- {
		tail := prev[i:]
		if w.count(join(tail)) > w.overlap || w.count(join(append(slices.Clip(tail), next))) > w.max {
			break
		}
		keep = i
	}
	return slices.Clone(prev[keep:])
}

func join(units []unit) string {
	var sb strings.Builder
	for i, u := range units {
		if i > 0 {
			sb.WriteString(u.sep)
		}
		sb.WriteString(u.text)
	}
	return sb.String()
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentences cuts after '.', '!' or '?' followed by whitespace.
func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if next := text[i+1]; next == ' ' || next == '\n' || next == '\t' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
