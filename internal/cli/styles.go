package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// styles renders command summaries.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Dim     lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	if !colorEnabled(w) {
		plain := lipgloss.NewStyle()
		return &styles{Title: plain, Label: plain, Value: plain, Success: plain, Failure: plain, Dim: plain}
	}
	return &styles{
		Title:   lipgloss.NewStyle().Bold(true).Underline(true),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Value:   lipgloss.NewStyle().Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// colorEnabled is true for terminals unless NO_COLOR is set.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// printSummary writes a titled block of aligned label/value rows followed by
// an OK or FAILED verdict.
func (s *styles) printSummary(w io.Writer, title string, rows [][2]string, ok bool) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}

	var b strings.Builder
	b.WriteString(s.Title.Render(title))
	b.WriteString("\n")
	for _, r := range rows {
		label := s.Label.Render(r[0] + ":" + strings.Repeat(" ", width-len(r[0])))
		fmt.Fprintf(&b, "  %s %s\n", label, s.Value.Render(r[1]))
	}
	if ok {
		b.WriteString(s.Success.Render("OK"))
	} else {
		b.WriteString(s.Failure.Render("FAILED"))
	}
	b.WriteString("\n")
	fmt.Fprint(w, b.String())
}

func itoa(n int) string { return strconv.Itoa(n) }

// indexList renders at most limit indices, noting how many were left out.
func indexList(indices []int, limit int) string {
	if len(indices) == 0 {
		return "none"
	}
	shown := indices
	if len(shown) > limit {
		shown = shown[:limit]
	}
	parts := make([]string, len(shown))
	for i, n := range shown {
		parts[i] = strconv.Itoa(n)
	}
	out := strings.Join(parts, ", ")
	if extra := len(indices) - len(shown); extra > 0 {
		out += fmt.Sprintf(" (+%d more)", extra)
	}
	return out
}
