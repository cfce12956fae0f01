package splitter

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/embedprep/internal/doctree"
)

func headers(sections []doctree.Section) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Header
	}
	return out
}

func TestSplitText_NoHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t\n  "},
		{"plain text", "Just a paragraph.\n\nAnother one."},
		{"hash without space", "#NotAHeader\n##Also not"},
		{"hash with only spaces", "#   \n##\t\n"},
	}
	s := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.SplitText(tt.input)
			if got == nil {
				t.Fatal("expected empty slice, got nil")
			}
			if len(got) != 0 {
				t.Fatalf("expected 0 sections, got %d", len(got))
			}
		})
	}
}

func TestSplitText_SingleHeader(t *testing.T) {
	got := New().SplitText("# Header\nContent")
	if len(got) != 1 {
		t.Fatalf("expected 1 section, got %d", len(got))
	}
	sec := got[0]
	if sec.Header != "Header" {
		t.Errorf("expected header %q, got %q", "Header", sec.Header)
	}
	if sec.Text != "Content" {
		t.Errorf("expected text %q, got %q", "Content", sec.Text)
	}
	if sec.Level != 1 {
		t.Errorf("expected level 1, got %d", sec.Level)
	}
	if len(sec.Metadata.Parents) != 0 {
		t.Errorf("expected no parents, got %v", sec.Metadata.Parents)
	}
	if len(sec.Metadata.Siblings) != 0 {
		t.Errorf("expected no siblings, got %v", sec.Metadata.Siblings)
	}
}

func TestSplitText_TopLevelSiblingsAreMutual(t *testing.T) {
	got := New().SplitText("# H1\nC1\n# H2\nC2")
	if want := []string{"H1", "H2"}; !reflect.DeepEqual(headers(got), want) {
		t.Fatalf("expected headers %v, got %v", want, headers(got))
	}
	if !reflect.DeepEqual(got[0].Metadata.Siblings, []string{"H2"}) {
		t.Errorf("expected H1 siblings [H2], got %v", got[0].Metadata.Siblings)
	}
	if !reflect.DeepEqual(got[1].Metadata.Siblings, []string{"H1"}) {
		t.Errorf("expected H2 siblings [H1], got %v", got[1].Metadata.Siblings)
	}
	for _, sec := range got {
		if len(sec.Metadata.Parents) != 0 {
			t.Errorf("%s: expected no parents, got %v", sec.Header, sec.Metadata.Parents)
		}
	}
}

func TestSplitText_NestedHierarchy(t *testing.T) {
	got := New().SplitText("# Main\nC\n## Sub\nC2\n### Deep\nC3\n## Sub2\nC4")

	if want := []string{"Main", "Sub", "Deep", "Sub2"}; !reflect.DeepEqual(headers(got), want) {
		t.Fatalf("expected order %v, got %v", want, headers(got))
	}
	levels := []int{1, 2, 3, 2}
	for i, sec := range got {
		if sec.Level != levels[i] {
			t.Errorf("%s: expected level %d, got %d", sec.Header, levels[i], sec.Level)
		}
	}

	deep := got[2]
	if want := map[string]string{"h1": "Main", "h2": "Sub"}; !reflect.DeepEqual(deep.Metadata.Parents, want) {
		t.Errorf("expected Deep parents %v, got %v", want, deep.Metadata.Parents)
	}
	if !reflect.DeepEqual(got[1].Metadata.Siblings, []string{"Sub2"}) {
		t.Errorf("expected Sub siblings [Sub2], got %v", got[1].Metadata.Siblings)
	}
	if !reflect.DeepEqual(got[3].Metadata.Siblings, []string{"Sub"}) {
		t.Errorf("expected Sub2 siblings [Sub], got %v", got[3].Metadata.Siblings)
	}
	if want := map[string]string{"h1": "Main"}; !reflect.DeepEqual(got[3].Metadata.Parents, want) {
		t.Errorf("expected Sub2 parents %v, got %v", want, got[3].Metadata.Parents)
	}
	if got[0].Text != "C" || got[2].Text != "C3" {
		t.Errorf("unexpected bodies: %q, %q", got[0].Text, got[2].Text)
	}
}

func TestSplitText_LevelSkipNestsDirectly(t *testing.T) {
	got := New().SplitText("# Top\nintro\n### Jump\nbody\n## Mid\nmore")

	if want := []string{"Top", "Jump", "Mid"}; !reflect.DeepEqual(headers(got), want) {
		t.Fatalf("expected order %v, got %v", want, headers(got))
	}
	jump := got[1]
	if want := map[string]string{"h1": "Top"}; !reflect.DeepEqual(jump.Metadata.Parents, want) {
		t.Errorf("expected parents %v, got %v", want, jump.Metadata.Parents)
	}
	if _, ok := jump.Metadata.Parents["h2"]; ok {
		t.Error("expected no h2 key for a skipped level")
	}
	// Jump (level 3) and Mid (level 2) share a parent but not a level.
	if len(jump.Metadata.Siblings) != 0 {
		t.Errorf("expected no siblings for Jump, got %v", jump.Metadata.Siblings)
	}

	outline := New().Outline("# Top\nintro\n### Jump\nbody\n## Mid\nmore")
	if len(outline.Children) != 1 || len(outline.Children[0].Children) != 2 {
		t.Fatalf("expected Top with 2 direct children, got %+v", outline.Children)
	}
}

func TestSplitText_HeaderInsideCodeBlockIgnored(t *testing.T) {
	input := "# Setup\nRun this:\n```bash\n# install deps\npip install x\n  ## indented comment\n```\nDone.\n## Next\nText"
	got := New().SplitText(input)

	if want := []string{"Setup", "Next"}; !reflect.DeepEqual(headers(got), want) {
		t.Fatalf("expected headers %v, got %v", want, headers(got))
	}
	body := got[0].Text
	if !strings.Contains(body, "# install deps") {
		t.Errorf("expected restored code comment in body, got %q", body)
	}
	if !strings.Contains(body, "  ## indented comment") {
		t.Errorf("expected restored indented comment in body, got %q", body)
	}
	if strings.Contains(body, "CODE_COMMENT") {
		t.Errorf("expected no placeholders in body, got %q", body)
	}
}

func TestSplitText_CodeRestoreDisabledKeepsPlaceholders(t *testing.T) {
	input := "# A\n```\n# one\n```\n```py\n# two\n```"
	got := New(WithCodeRestore(false)).SplitText(input)
	if len(got) != 1 {
		t.Fatalf("expected 1 section, got %d", len(got))
	}
	if !strings.Contains(got[0].Text, "{{CODE_COMMENT_0}}") || !strings.Contains(got[0].Text, "{{CODE_COMMENT_1}}") {
		t.Errorf("expected monotonic placeholders across fences, got %q", got[0].Text)
	}
}

func TestSplitText_LiteralPlaceholderTextUntouched(t *testing.T) {
	input := "# A\nsee {{CODE_COMMENT_0}} literally\n```\n# secret\n```"
	got := New().SplitText(input)
	if len(got) != 1 {
		t.Fatalf("expected 1 section, got %d", len(got))
	}
	want := "see {{CODE_COMMENT_0}} literally\n```\n# secret\n```"
	if got[0].Text != want {
		t.Errorf("expected %q, got %q", want, got[0].Text)
	}

	raw := New(WithCodeRestore(false)).SplitText(input)
	if strings.Count(raw[0].Text, "{{CODE_COMMENT_0}}") != 1 {
		t.Errorf("expected generated placeholder distinct from the literal text, got %q", raw[0].Text)
	}
}

func TestSplitText_UnterminatedFence(t *testing.T) {
	input := "# Real\ntext\n```\n# not a header\n## still not\n"
	got := New().SplitText(input)
	if want := []string{"Real"}; !reflect.DeepEqual(headers(got), want) {
		t.Fatalf("expected headers %v, got %v", want, headers(got))
	}
	if !strings.Contains(got[0].Text, "## still not") {
		t.Errorf("expected fenced lines kept in body, got %q", got[0].Text)
	}
}

func TestSplitText_DeepLevelsKeepLiteralLevel(t *testing.T) {
	got := New().SplitText("# A\n###### Six\nx\n####### Seven\ny")
	if want := []string{"A", "Six", "Seven"}; !reflect.DeepEqual(headers(got), want) {
		t.Fatalf("expected headers %v, got %v", want, headers(got))
	}
	if got[1].Level != 6 || got[2].Level != 7 {
		t.Fatalf("expected levels 6 and 7, got %d and %d", got[1].Level, got[2].Level)
	}
	// Parent keys stop at h5.
	if want := map[string]string{"h1": "A"}; !reflect.DeepEqual(got[2].Metadata.Parents, want) {
		t.Errorf("expected parents %v, got %v", want, got[2].Metadata.Parents)
	}
}

func TestSplitText_DuplicateSiblingsKept(t *testing.T) {
	input := "# Guide\n## Overview\nfirst\n## Overview\nsecond\n## Usage\nthird"
	got := New().SplitText(input)

	if want := []string{"Guide", "Overview", "Overview", "Usage"}; !reflect.DeepEqual(headers(got), want) {
		t.Fatalf("expected headers %v, got %v", want, headers(got))
	}
	if got[1].Text != "first" || got[2].Text != "second" {
		t.Errorf("expected both bodies kept, got %q and %q", got[1].Text, got[2].Text)
	}
	if want := []string{"Overview", "Usage"}; !reflect.DeepEqual(got[1].Metadata.Siblings, want) {
		t.Errorf("expected siblings %v, got %v", want, got[1].Metadata.Siblings)
	}
}

func TestSplitText_LegacyDuplicatesOverwrite(t *testing.T) {
	input := "# Guide\n## Overview\nfirst\n## Usage\nthird\n## Overview\nsecond"
	got := New(WithLegacyDuplicates()).SplitText(input)

	if want := []string{"Guide", "Overview", "Usage"}; !reflect.DeepEqual(headers(got), want) {
		t.Fatalf("expected headers %v, got %v", want, headers(got))
	}
	if got[1].Text != "second" {
		t.Errorf("expected later duplicate to win, got %q", got[1].Text)
	}
	if want := []string{"Usage"}; !reflect.DeepEqual(got[1].Metadata.Siblings, want) {
		t.Errorf("expected siblings %v, got %v", want, got[1].Metadata.Siblings)
	}
}

func TestSplitText_CousinsWithSameParentTextAreNotSiblings(t *testing.T) {
	input := "# A\n## Examples\n### One\n# B\n## Examples\n### Two"
	got := New().SplitText(input)
	for _, sec := range got {
		if sec.Header == "One" || sec.Header == "Two" {
			if len(sec.Metadata.Siblings) != 0 {
				t.Errorf("%s: expected no siblings, got %v", sec.Header, sec.Metadata.Siblings)
			}
		}
	}
}

func TestSplitText_PreambleDropped(t *testing.T) {
	got := New().SplitText("Preamble text.\n\n# First\nBody")
	if len(got) != 1 || got[0].Text != "Body" {
		t.Fatalf("expected single section with body %q, got %+v", "Body", got)
	}
}

func TestSplitText_CRLF(t *testing.T) {
	got := New().SplitText("# One\r\nbody one\r\n## Two\r\nbody two\r\n")
	if want := []string{"One", "Two"}; !reflect.DeepEqual(headers(got), want) {
		t.Fatalf("expected headers %v, got %v", want, headers(got))
	}
	if got[1].Text != "body two" {
		t.Errorf("expected trimmed body, got %q", got[1].Text)
	}
}

func TestSplitText_Idempotent(t *testing.T) {
	input := "# A\nx\n## B\ny\n```\n# c\n```\n## C\nz\n# D\nw"
	s := New()
	first := s.SplitText(input)
	second := s.SplitText(input)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical output across calls")
	}
}

func TestSplitText_ParentsNotSharedBetweenSections(t *testing.T) {
	got := New().SplitText("# A\n## B\n## C")
	got[1].Metadata.Parents["h9"] = "mutated"
	if _, ok := got[2].Metadata.Parents["h9"]; ok {
		t.Fatal("expected sibling sections to have independent parents maps")
	}
}

func TestSection_JSONShape(t *testing.T) {
	got := New().SplitText("# Only\nbody")
	raw, err := json.Marshal(got[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"section_header", "section_text", "header_level", "metadata"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected key %q in %s", key, raw)
		}
	}
	meta := m["metadata"].(map[string]any)
	if _, ok := meta["parents"].(map[string]any); !ok {
		t.Errorf("expected parents object, got %v", meta["parents"])
	}
	if _, ok := meta["siblings"].([]any); !ok {
		t.Errorf("expected siblings array, got %v", meta["siblings"])
	}
	if meta["normalized"] != false {
		t.Errorf("expected normalized=false, got %v", meta["normalized"])
	}
	if _, ok := meta["source"]; ok {
		t.Error("expected source omitted when empty")
	}
}

func TestSection_ToMarkdown(t *testing.T) {
	sec := doctree.Section{Header: "Title", Text: "Body", Level: 3}
	if got, want := sec.ToMarkdown(), "### Title\n\nBody"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSplitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte("# File\ncontent"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New()
	got, err := s.SplitFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Header != "File" {
		t.Fatalf("expected one section 'File', got %+v", got)
	}

	_, err = s.SplitFile(filepath.Join(dir, "missing.md"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected cause fs.ErrNotExist, got %v", err)
	}
	var pe *PathError
	if !errors.As(err, &pe) || pe.Path == "" {
		t.Errorf("expected *PathError with path, got %v", err)
	}

	_, err = s.SplitFile(dir)
	if !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

func TestSplitFile_InvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.md")
	if err := os.WriteFile(path, []byte("# Title\n\xff\xfe body"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := New().SplitFile(path)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no sections, got %+v", got)
	}
	var pe *PathError
	if !errors.As(err, &pe) || pe.Path != path {
		t.Errorf("expected *PathError for %s, got %v", path, err)
	}
}
