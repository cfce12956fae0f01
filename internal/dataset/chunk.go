package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/embedprep/internal/convert"
	"github.com/dgallion1/embedprep/internal/doctree"
	"github.com/dgallion1/embedprep/internal/jsonl"
	"github.com/dgallion1/embedprep/internal/logging"
	"github.com/dgallion1/embedprep/internal/normalize"
	"github.com/dgallion1/embedprep/internal/splitter"
)

// DefaultChunkExtensions are discovered when no file is named.
var DefaultChunkExtensions = []string{".txt", ".md"}

// ChunkOptions configures ChunkDocuments. Extensions adds to the default
// .txt and .md discovery; any non-Markdown format is converted first.
type ChunkOptions struct {
	SourceDir  string
	Filename   string
	OutputDir  string
	Extensions []string

	// Normalizer, when set, rewrites each section to plain text with a
	// token count.
	Normalizer *normalize.Normalizer
	// MaxTokens > 0 re-splits long sections into overlapping windows.
	MaxTokens int
	Overlap   int

	Splitter    *splitter.Splitter
	Concurrency int
	Pdftotext   bool
	Logger      *slog.Logger
}

// ChunkSummary counts the outcome of ChunkDocuments.
type ChunkSummary struct {
	Files     int      `json:"files"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Sections  int      `json:"sections"`
	Outputs   []string `json:"outputs"`
}

// ChunkOutputPath is where the chunks of source are written.
func ChunkOutputPath(outputDir, source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+"_chunks.jsonl")
}

// DiscoverFiles lists the files ChunkDocuments would process.
func DiscoverFiles(dir, filename string, extraExt []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("directory does not exist: %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}
	if filename != "" {
		p := filepath.Join(dir, filename)
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("file does not exist: %s", p)
		}
		return []string{p}, nil
	}

	want := make(map[string]bool)
	for _, ext := range append(append([]string{}, DefaultChunkExtensions...), extraExt...) {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		want[ext] = true
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !want[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ChunkDocuments splits every discovered document into a {stem}_chunks.jsonl
// file. Sections with blank text are dropped and each keeps its source
// filename in metadata. A failing file is logged and counted; only discovery
// errors are returned.
func ChunkDocuments(ctx context.Context, opts ChunkOptions) (ChunkSummary, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	sp := opts.Splitter
	if sp == nil {
		sp = splitter.New()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = opts.SourceDir
	}

	files, err := DiscoverFiles(opts.SourceDir, opts.Filename, opts.Extensions)
	if err != nil {
		return ChunkSummary{}, err
	}
	summary := ChunkSummary{Files: len(files)}
	if len(files) == 0 {
		log.Warn("No documents found", logging.FieldPath, opts.SourceDir)
		return summary, nil
	}
	log.Info("Discovered documents", logging.FieldCount, len(files), logging.FieldPath, opts.SourceDir)

	limit := opts.Concurrency
	if limit < 1 {
		limit = 4
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, n, err := chunkFile(path, opts, sp)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				log.Error("Failed to process document", logging.FieldFile, filepath.Base(path), logging.FieldError, err)
				return nil
			}
			summary.Succeeded++
			summary.Sections += n
			summary.Outputs = append(summary.Outputs, out)
			log.Info("Saved sections", logging.FieldFile, filepath.Base(path), logging.FieldCount, n, logging.FieldOutput, out)
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return summary, err
	}
	sort.Strings(summary.Outputs)
	return summary, ctx.Err()
}

// ChunkText converts, splits and post-processes one document held in
// memory.
func ChunkText(data []byte, filename string, opts ChunkOptions, sp *splitter.Splitter) ([]doctree.Section, error) {
	if sp == nil {
		sp = splitter.New()
	}
	text := string(data)
	if convert.NeedsConversion(filename) {
		c, err := convert.ForFile(filename, convert.WithPdftotext(opts.Pdftotext))
		if err != nil {
			return nil, err
		}
		text, err = c.Convert(strings.NewReader(text), filename)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", filename, err)
		}
	}

	return finishSections(sp.SplitText(text), filename, opts), nil
}

// finishSections drops blank sections, records the source filename and
// applies the optional windowing and normalization.
func finishSections(sections []doctree.Section, filename string, opts ChunkOptions) []doctree.Section {
	kept := make([]doctree.Section, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		s.Metadata.Source = filepath.Base(filename)
		kept = append(kept, s)
	}
	if opts.MaxTokens > 0 {
		var counter normalize.TokenCounter
		if opts.Normalizer != nil {
			counter = opts.Normalizer.Counter()
		}
		kept = normalize.Window(kept, counter, opts.MaxTokens, opts.Overlap)
	}
	if opts.Normalizer != nil {
		opts.Normalizer.All(kept)
	}
	return kept
}

func chunkFile(path string, opts ChunkOptions, sp *splitter.Splitter) (string, int, error) {
	var sections []doctree.Section
	if convert.NeedsConversion(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", 0, err
		}
		sections, err = ChunkText(data, path, opts, sp)
		if err != nil {
			return "", 0, err
		}
	} else {
		split, err := sp.SplitFile(path)
		if err != nil {
			return "", 0, err
		}
		sections = finishSections(split, path, opts)
	}

	out := ChunkOutputPath(opts.OutputDir, path)
	if err := jsonl.WriteAll(out, sections); err != nil {
		return "", 0, err
	}
	return out, len(sections), nil
}
