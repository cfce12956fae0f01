// Package jsonl streams newline-delimited JSON files in batches and writes
// them back one object per line.
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultBatchSize is used when Options.BatchSize is zero.
const DefaultBatchSize = 10

// Options controls batching and line selection. Line numbers are 1-indexed and
// inclusive; zero means unbounded. A zero BatchSize uses DefaultBatchSize.
type Options struct {
	BatchSize int
	Strict    bool
	StartLine int
	EndLine   int
	Logger    *slog.Logger
}

// Record is one parsed line.
type Record struct {
	Line int
	Data json.RawMessage
}

// Decode unmarshals the record into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

// LineError reports invalid JSON on a specific line.
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("failed to parse JSON at line %d in %s: %v", e.Line, e.Path, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Reader yields batches of records without loading the whole file.
type Reader struct {
	name   string
	br     *bufio.Reader
	closer io.Closer
	opts   Options
	log    *slog.Logger

	line int
	done bool
}

// Open validates opts and opens path for reading.
func Open(path string, opts Options) (*Reader, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r := newReader(f, path, opts)
	r.closer = f
	return r, nil
}

// NewReader reads from an arbitrary stream. name appears in error messages.
func NewReader(rd io.Reader, name string, opts Options) (*Reader, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return newReader(rd, name, opts), nil
}

func newReader(rd io.Reader, name string, opts Options) *Reader {
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		name: name,
		br:   bufio.NewReaderSize(rd, 64*1024),
		opts: opts,
		log:  logger,
	}
}

func (o Options) validate() error {
	if o.BatchSize < 0 {
		return fmt.Errorf("batch_size must be at least 1, got %d", o.BatchSize)
	}
	if o.StartLine < 0 {
		return fmt.Errorf("start_line must be at least 1, got %d", o.StartLine)
	}
	if o.EndLine < 0 {
		return fmt.Errorf("end_line must be at least 1, got %d", o.EndLine)
	}
	if o.StartLine > 0 && o.EndLine > 0 && o.StartLine > o.EndLine {
		return fmt.Errorf("start_line (%d) must be <= end_line (%d)", o.StartLine, o.EndLine)
	}
	return nil
}

// Next returns the next batch. The final batch may be short; after it Next
// returns io.EOF.
func (r *Reader) Next() ([]Record, error) {
	if r.done {
		return nil, io.EOF
	}

	batch := make([]Record, 0, r.opts.BatchSize)
	for len(batch) < r.opts.BatchSize {
		raw, err := r.br.ReadString('\n')
		if raw == "" && err != nil {
			r.done = true
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read %s: %w", r.name, err)
		}
		r.line++

		if r.opts.StartLine > 0 && r.line < r.opts.StartLine {
			continue
		}
		if r.opts.EndLine > 0 && r.line > r.opts.EndLine {
			r.done = true
			break
		}

		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		var data json.RawMessage
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			if r.opts.Strict {
				r.done = true
				return nil, &LineError{Path: r.name, Line: r.line, Err: err}
			}
			r.log.Error("Failed to parse JSON", "line", r.line, "path", r.name, "error", err)
			continue
		}
		batch = append(batch, Record{Line: r.line, Data: data})
	}

	if len(batch) == 0 {
		r.done = true
		return nil, io.EOF
	}
	return batch, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Each calls fn for every batch until the input is exhausted or fn fails.
func (r *Reader) Each(fn func(batch []Record) error) error {
	for {
		batch, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
}

// RangeSuffix names an output file after the processed line range.
func RangeSuffix(start, end int) string {
	if start <= 0 && end <= 0 {
		return ""
	}
	s, e := "1", "end"
	if start > 0 {
		s = fmt.Sprint(start)
	}
	if end > 0 {
		e = fmt.Sprint(end)
	}
	return "_lines_" + s + "_to_" + e
}
