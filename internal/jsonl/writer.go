package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writer emits one JSON object per line.
type Writer struct {
	f     *os.File
	bw    *bufio.Writer
	enc   *json.Encoder
	count int
}

// Create truncates or creates path, making parent directories as needed.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &Writer{f: f, bw: bw, enc: enc}, nil
}

// Write encodes v followed by a newline.
func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int { return w.count }

// Name returns the file path.
func (w *Writer) Name() string { return w.f.Name() }

// Close flushes buffered output and closes the file.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// WriteAll writes every item to path.
func WriteAll[T any](path string, items []T) error {
	w, err := Create(path)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := w.Write(it); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
