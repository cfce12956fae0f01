package jsonl_test

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/embedprep/internal/jsonl"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readAll(t *testing.T, r *jsonl.Reader) [][]jsonl.Record {
	t.Helper()
	var out [][]jsonl.Record
	for {
		batch, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, batch)
	}
}

func lines(batches [][]jsonl.Record) []int {
	var out []int
	for _, b := range batches {
		for _, rec := range b {
			out = append(out, rec.Line)
		}
	}
	return out
}

func TestReader_Batches(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "{\"a\":1}\n{\"a\":2}\n\n{\"a\":3}\n{\"a\":4}\n{\"a\":5}")
	r, err := jsonl.Open(path, jsonl.Options{BatchSize: 2})
	require.NoError(t, err)
	defer r.Close()

	batches := readAll(t, r)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, []int{1, 2, 4, 5, 6}, lines(batches))

	var v struct{ A int }
	require.NoError(t, batches[2][0].Decode(&v))
	assert.Equal(t, 5, v.A)
}

func TestReader_DefaultBatchSize(t *testing.T) {
	t.Parallel()

	path := writeFile(t, strings.Repeat("{}\n", 25))
	r, err := jsonl.Open(path, jsonl.Options{})
	require.NoError(t, err)
	defer r.Close()

	batches := readAll(t, r)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], jsonl.DefaultBatchSize)
}

func TestReader_LineRange(t *testing.T) {
	t.Parallel()

	path := writeFile(t, strings.Repeat("{}\n", 10))
	r, err := jsonl.Open(path, jsonl.Options{BatchSize: 100, StartLine: 3, EndLine: 5})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []int{3, 4, 5}, lines(readAll(t, r)))
}

func TestReader_LenientSkipsInvalid(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	path := writeFile(t, "{\"ok\":1}\nnot json\n{\"ok\":2}\n")
	r, err := jsonl.Open(path, jsonl.Options{Logger: logger})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []int{1, 3}, lines(readAll(t, r)))
	assert.Contains(t, logs.String(), "Failed to parse JSON")
	assert.Contains(t, logs.String(), "line=2")
}

func TestReader_StrictFails(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "{\"ok\":1}\n{broken\n")
	r, err := jsonl.Open(path, jsonl.Options{Strict: true})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	var lineErr *jsonl.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 2, lineErr.Line)
}

func TestOpen_Validation(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "{}\n")
	tests := []struct {
		name string
		opts jsonl.Options
	}{
		{"negative batch", jsonl.Options{BatchSize: -1}},
		{"negative start", jsonl.Options{StartLine: -1}},
		{"negative end", jsonl.Options{EndLine: -2}},
		{"start after end", jsonl.Options{StartLine: 5, EndLine: 2}},
	}
	for _, tt := range tests {
		_, err := jsonl.Open(path, tt.opts)
		assert.Error(t, err, tt.name)
	}

	_, err := jsonl.Open(filepath.Join(t.TempDir(), "missing.jsonl"), jsonl.Options{})
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestReader_Each(t *testing.T) {
	t.Parallel()

	r, err := jsonl.NewReader(strings.NewReader("{}\n{}\n{}\n"), "mem", jsonl.Options{BatchSize: 2})
	require.NoError(t, err)

	var sizes []int
	require.NoError(t, r.Each(func(b []jsonl.Record) error {
		sizes = append(sizes, len(b))
		return nil
	}))
	assert.Equal(t, []int{2, 1}, sizes)
}

func TestRangeSuffix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", jsonl.RangeSuffix(0, 0))
	assert.Equal(t, "_lines_5_to_end", jsonl.RangeSuffix(5, 0))
	assert.Equal(t, "_lines_1_to_20", jsonl.RangeSuffix(0, 20))
	assert.Equal(t, "_lines_3_to_9", jsonl.RangeSuffix(3, 9))
}

func TestWriter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")
	w, err := jsonl.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(map[string]string{"text": "<b>&</b>"}))
	require.NoError(t, w.Write(map[string]int{"n": 2}))
	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"text\":\"<b>&</b>\"}\n{\"n\":2}\n", string(data))
}
