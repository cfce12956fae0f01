package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/dgallion1/embedprep/internal/jsonl"
	"github.com/dgallion1/embedprep/internal/logging"
)

// Merge defaults.
const (
	DefaultMergePattern = "triplet_lines_*.jsonl"
	DefaultMergeOutput  = "merged_triplets.jsonl"
)

const mergeBatchSize = 100

// ErrNoInputs is returned by Merge when the pattern matches nothing.
var ErrNoInputs = errors.New("no files match pattern")

// MergeSummary describes a merge.
type MergeSummary struct {
	Files   []string `json:"files"`
	Output  string   `json:"output"`
	Total   int      `json:"total"`
	Invalid int      `json:"invalid"`
}

// Merge concatenates the triplet files in dir matching pattern, in sorted
// order, into dir/output.
func Merge(dir, pattern, output string, log *slog.Logger) (MergeSummary, error) {
	if log == nil {
		log = slog.Default()
	}
	if pattern == "" {
		pattern = DefaultMergePattern
	}
	if output == "" {
		output = DefaultMergeOutput
	}
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return MergeSummary{}, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return MergeSummary{}, fmt.Errorf("%w %q in %s", ErrNoInputs, pattern, dir)
	}
	sort.Strings(files)

	outPath := filepath.Join(dir, output)
	// The output may itself match the pattern from an earlier run.
	inputs := files[:0]
	for _, f := range files {
		if f != outPath {
			inputs = append(inputs, f)
		}
	}
	if len(inputs) == 0 {
		return MergeSummary{}, fmt.Errorf("%w %q in %s", ErrNoInputs, pattern, dir)
	}

	log.Info("Merging files", logging.FieldCount, len(inputs), logging.FieldOutput, outPath)
	total, invalid, err := MergeFiles(inputs, outPath, log)
	return MergeSummary{Files: inputs, Output: outPath, Total: total, Invalid: invalid}, err
}

// MergeFiles copies every record with anchor, positive and negative keys from
// inputs into output, keeping any extra fields.
func MergeFiles(inputs []string, output string, log *slog.Logger) (total, invalid int, err error) {
	if log == nil {
		log = slog.Default()
	}
	w, err := jsonl.Create(output)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	for _, path := range inputs {
		name := filepath.Base(path)
		log.Info("Processing", logging.FieldFile, name)

		rd, err := jsonl.Open(path, jsonl.Options{BatchSize: mergeBatchSize, Logger: log})
		if err != nil {
			return total, invalid, err
		}
		valid := 0
		err = rd.Each(func(records []jsonl.Record) error {
			for _, r := range records {
				var fields map[string]json.RawMessage
				if err := json.Unmarshal(r.Data, &fields); err != nil || !hasTripletKeys(fields) {
					log.Warn("Skipping invalid triplet: missing required fields", logging.FieldFile, name, logging.FieldLine, r.Line)
					invalid++
					continue
				}
				if err := w.Write(r.Data); err != nil {
					return err
				}
				valid++
			}
			return nil
		})
		rd.Close()
		if err != nil {
			return total, invalid, err
		}
		log.Info(fmt.Sprintf("Processed %d triplets from %s", valid, name))
		total += valid
	}
	return total, invalid, nil
}

func hasTripletKeys(fields map[string]json.RawMessage) bool {
	for _, k := range []string{"anchor", "positive", "negative"} {
		if _, ok := fields[k]; !ok {
			return false
		}
	}
	return true
}
