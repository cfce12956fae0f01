package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/dgallion1/embedprep/internal/jsonl"
)

const validateBatchSize = 100

// ValidationReport summarizes a triplet file. Indices are 1-based record
// positions, not file line numbers.
type ValidationReport struct {
	TotalTriplets    int   `json:"total_triplets"`
	ValidCount       int   `json:"valid_count"`
	InvalidCount     int   `json:"invalid_count"`
	DuplicateCount   int   `json:"duplicate_count"`
	InvalidIndices   []int `json:"invalid_indices"`
	DuplicateIndices []int `json:"duplicate_indices"`
}

// ValidateTriplets checks every record for string anchor, positive and
// negative fields with non-blank values, and flags exact duplicates. A
// duplicate also counts as invalid.
func ValidateTriplets(path string, log *slog.Logger) (*ValidationReport, error) {
	if log == nil {
		log = slog.Default()
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}
	rd, err := jsonl.Open(path, jsonl.Options{BatchSize: validateBatchSize, Logger: log})
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	log.Info("Starting validation", "path", path)
	rep := &ValidationReport{InvalidIndices: []int{}, DuplicateIndices: []int{}}
	seen := make(map[string]struct{})

	err = rd.Each(func(records []jsonl.Record) error {
		for _, r := range records {
			rep.TotalTriplets++
			idx := rep.TotalTriplets
			if reason := checkTriplet(r.Data); reason != "" {
				rep.InvalidIndices = append(rep.InvalidIndices, idx)
				log.Warn(fmt.Sprintf("Line %d: %s", idx, reason))
				continue
			}
			key, err := canonical(r.Data)
			if err != nil {
				return err
			}
			if _, dup := seen[key]; dup {
				rep.DuplicateIndices = append(rep.DuplicateIndices, idx)
				rep.InvalidIndices = append(rep.InvalidIndices, idx)
				log.Warn(fmt.Sprintf("Line %d: Duplicate triplet", idx))
				continue
			}
			seen[key] = struct{}{}
			rep.ValidCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rep.InvalidCount = rep.TotalTriplets - rep.ValidCount
	rep.DuplicateCount = len(rep.DuplicateIndices)
	log.Info(fmt.Sprintf("Processed %d triplets: %d valid, %d invalid, %d duplicates",
		rep.TotalTriplets, rep.ValidCount, rep.InvalidCount, rep.DuplicateCount))
	return rep, nil
}

// checkTriplet returns why a record is not a usable triplet, or "".
func checkTriplet(data json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "not a JSON object"
	}
	var problems, empty []string
	for _, name := range []string{"anchor", "positive", "negative"} {
		if _, ok := fields[name]; !ok {
			problems = append(problems, name+" missing")
			continue
		}
		v, ok := stringField(fields, name)
		if !ok {
			problems = append(problems, name+" is not a string")
			continue
		}
		if strings.TrimSpace(v) == "" {
			empty = append(empty, name)
		}
	}
	if len(problems) > 0 {
		return strings.Join(problems, "; ")
	}
	if len(empty) > 0 {
		return "Empty or whitespace-only fields: " + strings.Join(empty, ", ")
	}
	return ""
}

// canonical re-encodes a record with sorted keys so equal records compare
// equal regardless of key order or spacing.
func canonical(data json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
