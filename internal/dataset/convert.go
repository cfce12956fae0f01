package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/embedprep/internal/jsonl"
	"github.com/dgallion1/embedprep/internal/logging"
)

// convertBatchSize is the read batch for triplet conversion.
const convertBatchSize = 1000

// ConvertOptions configures ConvertTripletsToPairs. An empty Output writes
// {stem}_anchor_positive_dataset.jsonl next to Input.
type ConvertOptions struct {
	Input     string
	Output    string
	StartLine int
	EndLine   int
	Logger    *slog.Logger
}

// ConvertSummary counts the records seen by ConvertTripletsToPairs.
type ConvertSummary struct {
	Total   int           `json:"total"`
	Valid   int           `json:"valid"`
	Invalid int           `json:"invalid"`
	Output  string        `json:"output"`
	Elapsed time.Duration `json:"elapsed"`
}

// Message is the one-line completion message.
func (s ConvertSummary) Message() string {
	return fmt.Sprintf("Converted %d/%d triplets (%d invalid) in %.2f seconds.",
		s.Valid, s.Total, s.Invalid, s.Elapsed.Seconds())
}

// PairsOutputPath is the default conversion target for input.
func PairsOutputPath(input string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), stem+"_anchor_positive_dataset.jsonl")
}

// ConvertTripletsToPairs drops the negative from every triplet. Records
// without string anchor, positive and negative fields are skipped.
func ConvertTripletsToPairs(opts ConvertOptions) (ConvertSummary, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	output := opts.Output
	if output == "" {
		output = PairsOutputPath(opts.Input)
	}
	summary := ConvertSummary{Output: output}

	rd, err := jsonl.Open(opts.Input, jsonl.Options{
		BatchSize: convertBatchSize,
		StartLine: opts.StartLine,
		EndLine:   opts.EndLine,
		Logger:    log,
	})
	if err != nil {
		return summary, err
	}
	defer rd.Close()

	w, err := jsonl.Create(output)
	if err != nil {
		return summary, err
	}

	start := time.Now()
	batches := 0
	err = rd.Each(func(records []jsonl.Record) error {
		for _, r := range records {
			summary.Total++
			t, ok := decodeTriplet(r.Data)
			if !ok {
				summary.Invalid++
				log.Warn(fmt.Sprintf("Invalid triplet at line %d", r.Line))
				continue
			}
			if err := w.Write(AnchorPositivePair{Anchor: t.Anchor, Positive: t.Positive}); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			summary.Valid++
		}
		batches++
		if batches%progressEvery == 0 {
			log.Info(fmt.Sprintf("Processed %d batches: %d valid, %d invalid", batches, summary.Valid, summary.Invalid))
		}
		return nil
	})
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	summary.Elapsed = time.Since(start)
	if err != nil {
		return summary, err
	}
	log.Info(summary.Message(), logging.FieldOutput, output)
	return summary, nil
}

// decodeTriplet requires anchor, positive and negative to be present strings.
func decodeTriplet(data json.RawMessage) (Triplet, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Triplet{}, false
	}
	var t Triplet
	var ok bool
	if t.Anchor, ok = stringField(fields, "anchor"); !ok {
		return Triplet{}, false
	}
	if t.Positive, ok = stringField(fields, "positive"); !ok {
		return Triplet{}, false
	}
	if t.Negative, ok = stringField(fields, "negative"); !ok {
		return Triplet{}, false
	}
	return t, true
}

// stringField reports the named field's value when it is a JSON string.
func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw := bytes.TrimSpace(fields[name])
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
