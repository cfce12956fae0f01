package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/embedprep/internal/doctree"
	"github.com/dgallion1/embedprep/internal/jsonl"
	"github.com/dgallion1/embedprep/internal/logging"
)

// progressEvery is how many batches pass between progress log lines.
const progressEvery = 10

// RunOptions selects the chunk file and line range for a generation run.
// A bare Input filename is resolved inside DataDir, which also receives the
// output file.
type RunOptions struct {
	Input     string
	DataDir   string
	StartLine int
	EndLine   int
	BatchSize int
	Logger    *slog.Logger
}

// RunSummary describes a finished generation run.
type RunSummary struct {
	Batches  int           `json:"batches"`
	Chunks   int           `json:"chunks"`
	Records  int           `json:"records"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Rejected int           `json:"rejected"`
	Output   string        `json:"output"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Message is the one-line completion message.
func (s RunSummary) Message() string {
	return fmt.Sprintf("Processing completed in %.2f seconds.", s.Elapsed.Seconds())
}

// RunPairs streams chunks from the input file and writes pairs.jsonl (or a
// line-range variant) as each batch completes.
func (b *Builder) RunPairs(ctx context.Context, opts RunOptions) (RunSummary, error) {
	return runBatches(ctx, b, opts, "pairs", b.Pairs)
}

// RunTriplets is RunPairs for triplets.jsonl.
func (b *Builder) RunTriplets(ctx context.Context, opts RunOptions) (RunSummary, error) {
	return runBatches(ctx, b, opts, "triplets", b.Triplets)
}

// OutputPath returns where a run of kind writes its records.
func (o RunOptions) OutputPath(kind string) string {
	return filepath.Join(o.DataDir, kind+jsonl.RangeSuffix(o.StartLine, o.EndLine)+".jsonl")
}

func (o RunOptions) inputPath() string {
	if o.DataDir != "" && filepath.Base(o.Input) == o.Input {
		return filepath.Join(o.DataDir, o.Input)
	}
	return o.Input
}

func runBatches[T any](ctx context.Context, b *Builder, opts RunOptions, kind string,
	build func(context.Context, []doctree.Section) (Result[T], error)) (RunSummary, error) {
	log := opts.Logger
	if log == nil {
		log = b.log
	}
	input := opts.inputPath()
	output := opts.OutputPath(kind)
	summary := RunSummary{Output: output}

	if _, err := os.Stat(input); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return summary, fmt.Errorf("input file not found: %s", input)
		}
		return summary, err
	}

	rd, err := jsonl.Open(input, jsonl.Options{
		BatchSize: opts.BatchSize,
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

	log.Info("Reading chunks", logging.FieldInput, input, "start_line", opts.StartLine, "end_line", opts.EndLine)
	start := time.Now()

	err = rd.Each(func(records []jsonl.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunks := make([]doctree.Section, 0, len(records))
		for _, r := range records {
			var s doctree.Section
			if err := r.Decode(&s); err != nil {
				log.Warn("Skipping malformed chunk", logging.FieldLine, r.Line, logging.FieldError, err)
				summary.Failed++
				continue
			}
			chunks = append(chunks, s)
		}

		res, err := build(ctx, chunks)
		if err != nil {
			return err
		}
		for _, it := range res.Items {
			if err := w.Write(it); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
		}

		summary.Batches++
		summary.Chunks += len(chunks)
		summary.Records += len(res.Items)
		summary.Failed += res.Failed
		summary.Skipped += res.Skipped
		summary.Rejected += res.Rejected

		if summary.Batches%progressEvery == 0 {
			log.Info(fmt.Sprintf("Processed %d batches (%d chunks), generated %d %s so far",
				summary.Batches, summary.Chunks, summary.Records, kind))
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

	log.Info("Generation complete",
		logging.FieldKind, kind,
		logging.FieldOutput, output,
		logging.FieldRecords, summary.Records,
		logging.FieldFailed, summary.Failed,
		logging.FieldSkipped, summary.Skipped,
		logging.FieldDuration, summary.Elapsed.Round(time.Millisecond),
	)
	return summary, nil
}
