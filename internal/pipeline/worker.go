package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/embedprep/internal/batch"
	"github.com/dgallion1/embedprep/internal/convert"
	"github.com/dgallion1/embedprep/internal/dataset"
	"github.com/dgallion1/embedprep/internal/doctree"
	"github.com/dgallion1/embedprep/internal/jsonl"
	"github.com/dgallion1/embedprep/internal/logging"
	"github.com/dgallion1/embedprep/internal/splitter"
	"github.com/dgallion1/embedprep/internal/storage"
)

// Worker processes a single document job.
type Worker struct {
	builder   *dataset.Builder
	bucket    storage.Bucket
	splitter  *splitter.Splitter
	log       *slog.Logger
	batchSize int
	pdftotext bool
}

func NewWorker(builder *dataset.Builder, bucket storage.Bucket, log *slog.Logger, batchSize int, pdftotext bool) *Worker {
	if batchSize < 1 {
		batchSize = jsonl.DefaultBatchSize
	}
	return &Worker{
		builder:   builder,
		bucket:    bucket,
		splitter:  splitter.New(),
		log:       log,
		batchSize: batchSize,
		pdftotext: pdftotext,
	}
}

// Process runs the full generation pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With(logging.FieldJobID, job.ID, logging.FieldKind, job.Kind, logging.FieldFile, job.Filename)
	data := job.FileData()
	defer job.releaseFileData()

	job.SetContentHash(ContentHashHex(data))
	object := OutputObject(job.ContentHash, job.Kind)

	// Phase 1: Dedup check
	exists, err := w.bucket.Exists(ctx, object)
	if err != nil {
		log.Warn("dedup check failed, proceeding", logging.FieldError, err)
	} else if exists && !job.Force {
		log.Info("duplicate document, skipping", logging.FieldOutput, object)
		job.SetOutput(w.bucket.URL(object))
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}

	// Phase 2: Convert and split
	chunks, err := w.chunks(job, data)
	if err != nil {
		log.Error("chunking failed", logging.FieldError, err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "converting")
		return
	}
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", logging.FieldChunks, len(chunks))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "splitting")
		return
	}

	// Phase 3: Generate, batch by batch, into a temp file.
	job.SetStatus(StatusGenerating, "generating")
	tmp, err := os.MkdirTemp("", "embedprep-job-*")
	if err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "generating")
		return
	}
	defer os.RemoveAll(tmp)
	local := filepath.Join(tmp, string(job.Kind)+".jsonl")

	records, failed, err := w.generate(ctx, job, chunks, local, log)
	if err != nil {
		log.Error("generation aborted", logging.FieldError, err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "generating")
		return
	}
	log.Info("generation complete", logging.FieldRecords, records, logging.FieldFailed, failed)

	if records == 0 {
		if failed == 0 {
			job.AddError("no records generated")
		}
		job.SetStatus(StatusFailed, "generating")
		return
	}

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	if err := w.bucket.Upload(ctx, local, object); err != nil {
		log.Error("upload failed", logging.FieldError, err)
		job.AddError(fmt.Sprintf("store %s: %s", object, err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	loc := w.bucket.URL(object)
	job.SetOutput(loc)
	log.Info("stored records", logging.FieldOutput, loc)

	if failed > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// chunks turns the upload into sections. JSONL uploads already hold chunk
// records; anything else is converted and split.
func (w *Worker) chunks(job *Job, data []byte) ([]doctree.Section, error) {
	if strings.EqualFold(filepath.Ext(job.Filename), ".jsonl") {
		job.SetStatus(StatusSplitting, "reading chunks")
		return readChunks(data, job.Filename, w.log)
	}

	job.SetStatus(StatusConverting, "converting")
	if !convert.IsSupportedExtension(job.Filename) {
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(job.Filename))
	}
	opts := dataset.ChunkOptions{Pdftotext: w.pdftotext}
	sections, err := dataset.ChunkText(data, job.Filename, opts, w.splitter)
	if err != nil {
		return nil, err
	}
	job.SetStatus(StatusSplitting, "splitting")
	return sections, nil
}

func readChunks(data []byte, name string, log *slog.Logger) ([]doctree.Section, error) {
	rd, err := jsonl.NewReader(bytes.NewReader(data), name, jsonl.Options{Logger: log})
	if err != nil {
		return nil, err
	}
	var out []doctree.Section
	err = rd.Each(func(records []jsonl.Record) error {
		for _, r := range records {
			var s doctree.Section
			if err := r.Decode(&s); err != nil {
				return fmt.Errorf("line %d: %w", r.Line, err)
			}
			if strings.TrimSpace(s.Text) != "" {
				out = append(out, s)
			}
		}
		return nil
	})
	return out, err
}

// generate writes every batch's records to path and returns the totals.
func (w *Worker) generate(ctx context.Context, job *Job, chunks []doctree.Section, path string, log *slog.Logger) (records, failed int, err error) {
	out, err := jsonl.Create(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	batches, err := batch.Split(chunks, w.batchSize)
	if err != nil {
		return 0, 0, err
	}
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return records, failed, err
		}
		var n, f, skipped int
		var errs []string
		switch job.Kind {
		case KindTriplets:
			n, f, skipped, errs, err = writeResult(ctx, out, b, w.builder.Triplets)
		default:
			n, f, skipped, errs, err = writeResult(ctx, out, b, w.builder.Pairs)
		}
		if err != nil {
			return records, failed, err
		}
		for _, e := range errs {
			job.AddError(fmt.Sprintf("batch %d: %s", i, e))
		}
		job.AddBatch(len(b), n, f, skipped)
		records += n
		failed += f
		log.Debug("batch done", logging.FieldBatch, i, logging.FieldRecords, n, logging.FieldFailed, f)
	}
	return records, failed, nil
}

func writeResult[T any](ctx context.Context, out *jsonl.Writer, chunks []doctree.Section,
	build func(context.Context, []doctree.Section) (dataset.Result[T], error)) (records, failed, skipped int, errs []string, err error) {
	res, err := build(ctx, chunks)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	for _, it := range res.Items {
		if err := out.Write(it); err != nil {
			return 0, 0, 0, nil, err
		}
	}
	return len(res.Items), res.Failed, res.Skipped, res.Errors, nil
}
