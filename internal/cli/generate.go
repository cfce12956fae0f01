package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/embedprep/internal/dataset"
	"github.com/dgallion1/embedprep/internal/generate"
	"github.com/dgallion1/embedprep/internal/logging"
)

// newGenerateCommand builds the pairs or triplets command; both share flags
// and differ only in the builder method they run.
func newGenerateCommand(e *env, kind string) *cobra.Command {
	var (
		startLine int
		endLine   int
		batchSize int
		upload    string
	)

	short := "Generate anchor/positive pairs from a chunk file"
	if kind == "triplets" {
		short = "Generate anchor/positive/negative triplets from a chunk file"
	}

	cmd := &cobra.Command{
		Use:   kind + " FILE",
		Short: short,
		Long: fmt.Sprintf(`Read chunk records from FILE in batches and ask the configured generation
provider for %s. FILE is resolved in DATA_DIR unless it is a path or a
gs:// URL. Output goes to DATA_DIR/%s[_lines_START_to_END].jsonl.`, kind, kind),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if batchSize <= 0 {
				batchSize = e.cfg.BatchSize
			}

			input, err := e.fetchInput(ctx, args[0], e.cfg.DataDir)
			if err != nil {
				return err
			}

			gen, closeFn, err := e.newGenerator(ctx, e.cfg, e.log)
			if err != nil {
				return err
			}
			defer closeFn()

			b := dataset.NewBuilder(gen, generate.NewPrompts(e.cfg.TemplateDir),
				dataset.WithLogger(e.log),
				dataset.WithConcurrency(e.cfg.MaxConcurrentGenerate),
				dataset.WithTemplates(e.cfg.PairsTemplate, e.cfg.TripletsTemplate),
			)
			opts := dataset.RunOptions{
				Input:     input,
				DataDir:   e.cfg.DataDir,
				StartLine: startLine,
				EndLine:   endLine,
				BatchSize: batchSize,
				Logger:    e.log,
			}

			run := b.RunPairs
			if kind == "triplets" {
				run = b.RunTriplets
			}
			summary, err := run(ctx, opts)
			if err != nil {
				return err
			}
			e.log.Info(summary.Message(),
				logging.FieldRecords, summary.Records,
				logging.FieldFailed, summary.Failed,
				logging.FieldSkipped, summary.Skipped,
				logging.FieldOutput, summary.Output,
			)
			return e.uploadFiles(ctx, upload, summary.Output)
		},
	}

	cmd.Flags().IntVar(&startLine, "start-line", 0, "first line to read, 1-based (0 reads from the start)")
	cmd.Flags().IntVar(&endLine, "end-line", 0, "last line to read, inclusive (0 reads to the end)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "chunks per batch (default BATCH_SIZE)")
	cmd.Flags().StringVar(&upload, "upload", "", "copy the output to gs://bucket/prefix")

	return cmd
}
