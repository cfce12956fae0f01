package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/embedprep/internal/dataset"
	"github.com/dgallion1/embedprep/internal/logging"
	"github.com/dgallion1/embedprep/internal/normalize"
)

func newChunkCommand(e *env) *cobra.Command {
	var (
		sourceDir   string
		filename    string
		outputDir   string
		extensions  []string
		doNormalize bool
		maxTokens   int
		overlap     int
		concurrency int
		upload      string
	)

	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Split documents into {stem}_chunks.jsonl files",
		Long: `Discover .txt and .md documents (plus any --ext extensions) under
--filepath, split each into sections and write one chunk file per document.
Sections without text are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := dataset.ChunkOptions{
				SourceDir:   sourceDir,
				Filename:    filename,
				OutputDir:   outputDir,
				Extensions:  extensions,
				MaxTokens:   maxTokens,
				Overlap:     overlap,
				Concurrency: concurrency,
				Pdftotext:   e.cfg.PDFFallbackPdftotext,
				Logger:      e.log,
			}
			if doNormalize {
				opts.Normalizer = normalize.NewForModel(e.cfg.TokenizerModel)
			}

			summary, err := dataset.ChunkDocuments(cmd.Context(), opts)
			if err != nil {
				return err
			}
			e.log.Info("Chunking finished",
				"succeeded", summary.Succeeded,
				logging.FieldFailed, summary.Failed,
				"sections", summary.Sections,
			)
			if err := e.uploadFiles(cmd.Context(), upload, summary.Outputs...); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d documents failed", summary.Failed, summary.Files)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceDir, "filepath", "data", "directory holding the documents")
	cmd.Flags().StringVar(&filename, "filename", "", "process only this file")
	cmd.Flags().StringVar(&outputDir, "output", "data/chunks", "directory for the chunk files")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "extra extensions to convert, e.g. .html,.pdf")
	cmd.Flags().BoolVar(&doNormalize, "normalize", false, "reduce section text to plain text and count tokens")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "split sections longer than this many tokens (0 disables)")
	cmd.Flags().IntVar(&overlap, "overlap", 50, "token overlap between split windows")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "documents processed at once")
	cmd.Flags().StringVar(&upload, "upload", "", "copy the chunk files to gs://bucket/prefix")

	return cmd
}
