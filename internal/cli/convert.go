package cli

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/embedprep/internal/dataset"
)

func newConvertCommand(e *env) *cobra.Command {
	var (
		output    string
		startLine int
		endLine   int
		upload    string
	)

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert a triplets file into anchor/positive pairs",
		Long: `Drop the negative of every triplet in FILE and write the pairs to
--output, by default {stem}_anchor_positive_dataset.jsonl next to FILE.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := e.fetchInput(cmd.Context(), args[0], e.cfg.DataDir)
			if err != nil {
				return err
			}
			summary, err := dataset.ConvertTripletsToPairs(dataset.ConvertOptions{
				Input:     input,
				Output:    output,
				StartLine: startLine,
				EndLine:   endLine,
				Logger:    e.log,
			})
			if err != nil {
				return err
			}
			e.log.Info(summary.Message())

			st := newStyles(e.out)
			st.printSummary(e.out, "Convert", [][2]string{
				{"Output", summary.Output},
				{"Valid", itoa(summary.Valid)},
				{"Invalid", itoa(summary.Invalid)},
			}, summary.Invalid == 0)
			return e.uploadFiles(cmd.Context(), upload, summary.Output)
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "pairs file to write")
	cmd.Flags().IntVar(&startLine, "start-line", 0, "first line to read, 1-based")
	cmd.Flags().IntVar(&endLine, "end-line", 0, "last line to read, inclusive")
	cmd.Flags().StringVar(&upload, "upload", "", "copy the output to gs://bucket/prefix")

	return cmd
}
