package cli

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/embedprep/internal/dataset"
)

func newMergeCommand(e *env) *cobra.Command {
	var (
		dir     string
		pattern string
		output  string
		upload  string
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge partial triplet files into one",
		Long: `Concatenate every file matching --pattern in --dir, in name order, into
--output. Records missing anchor, positive or negative are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = e.cfg.DataDir
			}
			summary, err := dataset.Merge(dir, pattern, output, e.log)
			if err != nil {
				return err
			}

			st := newStyles(e.out)
			st.printSummary(e.out, "Merge", [][2]string{
				{"Files", itoa(len(summary.Files))},
				{"Output", summary.Output},
				{"Records", itoa(summary.Total)},
				{"Skipped", itoa(summary.Invalid)},
			}, summary.Invalid == 0)
			return e.uploadFiles(cmd.Context(), upload, summary.Output)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory to search (default DATA_DIR)")
	cmd.Flags().StringVar(&pattern, "pattern", dataset.DefaultMergePattern, "glob selecting the files to merge")
	cmd.Flags().StringVar(&output, "output", dataset.DefaultMergeOutput, "merged file name, relative to --dir")
	cmd.Flags().StringVar(&upload, "upload", "", "copy the merged file to gs://bucket/prefix")

	return cmd
}
