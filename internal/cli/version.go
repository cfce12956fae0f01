package cli

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgallion1/embedprep/internal/logging"
)

func newVersionCommand(info BuildInfo, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of embedprep.`,
		Run: func(_ *cobra.Command, _ []string) {
			out := e.out
			if out == nil {
				out = os.Stdout
			}
			logger := log.NewWithOptions(out, log.Options{
				ReportTimestamp: false,
				ReportCaller:    false,
			})
			logger.SetLevel(log.InfoLevel)

			logger.Info("embedprep",
				logging.FieldVersion, info.Version,
				logging.FieldCommit, info.Commit,
				logging.FieldBuilt, info.Date,
			)
		},
	}

	return cmd
}
