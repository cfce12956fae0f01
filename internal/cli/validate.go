package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/embedprep/internal/dataset"
)

func newValidateCommand(e *env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a triplets file for malformed and duplicate records",
		Long: `Report records missing a non-empty anchor, positive or negative and exact
duplicates. Exits with status 2 when any record is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := e.fetchInput(cmd.Context(), args[0], e.cfg.DataDir)
			if err != nil {
				return err
			}
			report, err := dataset.ValidateTriplets(input, e.log)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(e.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				st := newStyles(e.out)
				st.printSummary(e.out, "Validation: "+input, [][2]string{
					{"Total", itoa(report.TotalTriplets)},
					{"Valid", itoa(report.ValidCount)},
					{"Invalid", itoa(report.InvalidCount)},
					{"Duplicates", itoa(report.DuplicateCount)},
					{"Invalid at", indexList(report.InvalidIndices, 20)},
					{"Duplicate at", indexList(report.DuplicateIndices, 20)},
				}, report.InvalidCount == 0)
			}

			if report.InvalidCount > 0 {
				return &ExitError{
					Code: ExitInvalidData,
					Msg:  fmt.Sprintf("%d of %d triplets invalid", report.InvalidCount, report.TotalTriplets),
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}
