package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/embedprep/internal/convert"
	"github.com/dgallion1/embedprep/internal/splitter"
)

func newSplitCommand(e *env) *cobra.Command {
	var outline bool
	var legacy bool

	cmd := &cobra.Command{
		Use:   "split FILE",
		Short: "Split one document into hierarchical sections",
		Long: `Split a Markdown document and print one JSON section per line.

Non-Markdown inputs (HTML, DOCX, PDF, CSV) are converted first. With
--outline the nested header tree is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []splitter.Option
			if legacy {
				opts = append(opts, splitter.WithLegacyDuplicates())
			}
			sp := splitter.New(opts...)

			text, err := e.readMarkdown(args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if outline {
				enc.SetIndent("", "  ")
				return enc.Encode(sp.Outline(text).Children)
			}
			for _, s := range sp.SplitText(text) {
				if err := enc.Encode(s); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outline, "outline", false, "print the header tree instead of sections")
	cmd.Flags().BoolVar(&legacy, "legacy-duplicates", false, "let a repeated header replace its earlier twin")

	return cmd
}

// readMarkdown reads path, converting it to Markdown when needed.
func (e *env) readMarkdown(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if !convert.NeedsConversion(path) {
		data, err := os.ReadFile(path)
		return string(data), err
	}
	c, err := convert.ForFile(path, convert.WithPdftotext(e.cfg.PDFFallbackPdftotext))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return c.Convert(strings.NewReader(string(data)), path)
}
