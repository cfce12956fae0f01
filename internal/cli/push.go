package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/embedprep/internal/hub"
)

func newPushCommand(e *env) *cobra.Command {
	var (
		repoID  string
		private bool
		card    string
	)

	cmd := &cobra.Command{
		Use:   "push FILENAME",
		Short: "Upload a pairs file to the Hugging Face Hub as a dataset",
		Long: `Upload DATA_DIR/pairs/FILENAME as the train split of a dataset repo.
The repo name defaults to one derived from FILENAME under the token's user.
HF_TOKEN must be set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := hub.CheckFilename(name); err != nil {
				return err
			}
			if repoID == "" {
				repoID = hub.DeriveRepoName(name)
			}

			client, err := hub.NewClient(e.hubBaseURL, e.cfg.HFToken)
			if err != nil {
				return err
			}
			defer client.Close()

			url, err := client.Push(cmd.Context(), hub.PushOptions{
				File:     filepath.Join(e.cfg.DataDir, "pairs", name),
				RepoID:   repoID,
				Private:  private,
				CardPath: card,
			}, e.log)
			if err != nil {
				return err
			}

			newStyles(e.out).printSummary(e.out, "Push", [][2]string{
				{"Dataset", url},
			}, true)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoID, "repo-id", "", "dataset repo, user/name or name")
	cmd.Flags().BoolVar(&private, "private", false, "create the repo as private")
	cmd.Flags().StringVar(&card, "card", "README.md", "dataset card to upload as README.md")

	return cmd
}
