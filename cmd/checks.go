package cmd

import (
	"fmt"

	"bb-cli/display"

	"github.com/spf13/cobra"
)

var prChecksCmd = &cobra.Command{
	Use:   "checks [id]",
	Short: "Show the CI statuses of a pull request's source commit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePRID(args)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		client := newClient(store)

		active, err := newResolver(store, client).Resolve(cmd.Context(), resolveOptions(id, true))
		if err != nil {
			return err
		}

		pr, err := client.GetPullRequest(cmd.Context(), active.Workspace, active.RepoSlug, active.PRID)
		if err != nil {
			return err
		}
		if pr.Source.Commit == nil {
			return fmt.Errorf("pull request #%d has no source commit", pr.ID)
		}

		statuses, err := client.ListCommitStatuses(cmd.Context(), active.Workspace, active.RepoSlug, pr.Source.Commit.Hash)
		if err != nil {
			return err
		}

		if jsonOut {
			return display.JSON(statuses)
		}
		display.CommitStatuses(statuses)
		return nil
	},
}

func init() {
	prCmd.AddCommand(prChecksCmd)
}
