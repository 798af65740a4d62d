package cmd

import (
	"bb-cli/display"

	"github.com/spf13/cobra"
)

var (
	repoWorkspace string
	repoLimit     int
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Work with repositories",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repositories in a workspace",
	Long: `List repositories. Without --workspace the workspace is resolved
from configuration or the git remote.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		client := newClient(store)

		workspace := repoWorkspace
		if workspace == "" {
			workspace, err = newResolver(store, client).ResolveWorkspace(resolveOptions(0, false))
			if err != nil {
				return err
			}
		}

		repos, err := client.ListRepositories(cmd.Context(), workspace, repoLimit)
		if err != nil {
			return err
		}

		if jsonOut {
			return display.JSON(repos)
		}
		display.Repositories(repos)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(repoCmd)
	repoCmd.AddCommand(repoListCmd)

	repoListCmd.Flags().StringVar(&repoWorkspace, "workspace", "", "Workspace to list repositories from")
	repoListCmd.Flags().IntVar(&repoLimit, "limit", 50, "Maximum number of repositories to list")
}
