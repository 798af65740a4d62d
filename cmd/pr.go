package cmd

import (
	"fmt"

	"bb-cli/display"

	"github.com/spf13/cobra"
)

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "Work with pull requests",
	Long:  `List, inspect, diff and review pull requests in the resolved repository.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var (
	listState string
	listLimit int
)

var prListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pull requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		client := newClient(store)

		active, err := newResolver(store, client).Resolve(cmd.Context(), resolveOptions(0, false))
		if err != nil {
			return err
		}

		prs, err := client.ListPullRequests(cmd.Context(), active.Workspace, active.RepoSlug, listState, listLimit)
		if err != nil {
			return err
		}

		if jsonOut {
			return display.JSON(prs)
		}
		display.PullRequestList(prs)
		return nil
	},
}

var (
	viewWeb      bool
	viewComments bool
)

var prViewCmd = &cobra.Command{
	Use:   "view [id]",
	Short: "Show one pull request",
	Long: `Show a pull request's metadata and description. Without an id the
pull request is resolved from the current branch.`,
	Args: cobra.MaximumNArgs(1),
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

		if viewWeb && pr.Links.HTML.Href != "" {
			return display.OpenBrowser(pr.Links.HTML.Href)
		}
		if jsonOut {
			return display.JSON(pr)
		}
		display.PullRequestDetails(pr)

		if viewComments {
			comments, err := client.ListComments(cmd.Context(), active.Workspace, active.RepoSlug, active.PRID)
			if err != nil {
				return err
			}
			fmt.Println()
			display.Comments(comments)
		}
		return nil
	},
}

var prCommentsCmd = &cobra.Command{
	Use:   "comments [id]",
	Short: "Show a pull request's comments",
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

		comments, err := client.ListComments(cmd.Context(), active.Workspace, active.RepoSlug, active.PRID)
		if err != nil {
			return err
		}

		if jsonOut {
			return display.JSON(comments)
		}
		display.Comments(comments)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prCmd)
	prCmd.AddCommand(prListCmd)
	prCmd.AddCommand(prViewCmd)
	prCmd.AddCommand(prCommentsCmd)

	prListCmd.Flags().StringVar(&listState, "state", "OPEN",
		"Filter by state (OPEN, MERGED, DECLINED, SUPERSEDED)")
	prListCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of pull requests to list")

	prViewCmd.Flags().BoolVar(&viewWeb, "web", false, "Open the pull request in the browser")
	prViewCmd.Flags().BoolVar(&viewComments, "comments", false, "Include the comment thread")
}
