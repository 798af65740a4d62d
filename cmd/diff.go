package cmd

import (
	"bb-cli/diff"
	"bb-cli/display"

	"github.com/spf13/cobra"
)

var (
	diffNameOnly bool
	diffMaxSize  int
)

var prDiffCmd = &cobra.Command{
	Use:   "diff [id] [pattern...]",
	Short: "Show a pull request's diff",
	Long: `Show the diff of a pull request, optionally restricted to files
matching the given path patterns. A pattern ending in "/" matches
everything under that directory; otherwise "*" matches within a single
path segment. A first argument that is a number is taken as the pull
request id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, patterns := parsePRIDAndPatterns(args)

		store, err := openStore()
		if err != nil {
			return err
		}
		client := newClient(store)

		active, err := newResolver(store, client).Resolve(cmd.Context(), resolveOptions(id, true))
		if err != nil {
			return err
		}

		raw, err := client.GetDiff(cmd.Context(), active.Workspace, active.RepoSlug, active.PRID)
		if err != nil {
			return err
		}

		files := diff.Filter(diff.Parse(raw), diff.FilterSpec{
			Patterns:    patterns,
			MaxDiffSize: diffMaxSize,
		})

		switch {
		case jsonOut:
			return display.JSON(files)
		case len(files) == 0:
			// An empty result is a valid outcome, not an error.
			display.NoChangedFiles(len(patterns) > 0)
		case diffNameOnly:
			display.NameOnly(files)
		default:
			display.Diff(files)
		}
		return nil
	},
}

func init() {
	prCmd.AddCommand(prDiffCmd)

	prDiffCmd.Flags().BoolVar(&diffNameOnly, "name-only", false, "List changed file paths only")
	prDiffCmd.Flags().IntVar(&diffMaxSize, "max-diff-size", 0,
		"Elide per-file diffs with more changed lines than this (0 = no limit)")
}
