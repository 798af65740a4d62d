package cmd

import (
	"bb-cli/display"
	"bb-cli/review"

	"github.com/spf13/cobra"
)

var reviewFlags review.DecisionFlags

var prReviewCmd = &cobra.Command{
	Use:   "review [id]",
	Short: "Review a pull request",
	Long: `Review a pull request: approve, request changes or comment. With a
decision flag the review is submitted directly; without one an
interactive session walks through the changed files and collects
inline comments before the decision.`,
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

		prompter := &review.FormPrompter{}
		controller := &review.Controller{
			Resolver:     newResolver(store, client),
			Service:      client,
			Prompter:     prompter,
			Render:       display.DiffFile,
			ConfirmRetry: prompter.ConfirmRetry,
		}

		outcome, err := controller.Run(cmd.Context(), resolveOptions(id, true), reviewFlags)
		if err != nil {
			return err
		}
		if outcome.Aborted {
			display.Warnf("Review abandoned, nothing was submitted.")
			return nil
		}

		return reportSubmit(outcome)
	},
}

// reportSubmit prints what was and was not submitted. Comments still
// failed here were already offered for retry; the committed decision
// is never resubmitted.
func reportSubmit(outcome *review.Outcome) error {
	display.Successf("Submitted %s on pull request #%d.", outcome.Draft.Decision, outcome.Target.PRID)

	failed := outcome.Submit.FailedComments()
	posted := len(outcome.Submit.Comments) - len(failed)
	if posted > 0 {
		display.Successf("Posted %d inline comment(s).", posted)
	}
	if len(failed) == 0 {
		return nil
	}

	for _, c := range failed {
		display.Errorf("Inline comment on %s:%d failed: %v", c.Path, c.Line, c.Err)
	}
	return &review.PartialSubmitError{Failed: failed}
}

func init() {
	prCmd.AddCommand(prReviewCmd)

	prReviewCmd.Flags().BoolVar(&reviewFlags.Approve, "approve", false, "Approve the pull request")
	prReviewCmd.Flags().BoolVar(&reviewFlags.RequestChanges, "request-changes", false, "Request changes")
	prReviewCmd.Flags().BoolVar(&reviewFlags.Comment, "comment", false, "Submit a comment-only review")
	prReviewCmd.Flags().StringVar(&reviewFlags.Body, "body", "", "Review comment body")
}
