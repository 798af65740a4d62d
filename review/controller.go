package review

import (
	"context"
	"fmt"
	"strings"

	"bb-cli/bitbucket"
	"bb-cli/common"
	"bb-cli/diff"
	"bb-cli/logger"
	"bb-cli/resolve"

	"golang.org/x/sync/errgroup"
)

// Service is the slice of the repository service the review workflow
// consumes.
type Service interface {
	GetPullRequest(ctx context.Context, workspace, repoSlug string, id int) (*bitbucket.PullRequest, error)
	GetDiff(ctx context.Context, workspace, repoSlug string, id int) (string, error)
	Approve(ctx context.Context, workspace, repoSlug string, id int) error
	RequestChanges(ctx context.Context, workspace, repoSlug string, id int) error
	PostComment(ctx context.Context, workspace, repoSlug string, id int, body string) error
	PostInlineComment(ctx context.Context, workspace, repoSlug string, id int, path string, line int, body string) error
}

// Resolver is the context resolution capability the workflow runs
// before touching the network.
type Resolver interface {
	Resolve(ctx context.Context, opts resolve.Options) (*resolve.ActiveContext, error)
}

// Prompter collects interactive inputs. Implementations own the
// terminal; the controller only feeds their answers to the machine.
type Prompter interface {
	Prompt(s *Session) (Input, error)
}

// Target identifies the pull request being reviewed.
type Target struct {
	Workspace string
	RepoSlug  string
	PRID      int
}

// CommentOutcome is the settled result of one inline comment
// submission.
type CommentOutcome struct {
	Index int
	Path  string
	Line  int
	Err   error
}

// SubmitResult aggregates the submission phase: the decision call,
// then each buffered inline comment individually. Comments are settled
// one by one rather than failing fast, because the decision and the
// comments have different retry semantics.
type SubmitResult struct {
	DecisionCommitted bool
	Comments          []CommentOutcome
}

// FailedComments returns the outcomes that need a retry.
func (r *SubmitResult) FailedComments() []CommentOutcome {
	var failed []CommentOutcome
	for _, c := range r.Comments {
		if c.Err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// PartialSubmitError reports a committed decision with one or more
// failed inline comments. It is never resolved by resubmitting the
// decision.
type PartialSubmitError struct {
	Failed []CommentOutcome
}

func (e *PartialSubmitError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, c := range e.Failed {
		parts[i] = fmt.Sprintf("comment %d (%s:%d): %v", c.Index+1, c.Path, c.Line, c.Err)
	}
	return fmt.Sprintf("review decision submitted, but %d inline comment(s) failed: %s",
		len(e.Failed), strings.Join(parts, "; "))
}

// ExitCode implements common.Coder.
func (e *PartialSubmitError) ExitCode() int { return common.ExitService }

// Outcome is the final report of a review session.
type Outcome struct {
	Target  Target
	Draft   Draft
	Aborted bool
	Submit  *SubmitResult
}

// Controller wires the session machine to its collaborators.
type Controller struct {
	Resolver Resolver
	Service  Service
	// Prompter runs the interactive loop. Required when no decision
	// flag was supplied.
	Prompter Prompter
	// Render is called with the current file whenever presentation
	// moves. Optional.
	Render func(f diff.ChangedFile, index, count int)
	// ConfirmRetry asks whether the failed inline comments should be
	// resent. Nil disables retries.
	ConfirmRetry func(failed []CommentOutcome) bool
}

// Run executes the review workflow: validate flags, resolve context,
// fetch PR and diff concurrently, collect a decision (from flags or
// interactively), then submit.
func (c *Controller) Run(ctx context.Context, opts resolve.Options, flags DecisionFlags) (*Outcome, error) {
	session := NewSession()

	// Decision flags are validated before any network call.
	decision, err := flags.Decision()
	if err != nil {
		session.Fail()
		return nil, err
	}
	if decision == DecisionNone && c.Prompter == nil {
		session.Fail()
		return nil, common.NewValidationError("review",
			"no decision flag given and no interactive terminal available")
	}

	session.StartFetchingContext()
	active, err := c.Resolver.Resolve(ctx, opts)
	if err != nil {
		session.Fail()
		return nil, err
	}
	target := Target{Workspace: active.Workspace, RepoSlug: active.RepoSlug, PRID: active.PRID}

	session.StartFetchingDiff()
	pr, files, err := c.fetch(ctx, target)
	if err != nil {
		session.Fail()
		return nil, err
	}

	session.Loaded(pr, files, decision != DecisionNone)
	if decision != DecisionNone {
		session.SetDecision(decision, flags.Body)
	} else {
		if err := c.interact(session); err != nil {
			session.Fail()
			return nil, err
		}
		if session.Aborted() {
			logger.Debug("Review session aborted before submission")
			return &Outcome{Target: target, Aborted: true}, nil
		}
	}

	result, err := c.submit(ctx, target, session.Draft())
	if err != nil {
		session.Fail()
		return nil, err
	}
	c.retryFailed(ctx, target, session.Draft(), result)
	session.Finish()

	return &Outcome{Target: target, Draft: session.Draft(), Submit: result}, nil
}

// fetch loads PR metadata and the diff concurrently and joins both
// before returning; their completion order is not observed.
func (c *Controller) fetch(ctx context.Context, t Target) (*bitbucket.PullRequest, []diff.ChangedFile, error) {
	var (
		pr  *bitbucket.PullRequest
		raw string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pr, err = c.Service.GetPullRequest(gctx, t.Workspace, t.RepoSlug, t.PRID)
		return err
	})
	g.Go(func() error {
		var err error
		raw, err = c.Service.GetDiff(gctx, t.Workspace, t.RepoSlug, t.PRID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return pr, diff.Parse(raw), nil
}

// interact runs the Presenting/Drafting loop until a decision is
// chosen or the user quits. Single-threaded: it suspends on user input
// only.
func (c *Controller) interact(session *Session) error {
	c.render(session)

	for session.State() == StatePresenting || session.State() == StateDrafting {
		input, err := c.Prompter.Prompt(session)
		if err != nil {
			return err
		}

		switch session.Update(input) {
		case EffectRenderFile:
			c.render(session)
		case EffectSubmit, EffectAbort:
			return nil
		}
	}
	return nil
}

func (c *Controller) render(session *Session) {
	if c.Render == nil {
		return
	}
	if f := session.CurrentFile(); f != nil {
		index, count := session.FileIndex()
		c.Render(*f, index, count)
	}
}

// submit performs the decision call first, then each buffered inline
// comment as an individual call. A decision failure aborts the whole
// session with nothing reported as done. After the decision commits it
// is the point of no return: comment failures are collected per item
// and the decision is never resubmitted.
func (c *Controller) submit(ctx context.Context, t Target, draft Draft) (*SubmitResult, error) {
	if err := c.submitDecision(ctx, t, draft); err != nil {
		return nil, err
	}

	result := &SubmitResult{DecisionCommitted: true}
	result.Comments = c.submitComments(ctx, t, draft.InlineComments, nil)
	return result, nil
}

func (c *Controller) submitDecision(ctx context.Context, t Target, draft Draft) error {
	logger.Debugf("Submitting %s for PR #%d in %s/%s", draft.Decision, t.PRID, t.Workspace, t.RepoSlug)

	switch draft.Decision {
	case DecisionApprove:
		return c.Service.Approve(ctx, t.Workspace, t.RepoSlug, t.PRID)
	case DecisionRequestChanges:
		return c.Service.RequestChanges(ctx, t.Workspace, t.RepoSlug, t.PRID)
	case DecisionComment:
		return c.Service.PostComment(ctx, t.Workspace, t.RepoSlug, t.PRID, draft.Body)
	}
	return common.NewValidationError(draft.Decision.String(), "no decision to submit")
}

// retryFailed offers to resend failed inline comments until they all
// succeed or the user declines. The committed decision is never
// touched.
func (c *Controller) retryFailed(ctx context.Context, t Target, draft Draft, result *SubmitResult) {
	if c.ConfirmRetry == nil {
		return
	}
	for {
		failed := result.FailedComments()
		if len(failed) == 0 || !c.ConfirmRetry(failed) {
			return
		}

		indices := make([]int, len(failed))
		for i, f := range failed {
			indices[i] = f.Index
		}
		retried := c.RetryComments(ctx, t, draft, indices)

		// Fold the retried outcomes back in by comment index.
		for _, r := range retried.Comments {
			for i := range result.Comments {
				if result.Comments[i].Index == r.Index {
					result.Comments[i] = r
				}
			}
		}
	}
}

// RetryComments resubmits only the listed comment indices. The
// decision is left alone: it was already committed.
func (c *Controller) RetryComments(ctx context.Context, t Target, draft Draft, indices []int) *SubmitResult {
	result := &SubmitResult{DecisionCommitted: true}
	result.Comments = c.submitComments(ctx, t, draft.InlineComments, indices)
	return result
}

// submitComments posts comments sequentially, settling each one, so
// failures are reported by stable index. A nil indices slice means all
// of them.
func (c *Controller) submitComments(ctx context.Context, t Target, comments []InlineComment, indices []int) []CommentOutcome {
	selected := indices
	if selected == nil {
		selected = make([]int, len(comments))
		for i := range comments {
			selected[i] = i
		}
	}

	var outcomes []CommentOutcome
	for _, i := range selected {
		if i < 0 || i >= len(comments) {
			continue
		}
		comment := comments[i]
		err := c.Service.PostInlineComment(ctx, t.Workspace, t.RepoSlug, t.PRID, comment.Path, comment.Line, comment.Text)
		if err != nil {
			logger.Warnf("Inline comment %d on %s:%d failed: %v", i+1, comment.Path, comment.Line, err)
		}
		outcomes = append(outcomes, CommentOutcome{Index: i, Path: comment.Path, Line: comment.Line, Err: err})
	}
	return outcomes
}
