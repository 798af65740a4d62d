package review

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"bb-cli/bitbucket"
	"bb-cli/common"
	"bb-cli/resolve"
)

type fakeService struct {
	pr   *bitbucket.PullRequest
	diff string

	approveErr  error
	commentErrs map[string]error // keyed by "path:line"

	// The fetches run concurrently, so recording is locked.
	mu    sync.Mutex
	calls []string
}

func (s *fakeService) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeService) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeService) GetPullRequest(ctx context.Context, workspace, repoSlug string, id int) (*bitbucket.PullRequest, error) {
	s.record("get-pr")
	return s.pr, nil
}

func (s *fakeService) GetDiff(ctx context.Context, workspace, repoSlug string, id int) (string, error) {
	s.record("get-diff")
	return s.diff, nil
}

func (s *fakeService) Approve(ctx context.Context, workspace, repoSlug string, id int) error {
	s.record("approve")
	return s.approveErr
}

func (s *fakeService) RequestChanges(ctx context.Context, workspace, repoSlug string, id int) error {
	s.record("request-changes")
	return nil
}

func (s *fakeService) PostComment(ctx context.Context, workspace, repoSlug string, id int, body string) error {
	s.record("comment:" + body)
	return nil
}

func (s *fakeService) PostInlineComment(ctx context.Context, workspace, repoSlug string, id int, path string, line int, body string) error {
	key := inlineKey(path, line)
	s.record("inline:" + key)
	return s.commentErrs[key]
}

func inlineKey(path string, line int) string {
	return path + ":" + strconv.Itoa(line)
}

type fakeResolver struct {
	active *resolve.ActiveContext
	err    error
}

func (r *fakeResolver) Resolve(ctx context.Context, opts resolve.Options) (*resolve.ActiveContext, error) {
	return r.active, r.err
}

type scriptedPrompter struct {
	inputs []Input
	pos    int
}

func (p *scriptedPrompter) Prompt(s *Session) (Input, error) {
	if p.pos >= len(p.inputs) {
		return Quit{}, nil
	}
	in := p.inputs[p.pos]
	p.pos++
	return in, nil
}

func newTestController(service *fakeService, prompter Prompter) *Controller {
	return &Controller{
		Resolver: &fakeResolver{active: &resolve.ActiveContext{Workspace: "ws", RepoSlug: "repo", PRID: 7}},
		Service:  service,
		Prompter: prompter,
	}
}

const controllerDiff = "diff --git a/a.go b/a.go\n+one\ndiff --git a/b.go b/b.go\n+two\n"

func TestRunWithApproveFlagSkipsPrompting(t *testing.T) {
	service := &fakeService{pr: &bitbucket.PullRequest{ID: 7}, diff: controllerDiff}
	c := newTestController(service, nil)

	outcome, err := c.Run(context.Background(), resolve.Options{}, DecisionFlags{Approve: true})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !outcome.Submit.DecisionCommitted {
		t.Error("Expected the decision to be committed")
	}
	if outcome.Draft.Decision != DecisionApprove {
		t.Errorf("Expected approve, got %s", outcome.Draft.Decision)
	}
	if len(outcome.Submit.Comments) != 0 {
		t.Errorf("Expected no inline comments, got %d", len(outcome.Submit.Comments))
	}
	// Both fetches happen before the decision call.
	last := service.recorded()[len(service.recorded())-1]
	if last != "approve" {
		t.Errorf("Expected approve to be the final call, got %v", service.recorded())
	}
}

func TestRunRejectsConflictingFlagsBeforeFetching(t *testing.T) {
	service := &fakeService{pr: &bitbucket.PullRequest{ID: 7}, diff: controllerDiff}
	c := newTestController(service, nil)

	_, err := c.Run(context.Background(), resolve.Options{}, DecisionFlags{Approve: true, RequestChanges: true})
	var verr *common.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a validation error, got %v", err)
	}
	if len(service.recorded()) != 0 {
		t.Errorf("Expected no service calls, got %v", service.recorded())
	}
}

func TestRunInteractiveCollectsCommentsThenSubmits(t *testing.T) {
	service := &fakeService{pr: &bitbucket.PullRequest{ID: 7}, diff: controllerDiff}
	prompter := &scriptedPrompter{inputs: []Input{
		AddInlineComment{Path: "a.go", Line: 3, Text: "first"},
		NextFile{},
		AddInlineComment{Path: "b.go", Line: 5, Text: "second"},
		ChooseDecision{Decision: DecisionRequestChanges, Body: "needs work"},
	}}
	c := newTestController(service, prompter)

	outcome, err := c.Run(context.Background(), resolve.Options{}, DecisionFlags{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if outcome.Draft.Decision != DecisionRequestChanges {
		t.Errorf("Expected request-changes, got %s", outcome.Draft.Decision)
	}
	if len(outcome.Submit.Comments) != 2 {
		t.Fatalf("Expected 2 comment outcomes, got %d", len(outcome.Submit.Comments))
	}

	// The decision goes out before any inline comment.
	decisionAt, firstCommentAt := -1, -1
	for i, call := range service.recorded() {
		if call == "request-changes" && decisionAt == -1 {
			decisionAt = i
		}
		if strings.HasPrefix(call, "inline:") && firstCommentAt == -1 {
			firstCommentAt = i
		}
	}
	if decisionAt == -1 || firstCommentAt == -1 || decisionAt > firstCommentAt {
		t.Errorf("Expected the decision before the comments, got %v", service.recorded())
	}
}

func TestRunAbortedSubmitsNothing(t *testing.T) {
	service := &fakeService{pr: &bitbucket.PullRequest{ID: 7}, diff: controllerDiff}
	prompter := &scriptedPrompter{inputs: []Input{
		AddInlineComment{Path: "a.go", Line: 3, Text: "discarded"},
		Quit{},
	}}
	c := newTestController(service, prompter)

	outcome, err := c.Run(context.Background(), resolve.Options{}, DecisionFlags{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !outcome.Aborted {
		t.Fatal("Expected an aborted outcome")
	}
	for _, call := range service.recorded() {
		if call != "get-pr" && call != "get-diff" {
			t.Errorf("Expected only fetch calls, got %v", service.recorded())
		}
	}
}

func TestRunDecisionFailureAbortsComments(t *testing.T) {
	service := &fakeService{
		pr:         &bitbucket.PullRequest{ID: 7},
		diff:       controllerDiff,
		approveErr: errors.New("boom"),
	}
	prompter := &scriptedPrompter{inputs: []Input{
		AddInlineComment{Path: "a.go", Line: 3, Text: "never posted"},
		ChooseDecision{Decision: DecisionApprove},
	}}
	c := newTestController(service, prompter)

	_, err := c.Run(context.Background(), resolve.Options{}, DecisionFlags{})
	if err == nil {
		t.Fatal("Expected the decision failure to surface")
	}
	for _, call := range service.recorded() {
		if strings.HasPrefix(call, "inline:") {
			t.Errorf("Expected no comments after a failed decision, got %v", service.recorded())
		}
	}
}

func TestRunPartialCommentFailureIsReported(t *testing.T) {
	service := &fakeService{
		pr:   &bitbucket.PullRequest{ID: 7},
		diff: controllerDiff,
		commentErrs: map[string]error{
			inlineKey("b.go", 5): errors.New("boom"),
		},
	}
	prompter := &scriptedPrompter{inputs: []Input{
		AddInlineComment{Path: "a.go", Line: 3, Text: "first"},
		AddInlineComment{Path: "b.go", Line: 5, Text: "second"},
		AddInlineComment{Path: "a.go", Line: 8, Text: "third"},
		ChooseDecision{Decision: DecisionApprove},
	}}
	c := newTestController(service, prompter)

	outcome, err := c.Run(context.Background(), resolve.Options{}, DecisionFlags{})
	if err != nil {
		t.Fatalf("Expected the run itself to succeed, got %v", err)
	}

	if !outcome.Submit.DecisionCommitted {
		t.Error("Expected the decision to stay committed")
	}
	if len(outcome.Submit.Comments) != 3 {
		t.Fatalf("Expected all 3 comments settled, got %d", len(outcome.Submit.Comments))
	}

	failed := outcome.Submit.FailedComments()
	if len(failed) != 1 {
		t.Fatalf("Expected exactly 1 failed comment, got %d", len(failed))
	}
	if failed[0].Index != 1 || failed[0].Path != "b.go" || failed[0].Line != 5 {
		t.Errorf("Expected the middle comment to fail, got %+v", failed[0])
	}

	perr := &PartialSubmitError{Failed: failed}
	if common.ExitCode(perr) != common.ExitService {
		t.Errorf("Expected service exit code, got %d", common.ExitCode(perr))
	}
	if !strings.Contains(perr.Error(), "b.go:5") {
		t.Errorf("Expected the failed anchor in the message, got %q", perr.Error())
	}
}

func TestRunRetriesFailedCommentsWhenConfirmed(t *testing.T) {
	service := &fakeService{
		pr:   &bitbucket.PullRequest{ID: 7},
		diff: controllerDiff,
		commentErrs: map[string]error{
			inlineKey("b.go", 5): errors.New("boom"),
		},
	}
	prompter := &scriptedPrompter{inputs: []Input{
		AddInlineComment{Path: "a.go", Line: 3, Text: "first"},
		AddInlineComment{Path: "b.go", Line: 5, Text: "second"},
		ChooseDecision{Decision: DecisionApprove},
	}}
	c := newTestController(service, prompter)

	confirmCalls := 0
	c.ConfirmRetry = func(failed []CommentOutcome) bool {
		confirmCalls++
		if len(failed) != 1 || failed[0].Path != "b.go" || failed[0].Line != 5 {
			t.Errorf("Expected only the failed comment to be offered, got %+v", failed)
		}
		// The transient failure clears before the retry.
		delete(service.commentErrs, inlineKey("b.go", 5))
		return true
	}

	outcome, err := c.Run(context.Background(), resolve.Options{}, DecisionFlags{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if confirmCalls != 1 {
		t.Errorf("Expected one retry confirmation, got %d", confirmCalls)
	}
	if failed := outcome.Submit.FailedComments(); len(failed) != 0 {
		t.Errorf("Expected all comments to succeed after the retry, got %+v", failed)
	}

	decisions, retriedComment, untouchedComment := 0, 0, 0
	for _, call := range service.recorded() {
		switch call {
		case "approve":
			decisions++
		case "inline:" + inlineKey("b.go", 5):
			retriedComment++
		case "inline:" + inlineKey("a.go", 3):
			untouchedComment++
		}
	}
	if decisions != 1 {
		t.Errorf("Expected the decision to be submitted exactly once, got %d", decisions)
	}
	if retriedComment != 2 {
		t.Errorf("Expected the failed comment to be posted twice, got %d", retriedComment)
	}
	if untouchedComment != 1 {
		t.Errorf("Expected the successful comment to be posted once, got %d", untouchedComment)
	}
}

func TestRunDeclinedRetryKeepsFailures(t *testing.T) {
	service := &fakeService{
		pr:   &bitbucket.PullRequest{ID: 7},
		diff: controllerDiff,
		commentErrs: map[string]error{
			inlineKey("b.go", 5): errors.New("boom"),
		},
	}
	prompter := &scriptedPrompter{inputs: []Input{
		AddInlineComment{Path: "b.go", Line: 5, Text: "only"},
		ChooseDecision{Decision: DecisionApprove},
	}}
	c := newTestController(service, prompter)
	c.ConfirmRetry = func(failed []CommentOutcome) bool { return false }

	outcome, err := c.Run(context.Background(), resolve.Options{}, DecisionFlags{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if failed := outcome.Submit.FailedComments(); len(failed) != 1 {
		t.Errorf("Expected the failure to remain after declining, got %+v", failed)
	}

	commentCalls := 0
	for _, call := range service.recorded() {
		if strings.HasPrefix(call, "inline:") {
			commentCalls++
		}
	}
	if commentCalls != 1 {
		t.Errorf("Expected no retry after declining, got %d comment calls", commentCalls)
	}
}

func TestRetryCommentsResendsOnlyFailures(t *testing.T) {
	service := &fakeService{}
	c := newTestController(service, nil)

	draft := Draft{
		Decision: DecisionApprove,
		InlineComments: []InlineComment{
			{Path: "a.go", Line: 3, Text: "first"},
			{Path: "b.go", Line: 5, Text: "second"},
			{Path: "a.go", Line: 8, Text: "third"},
		},
	}

	target := Target{Workspace: "ws", RepoSlug: "repo", PRID: 7}
	result := c.RetryComments(context.Background(), target, draft, []int{1})

	if len(result.Comments) != 1 {
		t.Fatalf("Expected 1 retried comment, got %d", len(result.Comments))
	}
	if result.Comments[0].Index != 1 {
		t.Errorf("Expected index 1 to be retried, got %d", result.Comments[0].Index)
	}

	// Only the one comment call, never the decision.
	if len(service.recorded()) != 1 || !strings.HasPrefix(service.recorded()[0], "inline:") {
		t.Errorf("Expected a single inline call, got %v", service.recorded())
	}
}

func TestRetryCommentsIgnoresBadIndices(t *testing.T) {
	service := &fakeService{}
	c := newTestController(service, nil)

	draft := Draft{InlineComments: []InlineComment{{Path: "a.go", Line: 3, Text: "only"}}}
	result := c.RetryComments(context.Background(), Target{PRID: 7}, draft, []int{-1, 0, 5})

	if len(result.Comments) != 1 {
		t.Fatalf("Expected only the valid index to settle, got %d", len(result.Comments))
	}
	if result.Comments[0].Index != 0 {
		t.Errorf("Expected index 0, got %d", result.Comments[0].Index)
	}
}
