// Package review drives the pull-request review workflow: a small
// state machine over the interactive loop, and a two-phase submit with
// per-comment failure accounting.
package review

import (
	"fmt"

	"bb-cli/bitbucket"
	"bb-cli/common"
	"bb-cli/diff"
)

// Decision is the terminal outcome of a review session.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionApprove
	DecisionRequestChanges
	DecisionComment
)

// String returns the decision name as shown to the user.
func (d Decision) String() string {
	switch d {
	case DecisionApprove:
		return "approve"
	case DecisionRequestChanges:
		return "request-changes"
	case DecisionComment:
		return "comment"
	}
	return "none"
}

// InlineComment is a comment anchored to a line of a changed file.
type InlineComment struct {
	Path string
	Line int
	Text string
}

// Draft is the in-memory review being assembled. It lives only for the
// duration of one invocation and is discarded at session end whatever
// the outcome.
type Draft struct {
	Decision       Decision
	Body           string
	InlineComments []InlineComment
}

// State of the review session machine.
type State int

const (
	StateInit State = iota
	StateFetchingContext
	StateFetchingDiff
	StatePresenting
	StateDrafting
	StateSubmitting
	StateDone
	StateFailed
)

// String names the state for logs.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFetchingContext:
		return "fetching-context"
	case StateFetchingDiff:
		return "fetching-diff"
	case StatePresenting:
		return "presenting"
	case StateDrafting:
		return "drafting"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Input is a user event fed to the interactive loop.
type Input interface{ isInput() }

// NextFile moves presentation to the next changed file.
type NextFile struct{}

// PrevFile moves presentation to the previous changed file.
type PrevFile struct{}

// BeginDraft switches from browsing to drafting.
type BeginDraft struct{}

// CancelDraft returns from drafting to browsing without changes.
type CancelDraft struct{}

// AddInlineComment buffers an inline comment on the draft.
type AddInlineComment struct {
	Path string
	Line int
	Text string
}

// ChooseDecision picks the terminal decision and moves to submission.
type ChooseDecision struct {
	Decision Decision
	Body     string
}

// Quit abandons the session before anything was submitted.
type Quit struct{}

func (NextFile) isInput()         {}
func (PrevFile) isInput()         {}
func (BeginDraft) isInput()       {}
func (CancelDraft) isInput()      {}
func (AddInlineComment) isInput() {}
func (ChooseDecision) isInput()   {}
func (Quit) isInput()             {}

// Effect is the side effect the caller should perform after a
// transition. The machine itself never does I/O.
type Effect int

const (
	EffectNone Effect = iota
	// EffectRenderFile asks the caller to render the current file.
	EffectRenderFile
	// EffectSubmit asks the caller to run the submission phase.
	EffectSubmit
	// EffectAbort ends the loop with nothing submitted.
	EffectAbort
)

// Session is the review state machine. Transitions are pure: Update
// only rearranges in-memory state and reports the effect to perform,
// so the machine is testable without a terminal or network.
type Session struct {
	state     State
	pr        *bitbucket.PullRequest
	files     []diff.ChangedFile
	fileIndex int
	draft     Draft
	aborted   bool
}

// NewSession creates a session in the Init state.
func NewSession() *Session {
	return &Session{state: StateInit}
}

// State returns the current machine state.
func (s *Session) State() State { return s.state }

// Draft returns the review assembled so far.
func (s *Session) Draft() Draft { return s.draft }

// Aborted reports whether the user quit before submitting.
func (s *Session) Aborted() bool { return s.aborted }

// PullRequest returns the fetched PR metadata, nil before FetchingDiff
// completes.
func (s *Session) PullRequest() *bitbucket.PullRequest { return s.pr }

// CurrentFile returns the file being presented, nil when the diff is
// empty.
func (s *Session) CurrentFile() *diff.ChangedFile {
	if len(s.files) == 0 {
		return nil
	}
	return &s.files[s.fileIndex]
}

// FileIndex returns the presentation cursor and file count.
func (s *Session) FileIndex() (index, count int) {
	return s.fileIndex, len(s.files)
}

// StartFetchingContext moves Init -> FetchingContext.
func (s *Session) StartFetchingContext() {
	s.state = StateFetchingContext
}

// StartFetchingDiff moves FetchingContext -> FetchingDiff.
func (s *Session) StartFetchingDiff() {
	s.state = StateFetchingDiff
}

// Loaded installs the fetched PR and diff. When the decision is
// already known from flags the interactive loop is skipped and the
// machine goes straight to Submitting.
func (s *Session) Loaded(pr *bitbucket.PullRequest, files []diff.ChangedFile, decided bool) {
	s.pr = pr
	s.files = files
	if decided {
		s.state = StateSubmitting
	} else {
		s.state = StatePresenting
	}
}

// SetDecision records a flag-supplied decision on the draft.
func (s *Session) SetDecision(d Decision, body string) {
	s.draft.Decision = d
	s.draft.Body = body
}

// Fail moves the machine to its failure terminal state.
func (s *Session) Fail() {
	s.state = StateFailed
}

// Finish moves Submitting -> Done.
func (s *Session) Finish() {
	s.state = StateDone
}

// Update is the transition function of the interactive loop. It is
// only meaningful in the Presenting and Drafting states; anywhere else
// the input is ignored.
func (s *Session) Update(in Input) Effect {
	switch s.state {
	case StatePresenting:
		return s.updatePresenting(in)
	case StateDrafting:
		return s.updateDrafting(in)
	}
	return EffectNone
}

func (s *Session) updatePresenting(in Input) Effect {
	switch in := in.(type) {
	case NextFile:
		if s.fileIndex < len(s.files)-1 {
			s.fileIndex++
		}
		return EffectRenderFile
	case PrevFile:
		if s.fileIndex > 0 {
			s.fileIndex--
		}
		return EffectRenderFile
	case BeginDraft:
		s.state = StateDrafting
		return EffectNone
	case AddInlineComment:
		s.draft.InlineComments = append(s.draft.InlineComments, InlineComment(in))
		return EffectNone
	case ChooseDecision:
		return s.decide(in)
	case Quit:
		s.aborted = true
		s.state = StateDone
		return EffectAbort
	}
	return EffectNone
}

func (s *Session) updateDrafting(in Input) Effect {
	switch in := in.(type) {
	case AddInlineComment:
		s.draft.InlineComments = append(s.draft.InlineComments, InlineComment(in))
		s.state = StatePresenting
		return EffectNone
	case ChooseDecision:
		return s.decide(in)
	case CancelDraft:
		s.state = StatePresenting
		return EffectNone
	case Quit:
		s.aborted = true
		s.state = StateDone
		return EffectAbort
	}
	return EffectNone
}

func (s *Session) decide(in ChooseDecision) Effect {
	s.draft.Decision = in.Decision
	s.draft.Body = in.Body
	s.state = StateSubmitting
	return EffectSubmit
}

// DecisionFlags are the mutually exclusive decision flags of
// `bb pr review`.
type DecisionFlags struct {
	Approve        bool
	RequestChanges bool
	Comment        bool
	Body           string
}

// Decision validates the flag set: at most one decision may be
// targeted, and a comment decision needs a body. DecisionNone with a
// nil error means the decision will be collected interactively.
func (f DecisionFlags) Decision() (Decision, error) {
	var set []string
	if f.Approve {
		set = append(set, "--approve")
	}
	if f.RequestChanges {
		set = append(set, "--request-changes")
	}
	if f.Comment {
		set = append(set, "--comment")
	}

	if len(set) > 1 {
		return DecisionNone, common.NewValidationError(
			fmt.Sprintf("%v", set), "at most one decision flag may be given")
	}
	if len(set) == 0 {
		return DecisionNone, nil
	}

	switch {
	case f.Approve:
		return DecisionApprove, nil
	case f.RequestChanges:
		return DecisionRequestChanges, nil
	default:
		if f.Body == "" {
			return DecisionNone, common.NewValidationError("--comment", "requires --body")
		}
		return DecisionComment, nil
	}
}
