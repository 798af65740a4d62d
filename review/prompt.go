package review

import (
	"fmt"
	"strconv"
	"strings"

	"bb-cli/common"

	"github.com/charmbracelet/huh"
)

// action values of the main review menu.
const (
	actionNext    = "next"
	actionPrev    = "prev"
	actionComment = "comment"
	actionDecide  = "decide"
	actionQuit    = "quit"
)

// FormPrompter collects review inputs through terminal forms.
type FormPrompter struct{}

// Prompt asks the user what to do with the file currently shown and
// returns the matching machine input.
func (p *FormPrompter) Prompt(s *Session) (Input, error) {
	if s.State() == StateDrafting {
		return p.promptDraft(s)
	}

	index, count := s.FileIndex()
	title := "Review"
	if f := s.CurrentFile(); f != nil {
		title = fmt.Sprintf("Reviewing %s (file %d of %d)", f.Path, index+1, count)
	}

	var action string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(
					huh.NewOption("Next file", actionNext),
					huh.NewOption("Previous file", actionPrev),
					huh.NewOption("Add inline comment", actionComment),
					huh.NewOption("Submit decision", actionDecide),
					huh.NewOption("Quit without submitting", actionQuit),
				).
				Value(&action),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("reading review action: %w", err)
	}

	switch action {
	case actionNext:
		return NextFile{}, nil
	case actionPrev:
		return PrevFile{}, nil
	case actionComment:
		return BeginDraft{}, nil
	case actionDecide:
		return p.promptDecision()
	}
	return Quit{}, nil
}

// promptDraft collects one inline comment anchored to the current file.
func (p *FormPrompter) promptDraft(s *Session) (Input, error) {
	path := ""
	if f := s.CurrentFile(); f != nil {
		path = f.Path
	}

	var lineValue, text string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("File path").
				Value(&path).
				Validate(required("File path")),
			huh.NewInput().
				Title("Line number").
				Value(&lineValue).
				Validate(validLine),
			huh.NewText().
				Title("Comment").
				Value(&text).
				Validate(required("Comment")),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("reading inline comment: %w", err)
	}

	line, err := strconv.Atoi(strings.TrimSpace(lineValue))
	if err != nil {
		return nil, common.NewValidationError(lineValue, "line must be a number")
	}
	return AddInlineComment{Path: path, Line: line, Text: text}, nil
}

// promptDecision collects the terminal decision. Only a comment-only
// review carries a body.
func (p *FormPrompter) promptDecision() (Input, error) {
	var decision string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Decision").
				Options(
					huh.NewOption("Approve", "approve"),
					huh.NewOption("Request changes", "request-changes"),
					huh.NewOption("Comment only", "comment"),
				).
				Value(&decision),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("reading decision: %w", err)
	}

	switch decision {
	case "approve":
		return ChooseDecision{Decision: DecisionApprove}, nil
	case "request-changes":
		return ChooseDecision{Decision: DecisionRequestChanges}, nil
	}

	var body string
	bodyForm := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Review comment").
				Value(&body).
				Validate(required("Review comment")),
		),
	)
	if err := bodyForm.Run(); err != nil {
		return nil, fmt.Errorf("reading review comment: %w", err)
	}
	return ChooseDecision{Decision: DecisionComment, Body: body}, nil
}

// ConfirmRetry asks whether to resend failed inline comments. A form
// error counts as a decline.
func (p *FormPrompter) ConfirmRetry(failed []CommentOutcome) bool {
	retry := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%d inline comment(s) failed to post. Retry them?", len(failed))).
				Description("The review decision was already submitted and will not be resent.").
				Value(&retry),
		),
	)
	if err := form.Run(); err != nil {
		return false
	}
	return retry
}

func required(field string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validLine(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return fmt.Errorf("enter a line number of 1 or more")
	}
	return nil
}
