package display

import (
	"fmt"
	"strings"
	"time"

	"bb-cli/bitbucket"

	"github.com/charmbracelet/lipgloss"
)

var stateStyles = map[string]lipgloss.Style{
	"OPEN":       successStyle,
	"MERGED":     dimStyle,
	"DECLINED":   errorStyle,
	"SUPERSEDED": warningStyle,
}

func renderState(state string) string {
	if style, ok := stateStyles[state]; ok {
		return style.Render(state)
	}
	return state
}

// PullRequestList prints one line per pull request.
func PullRequestList(prs []bitbucket.PullRequest) {
	if len(prs) == 0 {
		fmt.Println("No pull requests found.")
		return
	}
	for _, pr := range prs {
		fmt.Printf("%s  %s  %s  %s -> %s  %s\n",
			headingStyle.Render(fmt.Sprintf("#%-4d", pr.ID)),
			renderState(pr.State),
			pr.Title,
			pr.SourceBranch(),
			pr.Destination.Branch.Name,
			dimStyle.Render(pr.Author.DisplayName),
		)
	}
}

// PullRequestDetails prints the full view of one pull request.
func PullRequestDetails(pr *bitbucket.PullRequest) {
	fmt.Printf("%s %s\n", headingStyle.Render(fmt.Sprintf("#%d", pr.ID)), headingStyle.Render(pr.Title))
	fmt.Printf("State:   %s\n", renderState(pr.State))
	fmt.Printf("Author:  %s\n", pr.Author.DisplayName)
	fmt.Printf("Branch:  %s -> %s\n", pr.SourceBranch(), pr.Destination.Branch.Name)
	if !pr.CreatedOn.IsZero() {
		fmt.Printf("Created: %s\n", pr.CreatedOn.Format(time.RFC1123))
	}
	if !pr.UpdatedOn.IsZero() {
		fmt.Printf("Updated: %s\n", pr.UpdatedOn.Format(time.RFC1123))
	}
	if pr.Links.HTML.Href != "" {
		fmt.Printf("URL:     %s\n", pr.Links.HTML.Href)
	}
	if pr.Description != "" {
		fmt.Printf("\n%s\n", pr.Description)
	}
}

// Comments prints the comment thread of a pull request, inline
// comments with their file anchor.
func Comments(comments []bitbucket.Comment) {
	if len(comments) == 0 {
		fmt.Println("No comments.")
		return
	}
	for i, c := range comments {
		if i > 0 {
			fmt.Println()
		}
		header := c.User.DisplayName
		if !c.CreatedOn.IsZero() {
			header += dimStyle.Render("  " + c.CreatedOn.Format(time.RFC1123))
		}
		fmt.Println(headingStyle.Render(header))
		if c.Inline != nil {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  %s:%d", c.Inline.Path, c.Inline.To)))
		}
		for _, line := range strings.Split(strings.TrimRight(c.Content.Raw, "\n"), "\n") {
			fmt.Printf("  %s\n", line)
		}
	}
}

// CommitStatuses prints one line per CI status.
func CommitStatuses(statuses []bitbucket.CommitStatus) {
	if len(statuses) == 0 {
		fmt.Println("No CI statuses reported.")
		return
	}
	for _, s := range statuses {
		var state string
		switch s.State {
		case "SUCCESSFUL":
			state = successStyle.Render(s.State)
		case "FAILED", "STOPPED":
			state = errorStyle.Render(s.State)
		case "INPROGRESS":
			state = warningStyle.Render(s.State)
		default:
			state = s.State
		}
		line := fmt.Sprintf("%s  %s", state, s.Name)
		if s.Description != "" {
			line += "  " + dimStyle.Render(s.Description)
		}
		fmt.Println(line)
	}
}

// Repositories prints one line per repository.
func Repositories(repos []bitbucket.Repository) {
	if len(repos) == 0 {
		fmt.Println("No repositories found.")
		return
	}
	for _, r := range repos {
		visibility := "public"
		if r.IsPrivate {
			visibility = "private"
		}
		line := fmt.Sprintf("%s  %s", headingStyle.Render(r.FullName), dimStyle.Render(visibility))
		if r.Description != "" {
			line += "  " + r.Description
		}
		fmt.Println(line)
	}
}
