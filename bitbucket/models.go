package bitbucket

import "time"

// Bitbucket Cloud 2.0 API payloads, trimmed to the fields bb-cli reads.

// PullRequest is a pull request as returned by the pullrequests
// endpoints.
type PullRequest struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       string    `json:"state"` // OPEN, MERGED, DECLINED
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`
	Author      User      `json:"author"`
	Source      Endpoint  `json:"source"`
	Destination Endpoint  `json:"destination"`
	Links       Links     `json:"links"`
}

// SourceBranch returns the name of the branch the PR was opened from.
func (pr *PullRequest) SourceBranch() string {
	return pr.Source.Branch.Name
}

// User is a Bitbucket account.
type User struct {
	DisplayName string `json:"display_name"`
	UUID        string `json:"uuid"`
	Nickname    string `json:"nickname"`
}

// Endpoint is one side of a pull request (source or destination).
type Endpoint struct {
	Branch     Branch     `json:"branch"`
	Commit     *Commit    `json:"commit,omitempty"`
	Repository Repository `json:"repository"`
}

// Branch is a branch reference.
type Branch struct {
	Name string `json:"name"`
}

// Commit is a commit reference.
type Commit struct {
	Hash string `json:"hash"`
}

// Repository is a Bitbucket repository.
type Repository struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	UUID        string `json:"uuid"`
	Description string `json:"description,omitempty"`
	IsPrivate   bool   `json:"is_private,omitempty"`
	Links       Links  `json:"links,omitempty"`
}

// Links holds the hyperlinks attached to an API object.
type Links struct {
	HTML Link `json:"html"`
}

// Link is a single hyperlink.
type Link struct {
	Href string `json:"href"`
}

// Comment is a pull request comment, inline when Inline is set.
type Comment struct {
	ID        int       `json:"id"`
	Content   Content   `json:"content"`
	CreatedOn time.Time `json:"created_on"`
	User      User      `json:"user"`
	Inline    *Inline   `json:"inline,omitempty"`
}

// Content is the raw comment body.
type Content struct {
	Raw string `json:"raw"`
}

// Inline anchors a comment to a file line.
type Inline struct {
	Path string `json:"path"`
	From int    `json:"from,omitempty"`
	To   int    `json:"to,omitempty"`
}

// CommitStatus is a CI status attached to a commit.
type CommitStatus struct {
	State       string `json:"state"` // SUCCESSFUL, FAILED, INPROGRESS, STOPPED
	Key         string `json:"key"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// page mirrors the Cloud API pagination envelope.
type page[T any] struct {
	Size     int    `json:"size"`
	Page     int    `json:"page"`
	PageLen  int    `json:"pagelen"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Values   []T    `json:"values"`
}

// apiErrorBody is the error envelope the Cloud API wraps failures in.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
