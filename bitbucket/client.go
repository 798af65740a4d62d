// Package bitbucket is the HTTP client for the Bitbucket Cloud 2.0
// API. It exposes the handful of repository/pull-request operations
// bb-cli needs and translates HTTP failures into the typed errors the
// rest of the tool dispatches on.
package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bb-cli/common"
	"bb-cli/logger"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Bitbucket Cloud API root.
const DefaultBaseURL = "https://api.bitbucket.org/2.0"

// Client talks to the Bitbucket Cloud 2.0 API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// Basic auth (username + app password). Ignored when an access
	// token transport is installed.
	username    string
	appPassword string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithAppPassword authenticates every request with HTTP basic auth
// using a Bitbucket app password.
func WithAppPassword(username, appPassword string) Option {
	return func(c *Client) {
		c.username = username
		c.appPassword = appPassword
	}
}

// WithAccessToken authenticates with a bearer access token, layered
// over the retrying transport.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		c.httpClient = &http.Client{
			Timeout: c.httpClient.Timeout,
			Transport: &oauth2.Transport{
				Source: ts,
				Base:   c.httpClient.Transport,
			},
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// NewClient creates an API client. Without auth options the client is
// anonymous, which is enough for public repositories.
func NewClient(opts ...Option) *Client {
	retryClient := common.NewRetryableClient(common.DefaultRetryConfig())
	standardClient := retryClient.StandardClient()
	standardClient.Timeout = 60 * time.Second

	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: standardClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPullRequests returns pull requests in the given state, following
// pagination up to limit entries.
func (c *Client) ListPullRequests(ctx context.Context, workspace, repoSlug, state string, limit int) ([]PullRequest, error) {
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests?state=%s", workspace, repoSlug, url.QueryEscape(state))
	return getPaged[PullRequest](ctx, c, path, limit)
}

// ListOpenPullRequests returns open pull requests, optionally filtered
// by source branch name on the server side. Callers that need an exact
// branch match must still compare the returned SourceBranch values:
// the API filter is advisory.
func (c *Client) ListOpenPullRequests(ctx context.Context, workspace, repoSlug, branchFilter string) ([]PullRequest, error) {
	q := url.Values{}
	q.Set("state", "OPEN")
	if branchFilter != "" {
		q.Set("q", fmt.Sprintf("source.branch.name=%q", branchFilter))
	}
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests?%s", workspace, repoSlug, q.Encode())
	return getPaged[PullRequest](ctx, c, path, 0)
}

// GetPullRequest fetches a single pull request by ID.
func (c *Client) GetPullRequest(ctx context.Context, workspace, repoSlug string, id int) (*PullRequest, error) {
	var pr PullRequest
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%d", workspace, repoSlug, id)
	if err := c.do(ctx, http.MethodGet, path, nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// GetDiff fetches the raw unified diff of a pull request.
func (c *Client) GetDiff(ctx context.Context, workspace, repoSlug string, id int) (string, error) {
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%d/diff", workspace, repoSlug, id)

	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	if err := classifyStatus(resp, body); err != nil {
		return "", err
	}
	return string(body), nil
}

// ListComments returns all comments of a pull request.
func (c *Client) ListComments(ctx context.Context, workspace, repoSlug string, id int) ([]Comment, error) {
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%d/comments", workspace, repoSlug, id)
	return getPaged[Comment](ctx, c, path, 0)
}

// ListCommitStatuses returns the CI statuses attached to a commit.
func (c *Client) ListCommitStatuses(ctx context.Context, workspace, repoSlug, commitHash string) ([]CommitStatus, error) {
	path := fmt.Sprintf("/repositories/%s/%s/commit/%s/statuses", workspace, repoSlug, commitHash)
	return getPaged[CommitStatus](ctx, c, path, 0)
}

// ListRepositories returns repositories in a workspace, up to limit.
func (c *Client) ListRepositories(ctx context.Context, workspace string, limit int) ([]Repository, error) {
	path := fmt.Sprintf("/repositories/%s", workspace)
	return getPaged[Repository](ctx, c, path, limit)
}

// CurrentUser returns the authenticated user. Used to verify
// credentials during `bb auth login`.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Approve approves a pull request.
func (c *Client) Approve(ctx context.Context, workspace, repoSlug string, id int) error {
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%d/approve", workspace, repoSlug, id)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// RequestChanges marks a pull request as needing work.
func (c *Client) RequestChanges(ctx context.Context, workspace, repoSlug string, id int) error {
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%d/request-changes", workspace, repoSlug, id)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// commentPayload is the write shape of the comments endpoint.
type commentPayload struct {
	Content Content `json:"content"`
	Inline  *Inline `json:"inline,omitempty"`
}

// PostComment adds a top-level comment to a pull request.
func (c *Client) PostComment(ctx context.Context, workspace, repoSlug string, id int, body string) error {
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%d/comments", workspace, repoSlug, id)
	payload := commentPayload{Content: Content{Raw: body}}
	return c.do(ctx, http.MethodPost, path, &payload, nil)
}

// PostInlineComment anchors a comment to a line of a changed file.
func (c *Client) PostInlineComment(ctx context.Context, workspace, repoSlug string, id int, filePath string, line int, body string) error {
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%d/comments", workspace, repoSlug, id)
	payload := commentPayload{
		Content: Content{Raw: body},
		Inline:  &Inline{Path: filePath, To: line},
	}
	return c.do(ctx, http.MethodPost, path, &payload, nil)
}

// getPaged follows the pagination envelope's next links, stopping at
// limit entries when limit > 0.
func getPaged[T any](ctx context.Context, c *Client, path string, limit int) ([]T, error) {
	var all []T

	for path != "" {
		var pg page[T]
		if err := c.do(ctx, http.MethodGet, path, nil, &pg); err != nil {
			return nil, err
		}
		all = append(all, pg.Values...)

		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		path = pg.Next
	}

	return all, nil
}

// do sends a JSON request and decodes the JSON response into result
// (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, reqBody, result any) error {
	resp, err := c.send(ctx, method, path, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}
	if err := classifyStatus(resp, body); err != nil {
		return err
	}

	if result == nil || resp.StatusCode == http.StatusNoContent || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding response from %s %s: %w", method, path, err)
	}
	return nil
}

// send builds and executes one HTTP request. path may be relative to
// the base URL or an absolute pagination link.
func (c *Client) send(ctx context.Context, method, path string, reqBody any) (*http.Response, error) {
	target := path
	if !isAbsolute(path) {
		target = c.baseURL + path
	}

	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request %s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.appPassword)
	}

	logger.Debugf("Requesting %s %s", method, target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Message: apiMessage(body, "check your credentials")}
	case http.StatusNotFound:
		return &NotFoundError{Resource: apiMessage(body, resp.Request.URL.Path)}
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: apiMessage(body, "")}
}

// apiMessage extracts the error message from the API's error envelope.
func apiMessage(body []byte, fallback string) string {
	var envelope apiErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return fallback
}

// retryAfter reads the server's Retry-After hint, in seconds.
func retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

func isAbsolute(path string) bool {
	u, err := url.Parse(path)
	return err == nil && u.Scheme != ""
}
