package bitbucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bb-cli/common"
)

func testClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// Plain http.Client so tests exercise the API layer, not the retry
	// policy.
	opts = append([]Option{
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	}, opts...)
	return NewClient(opts...)
}

func writePage(w http.ResponseWriter, next string, prs ...PullRequest) {
	resp := map[string]any{"values": prs}
	if next != "" {
		resp["next"] = next
	}
	json.NewEncoder(w).Encode(resp)
}

func TestListPullRequestsFollowsPagination(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/ws/repo/pullrequests", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			writePage(w, "", PullRequest{ID: 3})
			return
		}
		writePage(w, server.URL+"/repositories/ws/repo/pullrequests?page=2",
			PullRequest{ID: 1}, PullRequest{ID: 2})
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	prs, err := client.ListPullRequests(context.Background(), "ws", "repo", "OPEN", 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(prs) != 3 {
		t.Fatalf("Expected 3 pull requests across pages, got %d", len(prs))
	}
	if prs[2].ID != 3 {
		t.Errorf("Expected the second page to be appended, got id %d", prs[2].ID)
	}
}

func TestListPullRequestsHonorsLimit(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "", PullRequest{ID: 1}, PullRequest{ID: 2}, PullRequest{ID: 3})
	}))

	prs, err := client.ListPullRequests(context.Background(), "ws", "repo", "OPEN", 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(prs) != 2 {
		t.Errorf("Expected the limit to truncate to 2, got %d", len(prs))
	}
}

func TestListOpenPullRequestsQuery(t *testing.T) {
	var gotQuery string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writePage(w, "")
	}))

	if _, err := client.ListOpenPullRequests(context.Background(), "ws", "repo", "feature"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := `q=source.branch.name%3D%22feature%22&state=OPEN`
	if gotQuery != want {
		t.Errorf("Expected query %q, got %q", want, gotQuery)
	}
}

func TestGetDiffReturnsRawBody(t *testing.T) {
	const diff = "diff --git a/main.go b/main.go\n+added\n"
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repositories/ws/repo/pullrequests/7/diff" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, diff)
	}))

	got, err := client.GetDiff(context.Background(), "ws", "repo", 7)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != diff {
		t.Errorf("Expected the raw diff back, got %q", got)
	}
}

func TestPostInlineCommentPayload(t *testing.T) {
	var payload struct {
		Content Content `json:"content"`
		Inline  *Inline `json:"inline"`
	}
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	err := client.PostInlineComment(context.Background(), "ws", "repo", 7, "src/main.go", 12, "tighten this up")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if payload.Content.Raw != "tighten this up" {
		t.Errorf("Expected the body in content.raw, got %q", payload.Content.Raw)
	}
	if payload.Inline == nil || payload.Inline.Path != "src/main.go" || payload.Inline.To != 12 {
		t.Errorf("Expected inline anchor src/main.go:12, got %+v", payload.Inline)
	}
}

func TestPostCommentOmitsInline(t *testing.T) {
	var raw map[string]json.RawMessage
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &raw)
		w.WriteHeader(http.StatusCreated)
	}))

	if err := client.PostComment(context.Background(), "ws", "repo", 7, "looks good"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, present := raw["inline"]; present {
		t.Error("Expected no inline field on a top-level comment")
	}
}

func TestBasicAuthHeader(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		writePage(w, "")
	}), WithAppPassword("alice", "secret"))

	if _, err := client.ListPullRequests(context.Background(), "ws", "repo", "OPEN", 0); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !gotOK || gotUser != "alice" || gotPass != "secret" {
		t.Errorf("Expected basic auth alice/secret, got %s/%s (ok=%v)", gotUser, gotPass, gotOK)
	}
}

func TestClassifyAuthError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "token expired"}}`)
	}))

	_, err := client.GetPullRequest(context.Background(), "ws", "repo", 7)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected an auth error, got %v", err)
	}
	if authErr.Message != "token expired" {
		t.Errorf("Expected the API message, got %q", authErr.Message)
	}
	if common.ExitCode(err) != common.ExitService {
		t.Errorf("Expected exit code %d, got %d", common.ExitService, common.ExitCode(err))
	}
}

func TestClassifyNotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetPullRequest(context.Background(), "ws", "repo", 999)
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("Expected a not-found error, got %v", err)
	}
}

func TestClassifyRateLimit(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.GetPullRequest(context.Background(), "ws", "repo", 7)
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("Expected a rate limit error, got %v", err)
	}
	if rlErr.RetryAfter != 30*time.Second {
		t.Errorf("Expected Retry-After of 30s, got %v", rlErr.RetryAfter)
	}
}

func TestClassifyGenericAPIError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "something broke"}}`)
	}))

	err := client.Approve(context.Background(), "ws", "repo", 7)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected an API error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "something broke" {
		t.Errorf("Expected the API message, got %q", apiErr.Message)
	}
}

func TestApproveAndRequestChangesPaths(t *testing.T) {
	var paths []string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{}`)
	}))

	if err := client.Approve(context.Background(), "ws", "repo", 7); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if err := client.RequestChanges(context.Background(), "ws", "repo", 7); err != nil {
		t.Fatalf("RequestChanges failed: %v", err)
	}

	want := []string{
		"/repositories/ws/repo/pullrequests/7/approve",
		"/repositories/ws/repo/pullrequests/7/request-changes",
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("Expected path %s, got %s", p, paths[i])
		}
	}
}
