package git

import (
	"errors"
	"testing"
)

// MockRunner is a mock implementation of the Runner interface for testing
type MockRunner struct {
	ReturnOutput string
	ReturnError  error
	CommandRun   string
	ArgsRun      []string
}

// Run implements the Runner interface
func (m *MockRunner) Run(name string, args ...string) (string, error) {
	m.CommandRun = name
	m.ArgsRun = args
	return m.ReturnOutput, m.ReturnError
}

func TestCurrentBranch(t *testing.T) {
	mockRunner := &MockRunner{ReturnOutput: "feature/login"}

	probe := NewProbe(mockRunner)
	branch, ok := probe.CurrentBranch()

	if !ok {
		t.Fatal("Expected a branch")
	}
	if branch != "feature/login" {
		t.Errorf("Expected 'feature/login', got %s", branch)
	}
	if mockRunner.CommandRun != "git" {
		t.Errorf("Expected command 'git', got %s", mockRunner.CommandRun)
	}
}

func TestCurrentBranchDetachedHead(t *testing.T) {
	mockRunner := &MockRunner{ReturnOutput: "HEAD"}

	probe := NewProbe(mockRunner)
	if _, ok := probe.CurrentBranch(); ok {
		t.Error("Expected no branch on a detached HEAD")
	}
}

func TestCurrentBranchOutsideRepository(t *testing.T) {
	mockRunner := &MockRunner{ReturnError: errors.New("not a git repository")}

	probe := NewProbe(mockRunner)
	if _, ok := probe.CurrentBranch(); ok {
		t.Error("Expected no branch outside a repository")
	}
}

func TestRemoteRepo(t *testing.T) {
	mockRunner := &MockRunner{ReturnOutput: "git@bitbucket.org:acme/widgets.git"}

	probe := NewProbe(mockRunner)
	info, ok := probe.RemoteRepo("origin")

	if !ok {
		t.Fatal("Expected remote info")
	}
	if info.Workspace != "acme" {
		t.Errorf("Expected workspace 'acme', got %s", info.Workspace)
	}
	if info.RepoSlug != "widgets" {
		t.Errorf("Expected repo slug 'widgets', got %s", info.RepoSlug)
	}
	if len(mockRunner.ArgsRun) != 3 || mockRunner.ArgsRun[2] != "origin" {
		t.Errorf("Expected remote get-url origin, got %v", mockRunner.ArgsRun)
	}
}

func TestRemoteRepoMissingRemote(t *testing.T) {
	mockRunner := &MockRunner{ReturnError: errors.New("no such remote")}

	probe := NewProbe(mockRunner)
	if _, ok := probe.RemoteRepo("upstream"); ok {
		t.Error("Expected no info for a missing remote")
	}
}

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		url       string
		workspace string
		repoSlug  string
		ok        bool
	}{
		{"git@bitbucket.org:acme/widgets.git", "acme", "widgets", true},
		{"git@bitbucket.org:acme/widgets", "acme", "widgets", true},
		{"https://bitbucket.org/acme/widgets.git", "acme", "widgets", true},
		{"https://bitbucket.org/acme/widgets", "acme", "widgets", true},
		{"https://bitbucket.org/acme/widgets/", "acme", "widgets", true},
		{"https://someone@bitbucket.org/acme/widgets.git", "acme", "widgets", true},
		{"git@github.com:acme/widgets.git", "", "", false},
		{"https://bitbucket.org/acme", "", "", false},
		{"https://bitbucket.org/acme/", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		info, ok := ParseRemoteURL(tt.url)
		if ok != tt.ok {
			t.Errorf("ParseRemoteURL(%q): expected ok=%v, got %v", tt.url, tt.ok, ok)
			continue
		}
		if info.Workspace != tt.workspace || info.RepoSlug != tt.repoSlug {
			t.Errorf("ParseRemoteURL(%q): expected %s/%s, got %s/%s",
				tt.url, tt.workspace, tt.repoSlug, info.Workspace, info.RepoSlug)
		}
	}
}
