// Package git reads the little bits of git state bb-cli needs: the
// current branch and the remote URL that names the Bitbucket
// workspace/repository pair.
package git

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"bb-cli/logger"
)

// Runner defines an interface for running git commands
type Runner interface {
	Run(name string, args ...string) (string, error)
}

// Ensure DefaultRunner implements Runner interface
var _ Runner = (*DefaultRunner)(nil)

// DefaultRunner implements the Runner interface using exec.Command
type DefaultRunner struct {
	RepoPath string
}

// NewDefaultRunner creates a new instance of DefaultRunner
func NewDefaultRunner(repoPath string) *DefaultRunner {
	return &DefaultRunner{
		RepoPath: repoPath,
	}
}

// Run executes a git command and returns its trimmed output
func (r *DefaultRunner) Run(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	if r.RepoPath != "" {
		cmd.Dir = r.RepoPath
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return "", fmt.Errorf("error running command: %s\nstderr: %s", err, stderr.String())
	}

	return strings.TrimSpace(stdout.String()), nil
}

// RemoteInfo is the workspace/repository pair parsed from a Bitbucket
// remote URL.
type RemoteInfo struct {
	Workspace string
	RepoSlug  string
}

// Probe reads repository context. Absence of git state (not a working
// tree, no such remote, non-Bitbucket remote) is a normal outcome, not
// an error: the accessors return ok=false and callers fall back to
// configuration.
type Probe struct {
	runner Runner
}

// NewProbe creates a probe backed by the given runner.
func NewProbe(runner Runner) *Probe {
	return &Probe{runner: runner}
}

// CurrentBranch returns the checked-out branch name, or ok=false when
// not inside a git working tree or on a detached HEAD.
func (p *Probe) CurrentBranch() (string, bool) {
	out, err := p.runner.Run("git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		logger.Debugf("No current branch: %v", err)
		return "", false
	}
	if out == "" || out == "HEAD" {
		return "", false
	}
	return out, true
}

// RemoteRepo parses the named remote's URL into workspace and
// repository slug. ok=false when the remote is missing or does not
// point at Bitbucket.
func (p *Probe) RemoteRepo(remote string) (RemoteInfo, bool) {
	out, err := p.runner.Run("git", "remote", "get-url", remote)
	if err != nil {
		logger.Debugf("No remote %q: %v", remote, err)
		return RemoteInfo{}, false
	}

	info, ok := ParseRemoteURL(out)
	if !ok {
		logger.Debugf("Remote %q is not a Bitbucket URL: %s", remote, out)
	}
	return info, ok
}

// RepoRoot returns the top-level directory of the working tree.
func (p *Probe) RepoRoot() (string, bool) {
	out, err := p.runner.Run("git", "rev-parse", "--show-toplevel")
	if err != nil || out == "" {
		return "", false
	}
	return out, true
}

// ParseRemoteURL extracts workspace and repository slug from an SSH
// (git@bitbucket.org:ws/repo.git) or HTTPS
// (https://bitbucket.org/ws/repo.git) Bitbucket remote URL. A trailing
// .git is stripped.
func ParseRemoteURL(url string) (RemoteInfo, bool) {
	var path string
	switch {
	case strings.HasPrefix(url, "git@bitbucket.org:"):
		path = strings.TrimPrefix(url, "git@bitbucket.org:")
	case strings.HasPrefix(url, "https://bitbucket.org/"):
		path = strings.TrimPrefix(url, "https://bitbucket.org/")
	default:
		// HTTPS clones with embedded credentials: https://user@bitbucket.org/ws/repo.git
		if i := strings.Index(url, "@bitbucket.org/"); i >= 0 && strings.HasPrefix(url, "https://") {
			path = url[i+len("@bitbucket.org/"):]
		} else {
			return RemoteInfo{}, false
		}
	}

	workspace, repo, found := strings.Cut(path, "/")
	if !found || workspace == "" {
		return RemoteInfo{}, false
	}
	repo = strings.TrimSuffix(repo, "/")
	repo = strings.TrimSuffix(repo, ".git")
	if repo == "" {
		return RemoteInfo{}, false
	}

	return RemoteInfo{Workspace: workspace, RepoSlug: repo}, true
}
