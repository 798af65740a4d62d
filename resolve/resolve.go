// Package resolve computes the active workspace/repository/PR context
// for a command invocation from explicit flags, the local override,
// the active profile and the git remote, in that order of precedence.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"bb-cli/bitbucket"
	"bb-cli/common"
	"bb-cli/config"
	"bb-cli/git"
	"bb-cli/logger"
)

// ActiveContext is the fully resolved context of one invocation. It is
// computed fresh each time and never persisted.
type ActiveContext struct {
	Workspace string
	RepoSlug  string
	// PRID is 0 until PR resolution runs (or when it was not requested).
	PRID int
	// Branch is the current git branch, when one was read.
	Branch string
}

// ContextError kinds.
const (
	NoRepositoryContext   = "no-repository-context"
	NoMatchingPullRequest = "no-matching-pull-request"
	AmbiguousPullRequest  = "ambiguous-pull-request"
)

// ContextError reports that context resolution failed. It always
// carries enough detail for the user to fix the invocation; it is
// never auto-resolved.
type ContextError struct {
	Kind   string
	Branch string
	// Candidates holds the IDs of all matching PRs for the ambiguous case.
	Candidates []int
}

func (e *ContextError) Error() string {
	switch e.Kind {
	case NoRepositoryContext:
		return "no repository context: pass -R <workspace/repo>, run `bb config init`, or set a profile workspace"
	case NoMatchingPullRequest:
		if e.Branch == "" {
			return "no pull request context: not on a branch, pass an explicit PR id"
		}
		return fmt.Sprintf("no open pull request found for branch %q", e.Branch)
	case AmbiguousPullRequest:
		ids := make([]string, len(e.Candidates))
		for i, id := range e.Candidates {
			ids[i] = fmt.Sprintf("#%d", id)
		}
		return fmt.Sprintf("multiple open pull requests for branch %q (%s): pass an explicit PR id",
			e.Branch, strings.Join(ids, ", "))
	}
	return "context resolution failed"
}

// ExitCode implements common.Coder.
func (e *ContextError) ExitCode() int { return common.ExitContext }

// PullRequestLister is the slice of the repository service PR
// resolution needs.
type PullRequestLister interface {
	ListOpenPullRequests(ctx context.Context, workspace, repoSlug, branchFilter string) ([]bitbucket.PullRequest, error)
}

// Probe is the slice of the git probe the resolver needs.
type Probe interface {
	CurrentBranch() (string, bool)
	RemoteRepo(remote string) (git.RemoteInfo, bool)
}

// Options are the explicit overrides of one invocation.
type Options struct {
	// RepoOverride is the -R workspace/repo flag value.
	RepoOverride string
	// PRID is the explicit positional PR id; 0 means unset.
	PRID int
	// ResolvePR requests PR-id resolution from the current branch when
	// no explicit id was given.
	ResolvePR bool
	// Remote is the --remote flag value; empty falls back to config.
	Remote string
}

// Resolver combines the configuration store, the git probe and the
// repository service into ActiveContext values.
type Resolver struct {
	Store   *config.Store
	Probe   Probe
	Service PullRequestLister
}

// Resolve applies the precedence rules and returns the active context,
// or a ValidationError / ContextError describing what is missing.
func (r *Resolver) Resolve(ctx context.Context, opts Options) (*ActiveContext, error) {
	active := &ActiveContext{}

	flagWorkspace, flagRepo, err := parseRepoOverride(opts.RepoOverride)
	if err != nil {
		return nil, err
	}

	local := r.Store.Local()
	profile := r.Store.ActiveProfile()

	remoteInfo, remoteOK := r.Probe.RemoteRepo(r.remoteName(opts, local, profile))

	// Workspace: flag > local override > profile > git remote.
	// A configured profile workspace is authoritative over the
	// remote-derived one even when they disagree.
	switch {
	case flagWorkspace != "":
		active.Workspace = flagWorkspace
	case local != nil && local.Workspace != "":
		active.Workspace = local.Workspace
	case profile.Workspace != "":
		active.Workspace = profile.Workspace
	case remoteOK:
		active.Workspace = remoteInfo.Workspace
	}

	// Repository slug: flag > local override > git remote. Profiles
	// may carry a default repository as well.
	switch {
	case flagRepo != "":
		active.RepoSlug = flagRepo
	case local != nil && local.Repository != "":
		active.RepoSlug = local.Repository
	case remoteOK:
		active.RepoSlug = remoteInfo.RepoSlug
	case profile.Repository != "":
		active.RepoSlug = profile.Repository
	}

	if active.Workspace == "" || active.RepoSlug == "" {
		return nil, &ContextError{Kind: NoRepositoryContext}
	}

	logger.Debugf("Resolved repository context %s/%s", active.Workspace, active.RepoSlug)

	if branch, ok := r.Probe.CurrentBranch(); ok {
		active.Branch = branch
	}

	if opts.PRID > 0 {
		active.PRID = opts.PRID
		return active, nil
	}
	if !opts.ResolvePR {
		return active, nil
	}

	id, err := r.resolvePRID(ctx, active)
	if err != nil {
		return nil, err
	}
	active.PRID = id
	return active, nil
}

// ResolveWorkspace applies the workspace precedence only, for commands
// that operate on a workspace rather than one repository.
func (r *Resolver) ResolveWorkspace(opts Options) (string, error) {
	local := r.Store.Local()
	profile := r.Store.ActiveProfile()

	switch {
	case local != nil && local.Workspace != "":
		return local.Workspace, nil
	case profile.Workspace != "":
		return profile.Workspace, nil
	}
	if info, ok := r.Probe.RemoteRepo(r.remoteName(opts, local, profile)); ok {
		return info.Workspace, nil
	}
	return "", &ContextError{Kind: NoRepositoryContext}
}

// remoteName picks which git remote to parse: flag > local override >
// profile > origin.
func (r *Resolver) remoteName(opts Options, local *config.LocalOverride, profile config.Profile) string {
	switch {
	case opts.Remote != "":
		return opts.Remote
	case local != nil && local.Remote != "":
		return local.Remote
	case profile.Remote != "":
		return profile.Remote
	}
	return config.DefaultRemoteName
}

// resolvePRID finds the single open PR whose source branch matches the
// current branch exactly. Zero matches and multiple matches are both
// terminal for this invocation.
func (r *Resolver) resolvePRID(ctx context.Context, active *ActiveContext) (int, error) {
	if active.Branch == "" {
		return 0, &ContextError{Kind: NoMatchingPullRequest}
	}

	prs, err := r.Service.ListOpenPullRequests(ctx, active.Workspace, active.RepoSlug, active.Branch)
	if err != nil {
		return 0, err
	}

	// The server-side branch filter is advisory; the match here is
	// exact and case-sensitive.
	var candidates []int
	for _, pr := range prs {
		if pr.SourceBranch() == active.Branch {
			candidates = append(candidates, pr.ID)
		}
	}

	switch len(candidates) {
	case 0:
		return 0, &ContextError{Kind: NoMatchingPullRequest, Branch: active.Branch}
	case 1:
		logger.Debugf("Resolved PR #%d from branch %q", candidates[0], active.Branch)
		return candidates[0], nil
	}
	return 0, &ContextError{Kind: AmbiguousPullRequest, Branch: active.Branch, Candidates: candidates}
}

// parseRepoOverride validates the -R value: exactly one slash with
// both halves present.
func parseRepoOverride(override string) (workspace, repo string, err error) {
	if override == "" {
		return "", "", nil
	}
	parts := strings.Split(override, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", common.NewValidationError(override, "expected <workspace>/<repo>")
	}
	return parts[0], parts[1], nil
}
