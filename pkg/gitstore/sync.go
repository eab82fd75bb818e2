package gitstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// tokenUser is the basic auth username GitHub expects for personal
// access tokens.
const tokenUser = "x-access-token"

// Push pushes branch to the named remote. Empty remote and branch fall
// back to DefaultRemote and DefaultBranch.
//
// Returns ErrAlreadyUpToDate when the remote already has the branch
// tip, ErrNotFastForward when the remote has diverged, and
// ErrRemoteMissing when the remote is not configured.
func (s *Store) Push(ctx context.Context, remote, branch string) error {
	if remote == "" {
		remote = DefaultRemote
	}
	if branch == "" {
		branch = DefaultBranch
	}
	spec := gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err := s.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitcfg.RefSpec{spec},
		Auth:       s.auth(),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return ErrAlreadyUpToDate
	case errors.Is(err, git.ErrRemoteNotFound):
		return wrapErrf(ErrRemoteMissing, "push to %s", remote)
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return ErrNotFastForward
	}
	return wrapErr(err, "failed to push")
}

// PullFFOnly fast-forwards the local branch from the named remote. A
// pull that would need a merge commit fails with ErrNotFastForward;
// the worktree is left untouched in that case.
func (s *Store) PullFFOnly(ctx context.Context, remote, branch string) error {
	if remote == "" {
		remote = DefaultRemote
	}
	opts := &git.PullOptions{
		RemoteName: remote,
		Auth:       s.auth(),
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}
	err := s.worktree.PullContext(ctx, opts)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return ErrAlreadyUpToDate
	case errors.Is(err, git.ErrRemoteNotFound):
		return wrapErrf(ErrRemoteMissing, "pull from %s", remote)
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return ErrNotFastForward
	}
	return wrapErr(err, "failed to pull")
}

// SetRemote points the named remote at url, replacing any existing
// remote of the same name.
func (s *Store) SetRemote(name, url string) error {
	if name == "" {
		name = DefaultRemote
	}
	if _, err := s.repo.Remote(name); err == nil {
		if err := s.repo.DeleteRemote(name); err != nil {
			return wrapErrf(err, "failed to replace remote %s", name)
		}
	}
	if _, err := s.repo.CreateRemote(&gitcfg.RemoteConfig{
		Name: name,
		URLs: []string{url},
	}); err != nil {
		return wrapErrf(err, "failed to configure remote %s", name)
	}
	return nil
}

// RemoteURL returns the fetch URL of the named remote, or
// ErrRemoteMissing when it is not configured.
func (s *Store) RemoteURL(name string) (string, error) {
	if name == "" {
		name = DefaultRemote
	}
	rem, err := s.repo.Remote(name)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", wrapErrf(ErrRemoteMissing, "remote %s", name)
		}
		return "", wrapErr(err, "failed to read remote")
	}
	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", wrapErrf(ErrRemoteMissing, "remote %s", name)
	}
	return urls[0], nil
}

// GitHubURL builds the HTTPS clone URL for a repository under a GitHub
// account.
func GitHubURL(user, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s.git", user, repo)
}

func (s *Store) auth() transport.AuthMethod {
	if s.token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: tokenUser, Password: s.token}
}
