package gitstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// CommitInfo is one entry of the repository history.
type CommitInfo struct {
	// Hash is the full commit hash.
	Hash string

	// When is the author timestamp.
	When time.Time

	// Message is the first line of the commit message.
	Message string
}

// ShortHash returns the abbreviated form of the commit hash.
func (c CommitInfo) ShortHash() string {
	if len(c.Hash) < 7 {
		return c.Hash
	}
	return c.Hash[:7]
}

// Log lists commits reachable from HEAD, newest first. A limit of 0
// returns the full history. A repository with no commits yet yields an
// empty list.
func (s *Store) Log(ctx context.Context, limit int) ([]CommitInfo, error) {
	iter, err := s.repo.Log(&git.LogOptions{})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, wrapErr(err, "failed to read history")
	}
	defer iter.Close()

	var commits []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(commits) >= limit {
			return storer.ErrStop
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, CommitInfo{
			Hash:    c.Hash.String(),
			When:    c.Author.When,
			Message: strings.TrimSpace(subject),
		})
		return nil
	})
	if err != nil {
		return nil, wrapErr(err, "failed to iterate history")
	}
	return commits, nil
}

// ResetHard moves HEAD to rev and resets the worktree to match,
// discarding every uncommitted change. rev accepts anything git can
// resolve: a full or abbreviated hash, a branch, or HEAD~n.
func (s *Store) ResetHard(ctx context.Context, rev string) error {
	if rev == "" {
		return wrapErr(ErrBadRevision, "revision required")
	}
	hash, err := s.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return wrapErrf(ErrBadRevision, "resolve %q", rev)
	}
	if err := s.worktree.Reset(&git.ResetOptions{
		Commit: *hash,
		Mode:   git.HardReset,
	}); err != nil {
		return wrapErrf(err, "failed to reset to %q", rev)
	}
	return nil
}
