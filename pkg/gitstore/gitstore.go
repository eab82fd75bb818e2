// Package gitstore versions the twin repository with go-git.
//
// Every snapshot, plan, and apply leaves the repository as plain files;
// gitstore turns those files into history. It stages and commits whole
// trees, syncs with a single remote, and rolls the worktree back to an
// earlier commit for the time machine. No git binary is involved: all
// operations run in-process through go-git.
package gitstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	// DefaultBranch is the branch snapshots are committed to.
	DefaultBranch = "main"

	// DefaultRemote is the remote name used when none is given.
	DefaultRemote = "origin"

	// Commits fall back to this identity when neither the repository
	// nor the user's git configuration carries one.
	fallbackName  = "TwinSync"
	fallbackEmail = "twinsync@localhost"
)

// Store is a handle on the twin repository's git history.
type Store struct {
	root     string
	repo     *git.Repository
	worktree *git.Worktree
	token    string
}

// Option adjusts how a Store is opened.
type Option func(*Store)

// WithToken supplies a personal access token for authenticated pushes
// and pulls.
func WithToken(token string) Option {
	return func(s *Store) { s.token = token }
}

// Init creates a git repository at root with DefaultBranch checked
// out. Calling it on an existing repository opens it instead.
func Init(root string, opts ...Option) (*Store, error) {
	storer, wt, err := repoStorage(root)
	if err != nil {
		return nil, err
	}
	repo, err := git.InitWithOptions(storer, wt, git.InitOptions{
		DefaultBranch: plumbing.NewBranchReferenceName(DefaultBranch),
	})
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		return Open(root, opts...)
	}
	if err != nil {
		return nil, wrapErr(err, "failed to initialize repository")
	}
	return newStore(root, repo, opts...)
}

// Open opens the git repository at root. It returns ErrNotRepository
// when root has never been initialized.
func Open(root string, opts ...Option) (*Store, error) {
	storer, wt, err := repoStorage(root)
	if err != nil {
		return nil, err
	}
	repo, err := git.Open(storer, wt)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, wrapErrf(ErrNotRepository, "open %s", root)
		}
		return nil, wrapErr(err, "failed to open repository")
	}
	return newStore(root, repo, opts...)
}

// repoStorage builds the object storage and worktree filesystem for a
// repository rooted at an OS path, following the standard .git layout.
func repoStorage(root string) (*filesystem.Storage, billy.Filesystem, error) {
	wt := osfs.New(root)
	dot, err := wt.Chroot(git.GitDirName)
	if err != nil {
		return nil, nil, wrapErr(err, "failed to scope git directory")
	}
	return filesystem.NewStorage(dot, cache.NewObjectLRUDefault()), wt, nil
}

func newStore(root string, repo *git.Repository, opts ...Option) (*Store, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, wrapErr(err, "failed to get worktree")
	}
	s := &Store{root: root, repo: repo, worktree: worktree}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the worktree root the store was opened on.
func (s *Store) Root() string { return s.root }

// CommitAll stages every change under the worktree and commits it.
// It returns the new commit hash, or an empty string when the worktree
// was already clean and there was nothing to commit.
func (s *Store) CommitAll(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", errors.New("commit message required")
	}
	if err := s.worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", wrapErr(err, "failed to stage changes")
	}
	status, err := s.worktree.Status()
	if err != nil {
		return "", wrapErr(err, "failed to read worktree status")
	}
	if status.IsClean() {
		return "", nil
	}
	hash, err := s.worktree.Commit(message, &git.CommitOptions{Author: s.signature()})
	if err != nil {
		return "", wrapErr(err, "failed to commit")
	}
	return hash.String(), nil
}

// signature resolves the commit identity from git configuration,
// falling back to the built-in TwinSync identity when none is set.
func (s *Store) signature() *object.Signature {
	name, email := fallbackName, fallbackEmail
	if cfg, err := s.repo.ConfigScoped(gitcfg.SystemScope); err == nil {
		if cfg.User.Name != "" && cfg.User.Email != "" {
			name, email = cfg.User.Name, cfg.User.Email
		}
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}
}
