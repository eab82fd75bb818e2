package gitstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Init(t.TempDir())
	require.NoError(t, err, "failed to initialize test repository")
	return s
}

func writeFile(t *testing.T, s *Store, name, content string) {
	t.Helper()

	path := filepath.Join(s.Root(), name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func commit(t *testing.T, s *Store, msg string) string {
	t.Helper()

	hash, err := s.CommitAll(context.Background(), msg)
	require.NoError(t, err, "failed to commit")
	require.NotEmpty(t, hash, "expected a commit to be created")
	return hash
}

func TestInitCreatesMainBranch(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "config.yaml", "device: test\n")
	commit(t, s, "initial snapshot")

	head, err := s.repo.Head()
	require.NoError(t, err)
	assert.Equal(t, plumbing.NewBranchReferenceName(DefaultBranch), head.Name())
}

func TestInitOnExistingRepositoryOpens(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "config.yaml", "device: test\n")
	commit(t, s, "initial snapshot")

	again, err := Init(s.Root())
	require.NoError(t, err)

	log, err := again.Log(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, log, 1, "reinit should preserve history")
}

func TestOpenMissingRepository(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRepository))
}

func TestCommitAllSkipsCleanTree(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "state/packages.yaml", "packages: []\n")
	commit(t, s, "snapshot one")

	hash, err := s.CommitAll(context.Background(), "snapshot two")
	require.NoError(t, err)
	assert.Empty(t, hash, "clean tree should not produce a commit")

	log, err := s.Log(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestCommitAllStagesDeletions(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "live/services.yaml", "services: []\n")
	writeFile(t, s, "live/packages.yaml", "packages: []\n")
	commit(t, s, "snapshot one")

	require.NoError(t, os.Remove(filepath.Join(s.Root(), "live", "services.yaml")))
	commit(t, s, "snapshot two")

	log, err := s.Log(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "snapshot two", log[0].Message)
}

func TestCommitAllRequiresMessage(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CommitAll(context.Background(), "")
	require.Error(t, err)
}

func TestCommitIdentityFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	s := newTestStore(t)
	writeFile(t, s, "config.yaml", "device: test\n")
	hash := commit(t, s, "initial snapshot")

	obj, err := s.repo.CommitObject(plumbing.NewHash(hash))
	require.NoError(t, err)
	assert.Equal(t, fallbackName, obj.Author.Name)
	assert.Equal(t, fallbackEmail, obj.Author.Email)
}

func TestCommitUsesConfiguredIdentity(t *testing.T) {
	s := newTestStore(t)

	cfg, err := s.repo.Config()
	require.NoError(t, err)
	cfg.User.Name = "Device Operator"
	cfg.User.Email = "ops@example.com"
	require.NoError(t, s.repo.SetConfig(cfg))

	writeFile(t, s, "config.yaml", "device: test\n")
	hash := commit(t, s, "initial snapshot")

	obj, err := s.repo.CommitObject(plumbing.NewHash(hash))
	require.NoError(t, err)
	assert.Equal(t, "Device Operator", obj.Author.Name)
	assert.Equal(t, "ops@example.com", obj.Author.Email)
}

func TestLogNewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	for i, msg := range []string{"first", "second", "third"} {
		writeFile(t, s, "config.yaml", fmt.Sprintf("revision: %d\n", i))
		commit(t, s, msg)
	}

	log, err := s.Log(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "third", log[0].Message)
	assert.Equal(t, "second", log[1].Message)

	full, err := s.Log(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, full, 3)
}

func TestLogEmptyRepository(t *testing.T) {
	s := newTestStore(t)

	log, err := s.Log(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestLogKeepsSubjectLineOnly(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "config.yaml", "device: test\n")
	_, err := s.CommitAll(context.Background(), "snapshot 2024-03-01\n\nrotated 2 log captures")
	require.NoError(t, err)

	log, err := s.Log(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "snapshot 2024-03-01", log[0].Message)
}

func TestShortHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
		want string
	}{
		{name: "full hash", hash: "0123456789abcdef0123456789abcdef01234567", want: "0123456"},
		{name: "already short", hash: "abc", want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommitInfo{Hash: tt.hash}.ShortHash())
		})
	}
}

func TestResetHardRestoresEarlierCommit(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "state/packages.yaml", "packages: [curl]\n")
	first := commit(t, s, "snapshot one")
	writeFile(t, s, "state/packages.yaml", "packages: [curl, htop]\n")
	commit(t, s, "snapshot two")

	require.NoError(t, s.ResetHard(context.Background(), first))

	data, err := os.ReadFile(filepath.Join(s.Root(), "state", "packages.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "packages: [curl]\n", string(data))

	log, err := s.Log(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "snapshot one", log[0].Message)
}

func TestResetHardBadRevision(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "config.yaml", "device: test\n")
	commit(t, s, "initial snapshot")

	err := s.ResetHard(context.Background(), "no-such-rev")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadRevision))
}

func TestSetRemoteReplacesExisting(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetRemote("origin", "https://github.com/alice/device-a.git"))
	require.NoError(t, s.SetRemote("origin", "https://github.com/alice/device-b.git"))

	url, err := s.RemoteURL("origin")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/alice/device-b.git", url)
}

func TestRemoteURLMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.RemoteURL("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteMissing))
}

func TestPushWithoutRemote(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "config.yaml", "device: test\n")
	commit(t, s, "initial snapshot")

	err := s.Push(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteMissing))
}

func TestPullWithoutRemote(t *testing.T) {
	s := newTestStore(t)

	err := s.PullFFOnly(context.Background(), "", DefaultBranch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteMissing))
}

func TestGitHubURL(t *testing.T) {
	assert.Equal(t, "https://github.com/alice/device-twin.git", GitHubURL("alice", "device-twin"))
}
