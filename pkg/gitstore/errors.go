package gitstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for git operations on the twin repository. Callers
// dispatch on these with errors.Is; the underlying go-git errors stay
// wrapped underneath.

// ErrNotRepository is returned by Open when the given root has no git
// repository.
var ErrNotRepository = errors.New("not a git repository")

// ErrAlreadyUpToDate is returned by Push and PullFFOnly when the local
// and remote histories already match.
var ErrAlreadyUpToDate = errors.New("already up to date")

// ErrNotFastForward is returned when a push or pull cannot complete as
// a fast-forward and the histories need manual reconciliation.
var ErrNotFastForward = errors.New("not a fast-forward")

// ErrRemoteMissing is returned when an operation needs a remote that
// has not been configured.
var ErrRemoteMissing = errors.New("remote not configured")

// ErrBadRevision is returned when a revision cannot be resolved to a
// commit in the repository.
var ErrBadRevision = errors.New("cannot resolve revision")

// wrapErr adds context to err while keeping sentinel checks with
// errors.Is intact.
func wrapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// wrapErrf is wrapErr with a format string.
func wrapErrf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
