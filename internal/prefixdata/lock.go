package prefixdata

import (
	"context"
	"time"

	"github.com/pkg/errors"
	flock "github.com/theckman/go-flock"

	"github.com/gonda-project/gonda/internal/gondaerrors"
)

// LockFileName is the advisory lock file conda places at the root of a
// prefix to serialize structural changes: a process holds this lock for
// the duration of a transaction.
const LockFileName = ".conda-lock"

// Lock wraps a process-wide advisory file lock scoped to one prefix.
type Lock struct {
	fl *flock.Flock
}

// NewLock returns (unlocked) a lock object for prefix.
func NewLock(prefix string) *Lock {
	return &Lock{fl: flock.NewFlock(prefix + "/" + LockFileName)}
}

// TryLock attempts to acquire the exclusive lock, polling at the given
// interval until ctx is done. Returns PrefixLocked if ctx expires first.
func (l *Lock) TryLock(ctx context.Context, poll time.Duration) error {
	for {
		ok, err := l.fl.TryLock()
		if err != nil {
			return errors.Wrap(err, "acquiring prefix lock")
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return &gondaerrors.PrefixLocked{Prefix: l.fl.Path(), Cause: ctx.Err()}
		case <-time.After(poll):
		}
	}
}

// Unlock releases the lock. Safe to call even if never successfully locked.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}

// Locked reports whether this process currently holds the lock.
func (l *Lock) Locked() bool {
	return l.fl.Locked()
}
