// Package lock serializes key provisioning per account across processes
// with flock(2) files under a shared directory.
package lock

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rileyhilliard/barmanctl/internal/errors"
)

// DefaultRetryInterval is how often a held lock is retried.
const DefaultRetryInterval = 100 * time.Millisecond

// FileLocker hands out one exclusive lock per account name.
type FileLocker struct {
	// Dir holds <account>.lock and <account>.lock.info.
	Dir string
	// Timeout bounds the wait for a held lock. Zero waits until ctx is done.
	Timeout time.Duration
	// RetryInterval defaults to DefaultRetryInterval.
	RetryInterval time.Duration
}

// NewFileLocker creates a FileLocker rooted at dir.
func NewFileLocker(dir string, timeout time.Duration) *FileLocker {
	return &FileLocker{Dir: dir, Timeout: timeout}
}

// Lock blocks until the account's lock is acquired, the timeout passes, or
// ctx is done. A timeout returns an error wrapping ErrLocked that names the
// current holder. The returned release func is safe to call more than once.
func (l *FileLocker) Lock(ctx context.Context, account string) (func(), error) {
	fl, err := l.open(account)
	if err != nil {
		return nil, err
	}

	waitCtx := ctx
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	retry := l.RetryInterval
	if retry <= 0 {
		retry = DefaultRetryInterval
	}

	locked, err := fl.TryLockContext(waitCtx, retry)
	if err != nil && ctx.Err() != nil {
		return nil, errors.WrapWithCode(ctx.Err(), errors.ErrLock,
			fmt.Sprintf("Gave up waiting for the %s key lock", account),
			"The operation was cancelled.")
	}
	if err != nil && !stderrors.Is(err, context.DeadlineExceeded) {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Couldn't lock %s", fl.Path()),
			"Check permissions on lock.dir.")
	}
	if !locked {
		return nil, errors.WrapWithCode(ErrLocked, errors.ErrLock,
			fmt.Sprintf("Timed out waiting for the %s key lock after %s", account, l.Timeout),
			fmt.Sprintf("Lock held by: %s. Wait for it to finish, or raise lock.timeout.", l.Holder(account)))
	}

	return l.acquired(fl, account), nil
}

// TryLock acquires the account's lock without waiting. A held lock returns
// an error wrapping ErrLocked.
func (l *FileLocker) TryLock(account string) (func(), error) {
	fl, err := l.open(account)
	if err != nil {
		return nil, err
	}

	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Couldn't lock %s", fl.Path()),
			"Check permissions on lock.dir.")
	}
	if !locked {
		return nil, errors.WrapWithCode(ErrLocked, errors.ErrLock,
			fmt.Sprintf("The %s key lock is held", account),
			fmt.Sprintf("Lock held by: %s.", l.Holder(account)))
	}

	return l.acquired(fl, account), nil
}

// Holder describes who holds the account's lock, or "unknown".
func (l *FileLocker) Holder(account string) string {
	data, err := os.ReadFile(l.infoPath(account))
	if err != nil {
		return "unknown"
	}

	info, err := ParseLockInfo(data)
	if err != nil {
		// Fall back to raw content
		if raw := strings.TrimSpace(string(data)); raw != "" {
			return raw
		}
		return "unknown"
	}
	return info.String()
}

// Path returns the lock file path for account.
func (l *FileLocker) Path(account string) string {
	return filepath.Join(l.Dir, account+".lock")
}

func (l *FileLocker) infoPath(account string) string {
	return l.Path(account) + ".info"
}

func (l *FileLocker) open(account string) (*flock.Flock, error) {
	if account == "" || strings.ContainsAny(account, `/\`) || account == "." || account == ".." {
		return nil, errors.New(errors.ErrLock,
			fmt.Sprintf("Invalid account name for lock: '%s'", account),
			"Account names can't be empty or contain path separators.")
	}

	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			"Couldn't create lock directory "+l.Dir,
			"Check permissions, or point lock.dir somewhere writable.")
	}

	return flock.New(l.Path(account)), nil
}

// acquired records the holder and returns the release func.
func (l *FileLocker) acquired(fl *flock.Flock, account string) func() {
	infoPath := l.infoPath(account)
	if data, err := NewLockInfo(account).Marshal(); err == nil {
		// Holder info is advisory; the flock is what excludes
		_ = os.WriteFile(infoPath, data, 0644)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = os.Remove(infoPath)
			_ = fl.Unlock()
		})
	}
}
