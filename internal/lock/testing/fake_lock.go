// Package testing provides test doubles for the lock package.
package testing

import (
	"context"
	"sync"

	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/lock"
)

// LockCall records a call to Lock.
type LockCall struct {
	Account string
	Success bool
}

// FakeLocker simulates per-account locking in memory. Unlike the real
// locker it never blocks: a held account fails immediately with ErrLocked.
type FakeLocker struct {
	mu sync.Mutex

	// Configuration
	ShouldFail bool
	FailError  error
	HeldBy     map[string]string // account -> holder, simulates contention

	// Call tracking
	LockCalls    []LockCall
	ReleaseCalls []string

	held map[string]bool
}

// NewFakeLocker creates a fake locker that succeeds by default.
func NewFakeLocker() *FakeLocker {
	return &FakeLocker{
		HeldBy: make(map[string]string),
		held:   make(map[string]bool),
	}
}

// Lock simulates lock acquisition.
func (f *FakeLocker) Lock(ctx context.Context, account string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := LockCall{Account: account}

	if f.ShouldFail {
		f.LockCalls = append(f.LockCalls, call)
		if f.FailError != nil {
			return nil, f.FailError
		}
		return nil, errors.New(errors.ErrLock,
			"Lock acquisition failed",
			"Configured to fail in test")
	}

	if holder, ok := f.HeldBy[account]; ok || f.held[account] {
		if holder == "" {
			holder = "another caller"
		}
		f.LockCalls = append(f.LockCalls, call)
		return nil, errors.WrapWithCode(lock.ErrLocked, errors.ErrLock,
			"Timed out waiting for the "+account+" key lock",
			"Lock held by: "+holder)
	}

	call.Success = true
	f.LockCalls = append(f.LockCalls, call)
	f.held[account] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.held, account)
			f.ReleaseCalls = append(f.ReleaseCalls, account)
		})
	}, nil
}

// SetFail configures the locker to fail every acquisition.
func (f *FakeLocker) SetFail(err error) *FakeLocker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ShouldFail = true
	f.FailError = err
	return f
}

// SetContention makes account appear held by holder.
func (f *FakeLocker) SetContention(account, holder string) *FakeLocker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HeldBy[account] = holder
	return f
}

// SuccessfulLocks returns the number of successful acquisitions.
func (f *FakeLocker) SuccessfulLocks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.LockCalls {
		if call.Success {
			count++
		}
	}
	return count
}

// Released returns the accounts released so far, in order.
func (f *FakeLocker) Released() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ReleaseCalls))
	copy(out, f.ReleaseCalls)
	return out
}

// Outstanding reports whether any lock is still held.
func (f *FakeLocker) Outstanding() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held) > 0
}
