// Package testing provides test doubles for the exec package.
package testing

import (
	"context"
	"sync"
)

// RunAsCall records a call to RunAs.
type RunAsCall struct {
	Account string
	Command string
}

// Response is a canned result for Run.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// FakeRunner records commands instead of running them.
// RunAs succeeds with exit 0 unless OnRunAs is set; Run answers from
// Responses by exact command, then Default.
type FakeRunner struct {
	mu sync.Mutex

	// Configuration
	OnRunAs   func(ctx context.Context, account, command string) (int, error)
	Responses map[string]Response
	Default   Response

	// Call tracking
	RunAsCalls []RunAsCall
	RunCalls   []string
}

// NewFakeRunner creates a fake runner where every command succeeds.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Responses: make(map[string]Response),
	}
}

// RunAs records the call and delegates to OnRunAs when set.
func (r *FakeRunner) RunAs(ctx context.Context, account, command string) (int, error) {
	r.mu.Lock()
	r.RunAsCalls = append(r.RunAsCalls, RunAsCall{Account: account, Command: command})
	hook := r.OnRunAs
	r.mu.Unlock()

	// Hook runs unlocked so it can block or call back into the fake
	if hook != nil {
		return hook(ctx, account, command)
	}
	return 0, nil
}

// Run records the call and returns the configured response.
func (r *FakeRunner) Run(ctx context.Context, command string) ([]byte, []byte, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RunCalls = append(r.RunCalls, command)

	resp, ok := r.Responses[command]
	if !ok {
		resp = r.Default
	}
	return []byte(resp.Stdout), []byte(resp.Stderr), resp.ExitCode, resp.Err
}

// SetRunAs installs a RunAs hook.
func (r *FakeRunner) SetRunAs(fn func(ctx context.Context, account, command string) (int, error)) *FakeRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OnRunAs = fn
	return r
}

// SetResponse configures the result of Run for an exact command.
func (r *FakeRunner) SetResponse(command string, resp Response) *FakeRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Responses[command] = resp
	return r
}

// RunAsCount returns how many times RunAs was called.
func (r *FakeRunner) RunAsCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.RunAsCalls)
}

// Commands returns a copy of the commands passed to Run, in order.
func (r *FakeRunner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.RunCalls))
	copy(out, r.RunCalls)
	return out
}

// Reset clears call history and configuration.
func (r *FakeRunner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RunAsCalls = nil
	r.RunCalls = nil
	r.OnRunAs = nil
	r.Responses = make(map[string]Response)
	r.Default = Response{}
}
