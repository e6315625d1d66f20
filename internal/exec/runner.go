package exec

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rileyhilliard/barmanctl/internal/errors"
)

// Impersonation modes for RunAs.
const (
	ImpersonateSu   = "su"
	ImpersonateSudo = "sudo"
	ImpersonateNone = "none"
)

// ErrTimeout is the cause of the error returned when a command is killed
// because its context deadline passed.
var ErrTimeout = stderrors.New("command timed out")

// waitDelay bounds how long Wait blocks on output pipes after the child is killed.
const waitDelay = 2 * time.Second

// Runner runs shell commands on the local host.
type Runner interface {
	// RunAs runs command as account, discarding its output. A non-zero exit
	// is reported through exitCode, not err.
	RunAs(ctx context.Context, account, command string) (exitCode int, err error)

	// Run runs command at the current privilege level and captures its output.
	Run(ctx context.Context, command string) (stdout, stderr []byte, exitCode int, err error)
}

// LocalRunner implements Runner with os/exec.
type LocalRunner struct {
	// Impersonation is su, sudo or none.
	Impersonation string
	// Shell interprets commands; $SHELL or /bin/sh when empty.
	Shell string
}

// NewLocalRunner creates a LocalRunner for the given impersonation mode.
func NewLocalRunner(impersonation string) *LocalRunner {
	return &LocalRunner{Impersonation: impersonation}
}

// RunAs implements Runner.
func (r *LocalRunner) RunAs(ctx context.Context, account, command string) (int, error) {
	argv, err := RunAsArgs(r.Impersonation, r.shell(), account, command)
	if err != nil {
		return -1, err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = waitDelay
	return exitStatus(ctx, cmd.Run(), command)
}

// Run implements Runner.
func (r *LocalRunner) Run(ctx context.Context, command string) ([]byte, []byte, int, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, r.shell(), "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	exitCode, err := exitStatus(ctx, cmd.Run(), command)
	return stdout.Bytes(), stderr.Bytes(), exitCode, err
}

func (r *LocalRunner) shell() string {
	if r.Shell != "" {
		return r.Shell
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// RunAsArgs builds the argv that runs command as account under the given
// impersonation mode.
func RunAsArgs(impersonation, shell, account, command string) ([]string, error) {
	switch impersonation {
	case ImpersonateSu, "":
		return []string{"su", "-", account, "-c", command}, nil
	case ImpersonateSudo:
		return []string{"sudo", "-H", "-u", account, "sh", "-c", command}, nil
	case ImpersonateNone:
		return []string{shell, "-c", command}, nil
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown impersonation mode '%s'", impersonation),
			"Use su, sudo, or none.")
	}
}

// exitStatus converts the result of cmd.Run into an exit code and error.
func exitStatus(ctx context.Context, runErr error, command string) (int, error) {
	if ctx.Err() == context.DeadlineExceeded {
		return -1, errors.WrapWithCode(ErrTimeout, errors.ErrExec,
			fmt.Sprintf("Command timed out: %s", command),
			"The command was killed after its deadline. Check it isn't waiting for input.")
	}
	if runErr == nil {
		return 0, nil
	}

	// Check if it's an exit error (command ran but returned non-zero)
	var exitErr *exec.ExitError
	if stderrors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	if ctx.Err() != nil {
		return -1, errors.WrapWithCode(ctx.Err(), errors.ErrExec,
			fmt.Sprintf("Command cancelled: %s", command),
			"")
	}

	// Actual execution failure
	return -1, errors.WrapWithCode(runErr, errors.ErrExec,
		"Couldn't run the command locally",
		"Make sure the command exists and is executable.")
}

// IsTimeout reports whether err came from a command killed at its deadline.
func IsTimeout(err error) bool {
	return stderrors.Is(err, ErrTimeout)
}
