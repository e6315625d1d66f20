package apply

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/barmanctl/internal/config"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/exec"
	"github.com/rileyhilliard/barmanctl/internal/util"
)

// CheckResult is the outcome of one barman check run.
type CheckResult struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
	Err      error  `json:"-"`
}

// CheckCommand builds the barman check command line for target, which is a
// server name or "all". A tolerant check never fails on barman's own exit
// status, so a server that is still unreachable doesn't fail the run.
func CheckCommand(cfg *config.Config, target string, tolerant bool) string {
	cmd := fmt.Sprintf("%s check %s", cfg.Check.Command, util.ShellQuote(target))
	if tolerant {
		cmd += " || true"
	}
	return cmd
}

// RunCheck runs command under timeout. Err is set for a failed run or a
// non-zero exit.
func RunCheck(ctx context.Context, runner exec.Runner, timeout time.Duration, command string) CheckResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdout, stderr, exitCode, err := runner.Run(ctx, command)
	res := CheckResult{
		Command:  command,
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		ExitCode: exitCode,
	}

	switch {
	case err != nil:
		res.Err = err
	case exitCode != 0:
		if nf := exec.HandleExecError(command, res.Stderr, exitCode); nf != nil {
			res.Err = nf
		} else {
			res.Err = errors.New(errors.ErrExec,
				fmt.Sprintf("%s failed (exit %d)", command, exitCode),
				lastLine(strings.TrimSpace(res.Stdout+"\n"+res.Stderr), "Run it by hand as the barman user for details."))
		}
	}
	return res
}
