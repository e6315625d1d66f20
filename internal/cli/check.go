package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/rileyhilliard/barmanctl/internal/apply"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/util"
)

// checkCommand runs barman check for server, or all servers when empty,
// and passes barman's exit status through.
func checkCommand(ctx context.Context, e *env, server string) error {
	target := "all"
	if server != "" {
		if err := requireServer(e, server); err != nil {
			return err
		}
		target = server
	}

	command := apply.CheckCommand(e.cfg, target, false)
	res := apply.RunCheck(ctx, e.runner, e.cfg.Check.Timeout, command)

	if machineMode {
		if err := writeJSONResult(e.out, res, res.Err); err != nil {
			return err
		}
		return checkExit(res)
	}

	fmt.Fprint(e.out, res.Stdout)
	fmt.Fprint(e.errOut, res.Stderr)
	if res.Err != nil && res.ExitCode > 0 {
		fmt.Fprint(e.errOut, "\n"+res.Err.Error())
	}
	return checkExit(res)
}

// checkExit turns a check result into the command's error: barman's own
// exit status when it ran, the run error otherwise.
func checkExit(res apply.CheckResult) error {
	if res.Err == nil {
		return nil
	}
	if res.ExitCode > 0 {
		return errors.NewExitError(res.ExitCode)
	}
	if machineMode {
		return errors.NewExitError(1)
	}
	return res.Err
}

// requireServer returns an error naming similar servers when name isn't configured.
func requireServer(e *env, name string) error {
	if _, ok := e.cfg.Servers[name]; ok {
		return nil
	}

	names := e.cfg.ServerNames()
	suggestion := "Available servers: " + util.JoinOrNone(names)
	if similar := util.SuggestSimilar(name, names, 3); len(similar) > 0 {
		suggestion = "Did you mean: " + strings.Join(similar, ", ") + "?"
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Server '%s' isn't configured", name),
		suggestion)
}
