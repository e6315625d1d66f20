package cli

import (
	"io"
	"os"
	"strings"

	"github.com/rileyhilliard/barmanctl/internal/account"
	"github.com/rileyhilliard/barmanctl/internal/apply"
	"github.com/rileyhilliard/barmanctl/internal/config"
	"github.com/rileyhilliard/barmanctl/internal/exec"
	"github.com/rileyhilliard/barmanctl/internal/keys"
	"github.com/rileyhilliard/barmanctl/internal/lock"
	"github.com/rileyhilliard/barmanctl/internal/logger"
	"github.com/rileyhilliard/barmanctl/internal/ui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// env is everything a command needs to touch the host.
type env struct {
	cfg     *config.Config
	cfgPath string // empty when running on defaults

	fs       afero.Fs
	runner   exec.Runner
	accounts account.Lookup
	locker   keys.Locker
	owner    apply.OwnerLookup
	// lookPath finds tools for doctor; nil means exec.LookPath.
	lookPath func(string) (string, error)

	out    io.Writer
	errOut io.Writer
	in     io.Reader

	// interactive is true when stdout is a terminal and --json is off.
	interactive bool
}

// loadEnv loads and validates the config and wires the real host.
func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, path, err := config.LoadAndValidate(Config())
	if err != nil {
		return nil, err
	}
	if !noColorFlag && !machineMode {
		ui.SetColorMode(cfg.Output.Color)
	}

	e := &env{
		cfg:         cfg,
		cfgPath:     path,
		fs:          afero.NewOsFs(),
		runner:      exec.NewLocalRunner(cfg.Keys.Impersonation),
		accounts:    account.FromConfig(cfg.Keys.PasswdFile),
		owner:       apply.SystemOwner,
		out:         cmd.OutOrStdout(),
		errOut:      cmd.ErrOrStderr(),
		in:          os.Stdin,
		interactive: !machineMode && ui.IsTerminal(os.Stdout),
	}
	if cfg.Lock.Enabled {
		e.locker = lock.NewFileLocker(cfg.Lock.Dir, cfg.Lock.Timeout)
	}
	return e, nil
}

func (e *env) provisioner() *keys.Provisioner {
	p := keys.NewProvisioner(e.accounts, e.runner)
	p.Fs = e.fs
	p.KeyType = e.cfg.Keys.KeyType
	p.Timeout = e.cfg.Keys.Timeout
	p.Locker = e.locker
	p.Logger = e.componentLogger("[keys]")
	return p
}

func (e *env) applier() *apply.Applier {
	a := apply.New(e.cfg, e.runner, e.provisioner())
	a.Fs = e.fs
	a.Owner = e.owner
	a.Logger = e.componentLogger("[apply]")
	return a
}

// componentLogger keeps component logs out of the way of command output:
// nothing while a terminal UI is drawing, debug-only otherwise.
func (e *env) componentLogger(prefix string) logger.Logger {
	if e.interactive {
		return logger.Noop()
	}
	return logger.NewQuietLogger(prefix)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
