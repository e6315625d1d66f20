// Package apply converges a host to its barmanctl config: the barman
// package, its home directory, the rendered config files, service account
// keys and the post-change barman checks.
package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rileyhilliard/barmanctl/internal/config"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/exec"
	"github.com/rileyhilliard/barmanctl/internal/keys"
	"github.com/rileyhilliard/barmanctl/internal/logger"
	"github.com/rileyhilliard/barmanctl/internal/render"
	"github.com/rileyhilliard/barmanctl/internal/util"
	"github.com/spf13/afero"
)

// HomeMode is the permission set on barman's home directory.
const HomeMode os.FileMode = 0750

// KeyProvisioner is the part of keys.Provisioner the applier uses.
type KeyProvisioner interface {
	Provision(ctx context.Context, name string) keys.Result
	Peek(name string) (keys.Result, bool)
}

// Applier converges one host. Steps run in order; a failed package install
// or render stops the run, other failures are recorded and the run goes on.
type Applier struct {
	Config *config.Config
	Fs     afero.Fs
	Runner exec.Runner
	Keys   KeyProvisioner
	Owner  OwnerLookup
	// FileOwner reads current ownership; unknown ownership is never
	// reported as drift.
	FileOwner func(os.FileInfo) (uid, gid int, ok bool)
	Logger    logger.Logger

	// DryRun reports what would change without touching anything.
	DryRun bool
	// OnStep is called after each step is recorded.
	OnStep func(Step)

	report *Report
}

// New creates an Applier on the real filesystem.
func New(cfg *config.Config, runner exec.Runner, provisioner KeyProvisioner) *Applier {
	return &Applier{
		Config:    cfg,
		Fs:        afero.NewOsFs(),
		Runner:    runner,
		Keys:      provisioner,
		Owner:     SystemOwner,
		FileOwner: StatOwner,
		Logger:    logger.NewEnvLogger("[apply]"),
	}
}

// Apply runs every step and returns the report. The error is set when the
// run stopped early; step failures alone are reported through the Report.
func (a *Applier) Apply(ctx context.Context) (*Report, error) {
	a.report = &Report{DryRun: a.DryRun}
	cfg := a.Config

	if err := a.ensurePackage(ctx); err != nil {
		return a.report, err
	}

	homePending := a.ensureHome()

	files, err := render.All(cfg)
	if err != nil {
		a.record(Step{Name: "render", Status: StatusFailed, Message: err.Error(), Err: err})
		return a.report, err
	}

	a.ensureDir("conf_dir", cfg.Barman.ConfDir, 0755, "root", "root")

	changed := make(map[string]bool)
	for _, f := range files {
		if a.writeFile(f) {
			changed[f.Path] = true
		}
	}

	if cfg.Barman.PurgeUnknownConf {
		a.purgeUnknownConf()
	}

	a.provisionKeys(ctx, homePending)
	a.ensureAuthorizedKeys()

	a.runChecks(ctx, changed)

	return a.report, nil
}

func (a *Applier) record(s Step) {
	a.report.Steps = append(a.report.Steps, s)
	switch s.Status {
	case StatusFailed:
		a.log().Warn("%s: %s", s.Name, s.Message)
	case StatusChanged:
		a.log().Info("%s: %s", s.Name, s.Message)
	default:
		a.log().Debug("%s: %s %s", s.Name, s.Status, s.Message)
	}
	if a.OnStep != nil {
		a.OnStep(s)
	}
}

func (a *Applier) ensurePackage(ctx context.Context) error {
	pkg := a.Config.Package
	name := "package:" + pkg.Name
	if !pkg.Manage {
		a.record(Step{Name: name, Status: StatusSkipped, Message: "package.manage is off"})
		return nil
	}

	query := fmt.Sprintf(pkg.QueryCommand, util.ShellQuote(pkg.Name))
	_, _, exitCode, err := a.Runner.Run(ctx, query)
	if err != nil {
		err = errors.WrapWithCode(err, errors.ErrPackage,
			fmt.Sprintf("Couldn't check whether %s is installed", pkg.Name),
			"Check package.query_command.")
		a.record(Step{Name: name, Status: StatusFailed, Message: "query failed", Err: err})
		return err
	}
	if exitCode == 0 {
		a.record(Step{Name: name, Status: StatusUnchanged, Message: "installed"})
		return nil
	}

	if a.DryRun {
		a.record(Step{Name: name, Status: StatusChanged, Message: "would install"})
		return nil
	}

	install := fmt.Sprintf(pkg.InstallCommand, util.ShellQuote(pkg.Name))
	_, stderr, exitCode, err := a.Runner.Run(ctx, install)
	if err == nil && exitCode != 0 {
		if nf := exec.HandleExecError(install, string(stderr), exitCode); nf != nil {
			err = nf
		} else {
			err = errors.New(errors.ErrPackage,
				fmt.Sprintf("Installing %s failed (exit %d)", pkg.Name, exitCode),
				lastLine(string(stderr), "Run the install command by hand to see what's wrong."))
		}
	}
	if err != nil {
		a.record(Step{Name: name, Status: StatusFailed, Message: "install failed", Err: err})
		return err
	}

	a.record(Step{Name: name, Status: StatusChanged, Message: "installed"})
	return nil
}

// ensureHome creates barman's home. It returns true when the home is still
// missing because this is a dry run.
func (a *Applier) ensureHome() bool {
	b := a.Config.Barman
	s := a.ensureDir("home", b.Home, HomeMode, b.User, b.Group)
	return a.DryRun && s.Status == StatusChanged && s.Message == "would create"
}

// ensureDir makes sure path is a directory with mode and owner.
func (a *Applier) ensureDir(name, path string, mode os.FileMode, owner, group string) Step {
	step := Step{Name: name + ":" + path}

	info, err := a.Fs.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		step.Status = StatusFailed
		step.Err = errors.New(errors.ErrFile,
			fmt.Sprintf("%s exists but is not a directory", path),
			"Move the file out of the way.")
		step.Message = "not a directory"
	case err == nil:
		a.fixAttrs(&step, path, info, mode, owner, group)
	case os.IsNotExist(err):
		step.Status = StatusChanged
		step.Message = "created"
		if a.DryRun {
			step.Message = "would create"
			break
		}
		if err := a.mkdir(path, mode, owner, group); err != nil {
			step.Status, step.Message, step.Err = StatusFailed, "create failed", err
		}
	default:
		step.Status, step.Message, step.Err = StatusFailed, "stat failed", err
	}

	if step.Err != nil && step.Message != "not a directory" {
		step.Message += ": " + firstLine(step.Err.Error())
	}
	a.record(step)
	return step
}

// fixAttrs brings the mode and ownership of an existing path in line and
// fills in step. Ownership is only compared when both the current and the
// wanted ids are known.
func (a *Applier) fixAttrs(step *Step, path string, info os.FileInfo, mode os.FileMode, owner, group string) {
	var changes []string
	if info.Mode().Perm() != mode {
		changes = append(changes, fmt.Sprintf("mode %04o -> %04o", info.Mode().Perm(), mode))
	}

	uid, gid, chown := a.ownerDrift(info, owner, group)
	if chown {
		changes = append(changes, fmt.Sprintf("owner -> %s:%s", owner, group))
	}

	if len(changes) == 0 {
		step.Status = StatusUnchanged
		return
	}
	step.Status = StatusChanged
	step.Message = strings.Join(changes, ", ")
	if a.DryRun {
		return
	}

	if info.Mode().Perm() != mode {
		if err := a.Fs.Chmod(path, mode); err != nil {
			step.Status, step.Message, step.Err = StatusFailed, "chmod failed", err
			return
		}
	}
	if chown {
		if err := a.Fs.Chown(path, uid, gid); err != nil {
			step.Status, step.Message, step.Err = StatusFailed, "chown failed", err
		}
	}
}

// ownerDrift returns the wanted ids and whether info is owned by anyone
// else. A failed lookup is left to the steps that create files.
func (a *Applier) ownerDrift(info os.FileInfo, owner, group string) (uid, gid int, drift bool) {
	if a.Owner == nil || a.FileOwner == nil {
		return 0, 0, false
	}
	haveUID, haveGID, ok := a.FileOwner(info)
	if !ok {
		return 0, 0, false
	}
	uid, gid, err := a.Owner(owner, group)
	if err != nil {
		a.log().Debug("owner lookup for %s:%s: %v", owner, group, err)
		return 0, 0, false
	}
	return uid, gid, uid != haveUID || gid != haveGID
}

func (a *Applier) mkdir(path string, mode os.FileMode, owner, group string) error {
	if err := a.Fs.MkdirAll(path, mode); err != nil {
		return err
	}
	// MkdirAll is subject to umask
	if err := a.Fs.Chmod(path, mode); err != nil {
		return err
	}
	return a.chown(path, owner, group)
}

func (a *Applier) chown(path, owner, group string) error {
	if a.Owner == nil {
		return nil
	}
	uid, gid, err := a.Owner(owner, group)
	if err != nil {
		return err
	}
	return a.Fs.Chown(path, uid, gid)
}

// writeFile writes f when its content or mode differ. It returns true when
// the file changed (or would change).
func (a *Applier) writeFile(f render.File) bool {
	step := Step{Name: "file:" + f.Path}

	existing, readErr := afero.ReadFile(a.Fs, f.Path)
	switch {
	case readErr == nil && string(existing) == f.Content:
		info, err := a.Fs.Stat(f.Path)
		if err != nil {
			step.Status, step.Message, step.Err = StatusFailed, "stat failed: "+err.Error(), err
		} else {
			a.fixAttrs(&step, f.Path, info, f.Mode, f.Owner, f.Group)
			if step.Err != nil {
				step.Message += ": " + firstLine(step.Err.Error())
			}
		}
		a.record(step)
		return false
	case readErr != nil && !os.IsNotExist(readErr):
		step.Status, step.Message, step.Err = StatusFailed, "read failed: "+readErr.Error(), readErr
		a.record(step)
		return false
	}

	step.Status = StatusChanged
	step.Message = "updated"
	if readErr != nil {
		step.Message = "created"
	}
	if a.DryRun {
		step.Message = "would be " + step.Message
		a.record(step)
		return true
	}

	if err := a.atomicWrite(f); err != nil {
		step.Status, step.Message, step.Err = StatusFailed, firstLine(err.Error()), err
		a.record(step)
		return false
	}
	a.record(step)
	return true
}

// atomicWrite writes through a temp file in the same directory and renames
// it into place.
func (a *Applier) atomicWrite(f render.File) error {
	dir := filepath.Dir(f.Path)
	if err := a.Fs.MkdirAll(dir, 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrFile,
			"Couldn't create "+dir, "Check permissions.")
	}

	tmp, err := afero.TempFile(a.Fs, dir, "."+filepath.Base(f.Path)+".tmp")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrFile,
			"Couldn't create a temp file in "+dir, "Check permissions and free space.")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = a.Fs.Remove(tmpName) }

	if _, err := tmp.WriteString(f.Content); err != nil {
		tmp.Close()
		cleanup()
		return errors.WrapWithCode(err, errors.ErrFile, "Couldn't write "+f.Path, "Check free space.")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.WrapWithCode(err, errors.ErrFile, "Couldn't write "+f.Path, "Check free space.")
	}
	if err := a.Fs.Chmod(tmpName, f.Mode); err != nil {
		cleanup()
		return errors.WrapWithCode(err, errors.ErrFile, "Couldn't chmod "+f.Path, "Check permissions.")
	}
	if err := a.chown(tmpName, f.Owner, f.Group); err != nil {
		cleanup()
		return errors.WrapWithCode(err, errors.ErrFile,
			fmt.Sprintf("Couldn't give %s to %s:%s", f.Path, f.Owner, f.Group),
			"barmanctl apply needs to run as root.")
	}
	if err := a.Fs.Rename(tmpName, f.Path); err != nil {
		cleanup()
		return errors.WrapWithCode(err, errors.ErrFile, "Couldn't replace "+f.Path, "Check permissions.")
	}
	return nil
}

// purgeUnknownConf removes *.conf fragments that don't belong to a server.
func (a *Applier) purgeUnknownConf() {
	cfg := a.Config
	matches, err := afero.Glob(a.Fs, filepath.Join(cfg.Barman.ConfDir, "*.conf"))
	if err != nil {
		a.record(Step{Name: "purge:" + cfg.Barman.ConfDir, Status: StatusFailed, Message: err.Error(), Err: err})
		return
	}
	sort.Strings(matches)

	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), ".conf")
		if _, ok := cfg.Servers[name]; ok {
			continue
		}

		step := Step{Name: "purge:" + path, Status: StatusChanged, Message: "removed"}
		if a.DryRun {
			step.Message = "would remove"
		} else if err := a.Fs.Remove(path); err != nil {
			step.Status, step.Message, step.Err = StatusFailed, "remove failed: "+err.Error(), err
		}
		a.record(step)
	}
}

func (a *Applier) provisionKeys(ctx context.Context, homePending bool) {
	for _, name := range a.Config.Keys.Accounts {
		step := Step{Name: "key:" + name}

		var res keys.Result
		if a.DryRun {
			var pending bool
			res, pending = a.Keys.Peek(name)
			// The home isn't there yet, but apply would create it first
			if homePending && name == a.Config.Barman.User {
				res, pending = keys.Result{Account: name, Status: keys.NotProvisioned}, true
			}
			if pending {
				step.Status, step.Message = StatusChanged, "would generate"
				a.report.Keys = append(a.report.Keys, res)
				a.record(step)
				continue
			}
		} else {
			res = a.Keys.Provision(ctx, name)
		}
		a.report.Keys = append(a.report.Keys, res)

		switch res.Status {
		case keys.Found:
			step.Status = StatusUnchanged
			if res.Generated {
				step.Status, step.Message = StatusChanged, "generated"
			}
			if fp, err := keys.Fingerprint(res.Key); err == nil {
				step.Message = strings.TrimSpace(step.Message + " " + fp)
			}
		case keys.NotProvisioned:
			step.Status, step.Message = StatusSkipped, "no such account"
		default:
			step.Status, step.Err = StatusFailed, res.Err
			step.Message = "provisioning failed"
			if res.Err != nil {
				step.Message += ": " + firstLine(res.Err.Error())
			}
		}
		a.record(step)
	}
}

func (a *Applier) ensureAuthorizedKeys() {
	b := a.Config.Barman
	if strings.TrimSpace(a.Config.Keys.AuthorizedPeerKey) == "" {
		return
	}

	path := render.AuthorizedKeysPath(b.Home)
	existing, err := afero.ReadFile(a.Fs, path)
	if err != nil && !os.IsNotExist(err) {
		a.record(Step{Name: "file:" + path, Status: StatusFailed, Message: "read failed: " + err.Error(), Err: err})
		return
	}

	f, _, err := render.AuthorizedKeys(a.Config, string(existing))
	if err != nil {
		a.record(Step{Name: "file:" + path, Status: StatusFailed, Message: firstLine(err.Error()), Err: err})
		return
	}

	if s := a.ensureDir("ssh_dir", filepath.Dir(path), 0700, b.User, b.Group); s.Status == StatusFailed {
		return
	}
	a.writeFile(f)
}

func (a *Applier) runChecks(ctx context.Context, changed map[string]bool) {
	cfg := a.Config
	if !cfg.Check.Enabled {
		return
	}

	if changed[cfg.Barman.ConfFile] {
		a.check(ctx, "all", CheckCommand(cfg, "all", false))
	}
	for _, name := range cfg.ServerNames() {
		if changed[render.ServerConfPath(cfg, name)] {
			a.check(ctx, name, CheckCommand(cfg, name, true))
		}
	}
}

func (a *Applier) check(ctx context.Context, target, command string) {
	name := "check:" + target
	if a.DryRun {
		a.record(Step{Name: name, Status: StatusSkipped, Message: "would run " + command})
		return
	}

	res := RunCheck(ctx, a.Runner, a.Config.Check.Timeout, command)
	step := Step{Name: name, Status: StatusUnchanged, Message: "ran " + command}
	if res.Err != nil {
		step.Status, step.Err = StatusFailed, res.Err
		step.Message = firstLine(res.Err.Error())
	}
	a.record(step)
}

func (a *Applier) log() logger.Logger {
	if a.Logger == nil {
		return logger.Noop()
	}
	return a.Logger
}

func firstLine(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "✗ ")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func lastLine(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
