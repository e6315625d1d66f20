package keys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/barmanctl/internal/account"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/exec"
	"github.com/rileyhilliard/barmanctl/internal/logger"
	"github.com/rileyhilliard/barmanctl/internal/util"
	"github.com/spf13/afero"
)

const (
	// PrivateKeyName and PublicKeyName live under <home>/.ssh.
	PrivateKeyName = "id_rsa"
	PublicKeyName  = "id_rsa.pub"

	// DefaultKeyType is passed to ssh-keygen -t when KeyType is empty.
	DefaultKeyType = "rsa"
	// DefaultTimeout bounds one ssh-keygen run when Timeout is zero.
	DefaultTimeout = 30 * time.Second
)

// Locker excludes other processes from provisioning the same account.
type Locker interface {
	Lock(ctx context.Context, account string) (release func(), err error)
}

// Provisioner ensures service accounts have an SSH key pair.
type Provisioner struct {
	Accounts account.Lookup
	Runner   exec.Runner
	Fs       afero.Fs
	// Locker is optional; in-process serialization always applies.
	Locker  Locker
	KeyType string
	Timeout time.Duration
	Logger  logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProvisioner creates a Provisioner on the real filesystem with default
// key type, timeout and logger.
func NewProvisioner(accounts account.Lookup, runner exec.Runner) *Provisioner {
	return &Provisioner{
		Accounts: accounts,
		Runner:   runner,
		Fs:       afero.NewOsFs(),
		KeyType:  DefaultKeyType,
		Timeout:  DefaultTimeout,
		Logger:   logger.NewEnvLogger("[keys]"),
	}
}

// Fact returns the account's public key, or "" when it has none.
func (p *Provisioner) Fact(ctx context.Context, name string) string {
	return p.Provision(ctx, name).Fact()
}

// Provision returns the account's public key, generating the pair first if
// the account has none. It never panics on a missing account.
func (p *Provisioner) Provision(ctx context.Context, name string) Result {
	acct, res, ok := p.resolve(name)
	if !ok {
		return res
	}

	sshDir := filepath.Join(acct.HomeDir, ".ssh")
	pubPath := filepath.Join(sshDir, PublicKeyName)
	privPath := filepath.Join(sshDir, PrivateKeyName)

	// Fast path: an existing public key is terminal and needs no lock.
	if key, exists, err := p.readKey(pubPath); err != nil {
		return failed(name, err)
	} else if exists {
		return found(name, key, false)
	}

	unlock := p.lockAccount(name)
	defer unlock()

	if p.Locker != nil {
		release, err := p.Locker.Lock(ctx, name)
		if err != nil {
			return failed(name, err)
		}
		defer release()
	}

	// Another caller may have generated the pair while we waited.
	if key, exists, err := p.readKey(pubPath); err != nil {
		return failed(name, err)
	} else if exists {
		return found(name, key, false)
	}

	if exists, _ := afero.Exists(p.Fs, privPath); exists {
		return failed(name, errors.New(errors.ErrKey,
			fmt.Sprintf("%s has a private key but no %s", privPath, PublicKeyName),
			fmt.Sprintf("Recreate it with: ssh-keygen -y -f %s > %s", privPath, pubPath)))
	}

	return p.generate(ctx, acct, privPath, pubPath)
}

// Peek reports what Provision would return without generating anything or
// taking locks. pending is true when Provision would run ssh-keygen.
func (p *Provisioner) Peek(name string) (res Result, pending bool) {
	acct, res, ok := p.resolve(name)
	if !ok {
		return res, false
	}

	sshDir := filepath.Join(acct.HomeDir, ".ssh")
	key, exists, err := p.readKey(filepath.Join(sshDir, PublicKeyName))
	if err != nil {
		return failed(name, err), false
	}
	if exists {
		return found(name, key, false), false
	}
	if exists, _ := afero.Exists(p.Fs, filepath.Join(sshDir, PrivateKeyName)); exists {
		return failed(name, errors.New(errors.ErrKey,
			fmt.Sprintf("%s has a private key but no %s", filepath.Join(sshDir, PrivateKeyName), PublicKeyName),
			"Recreate the public half with ssh-keygen -y.")), false
	}
	return notProvisioned(name), true
}

// resolve looks the account up and checks its home. ok is false when res
// is already the final result.
func (p *Provisioner) resolve(name string) (acct account.Account, res Result, ok bool) {
	if strings.TrimSpace(name) == "" {
		return acct, failed(name, errors.New(errors.ErrKey,
			"Account name is empty",
			"Pass the name of a system account, e.g. barman.")), false
	}

	acct, exists, err := p.Accounts.Find(name)
	if err != nil {
		return acct, failed(name, err), false
	}
	if !exists {
		p.log().Debug("account %s not found, skipping key", name)
		return acct, notProvisioned(name), false
	}

	if err := p.checkHome(acct); err != nil {
		return acct, failed(name, err), false
	}
	return acct, Result{}, true
}

func (p *Provisioner) generate(ctx context.Context, acct account.Account, privPath, pubPath string) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := GenerateCommand(p.keyType(), privPath)
	p.log().Debug("generating %s key for %s: %s", p.keyType(), acct.Name, cmd)

	exitCode, err := p.Runner.RunAs(genCtx, acct.Name, cmd)
	if err != nil {
		p.log().Warn("key generation for %s failed: %v", acct.Name, err)
		if exec.IsTimeout(err) {
			return failed(acct.Name, errors.WrapWithCode(err, errors.ErrKey,
				fmt.Sprintf("ssh-keygen for %s timed out after %s", acct.Name, timeout),
				"Check the account can log in non-interactively, or raise keys.timeout."))
		}
		return failed(acct.Name, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Couldn't run ssh-keygen as %s", acct.Name),
			"Check that su/sudo can switch to the account (keys.impersonation)."))
	}

	key, exists, err := p.readKey(pubPath)
	if err != nil {
		p.log().Warn("key generation for %s: %v", acct.Name, err)
		return failed(acct.Name, err)
	}
	if !exists {
		p.log().Warn("key generation for %s failed: %s still missing (exit %d)", acct.Name, pubPath, exitCode)
		return failed(acct.Name, errors.New(errors.ErrKey,
			fmt.Sprintf("ssh-keygen ran as %s but %s doesn't exist (exit %d)", acct.Name, pubPath, exitCode),
			"Check the account has a login shell and can write to its home directory."))
	}

	if exitCode != 0 {
		p.log().Debug("ssh-keygen for %s exited %d but wrote the key", acct.Name, exitCode)
	}
	p.log().Info("generated SSH key for %s", acct.Name)
	return found(acct.Name, key, true)
}

// GenerateCommand is the shell command that creates the key pair at privPath.
func GenerateCommand(keyType, privPath string) string {
	return fmt.Sprintf("mkdir -p -m 700 %s && ssh-keygen -t %s -N '' -q -f %s",
		util.ShellQuote(filepath.Dir(privPath)), util.ShellQuote(keyType), util.ShellQuote(privPath))
}

// readKey returns the trimmed public key, or exists=false when absent.
func (p *Provisioner) readKey(path string) (string, bool, error) {
	if _, err := p.Fs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Couldn't check %s", path),
			"Check permissions on the account's .ssh directory.")
	}

	data, err := afero.ReadFile(p.Fs, path)
	if err != nil {
		return "", true, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Failed to read public key: %s", path),
			"Check that the file is readable by the user running barmanctl.")
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", true, errors.New(errors.ErrKey,
			fmt.Sprintf("Public key %s is empty", path),
			"Remove the empty key pair so it can be regenerated.")
	}
	return key, true, nil
}

func (p *Provisioner) checkHome(acct account.Account) error {
	if acct.HomeDir == "" || !filepath.IsAbs(acct.HomeDir) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Account %s has no usable home directory ('%s')", acct.Name, acct.HomeDir),
			"Set an absolute home directory for the account.")
	}

	info, err := p.Fs.Stat(acct.HomeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Home directory %s of account %s doesn't exist", acct.HomeDir, acct.Name),
				"Create it first (barmanctl apply does this for the barman account).")
		}
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't check home directory %s", acct.HomeDir),
			"Check permissions on the path.")
	}
	if !info.IsDir() {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Home %s of account %s is not a directory", acct.HomeDir, acct.Name),
			"Fix the account's home directory.")
	}
	return nil
}

// lockAccount serializes provisioning of one account within the process.
func (p *Provisioner) lockAccount(name string) func() {
	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	m, ok := p.locks[name]
	if !ok {
		m = &sync.Mutex{}
		p.locks[name] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (p *Provisioner) keyType() string {
	if p.KeyType == "" {
		return DefaultKeyType
	}
	return p.KeyType
}

func (p *Provisioner) log() logger.Logger {
	if p.Logger == nil {
		return logger.Noop()
	}
	return p.Logger
}
