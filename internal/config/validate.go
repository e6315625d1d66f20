package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rileyhilliard/barmanctl/internal/errors"
)

// serverNamePattern matches names barman accepts as a section header and
// that are safe to use as a file name under conf_dir.
var serverNamePattern = regexp.MustCompile(`^[0-9a-z-]+$`)

// ValidCompressions are the compression values barman understands.
var ValidCompressions = map[string]bool{
	"gzip":    true,
	"bzip2":   true,
	"pigz":    true,
	"pygzip":  true,
	"pybzip2": true,
	"custom":  true,
}

// ValidImpersonations are the supported ways to run a command as another account.
var ValidImpersonations = map[string]bool{
	"su":   true,
	"sudo": true,
	"none": true,
}

// ValidKeyTypes are the key types passed to ssh-keygen -t.
var ValidKeyTypes = map[string]bool{
	"rsa":     true,
	"ed25519": true,
	"ecdsa":   true,
}

// ValidColorModes are the supported output.color values.
var ValidColorModes = map[string]bool{
	"auto":   true,
	"always": true,
	"never":  true,
}

// DefaultServerCompression applies to servers that don't set compression.
const DefaultServerCompression = "gzip"

// Compression normalizes a compression setting. Empty, "false", "0", "none"
// and "off" disable compression and return "".
func Compression(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0", "none", "off":
		return ""
	default:
		return strings.TrimSpace(s)
	}
}

// EffectiveCompression returns the compression rendered for a server:
// unset means the server default, an explicit disable means none.
func (s Server) EffectiveCompression() string {
	if strings.TrimSpace(s.Compression) == "" {
		return DefaultServerCompression
	}
	return Compression(s.Compression)
}

// ValidateServerName checks a server name against the allowed pattern.
func ValidateServerName(name string) error {
	if !serverNamePattern.MatchString(name) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("'%s' is not a valid name", name),
			"Server names may only use lowercase letters, numbers and dashes.")
	}
	return nil
}

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but barmanctl only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade barmanctl, or lower the version field.")
	}

	if err := validateBarman(cfg.Barman); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'barman' section of your config.")
	}

	if err := validatePackage(cfg.Package); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'package' section of your config.")
	}

	for _, name := range cfg.ServerNames() {
		if err := ValidateServerName(name); err != nil {
			return err
		}
		if err := validateServer(name, cfg.Servers[name]); err != nil {
			return err
		}
	}

	if err := validateKeys(cfg.Keys); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'keys' section of your config.")
	}

	if err := validateLock(cfg.Lock); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'lock' section of your config.")
	}

	if cfg.Check.Enabled {
		if strings.TrimSpace(cfg.Check.Command) == "" {
			return errors.New(errors.ErrConfig,
				"check.command is empty",
				"Set it to the barman executable, or disable checks with check.enabled: false.")
		}
		if cfg.Check.Timeout <= 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("check.timeout must be positive (got %s)", cfg.Check.Timeout),
				"Use a duration like 2m.")
		}
	}

	if !ValidColorModes[cfg.Output.Color] {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown output.color '%s'", cfg.Output.Color),
			"Use auto, always, or never.")
	}

	return nil
}

func validateBarman(b BarmanConfig) error {
	if b.User == "" {
		return fmt.Errorf("barman.user is required")
	}
	if b.Group == "" {
		return fmt.Errorf("barman.group is required")
	}

	paths := []struct {
		key   string
		value string
	}{
		{"barman.home", b.Home},
		{"barman.logfile", b.Logfile},
		{"barman.conf_file", b.ConfFile},
		{"barman.conf_dir", b.ConfDir},
		{"barman.logrotate_file", b.LogrotateFile},
	}
	for _, p := range paths {
		if !filepath.IsAbs(p.value) {
			return fmt.Errorf("%s must be an absolute path (got '%s')", p.key, p.value)
		}
	}

	if c := Compression(b.Compression); c != "" && !ValidCompressions[c] {
		return fmt.Errorf("unknown compression '%s'", b.Compression)
	}

	return nil
}

func validatePackage(p PackageConfig) error {
	if !p.Manage {
		return nil
	}
	if p.Name == "" {
		return fmt.Errorf("package.name is required when package.manage is on")
	}
	for key, cmd := range map[string]string{
		"package.query_command":   p.QueryCommand,
		"package.install_command": p.InstallCommand,
	} {
		if strings.Count(cmd, "%s") != 1 {
			return fmt.Errorf("%s must contain exactly one %%s for the package name (got '%s')", key, cmd)
		}
	}
	return nil
}

func validateServer(name string, s Server) error {
	if strings.TrimSpace(s.Conninfo) == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Must pass conninfo to server %s", name),
			"Add a libpq connection string, e.g. conninfo: host=pg1 user=barman dbname=postgres")
	}
	if strings.TrimSpace(s.SSHCommand) == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Must pass ssh_command to server %s", name),
			"Add the command barman uses to reach the server, e.g. ssh_command: ssh postgres@pg1")
	}
	if c := s.EffectiveCompression(); c != "" && !ValidCompressions[c] {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server %s has unknown compression '%s'", name, s.Compression),
			"Use gzip, bzip2, pigz, pygzip, pybzip2, custom, or false.")
	}
	return nil
}

func validateKeys(k KeysConfig) error {
	for _, account := range k.Accounts {
		if strings.TrimSpace(account) == "" {
			return fmt.Errorf("keys.accounts contains an empty account name")
		}
	}
	if !ValidKeyTypes[k.KeyType] {
		return fmt.Errorf("unknown keys.key_type '%s' (use rsa, ed25519, or ecdsa)", k.KeyType)
	}
	if !ValidImpersonations[k.Impersonation] {
		return fmt.Errorf("unknown keys.impersonation '%s' (use su, sudo, or none)", k.Impersonation)
	}
	if k.Timeout <= 0 {
		return fmt.Errorf("keys.timeout must be positive (got %s)", k.Timeout)
	}
	if k.PasswdFile != "" && !filepath.IsAbs(k.PasswdFile) {
		return fmt.Errorf("keys.passwd_file must be an absolute path (got '%s')", k.PasswdFile)
	}
	return nil
}

func validateLock(l LockConfig) error {
	if !l.Enabled {
		return nil
	}
	if l.Dir == "" {
		return fmt.Errorf("lock.dir is required when locking is enabled")
	}
	if l.Timeout <= 0 {
		return fmt.Errorf("lock.timeout must be positive (got %s)", l.Timeout)
	}
	return nil
}
