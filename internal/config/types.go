package config

import (
	"sort"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete barmanctl.yaml configuration file.
type Config struct {
	Version int               `yaml:"version" mapstructure:"version"`
	Barman  BarmanConfig      `yaml:"barman" mapstructure:"barman"`
	Package PackageConfig     `yaml:"package" mapstructure:"package"`
	Servers map[string]Server `yaml:"servers" mapstructure:"servers"`
	Keys    KeysConfig        `yaml:"keys" mapstructure:"keys"`
	Lock    LockConfig        `yaml:"lock" mapstructure:"lock"`
	Check   CheckConfig       `yaml:"check" mapstructure:"check"`
	Output  OutputConfig      `yaml:"output" mapstructure:"output"`
}

// BarmanConfig holds the global [barman] section and the files barmanctl manages.
type BarmanConfig struct {
	// User and Group own the home directory and the generated key pair.
	User  string `yaml:"user" mapstructure:"user"`
	Group string `yaml:"group" mapstructure:"group"`

	// Home is barman_home; also where the barman account's .ssh lives.
	Home string `yaml:"home" mapstructure:"home"`

	Logfile  string `yaml:"logfile" mapstructure:"logfile"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`

	// Compression is the default WAL compression. "false", "none" or empty
	// leaves the line out of the rendered file.
	Compression string `yaml:"compression" mapstructure:"compression"`

	PreBackupScript  string `yaml:"pre_backup_script" mapstructure:"pre_backup_script"`
	PostBackupScript string `yaml:"post_backup_script" mapstructure:"post_backup_script"`

	// CustomLines are appended verbatim to the [barman] section.
	CustomLines string `yaml:"custom_lines" mapstructure:"custom_lines"`

	ConfFile      string `yaml:"conf_file" mapstructure:"conf_file"`
	ConfDir       string `yaml:"conf_dir" mapstructure:"conf_dir"`
	LogrotateFile string `yaml:"logrotate_file" mapstructure:"logrotate_file"`

	// PurgeUnknownConf removes *.conf fragments in ConfDir that don't belong
	// to a configured server.
	PurgeUnknownConf bool `yaml:"purge_unknown_conf" mapstructure:"purge_unknown_conf"`
}

// PackageConfig controls how the barman package is ensured present.
// The commands take the package name through a single %s verb.
type PackageConfig struct {
	Name           string `yaml:"name" mapstructure:"name"`
	Manage         bool   `yaml:"manage" mapstructure:"manage"`
	QueryCommand   string `yaml:"query_command" mapstructure:"query_command"`
	InstallCommand string `yaml:"install_command" mapstructure:"install_command"`
}

// Server is one PostgreSQL server backed up by barman, rendered into
// <conf_dir>/<name>.conf.
type Server struct {
	Description string `yaml:"description,omitempty" mapstructure:"description"`

	// Conninfo and SSHCommand are required.
	Conninfo   string `yaml:"conninfo,omitempty" mapstructure:"conninfo"`
	SSHCommand string `yaml:"ssh_command,omitempty" mapstructure:"ssh_command"`

	// Compression defaults to gzip when unset.
	Compression string `yaml:"compression,omitempty" mapstructure:"compression"`

	PreBackupScript  string `yaml:"pre_backup_script,omitempty" mapstructure:"pre_backup_script"`
	PostBackupScript string `yaml:"post_backup_script,omitempty" mapstructure:"post_backup_script"`
	CustomLines      string `yaml:"custom_lines,omitempty" mapstructure:"custom_lines"`

	// Active is nil when unset; only an explicit false is rendered.
	Active *bool `yaml:"active,omitempty" mapstructure:"active"`
}

// KeysConfig controls SSH key provisioning for service accounts.
type KeysConfig struct {
	// Accounts are provisioned by apply and reported by facts.
	Accounts []string `yaml:"accounts" mapstructure:"accounts"`

	// KeyType is passed to ssh-keygen -t. The file name stays id_rsa.
	KeyType string `yaml:"key_type" mapstructure:"key_type"`

	// Timeout bounds a single ssh-keygen run.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Impersonation selects how ssh-keygen runs as the account: su, sudo or none.
	Impersonation string `yaml:"impersonation" mapstructure:"impersonation"`

	// PasswdFile overrides the system account database with a passwd(5) file.
	PasswdFile string `yaml:"passwd_file" mapstructure:"passwd_file"`

	// AuthorizedPeerKey is the public key of the paired host, written to
	// the barman account's authorized_keys.
	AuthorizedPeerKey string `yaml:"authorized_peer_key" mapstructure:"authorized_peer_key"`
}

// LockConfig controls the per-account provisioning lock.
type LockConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CheckConfig controls the post-configuration barman check runs.
type CheckConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Command string        `yaml:"command" mapstructure:"command"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	Color string `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns a Config with the stock barman layout.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Barman: BarmanConfig{
			User:          "barman",
			Group:         "barman",
			Home:          "/var/lib/barman",
			Logfile:       "/var/log/barman/barman.log",
			LogLevel:      "INFO",
			Compression:   "gzip",
			ConfFile:      "/etc/barman.conf",
			ConfDir:       "/etc/barman.conf.d",
			LogrotateFile: "/etc/logrotate.d/barman",
		},
		Package: PackageConfig{
			Name:           "barman",
			Manage:         true,
			QueryCommand:   "dpkg -s %s",
			InstallCommand: "apt-get install -y %s",
		},
		Servers: make(map[string]Server),
		Keys: KeysConfig{
			Accounts:      []string{"barman", "postgres"},
			KeyType:       "rsa",
			Timeout:       30 * time.Second,
			Impersonation: "su",
		},
		Lock: LockConfig{
			Enabled: true,
			Dir:     "/run/lock/barmanctl",
			Timeout: time.Minute,
		},
		Check: CheckConfig{
			Enabled: true,
			Command: "barman",
			Timeout: 2 * time.Minute,
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}

// ServerNames returns the configured server names in sorted order.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
