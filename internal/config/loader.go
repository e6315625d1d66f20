package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is where barmanctl looks when --config isn't given.
	DefaultConfigPath = "/etc/barmanctl/barmanctl.yaml"
	// ConfigFileName is the config file name searched in the working directory.
	ConfigFileName = "barmanctl.yaml"
	// EnvPrefix prefixes environment overrides, e.g. BARMANCTL_BARMAN_HOME.
	EnvPrefix = "BARMANCTL"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found: "+path,
				"Create it, or point at one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	cfg, err := parseConfig(v, path)
	if err != nil {
		return nil, err
	}
	if err := restoreServerNames(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// restoreServerNames undoes viper's lowercasing of map keys so server
// names are validated and rendered as written in the file.
func restoreServerNames(cfg *Config, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is readable")
	}

	var raw struct {
		Servers map[string]yaml.Node `yaml:"servers"`
	}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	for name := range raw.Servers {
		lower := strings.ToLower(name)
		if lower == name {
			continue
		}
		if srv, ok := cfg.Servers[lower]; ok {
			delete(cfg.Servers, lower)
			cfg.Servers[name] = srv
		}
	}
	return nil
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. barmanctl.yaml in the current directory
// 3. /etc/barmanctl/barmanctl.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ConfigFileName)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath, nil
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults
// (with environment overrides applied) if no file exists.
// The returned path is empty when defaults were used.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "defaults")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// LoadAndValidate is LoadOrDefault followed by Validate.
func LoadAndValidate(explicit string) (*Config, string, error) {
	cfg, path, err := LoadOrDefault(explicit)
	if err != nil {
		return nil, path, err
	}
	if err := Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	// Slices decode element-wise into existing values, so list defaults
	// come from viper instead of the struct.
	cfg.Keys.Accounts = nil

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	if cfg.Servers == nil {
		cfg.Servers = make(map[string]Server)
	}

	return cfg, nil
}

// setDefaults registers defaults with viper so environment overrides and
// partial files resolve against them.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("version", d.Version)
	v.SetDefault("barman.user", d.Barman.User)
	v.SetDefault("barman.group", d.Barman.Group)
	v.SetDefault("barman.home", d.Barman.Home)
	v.SetDefault("barman.logfile", d.Barman.Logfile)
	v.SetDefault("barman.log_level", d.Barman.LogLevel)
	v.SetDefault("barman.compression", d.Barman.Compression)
	v.SetDefault("barman.pre_backup_script", "")
	v.SetDefault("barman.post_backup_script", "")
	v.SetDefault("barman.custom_lines", "")
	v.SetDefault("barman.conf_file", d.Barman.ConfFile)
	v.SetDefault("barman.conf_dir", d.Barman.ConfDir)
	v.SetDefault("barman.logrotate_file", d.Barman.LogrotateFile)
	v.SetDefault("barman.purge_unknown_conf", false)
	v.SetDefault("package.name", d.Package.Name)
	v.SetDefault("package.manage", d.Package.Manage)
	v.SetDefault("package.query_command", d.Package.QueryCommand)
	v.SetDefault("package.install_command", d.Package.InstallCommand)
	v.SetDefault("keys.accounts", d.Keys.Accounts)
	v.SetDefault("keys.key_type", d.Keys.KeyType)
	v.SetDefault("keys.timeout", d.Keys.Timeout.String())
	v.SetDefault("keys.impersonation", d.Keys.Impersonation)
	v.SetDefault("keys.passwd_file", "")
	v.SetDefault("keys.authorized_peer_key", "")
	v.SetDefault("lock.enabled", d.Lock.Enabled)
	v.SetDefault("lock.dir", d.Lock.Dir)
	v.SetDefault("lock.timeout", d.Lock.Timeout.String())
	v.SetDefault("check.enabled", d.Check.Enabled)
	v.SetDefault("check.command", d.Check.Command)
	v.SetDefault("check.timeout", d.Check.Timeout.String())
	v.SetDefault("output.color", d.Output.Color)
}
