package doctor

import (
	"fmt"
	"os"

	"github.com/rileyhilliard/barmanctl/internal/config"
	"github.com/rileyhilliard/barmanctl/internal/sshconfig"
)

// SSHConfigCheck verifies the barman account's ~/.ssh/config parses.
type SSHConfigCheck struct {
	Home string
}

func (c *SSHConfigCheck) Name() string     { return "ssh_config" }
func (c *SSHConfigCheck) Category() string { return "SSH" }

func (c *SSHConfigCheck) Run() CheckResult {
	path := sshconfig.ConfigPath(c.Home)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No " + path + ", ssh_command targets are used as written",
		}
	}

	if _, err := sshconfig.NewResolver(path, c.Home); err != nil {
		return fromError(c.Name(), StatusFail, "", err)
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "SSH config: " + path,
	}
}

// ServerSSHCheck resolves one server's ssh_command.
type ServerSSHCheck struct {
	Server   string
	Command  string
	Resolver *sshconfig.Resolver
}

func (c *ServerSSHCheck) Name() string     { return "server_" + c.Server }
func (c *ServerSSHCheck) Category() string { return "SERVERS" }

func (c *ServerSSHCheck) Run() CheckResult {
	endpoint, err := c.Resolver.ResolveCommand(c.Command)
	if err != nil {
		// barman runs whatever ssh_command says; wrappers are legitimate
		return fromError(c.Name(), StatusWarn, c.Server+": ", err)
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: %s", c.Server, endpoint),
	}
}

// NewSSHChecks creates the ssh config check and one check per server. A
// config that doesn't parse is reported by the first check; servers then
// resolve as written.
func NewSSHChecks(cfg *config.Config) []Check {
	home := cfg.Barman.Home
	checks := []Check{&SSHConfigCheck{Home: home}}

	resolver, err := sshconfig.NewResolver(sshconfig.ConfigPath(home), home)
	if err != nil {
		resolver = &sshconfig.Resolver{}
	}
	for _, name := range cfg.ServerNames() {
		checks = append(checks, &ServerSSHCheck{
			Server:   name,
			Command:  cfg.Servers[name].SSHCommand,
			Resolver: resolver,
		})
	}
	return checks
}
