package cli

import (
	"fmt"

	"github.com/rileyhilliard/barmanctl/internal/config"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/render"
	"github.com/rileyhilliard/barmanctl/internal/sshconfig"
	"github.com/rileyhilliard/barmanctl/internal/ui"
)

// serverOutput is one server in `servers --json`. conninfo is left out
// because it may carry a password.
type serverOutput struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Active      bool                `json:"active"`
	SSHCommand  string              `json:"ssh_command"`
	Endpoint    *sshconfig.Endpoint `json:"endpoint,omitempty"`
	Compression string              `json:"compression"`
	Conf        string              `json:"conf"`
	Problem     string              `json:"problem,omitempty"`
}

// listServers resolves every configured server's ssh_command against the
// barman account's ssh config.
func listServers(e *env) ([]serverOutput, error) {
	home := e.cfg.Barman.Home
	resolver, err := sshconfig.NewResolver(sshconfig.ConfigPath(home), home)
	if err != nil {
		return nil, err
	}

	names := e.cfg.ServerNames()
	servers := make([]serverOutput, 0, len(names))
	for _, name := range names {
		srv := e.cfg.Servers[name]
		out := serverOutput{
			Name:        name,
			Description: srv.Description,
			Active:      srv.Active == nil || *srv.Active,
			SSHCommand:  srv.SSHCommand,
			Compression: srv.EffectiveCompression(),
			Conf:        render.ServerConfPath(e.cfg, name),
		}
		if endpoint, err := resolver.ResolveCommand(srv.SSHCommand); err != nil {
			out.Problem = errorHeadline(err)
		} else {
			out.Endpoint = &endpoint
		}
		servers = append(servers, out)
	}
	return servers, nil
}

// serversCommand prints the configured servers.
func serversCommand(e *env) error {
	servers, err := listServers(e)
	if err != nil {
		return err
	}

	if machineMode {
		return WriteJSONSuccess(e.out, servers)
	}

	rows := make([]ui.ServerRow, len(servers))
	for i, s := range servers {
		rows[i] = ui.ServerRow{
			Name:        s.Name,
			Active:      s.Active,
			Compression: s.Compression,
			Problem:     s.Problem,
		}
		if s.Endpoint != nil {
			rows[i].Endpoint = s.Endpoint.String()
		}
	}
	fmt.Fprintln(e.out, ui.RenderServerTable(rows))
	return nil
}

// ServerAddOptions holds options for the server add command.
type ServerAddOptions struct {
	Name        string
	Description string
	Conninfo    string
	SSHCommand  string
	Compression string
	Inactive    bool
}

// serverAddCommand writes a server entry to the config file.
func serverAddCommand(e *env, opts ServerAddOptions) error {
	srv := config.Server{
		Description: opts.Description,
		Conninfo:    opts.Conninfo,
		SSHCommand:  opts.SSHCommand,
		Compression: opts.Compression,
	}
	if opts.Inactive {
		inactive := false
		srv.Active = &inactive
	}

	path := configTarget(e)
	_, replaced := e.cfg.Servers[opts.Name]
	if err := config.SetServer(path, opts.Name, srv); err != nil {
		return configWriteError(err, path)
	}

	verb := "Added"
	if replaced {
		verb = "Updated"
	}
	if machineMode {
		return WriteJSONSuccess(e.out, map[string]interface{}{
			"name":    opts.Name,
			"config":  path,
			"updated": replaced,
		})
	}
	fmt.Fprintf(e.out, "%s %s server %s in %s\n",
		ui.SuccessStyle().Render(ui.SymbolSuccess), verb, opts.Name, path)
	fmt.Fprintln(e.out, ui.MutedStyle().Render("  Run 'barmanctl apply' to write its config."))
	return nil
}

// serverRemoveCommand deletes a server entry from the config file.
func serverRemoveCommand(e *env, name string) error {
	if err := requireServer(e, name); err != nil {
		return err
	}

	path := configTarget(e)
	removed, err := config.RemoveServer(path, name)
	if err != nil {
		return configWriteError(err, path)
	}
	if !removed {
		// Configured through the environment, not the file.
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server '%s' isn't in %s", name, path),
			"It may come from a BARMANCTL_ environment variable.")
	}

	if machineMode {
		return WriteJSONSuccess(e.out, map[string]interface{}{
			"name":   name,
			"config": path,
		})
	}
	fmt.Fprintf(e.out, "%s Removed server %s from %s\n",
		ui.SuccessStyle().Render(ui.SymbolSuccess), name, path)
	return nil
}

// configTarget is the file server add/remove edit: the loaded config, or
// the default location when running on defaults.
func configTarget(e *env) string {
	if e.cfgPath != "" {
		return e.cfgPath
	}
	return config.DefaultConfigPath
}

func configWriteError(err error, path string) error {
	if errors.CodeOf(err) != "" {
		return err
	}
	return errors.WrapWithCode(err, errors.ErrConfig,
		"Couldn't update "+path,
		"Check the file is valid YAML and writable.")
}

// completeServerNames offers configured servers for the first argument.
func completeServerNames(args []string) []string {
	if len(args) > 0 {
		return nil
	}
	cfg, _, err := config.LoadOrDefault(Config())
	if err != nil {
		return nil
	}
	return cfg.ServerNames()
}

// completeAccounts offers keys.accounts for the first argument.
func completeAccounts(args []string) []string {
	if len(args) > 0 {
		return nil
	}
	cfg, _, err := config.LoadOrDefault(Config())
	if err != nil {
		return nil
	}
	return cfg.Keys.Accounts
}
