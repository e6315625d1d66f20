package cli

import (
	"os"

	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	keyFingerprintFlag bool
	keyNoGenerateFlag  bool
	factsNoGenerate    bool
	factsTable         bool
	renderOutFlag      string
	applyDryRun        bool
	applyYes           bool
	serverDescription  string
	serverConninfo     string
	serverSSHCommand   string
	serverCompression  string
	serverInactive     bool
)

// keyCmd prints an account's public key, generating the pair on first use
var keyCmd = &cobra.Command{
	Use:   "key <account>",
	Short: "Print an account's public SSH key",
	Long: `Print the public key of a service account, generating the key pair
under ~account/.ssh on first use.

An account that doesn't exist prints nothing and exits 0, so the output
can be embedded as-is. A key that can't be provisioned is an error.

Examples:
  barmanctl key barman
  barmanctl key postgres --fingerprint
  barmanctl key barman --no-generate --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		return keyCommand(cmd.Context(), e, KeyOptions{
			Account:     args[0],
			Fingerprint: keyFingerprintFlag,
			NoGenerate:  keyNoGenerateFlag,
		})
	},
}

// factsCmd prints the <account>_key facts for every configured account
var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Print the key fact for every configured account",
	Long: `Provision and print <account>_key for each account in keys.accounts.

Accounts without a key get an empty value; problems are reported on
stderr and don't change the exit status.

Examples:
  barmanctl facts
  barmanctl facts --table
  barmanctl facts --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		return factsCommand(cmd.Context(), e, FactsOptions{
			NoGenerate: factsNoGenerate,
			Table:      factsTable,
		})
	},
}

// renderCmd shows the files apply would write
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Show the rendered barman config files",
	Long: `Render barman.conf, the per-server fragments, the logrotate stanza and
authorized_keys from the config without touching the host.

With --out the files are written under that directory instead, keeping
their absolute paths (so /etc/barman.conf lands in <out>/etc/barman.conf).

Examples:
  barmanctl render
  barmanctl render --out ./preview`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		return renderCommand(e, RenderOptions{Out: renderOutFlag})
	},
}

// applyCmd converges the host
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Install and configure barman on this host",
	Long: `Converge this host: the barman package, home directory, config files,
service account keys, authorized_keys, and a barman check for whatever
changed.

In a terminal the changes are previewed and confirmed first. --yes skips
the prompt; --dry-run only shows what would change.

Examples:
  barmanctl apply
  barmanctl apply --dry-run
  barmanctl apply --yes --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		return applyCommand(cmd.Context(), e, ApplyOptions{DryRun: applyDryRun, Yes: applyYes})
	},
}

// checkCmd runs barman check
var checkCmd = &cobra.Command{
	Use:   "check [server]",
	Short: "Run barman check for one server or all of them",
	Long: `Run barman check and exit with its status.

Examples:
  barmanctl check
  barmanctl check pg-main`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		server := ""
		if len(args) > 0 {
			server = args[0]
		}
		return checkCommand(cmd.Context(), e, server)
	},
}

// serversCmd lists configured servers
var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured servers and where they connect",
	Long: `List servers with the host, user and port their ssh_command resolves to
through the barman account's ~/.ssh/config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		return serversCommand(e)
	},
}

// serverCmd groups the server editing subcommands
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Add or remove servers in the config file",
}

var serverAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a server",
	Long: `Add a server to the config file, or replace one with the same name.
Comments and the rest of the file are left alone.

Examples:
  barmanctl server add pg-main --conninfo "host=pg-main user=barman dbname=postgres" \
    --ssh-command "ssh postgres@pg-main"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		return serverAddCommand(e, ServerAddOptions{
			Name:        args[0],
			Description: serverDescription,
			Conninfo:    serverConninfo,
			SSHCommand:  serverSSHCommand,
			Compression: serverCompression,
			Inactive:    serverInactive,
		})
	},
}

var serverRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a server",
	Long: `Remove a server from the config file. Its fragment in conf_dir stays
until the next apply with barman.purge_unknown_conf on.`,
	Args: cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return completeServerNames(args), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		return serverRemoveCommand(e, args[0])
	},
}

// doctorCmd runs the preflight checks
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check this host is ready for apply",
	Long: `Run read-only checks: the config file, the tools apply runs, each
account's key, the barman account's SSH config and where every server's
ssh_command goes, and the lock directory.

Exits 1 when a check fails. Warnings don't change the exit status.

Examples:
  barmanctl doctor
  barmanctl doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// A nil env runs the config checks only; they report the load error.
		e, _ := loadEnv(cmd)
		return doctorCommand(cmd.OutOrStdout(), Config(), e)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for barmanctl.

Examples:
  # Bash
  barmanctl completion bash > /etc/bash_completion.d/barmanctl

  # Zsh
  barmanctl completion zsh > "${fpath[1]}/_barmanctl"

  # Fish
  barmanctl completion fish > ~/.config/fish/completions/barmanctl.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrExec,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	keyCmd.Flags().BoolVar(&keyFingerprintFlag, "fingerprint", false, "print the SHA256 fingerprint instead of the key")
	keyCmd.Flags().BoolVar(&keyNoGenerateFlag, "no-generate", false, "report the current key without running ssh-keygen")

	factsCmd.Flags().BoolVar(&factsNoGenerate, "no-generate", false, "report current keys without running ssh-keygen")
	factsCmd.Flags().BoolVar(&factsTable, "table", false, "show a status table instead of YAML")

	renderCmd.Flags().StringVar(&renderOutFlag, "out", "", "write the files under this directory")

	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "show what would change without changing anything")
	applyCmd.Flags().BoolVarP(&applyYes, "yes", "y", false, "don't ask for confirmation")

	serverAddCmd.Flags().StringVar(&serverDescription, "description", "", "free-form description")
	serverAddCmd.Flags().StringVar(&serverConninfo, "conninfo", "", "libpq connection string (required)")
	serverAddCmd.Flags().StringVar(&serverSSHCommand, "ssh-command", "", "command barman uses to reach the server (required)")
	serverAddCmd.Flags().StringVar(&serverCompression, "compression", "", "WAL compression (default gzip, 'false' to disable)")
	serverAddCmd.Flags().BoolVar(&serverInactive, "inactive", false, "add the server with active = false")
	_ = serverAddCmd.MarkFlagRequired("conninfo")
	_ = serverAddCmd.MarkFlagRequired("ssh-command")

	serverCmd.AddCommand(serverAddCmd)
	serverCmd.AddCommand(serverRemoveCmd)

	keyCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return completeAccounts(args), cobra.ShellCompDirectiveNoFileComp
	}
	checkCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return completeServerNames(args), cobra.ShellCompDirectiveNoFileComp
	}

	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(completionCmd)
}
