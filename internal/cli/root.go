package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/logger"
	"github.com/rileyhilliard/barmanctl/internal/ui"
	"github.com/rileyhilliard/barmanctl/internal/util"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile     string
	verboseFlag bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "barmanctl",
	Short: "Configure Barman backup hosts",
	Long: `barmanctl installs and configures Barman on a backup host: the package,
barman.conf and per-server fragments, log rotation, the barman home
directory, SSH keys for the service accounts and the follow-up barman check.

It also reports each service account's public key so the database hosts
can trust the backup host.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verboseFlag)
		if noColorFlag || machineMode {
			ui.DisableColors()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./barmanctl.yaml or /etc/barmanctl/barmanctl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "show debug output and unchanged steps")
	rootCmd.PersistentFlags().BoolVar(&machineMode, "json", false, "print machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
}

// Config returns the --config flag value.
func Config() string {
	return cfgFile
}

// Verbose returns true when --verbose was passed.
func Verbose() bool {
	return verboseFlag
}

// Execute runs the root command and exits with the right status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(handleError(os.Stdout, os.Stderr, err))
	}
}

// handleError reports err and returns the process exit code.
func handleError(stdout, stderr io.Writer, err error) int {
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}

	if machineMode {
		_ = WriteJSONFromError(stdout, err)
		return 1
	}

	if isUnknownCommandError(err) {
		fmt.Fprintln(stderr, ui.ErrorStyle().Render(ui.SymbolFail+" "+err.Error()))
		if name := extractUnknownCommand(err); name != "" {
			if similar := util.SuggestSimilar(name, commandNames(), 3); len(similar) > 0 {
				fmt.Fprintf(stderr, "\n  Did you mean: %s\n", strings.Join(similar, ", "))
			}
		}
		fmt.Fprintln(stderr, "\n  Run 'barmanctl --help' for usage.")
		return 1
	}

	msg := err.Error()
	if errors.CodeOf(err) == "" {
		msg = ui.SymbolFail + " " + msg + "\n"
	}
	fmt.Fprint(stderr, msg)
	return 1
}

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls foo out of `unknown command "foo" for "barmanctl"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start == -1 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end == -1 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

func commandNames() []string {
	var names []string
	for _, c := range rootCmd.Commands() {
		if !c.Hidden {
			names = append(names, c.Name())
		}
	}
	return names
}
