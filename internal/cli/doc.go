// Package cli implements the barmanctl command-line interface.
//
// Each Cobra command parses flags, builds an env (loaded config plus the
// runner, filesystem and account lookup the command needs) and hands off
// to a *Command function that takes the env explicitly. Tests build the
// env by hand with fakes and call those functions directly.
//
//	barmanctl key <account>        - Print (and provision) an account's public key
//	barmanctl facts                - <account>_key for every configured account
//	barmanctl render               - Show or export the rendered config files
//	barmanctl apply                - Converge this host
//	barmanctl check [server]       - Run barman check
//	barmanctl servers              - List servers and where their ssh_command goes
//	barmanctl server add|remove    - Edit servers in the config file
//	barmanctl doctor               - Preflight checks for this host
//	barmanctl version              - Print version information
//
// Global flags (--config, --verbose, --json, --no-color) live on the root
// command. --json switches every command to the {success, data, error}
// envelope written by WriteJSONSuccess and WriteJSONFromError.
package cli
