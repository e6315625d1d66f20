package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/barmanctl/internal/errors"
)

// commandNotFoundPatterns are regex patterns to detect "command not found" errors
// from various shells. These require exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)(\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
}

// IsCommandNotFound checks if the error output indicates a missing command.
// Returns the command name (if extractable) and whether it's a command-not-found error.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	// Exit code 127 is the standard for command not found
	if exitCode != 127 {
		return "", false
	}

	for _, pattern := range commandNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}

	// Exit code is 127 but couldn't extract command name
	return "", true
}

// HandleExecError turns a command-not-found exit into a structured error with
// a fix. Any other result returns nil and is left to the caller.
func HandleExecError(cmd string, stderr string, exitCode int) error {
	cmdName, notFound := IsCommandNotFound(stderr, exitCode)
	if !notFound {
		return nil
	}

	if cmdName == "" {
		if parts := strings.Fields(cmd); len(parts) > 0 {
			cmdName = parts[0]
		} else {
			cmdName = "command"
		}
	}

	suggestion := fmt.Sprintf(`'%s' wasn't found in PATH on this host.

Fixes:

1. Install the barman package (or let barmanctl do it with package.manage: true)

2. If it's installed somewhere unusual, set an absolute path:
   check:
     command: /opt/barman/bin/%s`, cmdName, cmdName)

	return errors.New(errors.ErrExec,
		fmt.Sprintf("'%s' not found in PATH", cmdName),
		suggestion)
}
