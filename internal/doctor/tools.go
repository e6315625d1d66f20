package doctor

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/rileyhilliard/barmanctl/internal/config"
)

// ToolCheck verifies a command barmanctl runs is on PATH.
type ToolCheck struct {
	Tool       string
	Purpose    string
	Suggestion string
	// Optional tools only warn when missing.
	Optional bool
	// LookPath defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

func (c *ToolCheck) Name() string     { return "tool_" + c.Tool }
func (c *ToolCheck) Category() string { return "TOOLS" }

func (c *ToolCheck) Run() CheckResult {
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	path, err := lookPath(c.Tool)
	if err != nil {
		status := StatusFail
		if c.Optional {
			status = StatusWarn
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     status,
			Message:    fmt.Sprintf("%s not found (%s)", c.Tool, c.Purpose),
			Suggestion: c.Suggestion,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: %s", c.Tool, path),
	}
}

// NewToolChecks creates checks for every external command the config
// makes barmanctl run. lookPath may be nil.
func NewToolChecks(cfg *config.Config, lookPath func(string) (string, error)) []Check {
	checks := []Check{
		&ToolCheck{
			Tool:       "ssh-keygen",
			Purpose:    "generates service account keys",
			Suggestion: "Install the OpenSSH client: apt-get install openssh-client",
			LookPath:   lookPath,
		},
	}

	if imp := cfg.Keys.Impersonation; imp != "none" {
		checks = append(checks, &ToolCheck{
			Tool:       imp,
			Purpose:    "runs ssh-keygen as the account",
			Suggestion: "Install it, or change keys.impersonation.",
			LookPath:   lookPath,
		})
	}

	if cfg.Package.Manage {
		if tool := firstWord(cfg.Package.QueryCommand); tool != "" {
			checks = append(checks, &ToolCheck{
				Tool:       tool,
				Purpose:    "checks whether " + cfg.Package.Name + " is installed",
				Suggestion: "Set package.query_command and package.install_command for this distribution.",
				LookPath:   lookPath,
			})
		}
	}

	if cfg.Check.Enabled {
		if tool := firstWord(cfg.Check.Command); tool != "" {
			// apply installs it when the package is managed
			checks = append(checks, &ToolCheck{
				Tool:       tool,
				Purpose:    "runs barman check after apply",
				Suggestion: "Run 'barmanctl apply' to install " + cfg.Package.Name + ", or set check.command.",
				Optional:   cfg.Package.Manage,
				LookPath:   lookPath,
			})
		}
	}

	return checks
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
