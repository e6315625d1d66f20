package doctor

import (
	"fmt"

	"github.com/rileyhilliard/barmanctl/internal/keys"
)

// KeyPeeker reports an account's key without generating it.
type KeyPeeker interface {
	Peek(name string) (keys.Result, bool)
}

// AccountCheck verifies a service account resolves to a usable home and
// reports the state of its key.
type AccountCheck struct {
	Account string
	Keys    KeyPeeker
}

func (c *AccountCheck) Name() string     { return "account_" + c.Account }
func (c *AccountCheck) Category() string { return "ACCOUNTS" }

func (c *AccountCheck) Run() CheckResult {
	res, pending := c.Keys.Peek(c.Account)

	switch {
	case res.Status == keys.Found:
		msg := c.Account + ": key present"
		if fp, err := keys.Fingerprint(res.Key); err == nil {
			msg = fmt.Sprintf("%s: %s", c.Account, fp)
		}
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: msg}

	case res.Status == keys.NotProvisioned && pending:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    c.Account + ": no key yet",
			Suggestion: fmt.Sprintf("Run 'barmanctl key %s' or 'barmanctl apply' to generate it.", c.Account),
		}

	case res.Status == keys.NotProvisioned:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    c.Account + ": no such account, its key fact will be empty",
			Suggestion: "Create the account, or remove it from keys.accounts.",
		}

	default:
		if res.Err == nil {
			return CheckResult{Name: c.Name(), Status: StatusFail, Message: c.Account + ": key check failed"}
		}
		return fromError(c.Name(), StatusFail, c.Account+": ", res.Err)
	}
}

// NewAccountChecks creates one check per configured account.
func NewAccountChecks(accounts []string, peeker KeyPeeker) []Check {
	checks := make([]Check, 0, len(accounts))
	for _, name := range accounts {
		checks = append(checks, &AccountCheck{Account: name, Keys: peeker})
	}
	return checks
}
