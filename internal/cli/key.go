package cli

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/keys"
	"github.com/rileyhilliard/barmanctl/internal/ui"
)

// KeyOptions holds options for the key command.
type KeyOptions struct {
	Account     string
	Fingerprint bool // print the fingerprint instead of the key
	NoGenerate  bool // report only, never run ssh-keygen
}

// keyOutput is the JSON shape of one account's key.
type keyOutput struct {
	Account     string      `json:"account"`
	Status      keys.Status `json:"status"`
	Key         string      `json:"key"`
	Fingerprint string      `json:"fingerprint,omitempty"`
	Generated   bool        `json:"generated,omitempty"`
	Error       string      `json:"error,omitempty"`
}

func newKeyOutput(res keys.Result) keyOutput {
	out := keyOutput{
		Account:   res.Account,
		Status:    res.Status,
		Key:       res.Fact(),
		Generated: res.Generated,
	}
	if out.Key != "" {
		// A key we can't parse is still the fact; it just has no fingerprint.
		out.Fingerprint, _ = keys.Fingerprint(out.Key)
	}
	if res.Err != nil {
		if je := ErrorToJSON(res.Err); je != nil {
			out.Error = je.Message
		}
	}
	return out
}

// keyCommand prints the public key of one account.
func keyCommand(ctx context.Context, e *env, opts KeyOptions) error {
	p := e.provisioner()

	var res keys.Result
	if opts.NoGenerate {
		res, _ = p.Peek(opts.Account)
	} else {
		res = provisionWithSpinner(ctx, e, p, opts.Account)
	}

	if machineMode {
		if err := writeJSONResult(e.out, newKeyOutput(res), res.Err); err != nil {
			return err
		}
		if res.Status == keys.Failed {
			return errors.NewExitError(1)
		}
		return nil
	}

	switch res.Status {
	case keys.Found:
		if opts.Fingerprint {
			fp, err := keys.Fingerprint(res.Key)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, fp)
			return nil
		}
		fmt.Fprintln(e.out, res.Key)
	case keys.NotProvisioned:
		msg := fmt.Sprintf("%s No account named %s; the key fact is empty", ui.SymbolSkipped, opts.Account)
		if opts.NoGenerate && accountExists(e, opts.Account) {
			msg = fmt.Sprintf("%s %s has no key yet", ui.SymbolPending, opts.Account)
		}
		fmt.Fprintln(e.errOut, ui.WarningStyle().Render(msg))
	case keys.Failed:
		return res.Err
	}
	return nil
}

// provisionWithSpinner runs Provision, showing a spinner on the terminal
// when ssh-keygen is about to run.
func provisionWithSpinner(ctx context.Context, e *env, p *keys.Provisioner, name string) keys.Result {
	if !e.interactive {
		return p.Provision(ctx, name)
	}
	if _, pending := p.Peek(name); !pending {
		return p.Provision(ctx, name)
	}

	spinner := ui.NewSpinner("Generating SSH key for " + name)
	spinner.SetWriter(e.errOut, true)
	spinner.Start()

	res := p.Provision(ctx, name)
	switch res.Status {
	case keys.Found:
		fp, _ := keys.Fingerprint(res.Key)
		spinner.Success(fp)
	case keys.Failed:
		spinner.Fail("")
	default:
		spinner.Skip("")
	}
	return res
}

func accountExists(e *env, name string) bool {
	_, ok, err := e.accounts.Find(name)
	return err == nil && ok
}
