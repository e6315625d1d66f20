package cli

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/barmanctl/internal/apply"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/keys"
	"github.com/rileyhilliard/barmanctl/internal/ui"
	"gopkg.in/yaml.v3"
)

// FactsOptions holds options for the facts command.
type FactsOptions struct {
	NoGenerate bool
	Table      bool
}

// factsOutput is the JSON shape of the facts command.
type factsOutput struct {
	Facts    map[string]string `json:"facts"`
	Accounts []keyOutput       `json:"accounts"`
}

// factsCommand provisions every configured account and prints the facts.
// Failures only produce warnings: a fact is always emitted.
func factsCommand(ctx context.Context, e *env, opts FactsOptions) error {
	p := e.provisioner()

	results := make([]keys.Result, 0, len(e.cfg.Keys.Accounts))
	for _, name := range e.cfg.Keys.Accounts {
		if opts.NoGenerate {
			res, _ := p.Peek(name)
			results = append(results, res)
			continue
		}
		results = append(results, provisionWithSpinner(ctx, e, p, name))
	}

	report := &apply.Report{Keys: results}
	facts := report.Facts()

	if machineMode {
		out := factsOutput{Facts: facts, Accounts: make([]keyOutput, len(results))}
		for i, res := range results {
			out.Accounts[i] = newKeyOutput(res)
		}
		return WriteJSONSuccess(e.out, out)
	}

	for _, res := range results {
		if res.Status == keys.Failed {
			fmt.Fprintln(e.errOut, ui.WarningStyle().Render(
				fmt.Sprintf("%s %s_key is empty: %s", ui.SymbolFail, res.Account, errorHeadline(res.Err))))
		}
	}

	if opts.Table {
		rows := make([]ui.KeyRow, len(results))
		for i, res := range results {
			fp := ""
			if res.Status == keys.Found {
				fp, _ = keys.Fingerprint(res.Key)
			}
			rows[i] = ui.KeyRow{Account: res.Account, Status: res.Status.String(), Fingerprint: fp}
		}
		fmt.Fprintln(e.out, ui.RenderKeyTable(rows))
		return nil
	}

	data, err := yaml.Marshal(facts)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrKey,
			"Couldn't encode the facts as YAML",
			"Try --json instead.")
	}
	_, err = e.out.Write(data)
	return err
}

// errorHeadline returns the message of a structured error without its
// cause and suggestion.
func errorHeadline(err error) string {
	if je := ErrorToJSON(err); je != nil {
		return je.Message
	}
	return ""
}
