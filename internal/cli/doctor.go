package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/barmanctl/internal/doctor"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/ui"
)

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

// doctorCommand runs the preflight checks. e is nil when the config didn't
// load; only the config checks run then, and they say why.
func doctorCommand(w io.Writer, cfgPath string, e *env) error {
	checks := doctorChecks(cfgPath, e)
	results := doctor.RunAll(checks)
	output := groupResults(checks, results)

	if machineMode {
		var failure error
		if doctor.HasFailures(results) {
			failure = errors.New(errors.ErrExec,
				"Doctor found problems: "+doctor.Summary(results),
				"Fix the failed checks and run 'barmanctl doctor' again.")
		}
		if err := writeJSONResult(w, output, failure); err != nil {
			return err
		}
	} else {
		outputDoctorText(w, output, results)
	}

	if doctor.HasFailures(results) {
		return errors.NewExitError(1)
	}
	return nil
}

// doctorChecks gathers checks for whatever the config allows.
func doctorChecks(cfgPath string, e *env) []doctor.Check {
	checks := doctor.NewConfigChecks(cfgPath)
	if e == nil {
		return checks
	}

	checks = append(checks, doctor.NewToolChecks(e.cfg, e.lookPath)...)
	checks = append(checks, doctor.NewAccountChecks(e.cfg.Keys.Accounts, e.provisioner())...)
	checks = append(checks, doctor.NewSSHChecks(e.cfg)...)
	if e.cfg.Lock.Enabled {
		checks = append(checks, &doctor.LockDirCheck{Dir: e.cfg.Lock.Dir, Fs: e.fs})
	}
	return checks
}

func groupResults(checks []doctor.Check, results []doctor.CheckResult) DoctorOutput {
	grouped := make(map[string][]doctor.CheckResult)
	for i, check := range checks {
		grouped[check.Category()] = append(grouped[check.Category()], results[i])
	}

	output := DoctorOutput{Categories: make([]CategoryOutput, 0, len(grouped))}
	for _, cat := range doctor.Categories {
		if len(grouped[cat]) == 0 {
			continue
		}
		output.Categories = append(output.Categories, CategoryOutput{Name: cat, Results: grouped[cat]})
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		AllClear: !doctor.HasIssues(results),
	}
	return output
}

func outputDoctorText(w io.Writer, output DoctorOutput, results []doctor.CheckResult) {
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("barmanctl diagnostic report"))
	fmt.Fprintln(w)

	for _, category := range output.Categories {
		fmt.Fprintln(w, headerStyle.Render(category.Name))
		for _, result := range category.Results {
			renderCheckResult(w, result)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, ui.FormatDivider(ui.DividerWidth))
	fmt.Fprintln(w)

	if doctor.HasIssues(results) {
		fmt.Fprintf(w, "%s %s\n", ui.ErrorStyle().Render(ui.SymbolFail), doctor.Summary(results))
	} else {
		fmt.Fprintf(w, "%s %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), doctor.Summary(results))
	}
	fmt.Fprintln(w)
}

func renderCheckResult(w io.Writer, result doctor.CheckResult) {
	symbol, style := ui.SymbolSuccess, ui.SuccessStyle()
	switch result.Status {
	case doctor.StatusWarn:
		symbol, style = ui.SymbolSkipped, ui.WarningStyle()
	case doctor.StatusFail:
		symbol, style = ui.SymbolFail, ui.ErrorStyle()
	}

	fmt.Fprintf(w, "  %s %s\n", style.Render(symbol), result.Message)

	if result.Suggestion != "" && result.Status != doctor.StatusPass {
		for _, line := range strings.Split(result.Suggestion, "\n") {
			fmt.Fprintf(w, "    %s\n", ui.MutedStyle().Render(line))
		}
	}
}
