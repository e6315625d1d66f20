package cli

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/barmanctl/internal/apply"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/logger"
	"github.com/rileyhilliard/barmanctl/internal/ui"
)

// ApplyOptions holds options for the apply command.
type ApplyOptions struct {
	DryRun bool
	Yes    bool // skip the confirmation prompt
}

// applyOutput is the JSON shape of an apply run.
type applyOutput struct {
	*apply.Report
	Summary string            `json:"summary"`
	Facts   map[string]string `json:"facts"`
}

// confirmApply asks before a terminal run changes the host. Swapped in tests.
var confirmApply = ui.Confirm

// applyCommand converges the host. Failed steps don't stop the run but
// make the command exit 1.
func applyCommand(ctx context.Context, e *env, opts ApplyOptions) error {
	if e.interactive && !opts.Yes && !opts.DryRun {
		proceed, err := previewAndConfirm(ctx, e)
		if err != nil || !proceed {
			return err
		}
	}

	a := e.applier()
	a.DryRun = opts.DryRun

	var report *apply.Report
	var err error
	switch {
	case machineMode:
		report, err = a.Apply(ctx)
		out := applyOutput{Report: report, Summary: report.Summary(), Facts: report.Facts()}
		if werr := writeJSONResult(e.out, out, failureError(report, err)); werr != nil {
			return werr
		}
		if err != nil || report.HasFailures() {
			return errors.NewExitError(1)
		}
		return nil

	case e.interactive:
		report, err = applyWithProgress(ctx, e, a)

	default:
		display := ui.NewStepDisplay(e.out)
		display.Verbose = Verbose()
		a.OnStep = func(s apply.Step) { display.Render(stepView(s)) }
		report, err = a.Apply(ctx)
		display.Summary(report.Summary(), err != nil || report.HasFailures())
	}

	if err != nil {
		return err
	}
	if report.HasFailures() {
		return errors.NewExitError(1)
	}
	return nil
}

// previewAndConfirm shows a dry run and asks whether to go ahead. It
// returns false without asking when there is nothing to do.
func previewAndConfirm(ctx context.Context, e *env) (bool, error) {
	preview := e.applier()
	preview.DryRun = true
	preview.Logger = logger.Noop()

	report, err := preview.Apply(ctx)
	if err != nil {
		return false, err
	}
	if !report.Changed() {
		fmt.Fprintln(e.out, ui.SuccessStyle().Render(ui.SymbolSuccess+" Nothing to do: "+report.Summary()))
		return false, nil
	}

	display := ui.NewStepDisplay(e.out)
	for _, s := range report.Steps {
		display.Render(stepView(s))
	}
	fmt.Fprintln(e.out, ui.FormatDivider(ui.DividerWidth))

	proceed, err := confirmApply("Apply these changes?", report.Summary())
	if err != nil {
		return false, err
	}
	if !proceed {
		fmt.Fprintln(e.out, ui.MutedStyle().Render("Cancelled, nothing changed"))
	}
	return proceed, nil
}

// applyWithProgress runs the applier under the Bubble Tea progress view.
// ctrl+c cancels the context so a running ssh-keygen or check is killed.
func applyWithProgress(ctx context.Context, e *env, a *apply.Applier) (*apply.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var report *apply.Report
	var applyErr error
	label := "Applying barman configuration"
	if a.DryRun {
		label = "Checking barman configuration"
	}

	interrupted, err := ui.RunApplyProgress(e.out, e.in, label, Verbose(), cancel,
		func(onStep func(ui.StepView)) ui.DoneMsg {
			a.OnStep = func(s apply.Step) { onStep(stepView(s)) }
			report, applyErr = a.Apply(ctx)
			return ui.DoneMsg{
				Summary: report.Summary(),
				Failed:  applyErr != nil || report.HasFailures(),
			}
		})
	if err != nil {
		return report, errors.WrapWithCode(err, errors.ErrExec,
			"Progress display failed",
			"Re-run with --json or redirect output to get plain lines.")
	}
	if interrupted && applyErr == nil {
		applyErr = errors.New(errors.ErrExec,
			"Interrupted",
			"Run apply again to finish; steps already done won't be repeated.")
	}
	return report, applyErr
}

func stepView(s apply.Step) ui.StepView {
	return ui.StepView{Name: s.Name, Status: s.Status.String(), Message: s.Message}
}

// failureError is the error reported in the JSON envelope for a run.
func failureError(report *apply.Report, err error) error {
	if err != nil {
		return err
	}
	if report.HasFailures() {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Apply finished with failures (%s)", report.Summary()),
			"See the failed steps for details.")
	}
	return nil
}
