package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DividerWidth is the default width for divider lines.
const DividerWidth = 64

// StepView is one apply step as the UI shows it. Status is the step's
// status string: unchanged, changed, skipped or failed.
type StepView struct {
	Name    string
	Status  string
	Message string
}

// RenderStep formats one step line.
//
//	● file:/etc/barman.conf created
//	✓ home:/var/lib/barman
//	✗ key:postgres provisioning failed: ...
func RenderStep(s StepView) string {
	var symbol string
	var style lipgloss.Style
	switch s.Status {
	case "changed":
		symbol, style = SymbolChanged, lipgloss.NewStyle().Foreground(ColorInfo)
	case "unchanged":
		symbol, style = SymbolSuccess, SuccessStyle()
	case "skipped":
		symbol, style = SymbolSkipped, WarningStyle()
	case "failed":
		symbol, style = SymbolFail, ErrorStyle()
	default:
		symbol, style = SymbolPending, MutedStyle()
	}

	line := style.Render(symbol) + " " + s.Name
	if s.Message != "" {
		msgStyle := MutedStyle()
		if s.Status == "failed" {
			msgStyle = ErrorStyle()
		}
		line += " " + msgStyle.Render(s.Message)
	}
	return line
}

// StepDisplay prints steps as they complete. Unchanged steps are only
// shown when Verbose is set.
type StepDisplay struct {
	w       io.Writer
	Verbose bool
	hidden  int
}

// NewStepDisplay creates a step display writing to w.
func NewStepDisplay(w io.Writer) *StepDisplay {
	return &StepDisplay{w: w}
}

// Render prints one step.
func (d *StepDisplay) Render(s StepView) {
	if s.Status == "unchanged" && !d.Verbose {
		d.hidden++
		return
	}
	fmt.Fprintln(d.w, RenderStep(s))
}

// Hidden returns how many unchanged steps were not printed.
func (d *StepDisplay) Hidden() int {
	return d.hidden
}

// Summary prints a divider and the run summary.
func (d *StepDisplay) Summary(summary string, failed bool) {
	fmt.Fprintln(d.w, FormatDivider(DividerWidth))
	style := SuccessStyle()
	symbol := SymbolSuccess
	if failed {
		style, symbol = ErrorStyle(), SymbolFail
	}
	fmt.Fprintln(d.w, style.Render(symbol+" "+summary))
}

// FormatDivider returns a divider line as a string.
func FormatDivider(width int) string {
	return MutedStyle().Render(strings.Repeat("━", width))
}
