package ui

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// StepMsg reports a finished apply step to the progress model.
type StepMsg StepView

// DoneMsg ends the progress display.
type DoneMsg struct {
	Summary string
	Failed  bool
}

// ApplyProgressModel shows finished steps above a spinner while apply runs.
type ApplyProgressModel struct {
	spinner     SpinnerComponent
	lines       []string
	verbose     bool
	hidden      int
	done        *DoneMsg
	Interrupted bool
}

// NewApplyProgressModel creates the model. Unchanged steps are collapsed
// into a count unless verbose is set.
func NewApplyProgressModel(label string, verbose bool) ApplyProgressModel {
	sp := NewSpinnerComponent(label)
	sp.Start()
	return ApplyProgressModel{
		spinner: sp,
		verbose: verbose,
	}
}

// Init starts the spinner animation.
func (m ApplyProgressModel) Init() tea.Cmd {
	return m.spinner.spinner.Tick
}

// Update handles step, done, key and tick messages.
func (m ApplyProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StepMsg:
		if msg.Status == "unchanged" && !m.verbose {
			m.hidden++
			return m, nil
		}
		m.lines = append(m.lines, RenderStep(StepView(msg)))
		return m, nil

	case DoneMsg:
		done := msg
		m.done = &done
		if msg.Failed {
			m.spinner.Finish(SpinnerFailed)
		} else {
			m.spinner.Finish(SpinnerSuccess)
		}
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.Interrupted = true
			m.spinner.Finish(SpinnerFailed)
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View renders finished steps, then the spinner or the summary.
func (m ApplyProgressModel) View() string {
	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.hidden > 0 && m.done != nil {
		b.WriteString(MutedStyle().Render(pluralUnchanged(m.hidden)))
		b.WriteString("\n")
	}
	b.WriteString(m.spinner.View())
	b.WriteString("\n")
	if m.done != nil {
		style := SuccessStyle()
		if m.done.Failed {
			style = ErrorStyle()
		}
		b.WriteString(style.Render(m.done.Summary))
		b.WriteString("\n")
	}
	return b.String()
}

func pluralUnchanged(n int) string {
	if n == 1 {
		return "1 step already in place"
	}
	return fmt.Sprintf("%d steps already in place", n)
}

// RunApplyProgress runs work under a Bubble Tea progress display on w,
// reading keys from in (nil disables input). work receives a callback for
// each finished step and returns the summary. interrupt is called when the
// user presses ctrl+c, and RunApplyProgress still waits for work to return.
func RunApplyProgress(w io.Writer, in io.Reader, label string, verbose bool, interrupt func(), work func(onStep func(StepView)) DoneMsg) (bool, error) {
	p := tea.NewProgram(NewApplyProgressModel(label, verbose), tea.WithOutput(w), tea.WithInput(in))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done := work(func(s StepView) { p.Send(StepMsg(s)) })
		p.Send(done)
	}()

	final, err := p.Run()
	interrupted := false
	if m, ok := final.(ApplyProgressModel); ok && m.Interrupted {
		interrupted = true
		if interrupt != nil {
			interrupt()
		}
	}
	<-finished
	return interrupted, err
}
