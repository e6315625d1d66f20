package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerFrames matches the standalone Spinner's frames for Bubble Tea programs.
var SpinnerFrames = spinner.Spinner{
	Frames: spinnerFrames,
	FPS:    spinnerInterval,
}

// SpinnerComponent is a spinner meant to be embedded in a larger Bubble Tea
// model. It reuses SpinnerState for its lifecycle.
type SpinnerComponent struct {
	spinner   spinner.Model
	Label     string
	State     SpinnerState
	StartTime time.Time
	EndTime   time.Time
}

// NewSpinnerComponent creates a pending spinner component.
func NewSpinnerComponent(label string) SpinnerComponent {
	sp := spinner.New()
	sp.Spinner = SpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)

	return SpinnerComponent{
		spinner: sp,
		Label:   label,
		State:   SpinnerPending,
	}
}

// Start moves the spinner to in-progress and returns its first tick.
func (s *SpinnerComponent) Start() tea.Cmd {
	s.State = SpinnerInProgress
	s.StartTime = time.Now()
	return s.spinner.Tick
}

// Update advances the animation while the spinner is running.
func (s SpinnerComponent) Update(msg tea.Msg) (SpinnerComponent, tea.Cmd) {
	if s.State != SpinnerInProgress {
		return s, nil
	}
	if tick, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(tick)
		return s, cmd
	}
	return s, nil
}

// Finish records the final state.
func (s *SpinnerComponent) Finish(state SpinnerState) {
	s.State = state
	s.EndTime = time.Now()
}

// Elapsed returns the running time so far, or the total once finished.
func (s SpinnerComponent) Elapsed() time.Duration {
	switch {
	case s.StartTime.IsZero():
		return 0
	case !s.EndTime.IsZero():
		return s.EndTime.Sub(s.StartTime)
	default:
		return time.Since(s.StartTime)
	}
}

// View renders the spinner in its current state.
func (s SpinnerComponent) View() string {
	if s.State == SpinnerInProgress {
		return s.spinner.View() + " " + s.Label + "..."
	}
	return FormatStatusLine(s.State, s.Label, "", s.Elapsed())
}
