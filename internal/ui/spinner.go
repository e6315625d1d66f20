package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SpinnerState represents the current state of a spinner.
type SpinnerState int

const (
	SpinnerPending SpinnerState = iota
	SpinnerInProgress
	SpinnerSuccess
	SpinnerFailed
	SpinnerSkipped
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const spinnerInterval = 80 * time.Millisecond

// Spinner shows an animated label while a single blocking call runs, then
// replaces it with a final status line. Without a terminal it only prints
// the final line.
type Spinner struct {
	mu        sync.Mutex
	label     string
	state     SpinnerState
	frame     int
	startTime time.Time
	w         io.Writer
	animated  bool
	running   bool
	stop      chan struct{}
	done      chan struct{}
	lastWidth int
}

// NewSpinner creates a spinner writing to stderr, animated when stderr is a
// terminal.
func NewSpinner(label string) *Spinner {
	return &Spinner{
		label:    label,
		w:        os.Stderr,
		animated: IsTerminal(os.Stderr),
	}
}

// SetWriter redirects output. Animation is turned off for anything that
// isn't the terminal the spinner was created on.
func (s *Spinner) SetWriter(w io.Writer, animated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
	s.animated = animated
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.state = SpinnerInProgress
	s.startTime = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	animated := s.animated
	s.mu.Unlock()

	if !animated {
		close(s.done)
		return
	}
	s.draw()
	go s.animate()
}

// Stop halts the animation without rendering a final state.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	<-s.done
}

// Success stops the spinner and marks it as successful.
func (s *Spinner) Success(detail string) { s.finish(SpinnerSuccess, detail) }

// Fail stops the spinner and marks it as failed.
func (s *Spinner) Fail(detail string) { s.finish(SpinnerFailed, detail) }

// Skip stops the spinner and marks it as skipped.
func (s *Spinner) Skip(detail string) { s.finish(SpinnerSkipped, detail) }

// State returns the current spinner state.
func (s *Spinner) State() SpinnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Label returns the spinner's label.
func (s *Spinner) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.mu.Unlock()
			s.draw()
		}
	}
}

func (s *Spinner) draw() {
	s.mu.Lock()
	defer s.mu.Unlock()

	color := GradientColors[(s.frame/2)%len(GradientColors)]
	line := lipgloss.NewStyle().Foreground(color).Render(spinnerFrames[s.frame]) + " " + s.label + "..."
	s.clear()
	fmt.Fprint(s.w, line)
	s.lastWidth = lipgloss.Width(line)
}

// clear blanks the current line. Caller holds mu.
func (s *Spinner) clear() {
	if s.lastWidth > 0 {
		fmt.Fprint(s.w, "\r"+strings.Repeat(" ", s.lastWidth)+"\r")
		s.lastWidth = 0
	}
}

func (s *Spinner) finish(state SpinnerState, detail string) {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.clear()

	var elapsed time.Duration
	if !s.startTime.IsZero() {
		elapsed = time.Since(s.startTime)
	}
	fmt.Fprintln(s.w, FormatStatusLine(state, s.label, detail, elapsed))
}

// FormatStatusLine renders "<symbol> label detail (timing)".
func FormatStatusLine(state SpinnerState, label, detail string, elapsed time.Duration) string {
	var symbol string
	var style lipgloss.Style
	switch state {
	case SpinnerSuccess:
		symbol, style = SymbolSuccess, SuccessStyle()
	case SpinnerFailed:
		symbol, style = SymbolFail, ErrorStyle()
	case SpinnerSkipped:
		symbol, style = SymbolSkipped, WarningStyle()
	default:
		symbol, style = SymbolPending, MutedStyle()
	}

	line := style.Render(symbol) + " " + label
	if detail != "" {
		line += " " + detail
	}
	if elapsed > 0 {
		line += " " + MutedStyle().Render(formatDuration(elapsed))
	}
	return line
}

// formatDuration formats a duration for display (e.g., "0.3s", "1.2s").
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
