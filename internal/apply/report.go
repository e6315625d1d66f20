package apply

import (
	"encoding/json"
	"fmt"

	"github.com/rileyhilliard/barmanctl/internal/keys"
)

// StepStatus is the outcome of one convergence step.
type StepStatus int

const (
	StatusUnchanged StepStatus = iota
	StatusChanged
	StatusSkipped
	StatusFailed
)

// String returns a human-readable status string.
func (s StepStatus) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusChanged:
		return "changed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string form.
func (s StepStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Step is one resource the applier looked at.
type Step struct {
	Name    string     `json:"name"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
	Err     error      `json:"-"`
}

// Report collects the steps of one run.
type Report struct {
	DryRun bool          `json:"dry_run"`
	Steps  []Step        `json:"steps"`
	Keys   []keys.Result `json:"-"`
}

// CountByStatus counts steps by status.
func (r *Report) CountByStatus() map[StepStatus]int {
	counts := make(map[StepStatus]int)
	for _, s := range r.Steps {
		counts[s.Status]++
	}
	return counts
}

// HasFailures returns true if any step failed.
func (r *Report) HasFailures() bool {
	return r.CountByStatus()[StatusFailed] > 0
}

// Changed returns true if any step changed (or would change) the host.
func (r *Report) Changed() bool {
	return r.CountByStatus()[StatusChanged] > 0
}

// Summary returns a one-line summary of the run.
func (r *Report) Summary() string {
	counts := r.CountByStatus()
	verb := "changed"
	if r.DryRun {
		verb = "to change"
	}
	s := fmt.Sprintf("%d %s, %d unchanged", counts[StatusChanged], verb, counts[StatusUnchanged])
	if n := counts[StatusSkipped]; n > 0 {
		s += fmt.Sprintf(", %d skipped", n)
	}
	if n := counts[StatusFailed]; n > 0 {
		s += fmt.Sprintf(", %d failed", n)
	}
	return s
}

// Facts maps <account>_key to the provisioned key, "" when there is none.
func (r *Report) Facts() map[string]string {
	facts := make(map[string]string, len(r.Keys))
	for _, res := range r.Keys {
		facts[res.Account+"_key"] = res.Fact()
	}
	return facts
}
