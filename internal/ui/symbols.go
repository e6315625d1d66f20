package ui

// Status symbols used by every command's human output.
const (
	SymbolSuccess  = "✓" // Step passed
	SymbolFail     = "✗" // Step failed
	SymbolPending  = "○" // Not started
	SymbolProgress = "◐" // Running
	SymbolChanged  = "●" // Step changed the host
	SymbolSkipped  = "⊘" // Step skipped
)
