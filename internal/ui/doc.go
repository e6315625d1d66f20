// Package ui renders barmanctl's terminal output with Lip Gloss styling.
//
// # Components
//
//	Spinner              - Animated label around one blocking call
//	SpinnerComponent     - The same spinner for Bubble Tea models
//	ApplyProgressModel   - Bubble Tea view of a running apply
//	StepDisplay          - Plain line-per-step output for apply
//	RenderServerTable    - Configured servers and their SSH endpoints
//	RenderKeyTable       - Key status per service account
//	Confirm              - Huh yes/no prompt
//
// Colors follow output.color. SetColorMode("never") or the --no-color flag
// switches Lip Gloss to the ASCII profile so nothing is styled.
package ui
