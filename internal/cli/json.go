package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/rileyhilliard/barmanctl/internal/exec"
	"github.com/rileyhilliard/barmanctl/internal/lock"
)

// Machine mode flag - when true, outputs JSON and suppresses human-friendly decorations
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeKeyFailed      = "KEY_FAILED"
	ErrCodeLockHeld       = "LOCK_HELD"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeCommandFailed  = "COMMAND_FAILED"
	ErrCodeRenderFailed   = "RENDER_FAILED"
	ErrCodePackageFailed  = "PACKAGE_FAILED"
	ErrCodeFileFailed     = "FILE_FAILED"
	ErrCodeUnknown        = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: false, Error: ErrorToJSON(err)})
}

// writeJSONResult writes data with success set from err, for commands that
// have output to show even when they fail.
func writeJSONResult(w io.Writer, data interface{}, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: err == nil, Data: data, Error: ErrorToJSON(err)})
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var bmErr *errors.Error
	if stderrors.As(err, &bmErr) {
		return &JSONError{
			Code:       mapErrorCode(err, bmErr.Code, bmErr.Message),
			Message:    bmErr.Message,
			Suggestion: bmErr.Suggestion,
		}
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// mapErrorCode maps internal error codes to machine-readable codes.
// Sentinels anywhere in the chain win over the outer code.
func mapErrorCode(err error, internalCode, message string) string {
	switch {
	case stderrors.Is(err, lock.ErrLocked):
		return ErrCodeLockHeld
	case stderrors.Is(err, exec.ErrTimeout):
		return ErrCodeTimeout
	}

	switch internalCode {
	case errors.ErrConfig:
		if containsFold(message, "not found") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrKey:
		return ErrCodeKeyFailed
	case errors.ErrLock:
		return ErrCodeLockHeld
	case errors.ErrExec:
		return ErrCodeCommandFailed
	case errors.ErrRender:
		return ErrCodeRenderFailed
	case errors.ErrPackage:
		return ErrCodePackageFailed
	case errors.ErrFile:
		return ErrCodeFileFailed
	}
	return ErrCodeUnknown
}
