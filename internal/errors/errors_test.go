package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrKey,
		ErrExec,
		ErrLock,
		ErrRender,
		ErrPackage,
		ErrFile,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "'server!' is not a valid name",
			suggestion: "Use lowercase letters, numbers and dashes",
		},
		{
			name:       "key error",
			code:       ErrKey,
			message:    "Home directory /var/lib/barman does not exist",
			suggestion: "Create the account's home directory first",
		},
		{
			name:       "lock error",
			code:       ErrLock,
			message:    "Timed out waiting for key lock after 1m",
			suggestion: "Another barmanctl run is provisioning this account",
		},
		{
			name:       "package error",
			code:       ErrPackage,
			message:    "Couldn't install barman",
			suggestion: "Check the package repository configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
		notExpected   []string
	}{
		{
			name: "basic error formatting",
			err:  New(ErrConfig, "Invalid configuration", "Check barmanctl.yaml syntax"),
			expectedParts: []string{
				"✗ Invalid configuration",
				"Check barmanctl.yaml syntax",
			},
		},
		{
			name: "error without suggestion",
			err:  New(ErrExec, "Command failed", ""),
			expectedParts: []string{
				"Command failed",
			},
			notExpected: []string{
				"\n\n  \n",
			},
		},
		{
			name: "error with cause",
			err:  WrapWithCode(errors.New("permission denied"), ErrFile, "Couldn't write /etc/barman.conf", "Run as root"),
			expectedParts: []string{
				"Couldn't write /etc/barman.conf",
				"permission denied",
				"Run as root",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.err.Error()

			for _, part := range tt.expectedParts {
				assert.Contains(t, output, part)
			}
			for _, part := range tt.notExpected {
				assert.NotContains(t, output, part)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("signal: killed")
	wrapped := Wrap(cause, "ssh-keygen was killed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrExec, wrapped.Code, "Wrap should default to ErrExec code")
	assert.Equal(t, "ssh-keygen was killed", wrapped.Message)
	assert.Equal(t, cause, wrapped.Cause)
}

func TestWrapWithCode(t *testing.T) {
	cause := errors.New("file not found")
	wrapped := WrapWithCode(cause, ErrConfig, "Failed to load config", "Create barmanctl.yaml")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrConfig, wrapped.Code)
	assert.Equal(t, "Failed to load config", wrapped.Message)
	assert.Equal(t, "Create barmanctl.yaml", wrapped.Suggestion)
	assert.Equal(t, cause, wrapped.Cause)
}

func TestErrorsIsAndAs(t *testing.T) {
	cause := errors.New("specific error")
	wrapped := WrapWithCode(cause, ErrLock, "Lock error", "")

	assert.True(t, errors.Is(wrapped, cause))

	var bmErr *Error
	require.True(t, errors.As(fmt.Errorf("outer: %w", wrapped), &bmErr))
	assert.Equal(t, ErrLock, bmErr.Code)
}

func TestIsCode(t *testing.T) {
	err := New(ErrConfig, "Config error", "")

	assert.True(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(err, ErrKey))
	assert.False(t, IsCode(errors.New("standard error"), ErrConfig))
	assert.False(t, IsCode(nil, ErrConfig))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrRender, CodeOf(New(ErrRender, "bad template", "")))
	assert.Equal(t, ErrKey, CodeOf(fmt.Errorf("wrapped: %w", New(ErrKey, "x", ""))))
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.Empty(t, CodeOf(nil))
}

func TestErrorMessageStructure(t *testing.T) {
	err := WrapWithCode(
		errors.New("exit status 1"),
		ErrPackage,
		"Couldn't install barman",
		"Run: apt-get install -y barman",
	)

	lines := strings.Split(err.Error(), "\n")

	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "✗"), "First line should start with failure symbol")
	assert.Contains(t, lines[0], "Couldn't install barman")
}

func TestExitError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantMsg string
	}{
		{name: "zero exit code", code: 0, wantMsg: "exit code 0"},
		{name: "non-zero exit code", code: 1, wantMsg: "exit code 1"},
		{name: "signal exit code", code: 137, wantMsg: "exit code 137"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewExitError(tt.code)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOk   bool
	}{
		{name: "ExitError returns code", err: NewExitError(42), wantCode: 42, wantOk: true},
		{name: "wrapped ExitError", err: fmt.Errorf("check: %w", NewExitError(2)), wantCode: 2, wantOk: true},
		{name: "standard error returns false", err: errors.New("standard error")},
		{name: "nil error returns false", err: nil},
		{name: "structured Error returns false", err: New(ErrExec, "test", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := GetExitCode(tt.err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}
