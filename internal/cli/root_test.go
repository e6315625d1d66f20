package cli

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unknown command", stderrors.New(`unknown command "fact" for "barmanctl"`), true},
		{"unknown flag", stderrors.New("unknown flag: --dryrun"), true},
		{"unknown shorthand", stderrors.New("unknown shorthand flag: 'x' in -x"), true},
		{"other error", stderrors.New("connection failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnknownCommandError(tt.err))
		})
	}
}

func TestExtractUnknownCommand(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"standard cobra format", stderrors.New(`unknown command "fact" for "barmanctl"`), "fact"},
		{"no quotes", stderrors.New("unknown command"), ""},
		{"unterminated quote", stderrors.New(`unknown command "fact`), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractUnknownCommand(tt.err))
		})
	}
}

func TestCommandNames(t *testing.T) {
	names := commandNames()
	for _, want := range []string{"key", "facts", "render", "apply", "check", "servers", "server", "doctor", "version", "completion"} {
		assert.Contains(t, names, want)
	}
}

func TestHandleError_ExitError(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := handleError(&stdout, &stderr, errors.NewExitError(3))

	assert.Equal(t, 3, code)
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String(), "the command already reported the failure")
}

func TestHandleError_Structured(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := errors.New(errors.ErrConfig, "Must pass conninfo to server server1", "Add a libpq connection string")

	code := handleError(&stdout, &stderr, err)

	assert.Equal(t, 1, code)
	assert.Equal(t, err.Error(), stderr.String())
}

func TestHandleError_Plain(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := handleError(&stdout, &stderr, stderrors.New(`required flag(s) "conninfo" not set`))

	assert.Equal(t, 1, code)
	assert.Equal(t, "✗ required flag(s) \"conninfo\" not set\n", stderr.String())
}

func TestHandleError_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := handleError(&stdout, &stderr, stderrors.New(`unknown command "fact" for "barmanctl"`))

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Did you mean: facts")
	assert.Contains(t, stderr.String(), "barmanctl --help")
}

func TestHandleError_MachineMode(t *testing.T) {
	withMachineMode(t)
	var stdout, stderr bytes.Buffer

	code := handleError(&stdout, &stderr, errors.New(errors.ErrKey, "Public key is empty", "Remove it"))

	assert.Equal(t, 1, code)
	assert.Empty(t, stderr.String())

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, ErrCodeKeyFailed, env.Error.Code)
}
