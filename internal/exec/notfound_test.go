package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCommandNotFound(t *testing.T) {
	tests := []struct {
		name      string
		stderr    string
		exitCode  int
		wantCmd   string
		wantFound bool
	}{
		{
			name:      "bash command not found",
			stderr:    "bash: barman: command not found",
			exitCode:  127,
			wantCmd:   "barman",
			wantFound: true,
		},
		{
			name:      "dash not found",
			stderr:    "sh: 1: barman: not found",
			exitCode:  127,
			wantCmd:   "barman",
			wantFound: true,
		},
		{
			name:      "-bash no such file",
			stderr:    "-bash: /opt/barman/bin/barman: No such file or directory",
			exitCode:  127,
			wantCmd:   "/opt/barman/bin/barman",
			wantFound: true,
		},
		{
			name:      "exit code 127 no pattern match",
			stderr:    "some other error message",
			exitCode:  127,
			wantFound: true, // Still detected by exit code
		},
		{
			name:      "check failure is not command not found",
			stderr:    "server1: FAILED (ssh: OK, PostgreSQL: FAILED)",
			exitCode:  1,
			wantFound: false,
		},
		{
			name:      "permission denied",
			stderr:    "permission denied",
			exitCode:  126,
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, found := IsCommandNotFound(tt.stderr, tt.exitCode)
			assert.Equal(t, tt.wantFound, found, "found mismatch")
			if tt.wantFound && tt.wantCmd != "" {
				assert.Equal(t, tt.wantCmd, cmd, "command name mismatch")
			}
		})
	}
}

func TestHandleExecError_CommandNotFound(t *testing.T) {
	err := HandleExecError("barman check all", "sh: 1: barman: not found", 127)

	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "'barman' not found in PATH")
	assert.Contains(t, err.Error(), "package.manage")
}

func TestHandleExecError_NotCommandNotFound(t *testing.T) {
	err := HandleExecError("barman check all", "server1: FAILED", 1)
	assert.Nil(t, err)
}

func TestHandleExecError_ExtractsCommandFromInput(t *testing.T) {
	err := HandleExecError("dpkg -s barman", "some error", 127)

	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "'dpkg' not found in PATH")
}
