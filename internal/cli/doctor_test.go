package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/barmanctl/internal/config"
	"github.com/rileyhilliard/barmanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoctorConfig = `
servers:
  server1:
    conninfo: host=server1 user=barman
    ssh_command: ssh postgres@server1
`

// doctorJSON mirrors DoctorOutput with statuses as their wire strings.
type doctorJSON struct {
	Categories []struct {
		Name    string `json:"name"`
		Results []struct {
			Name       string `json:"name"`
			Status     string `json:"status"`
			Message    string `json:"message"`
			Suggestion string `json:"suggestion"`
		} `json:"results"`
	} `json:"categories"`
	Summary SummaryOutput `json:"summary"`
}

func writeDoctorConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func lookPathFor(tools ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, tool := range tools {
			if tool == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", fmt.Errorf("%s: not found", name)
	}
}

// newDoctorEnv is a test env whose tools are all present and whose lock
// directory exists.
func newDoctorEnv(t *testing.T) *testEnv {
	t.Helper()
	te := newTestEnv(t)
	te.lookPath = lookPathFor("ssh-keygen", "su", "dpkg", "barman")
	te.cfg.Lock.Dir = "/run/lock/barmanctl"
	require.NoError(t, te.fs.MkdirAll(te.cfg.Lock.Dir, 0755))
	return te
}

func TestDoctorCommand_WarningsOnly(t *testing.T) {
	te := newDoctorEnv(t)
	te.writeKey(t, te.home)
	path := writeDoctorConfig(t, validDoctorConfig)

	err := doctorCommand(te.stdout, path, te.env)

	require.NoError(t, err, "warnings don't fail doctor")
	out := te.stdout.String()
	assert.Contains(t, out, "barmanctl diagnostic report")
	for _, header := range []string{"CONFIG", "TOOLS", "ACCOUNTS", "SSH", "SERVERS", "LOCK"} {
		assert.Contains(t, out, header)
	}
	assert.Contains(t, out, "Config valid (1 server)")
	assert.Contains(t, out, "postgres: no key yet")
	assert.Contains(t, out, "barmanctl key postgres")
	assert.Contains(t, out, "server1: postgres@server1")
	assert.Contains(t, out, "1 issue found")
	assert.Zero(t, te.runner.RunAsCount(), "doctor never generates keys")
}

func TestDoctorCommand_MissingToolFails(t *testing.T) {
	te := newDoctorEnv(t)
	te.lookPath = lookPathFor("su", "dpkg", "barman")
	path := writeDoctorConfig(t, validDoctorConfig)

	err := doctorCommand(te.stdout, path, te.env)

	code, ok := errors.GetExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 1, code)
	assert.Contains(t, te.stdout.String(), "ssh-keygen not found")
	assert.Contains(t, te.stdout.String(), "openssh-client")
}

func TestDoctorCommand_ConfigOnly(t *testing.T) {
	path := writeDoctorConfig(t, `
servers:
  server1:
    ssh_command: ssh postgres@server1
`)
	var out bytes.Buffer

	err := doctorCommand(&out, path, nil)

	code, ok := errors.GetExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Must pass conninfo to server server1")
	assert.NotContains(t, out.String(), "TOOLS")
}

func TestDoctorCommand_JSON(t *testing.T) {
	withMachineMode(t)
	te := newDoctorEnv(t)
	te.writeKey(t, te.home)
	te.writeKey(t, postgresHome)
	path := writeDoctorConfig(t, validDoctorConfig)

	require.NoError(t, doctorCommand(te.stdout, path, te.env))

	var data doctorJSON
	env := decodeEnvelope(t, te.stdout.Bytes(), &data)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.True(t, data.Summary.AllClear)
	assert.Zero(t, data.Summary.Fail)

	var names []string
	for _, cat := range data.Categories {
		names = append(names, cat.Name)
	}
	assert.Equal(t, []string{"CONFIG", "TOOLS", "ACCOUNTS", "SSH", "SERVERS", "LOCK"}, names)
	for _, cat := range data.Categories {
		for _, res := range cat.Results {
			assert.Equal(t, "pass", res.Status, res.Name)
		}
	}
}

func TestDoctorCommand_JSONFailure(t *testing.T) {
	withMachineMode(t)
	te := newDoctorEnv(t)
	te.lookPath = lookPathFor()
	path := writeDoctorConfig(t, validDoctorConfig)

	err := doctorCommand(te.stdout, path, te.env)

	_, ok := errors.GetExitCode(err)
	require.True(t, ok)
	var data doctorJSON
	env := decodeEnvelope(t, te.stdout.Bytes(), &data)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "COMMAND_FAILED", env.Error.Code)
	assert.Positive(t, data.Summary.Fail)
}

func TestDoctorChecks_LockDisabled(t *testing.T) {
	te := newDoctorEnv(t)
	te.cfg.Lock.Enabled = false

	for _, check := range doctorChecks("", te.env) {
		assert.NotEqual(t, "LOCK", check.Category())
	}
}
