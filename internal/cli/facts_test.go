package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFactsCommand_YAML(t *testing.T) {
	te := newTestEnv(t)
	pgKey := te.writeKey(t, postgresHome)

	require.NoError(t, factsCommand(context.Background(), te.env, FactsOptions{}))

	var facts map[string]string
	require.NoError(t, yaml.Unmarshal(te.stdout.Bytes(), &facts))
	assert.Len(t, facts, 2)
	assert.Equal(t, pgKey, facts["postgres_key"])
	assert.True(t, strings.HasSuffix(facts["barman_key"], "barman@backup"))
	assert.Equal(t, 1, te.runner.RunAsCount(), "only the barman key was generated")
	assert.Empty(t, te.stderr.String())
}

func TestFactsCommand_FailureIsAWarning(t *testing.T) {
	te := newTestEnv(t)
	require.NoError(t, te.fs.RemoveAll(postgresHome))

	require.NoError(t, factsCommand(context.Background(), te.env, FactsOptions{}))

	var facts map[string]string
	require.NoError(t, yaml.Unmarshal(te.stdout.Bytes(), &facts))
	assert.Equal(t, "", facts["postgres_key"])
	assert.NotEmpty(t, facts["barman_key"])
	assert.Contains(t, te.stderr.String(), "postgres_key is empty")
	assert.Contains(t, te.stderr.String(), "doesn't exist")
}

func TestFactsCommand_UnknownAccountIsEmpty(t *testing.T) {
	te := newTestEnv(t)
	te.cfg.Keys.Accounts = []string{"barman", "streaming"}

	require.NoError(t, factsCommand(context.Background(), te.env, FactsOptions{}))

	var facts map[string]string
	require.NoError(t, yaml.Unmarshal(te.stdout.Bytes(), &facts))
	v, ok := facts["streaming_key"]
	assert.True(t, ok)
	assert.Empty(t, v)
	assert.Empty(t, te.stderr.String(), "a missing account is not worth a warning")
}

func TestFactsCommand_Table(t *testing.T) {
	te := newTestEnv(t)
	te.writeKey(t, postgresHome)

	require.NoError(t, factsCommand(context.Background(), te.env, FactsOptions{Table: true, NoGenerate: true}))

	out := te.stdout.String()
	assert.Contains(t, out, "ACCOUNT")
	assert.Contains(t, out, "postgres")
	assert.Contains(t, out, "SHA256:")
	assert.Contains(t, out, "not provisioned", "barman has no key and --no-generate is set")
	assert.Zero(t, te.runner.RunAsCount())
}

func TestFactsCommand_JSON(t *testing.T) {
	withMachineMode(t)
	te := newTestEnv(t)

	require.NoError(t, factsCommand(context.Background(), te.env, FactsOptions{}))

	var out struct {
		Facts    map[string]string `json:"facts"`
		Accounts []keyJSON         `json:"accounts"`
	}
	env := decodeEnvelope(t, te.stdout.Bytes(), &out)
	assert.True(t, env.Success)
	require.Len(t, out.Accounts, 2)
	assert.Equal(t, "barman", out.Accounts[0].Account)
	assert.Equal(t, out.Accounts[0].Key, out.Facts["barman_key"])
	assert.Equal(t, out.Accounts[1].Key, out.Facts["postgres_key"])
}
