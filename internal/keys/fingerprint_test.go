package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func newPublicKey(t *testing.T) (string, ssh.PublicKey) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	return line, sshPub
}

func TestInspect(t *testing.T) {
	line, pub := newPublicKey(t)

	info, err := Inspect(line + " barman@backup\n")
	require.NoError(t, err)

	assert.Equal(t, "ssh-ed25519", info.Type)
	assert.Equal(t, ssh.FingerprintSHA256(pub), info.Fingerprint)
	assert.True(t, strings.HasPrefix(info.Fingerprint, "SHA256:"))
	assert.Equal(t, "barman@backup", info.Comment)
}

func TestFingerprint(t *testing.T) {
	line, pub := newPublicKey(t)

	fp, err := Fingerprint(line)
	require.NoError(t, err)
	assert.Equal(t, ssh.FingerprintSHA256(pub), fp)
}

func TestFingerprint_Invalid(t *testing.T) {
	for _, in := range []string{"", "not a key", "ssh-rsa AAAAB3...test"} {
		_, err := Fingerprint(in)
		assert.Error(t, err, in)
	}
}
