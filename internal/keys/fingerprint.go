package keys

import (
	"strings"

	"github.com/rileyhilliard/barmanctl/internal/errors"
	"golang.org/x/crypto/ssh"
)

// KeyInfo describes a public key in authorized_keys format.
type KeyInfo struct {
	Type        string `json:"type"`
	Fingerprint string `json:"fingerprint"`
	Comment     string `json:"comment,omitempty"`
}

// Inspect parses an authorized_keys style public key.
func Inspect(key string) (KeyInfo, error) {
	pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(key)))
	if err != nil {
		return KeyInfo{}, errors.WrapWithCode(err, errors.ErrKey,
			"Not a valid SSH public key",
			"Expected a single line like 'ssh-rsa AAAA... user@host'.")
	}
	return KeyInfo{
		Type:        pub.Type(),
		Fingerprint: ssh.FingerprintSHA256(pub),
		Comment:     comment,
	}, nil
}

// Fingerprint returns the SHA256 fingerprint of a public key, as printed
// by ssh-keygen -l.
func Fingerprint(key string) (string, error) {
	info, err := Inspect(key)
	if err != nil {
		return "", err
	}
	return info.Fingerprint, nil
}
