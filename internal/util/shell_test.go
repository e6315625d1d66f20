package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"barman", "'barman'"},
		{"", "''"},
		{"/var/lib/barman/.ssh/id_rsa", "'/var/lib/barman/.ssh/id_rsa'"},
		{"it's", `'it'\''s'`},
		{"$(reboot)", "'$(reboot)'"},
		{"pg-main; rm -rf /", "'pg-main; rm -rf /'"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ShellQuote(tt.in))
		})
	}
}
