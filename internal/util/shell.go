package util

import "strings"

// ShellQuote single-quotes s for sh, so paths, package names and server
// names pass through su -c and sh -c untouched.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
