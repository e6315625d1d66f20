//go:build unix

package apply

import (
	"os"
	"syscall"
)

// StatOwner reads the uid and gid from a stat result on the real
// filesystem. ok is false for filesystems that don't carry ownership.
func StatOwner(info os.FileInfo) (uid, gid int, ok bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return int(st.Uid), int(st.Gid), true
}
