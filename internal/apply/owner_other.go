//go:build !unix

package apply

import "os"

// StatOwner reports no ownership where the platform has no uid/gid.
func StatOwner(info os.FileInfo) (uid, gid int, ok bool) {
	return 0, 0, false
}
