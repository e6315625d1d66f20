package doctor

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// LockDirCheck verifies the lock directory is writable, or that its
// nearest existing parent is so it can be created.
type LockDirCheck struct {
	Dir string
	Fs  afero.Fs
}

func (c *LockDirCheck) Name() string     { return "lock_dir" }
func (c *LockDirCheck) Category() string { return "LOCK" }

func (c *LockDirCheck) Run() CheckResult {
	dir := c.Dir
	for {
		info, err := c.Fs.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return CheckResult{
					Name:       c.Name(),
					Status:     StatusFail,
					Message:    dir + " is not a directory",
					Suggestion: "Point lock.dir at a directory.",
				}
			}
			break
		}
		if !os.IsNotExist(err) {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusFail,
				Message:    "Can't check " + dir + ": " + err.Error(),
				Suggestion: "Check permissions on the path.",
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	tmp, err := afero.TempFile(c.Fs, dir, ".barmanctl-doctor")
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    dir + " is not writable",
			Suggestion: "Run as root, or point lock.dir somewhere writable.",
		}
	}
	tmp.Close()
	_ = c.Fs.Remove(tmp.Name())

	msg := "Lock directory: " + c.Dir
	if dir != c.Dir {
		msg += " (created on first use)"
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: msg}
}
