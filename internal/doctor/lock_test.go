package doctor

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockDirCheck_Existing(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/run/lock/barmanctl", 0755))

	res := (&LockDirCheck{Dir: "/run/lock/barmanctl", Fs: fs}).Run()

	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, "Lock directory: /run/lock/barmanctl", res.Message)

	entries, err := afero.ReadDir(fs, "/run/lock/barmanctl")
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be removed")
}

func TestLockDirCheck_CreatedOnFirstUse(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/run/lock", 0755))

	res := (&LockDirCheck{Dir: "/run/lock/barmanctl", Fs: fs}).Run()

	assert.Equal(t, StatusPass, res.Status)
	assert.Contains(t, res.Message, "created on first use")
	exists, _ := afero.DirExists(fs, "/run/lock/barmanctl")
	assert.False(t, exists, "doctor must not create the directory")
}

func TestLockDirCheck_NotADirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/run/lock", []byte("x"), 0644))

	res := (&LockDirCheck{Dir: "/run/lock/barmanctl", Fs: fs}).Run()

	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "/run/lock is not a directory")
}

func TestLockDirCheck_ReadOnly(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/run/lock/barmanctl", 0755))

	res := (&LockDirCheck{Dir: "/run/lock/barmanctl", Fs: afero.NewReadOnlyFs(base)}).Run()

	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "not writable")
}
