package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	dir := filepath.Join(tmp, "a", "b")
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "f")
	f, err := lfs.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	info, err := lfs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	entries, err := lfs.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	renamed := filepath.Join(dir, "g")
	require.NoError(t, lfs.Rename(path, renamed))
	require.NoError(t, lfs.Remove(renamed))
	_, err = lfs.Stat(renamed)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS_WriteLimit(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("payload", Fault{FailAfterBytes: 4})

	f, err := ffs.OpenFile(filepath.Join(tmp, "payload.bin"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("abcd"))
	require.NoError(t, err)
	_, err = f.Write([]byte("e"))
	assert.ErrorIs(t, err, ErrInjected)

	// Unmatched paths are untouched.
	g, err := ffs.OpenFile(filepath.Join(tmp, "other"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = g.Write(make([]byte, 64))
	assert.NoError(t, err)
	require.NoError(t, g.Close())
}

func TestFaultyFS_SyncRenameOpen(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule("sync-target", Fault{FailOnSync: true, FailOnRename: true, FailAfterBytes: -1})

	f, err := ffs.OpenFile(filepath.Join(tmp, "sync-target"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), ErrInjected)
	require.NoError(t, f.Close())

	assert.ErrorIs(t, ffs.Rename(filepath.Join(tmp, "sync-target"), filepath.Join(tmp, "renamed")), ErrInjected)

	ffs.AddRule("open-target", Fault{FailOpen: true})
	_, err = ffs.OpenFile(filepath.Join(tmp, "open-target"), os.O_CREATE|os.O_WRONLY, 0o644)
	assert.ErrorIs(t, err, ErrInjected)

	ffs.Clear()
	require.NoError(t, ffs.Rename(filepath.Join(tmp, "sync-target"), filepath.Join(tmp, "renamed")))
}
