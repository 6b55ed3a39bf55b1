package vfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/vftpd/vftpd/vfs"
)

func newTestVFS(t *testing.T) (*vfs.VFS, string) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "file.txt"), []byte("hello"), 0o644))

	return vfs.New(afero.NewOsFs(), root), root
}

func TestNormalizeCollapsesDotDot(t *testing.T) {
	v, _ := newTestVFS(t)

	require.Equal(t, "/", v.Normalize("/"))
	require.Equal(t, "/sub", v.Normalize("/sub/../sub"))
	require.Equal(t, "/", v.Normalize("/../../.."))
	require.Equal(t, "/sub/file.txt", v.Normalize("/sub/file.txt"))
}

func TestNormalizeRelativeUsesCwd(t *testing.T) {
	v, _ := newTestVFS(t)
	v.SetCwd("/sub")

	require.Equal(t, "/sub/file.txt", v.Normalize("file.txt"))
	require.Equal(t, "/file.txt", v.Normalize("../file.txt"))
}

func TestToHostAndToVirtualRoundTrip(t *testing.T) {
	v, root := newTestVFS(t)

	host := v.ToHost("/sub/file.txt")
	require.Equal(t, filepath.Join(root, "sub", "file.txt"), host)

	require.Equal(t, "/sub/file.txt", v.ToVirtual(host))
	require.Equal(t, "/", v.ToVirtual(root))
}

func TestToVirtualOutsideRootReturnsSlash(t *testing.T) {
	v, _ := newTestVFS(t)

	require.Equal(t, "/", v.ToVirtual("/etc/passwd"))
}

func TestValidateRejectsEscapeViaSymlink(t *testing.T) {
	v, root := newTestVFS(t)

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o600))

	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(outside, link))

	require.False(t, v.Validate(filepath.Join(link, "secret.txt")))
	require.True(t, v.Validate(filepath.Join(root, "sub", "file.txt")))
}

func TestValidateAcceptsNotYetExistingTarget(t *testing.T) {
	v, root := newTestVFS(t)

	require.True(t, v.Validate(filepath.Join(root, "sub", "newfile.txt")))
	require.False(t, v.Validate(filepath.Join(root, "..", "newfile.txt")))
}

func TestGetStatDirNoGlobBehavesLikeListdir(t *testing.T) {
	v, _ := newTestVFS(t)
	v.SetCwd("/sub")

	entries, _, err := v.GetStatDir("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "file.txt", entries[0].Name())
}

func TestGetStatDirGlobFiltersNonRecursively(t *testing.T) {
	v, root := newTestVFS(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "other.log"), []byte("x"), 0o644))

	entries, _, err := v.GetStatDir("/sub/*.txt")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "file.txt", entries[0].Name())
}

func TestGetStatDirRejectsGlobInDirPortion(t *testing.T) {
	v, _ := newTestVFS(t)

	_, _, err := v.GetStatDir("/su*/file.txt")
	require.ErrorIs(t, err, vfs.ErrDirRecursionNotSupported)
}
