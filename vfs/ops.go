package vfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// OpenMode selects the access mode a path is opened under.
type OpenMode int

const (
	OpenReadOnly OpenMode = iota
	OpenWriteTruncate
	OpenAppend
	OpenReadWrite
)

// FilesystemError is the single "filesystem failure" kind the spec
// asks for: callers map it to an FTP reply code, but never need to
// distinguish *why* the syscall failed beyond the OS message.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

func wrapErr(op, path string, err error) error {
	if err == nil {
		return nil
	}

	return &FilesystemError{Op: op, Path: path, Err: err}
}

// Open opens hostPath under the given mode.
func (v *VFS) Open(hostPath string, mode OpenMode) (afero.File, error) {
	var (
		f   afero.File
		err error
	)

	switch mode {
	case OpenReadOnly:
		f, err = v.Fs.Open(hostPath)
	case OpenWriteTruncate:
		f, err = v.Fs.OpenFile(hostPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	case OpenAppend:
		f, err = v.Fs.OpenFile(hostPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	case OpenReadWrite:
		f, err = v.Fs.OpenFile(hostPath, os.O_RDWR|os.O_CREATE, 0o644)
	default:
		return nil, fmt.Errorf("unknown open mode %d", mode)
	}

	return f, wrapErr("open", hostPath, err)
}

// Mkstemp creates a unique file under dir using prefix, returning the
// open handle and its basename (used by STOU).
func (v *VFS) Mkstemp(dir, prefix string) (afero.File, string, error) {
	f, err := afero.TempFile(v.Fs, dir, prefix)
	if err != nil {
		return nil, "", wrapErr("mkstemp", dir, err)
	}

	return f, filepath.Base(f.Name()), nil
}

// Mkdir creates a directory.
func (v *VFS) Mkdir(hostPath string) error {
	return wrapErr("mkdir", hostPath, v.Fs.Mkdir(hostPath, 0o755))
}

// Rmdir removes an empty directory.
func (v *VFS) Rmdir(hostPath string) error {
	return wrapErr("rmdir", hostPath, v.Fs.Remove(hostPath))
}

// Remove deletes a file.
func (v *VFS) Remove(hostPath string) error {
	return wrapErr("remove", hostPath, v.Fs.Remove(hostPath))
}

// Rename moves oldHost to newHost.
func (v *VFS) Rename(oldHost, newHost string) error {
	return wrapErr("rename", oldHost, v.Fs.Rename(oldHost, newHost))
}

// Stat follows symlinks.
func (v *VFS) Stat(hostPath string) (os.FileInfo, error) {
	info, err := v.Fs.Stat(hostPath)
	return info, wrapErr("stat", hostPath, err)
}

// Lstat does not follow the final symlink component, when the
// underlying Fs supports it (afero.Lstater); otherwise falls back to
// Stat.
func (v *VFS) Lstat(hostPath string) (os.FileInfo, error) {
	if lst, ok := v.Fs.(afero.Lstater); ok {
		info, _, err := lst.LstatIfPossible(hostPath)
		return info, wrapErr("lstat", hostPath, err)
	}

	return v.Stat(hostPath)
}

// Listdir lists the immediate children of a directory.
func (v *VFS) Listdir(hostPath string) ([]os.FileInfo, error) {
	dir, err := v.Fs.Open(hostPath)
	if err != nil {
		return nil, wrapErr("listdir", hostPath, err)
	}
	defer dir.Close()

	entries, err := dir.Readdir(-1)

	return entries, wrapErr("listdir", hostPath, err)
}

// IsFile reports whether hostPath exists and is a regular file.
func (v *VFS) IsFile(hostPath string) bool {
	info, err := v.Stat(hostPath)
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether hostPath exists and is a directory.
func (v *VFS) IsDir(hostPath string) bool {
	info, err := v.Stat(hostPath)
	return err == nil && info.IsDir()
}

// IsLink reports whether hostPath is a symlink.
func (v *VFS) IsLink(hostPath string) bool {
	info, err := v.Lstat(hostPath)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// Lexists reports existence without following the final symlink.
func (v *VFS) Lexists(hostPath string) bool {
	_, err := v.Lstat(hostPath)
	return err == nil
}

// GetSize returns the raw host byte size (SIZE is always computed on
// raw bytes regardless of transfer type, spec §4.3).
func (v *VFS) GetSize(hostPath string) (int64, error) {
	info, err := v.Stat(hostPath)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// GetMTime stats hostPath; the modification time is read from the
// returned FileInfo.
func (v *VFS) GetMTime(hostPath string) (os.FileInfo, error) {
	return v.Stat(hostPath)
}

// Realpath resolves symlinks in hostPath, same semantics as
// filepath.EvalSymlinks.
func (v *VFS) Realpath(hostPath string) (string, error) {
	resolved, err := filepath.EvalSymlinks(hostPath)
	return resolved, wrapErr("realpath", hostPath, err)
}
