// Package vfs implements the Virtual Filesystem component (spec §4.1):
// path normalization and translation between the client's virtual
// namespace and the host filesystem, containment enforcement, and the
// filesystem operations a session needs once a path has been
// validated. It is backed by afero so the same session code can, in
// principle, run against any afero.Fs, though the shipped server only
// ever roots it at a real OS directory.
package vfs

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// VFS anchors a session's view of the filesystem: root is the absolute
// host directory chosen at login (the user's home), cwd is the current
// directory expressed in the client's virtual space and always starts
// with "/".
type VFS struct {
	Fs   afero.Fs
	root string
	cwd  string
}

// New roots a VFS at an absolute host directory.
func New(fs afero.Fs, root string) *VFS {
	return &VFS{
		Fs:   fs,
		root: filepath.Clean(root),
		cwd:  "/",
	}
}

// Root returns the host path the session is confined to.
func (v *VFS) Root() string { return v.root }

// Cwd returns the current working directory in virtual space.
func (v *VFS) Cwd() string { return v.cwd }

// SetCwd replaces the current working directory. Callers must have
// already validated the target (see Validate) before calling this.
func (v *VFS) SetCwd(virtual string) { v.cwd = virtual }

// Normalize implements ftpnorm: turn any client-supplied path into an
// absolute virtual path using "/" separators, with "." and ".." fully
// collapsed and never ascending above "/".
func (v *VFS) Normalize(input string) string {
	input = filepath.ToSlash(input)

	if !strings.HasPrefix(input, "/") {
		input = v.cwd + "/" + input
	}

	cleaned := path.Clean(input)
	if !strings.HasPrefix(cleaned, "/") {
		return "/"
	}

	return cleaned
}

// ToHost implements ftp2fs: combine root with the normalized virtual
// path to produce a host-path candidate. The result is NOT validated
// for containment; callers MUST call Validate before touching it.
func (v *VFS) ToHost(virtual string) string {
	normalized := v.Normalize(virtual)
	rel := strings.TrimPrefix(normalized, "/")

	return filepath.Clean(filepath.Join(v.root, filepath.FromSlash(rel)))
}

// ToVirtual implements fs2ftp: the reverse translation. If host does
// not lie within root, "/" is returned.
func (v *VFS) ToVirtual(host string) string {
	host = filepath.Clean(host)

	rel, err := filepath.Rel(v.root, host)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "/"
	}

	if rel == "." {
		return "/"
	}

	return "/" + filepath.ToSlash(rel)
}

// Validate implements validpath: resolve symlinks in both root and the
// candidate host path, and check that the resolved candidate lies
// within the resolved root. A candidate that doesn't yet exist is
// checked against its nearest existing ancestor, so MKD/STOR targets
// that haven't been created yet still validate correctly.
func (v *VFS) Validate(hostPath string) bool {
	resolvedRoot, err := filepath.EvalSymlinks(v.root)
	if err != nil {
		return false
	}

	resolvedRoot = filepath.Clean(resolvedRoot) + string(filepath.Separator)

	resolved, err := resolveExisting(hostPath)
	if err != nil {
		return false
	}

	resolved = filepath.Clean(resolved) + string(filepath.Separator)

	return strings.HasPrefix(resolved, resolvedRoot)
}

// resolveExisting resolves symlinks along hostPath, walking up to the
// nearest existing ancestor when the path itself (or a trailing
// portion of it) doesn't exist yet.
func resolveExisting(hostPath string) (string, error) {
	hostPath = filepath.Clean(hostPath)

	resolved, err := filepath.EvalSymlinks(hostPath)
	if err == nil {
		return resolved, nil
	}

	if !os.IsNotExist(err) {
		return "", err
	}

	parent := filepath.Dir(hostPath)
	if parent == hostPath {
		return "", err
	}

	resolvedParent, parentErr := resolveExisting(parent)
	if parentErr != nil {
		return "", parentErr
	}

	return filepath.Join(resolvedParent, filepath.Base(hostPath)), nil
}

// Exists reports whether a host path can be stat'd and is a directory.
func (v *VFS) Exists(hostPath string) bool {
	info, err := v.Fs.Stat(hostPath)
	return err == nil && info.IsDir()
}
