package vfs

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
)

const (
	dateFormatRecent = "Jan _2 15:04"
	dateFormatOld    = "Jan _2  2006"
	dateFormatOldCut = time.Hour * 24 * 30 * 6
	dateFormatMLSx   = "20060102150405"
)

// ErrDirRecursionNotSupported is returned by GetStatDir when the
// directory half of a glob argument itself contains metacharacters.
var ErrDirRecursionNotSupported = errors.New("directory recursion not supported")

// RenderLIST renders entries the way `/bin/ls -lA` would: permission
// string, nlink, owner, group, size, abbreviated mtime, name, with
// " -> target" appended for symlinks. dirHost is the host directory
// the entries were listed from, needed to resolve symlink targets.
func RenderLIST(now time.Time, dirHost string, entries []os.FileInfo) []string {
	lines := make([]string, 0, len(entries))

	for _, info := range entries {
		lines = append(lines, renderLISTLine(now, dirHost, info))
	}

	return lines
}

func renderLISTLine(now time.Time, dirHost string, info os.FileInfo) string {
	owner, group, nlink := ownerGroupNlink(info)

	dateFormat := dateFormatRecent
	if now.Sub(info.ModTime()) > dateFormatOldCut {
		dateFormat = dateFormatOld
	}

	line := fmt.Sprintf(
		"%s %3d %-8s %-8s %12d %s %s",
		info.Mode().String(),
		nlink,
		owner,
		group,
		info.Size(),
		info.ModTime().Format(dateFormat),
		info.Name(),
	)

	if info.Mode()&os.ModeSymlink != 0 {
		if target, err := os.Readlink(filepath.Join(dirHost, info.Name())); err == nil {
			line += " -> " + target
		}
	}

	return line
}

// RenderNLST renders bare names, one per entry.
func RenderNLST(entries []os.FileInfo) []string {
	names := make([]string, 0, len(entries))
	for _, info := range entries {
		names = append(names, info.Name())
	}

	return names
}

// RenderMLSD renders one MLSx fact line per entry, named by the entry's
// own base name (an entry named "." or ".." gets type=cdir/pdir).
func RenderMLSD(entries []os.FileInfo) []string {
	lines := make([]string, 0, len(entries))
	for _, info := range entries {
		lines = append(lines, mlsxFacts(info, info.Name()))
	}

	return lines
}

// RenderMLST renders the single-fact-line form for MLST: a leading
// space, then the facts, then the fully qualified virtual path.
func RenderMLST(info os.FileInfo, virtualPath string) string {
	return " " + mlsxFacts(info, virtualPath)
}

func mlsxFacts(info os.FileInfo, name string) string {
	var listType string

	switch {
	case name == ".":
		listType = "cdir"
	case name == "..":
		listType = "pdir"
	case info.IsDir():
		listType = "dir"
	default:
		listType = "file"
	}

	facts := fmt.Sprintf("type=%s;size=%d;modify=%s;", listType, info.Size(), info.ModTime().Format(dateFormatMLSx))

	if extra, ok := unixFacts(info); ok {
		facts += extra
	} else {
		facts += createFact(info)
	}

	return facts + " " + name
}

func createFact(info os.FileInfo) string {
	return fmt.Sprintf("create=%s;", info.ModTime().Format(dateFormatMLSx))
}

// GetStatDir implements the STAT-with-argument "get_stat_dir" rule
// (spec §4.1): no glob metacharacters means behave like LIST; a glob
// pattern is split into (dir, pattern) and filtered non-recursively.
// It also returns the host directory the entries were read from, for
// callers that need to resolve symlink targets when rendering.
func (v *VFS) GetStatDir(arg string) ([]os.FileInfo, string, error) {
	if !hasGlobMeta(arg) {
		host := v.ToHost(arg)
		entries, err := v.Listdir(host)

		return entries, host, err
	}

	dir, pattern := path.Split(arg)
	dir = strings.TrimSuffix(dir, "/")

	if hasGlobMeta(dir) {
		return nil, "", ErrDirRecursionNotSupported
	}

	if dir == "" {
		dir = v.Cwd()
	}

	hostDir := v.ToHost(dir)

	names, err := godirwalk.ReadDirnames(hostDir, nil)
	if err != nil {
		return nil, hostDir, wrapErr("listdir", hostDir, err)
	}

	sort.Strings(names)

	var matched []os.FileInfo

	for _, name := range names {
		ok, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, hostDir, err
		}

		if !ok {
			continue
		}

		info, err := v.Stat(filepath.Join(hostDir, name))
		if err != nil {
			continue
		}

		matched = append(matched, info)
	}

	return matched, hostDir, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
