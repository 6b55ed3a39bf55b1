//go:build linux || freebsd || darwin || aix || dragonfly || netbsd || openbsd
// +build linux freebsd darwin aix dragonfly netbsd openbsd

package vfs

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
)

// ownerGroupNlink extracts the POSIX owner, group and link count from
// an os.FileInfo's underlying syscall.Stat_t. Falls back to "owner"/
// "group"/1 when the Sys() value isn't what we expect.
func ownerGroupNlink(info os.FileInfo) (owner, group string, nlink uint64) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "owner", "group", 1
	}

	return strconv.FormatUint(uint64(st.Uid), 10), strconv.FormatUint(uint64(st.Gid), 10), uint64(st.Nlink)
}

// unixFacts renders the POSIX MLSx facts: UNIX.mode, UNIX.uid,
// UNIX.gid and a unique id derived from device+inode.
func unixFacts(info os.FileInfo) (string, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", false
	}

	facts := fmt.Sprintf(
		"UNIX.mode=%04o;UNIX.uid=%d;UNIX.gid=%d;unique=%xg%x;",
		st.Mode&0o7777,
		st.Uid,
		st.Gid,
		st.Dev,
		st.Ino,
	)

	return facts, true
}
