//go:build windows || plan9 || js
// +build windows plan9 js

package vfs

import "os"

// ownerGroupNlink has no POSIX equivalent on these platforms.
func ownerGroupNlink(os.FileInfo) (owner, group string, nlink uint64) {
	return "owner", "group", 1
}

// unixFacts never applies outside POSIX; create= is used instead.
func unixFacts(os.FileInfo) (string, bool) {
	return "", false
}
