package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vftpd/vftpd/auth"
	"github.com/vftpd/vftpd/internal/config"
)

func TestLoadUsersParsesRecordsAndSkipsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.conf")
	content := "# comment\n\nalice:deadbeef:rw:/home/alice\nbob:cafebabe:r:/home/bob\n"
	writeFixture(t, path, content)

	users, err := config.LoadUsers(path)
	require.NoError(t, err)
	require.Len(t, users, 2)

	require.Equal(t, "alice", users[0].Name)
	require.Equal(t, "deadbeef", users[0].PasswordHash)
	require.Equal(t, "/home/alice", users[0].Home)
	require.Equal(t, auth.PermRead|auth.PermWrite, users[0].Perms)

	require.Equal(t, "bob", users[1].Name)
	require.Equal(t, auth.PermRead, users[1].Perms)
}

func TestLoadUsersRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.conf")
	writeFixture(t, path, "alice:deadbeef:rw\n")

	_, err := config.LoadUsers(path)
	require.Error(t, err)
}

func TestPopulateTableWiresUsersIntoTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.conf")
	home := t.TempDir()
	writeFixture(t, path, "alice:"+auth.HashPassword("alice", "secret")+":rw:"+home+"\n")

	table := auth.NewTable()
	require.NoError(t, config.PopulateTable(path, table))

	require.True(t, table.HasUser("alice"))
	require.True(t, table.Validate("alice", "secret"))
	require.True(t, table.MayWrite("alice", home))
}

func TestDumpUsersPutsAnonymousFirst(t *testing.T) {
	users := []auth.User{
		{Name: "zeta", PasswordHash: "1", Perms: auth.PermRead, Home: "/z"},
		{Name: auth.AnonymousUser, PasswordHash: "", Perms: auth.PermRead, Home: "/anon"},
		{Name: "alpha", PasswordHash: "2", Perms: auth.PermRead, Home: "/a"},
	}

	var buf bytes.Buffer
	require.NoError(t, config.DumpUsers(&buf, users))

	lines := buf.String()
	anonIdx := indexOf(t, lines, auth.AnonymousUser)
	alphaIdx := indexOf(t, lines, "alpha")
	zetaIdx := indexOf(t, lines, "zeta")

	require.Less(t, anonIdx, alphaIdx)
	require.Less(t, alphaIdx, zetaIdx)
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()

	idx := -1
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			idx = i
			break
		}
	}

	require.GreaterOrEqual(t, idx, 0, "expected %q in %q", needle, haystack)

	return idx
}
