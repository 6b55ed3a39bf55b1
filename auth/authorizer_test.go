package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vftpd/vftpd/auth"
)

func TestTableAddUserAndValidate(t *testing.T) {
	home := t.TempDir()
	table := auth.NewTable()

	err := table.AddUser(auth.User{
		Name:         "alice",
		PasswordHash: auth.HashPassword("alice", "secret"),
		Home:         home,
	}, "rw")
	require.NoError(t, err)

	require.True(t, table.HasUser("alice"))
	require.True(t, table.Validate("alice", "secret"))
	require.False(t, table.Validate("alice", "wrong"))
	require.True(t, table.MayRead("alice", home))
	require.True(t, table.MayWrite("alice", home))

	h, err := table.HomeOf("alice")
	require.NoError(t, err)
	require.Equal(t, home, h)
}

func TestTableRejectsDuplicateUser(t *testing.T) {
	home := t.TempDir()
	table := auth.NewTable()

	require.NoError(t, table.AddUser(auth.User{Name: "bob", Home: home}, "r"))

	err := table.AddUser(auth.User{Name: "bob", Home: home}, "r")
	require.ErrorIs(t, err, auth.ErrUserExists)
}

func TestTableRejectsMissingHome(t *testing.T) {
	table := auth.NewTable()

	err := table.AddUser(auth.User{Name: "bob", Home: "/does/not/exist"}, "r")
	require.ErrorIs(t, err, auth.ErrNoSuchHome)
}

func TestTableRejectsBadPerms(t *testing.T) {
	home := t.TempDir()
	table := auth.NewTable()

	err := table.AddUser(auth.User{Name: "bob", Home: home}, "x")
	require.ErrorIs(t, err, auth.ErrBadPerms)
}

func TestAnonymousAcceptsAnyPassword(t *testing.T) {
	home := t.TempDir()
	table := auth.NewTable()

	require.NoError(t, table.AddUser(auth.User{Name: auth.AnonymousUser, Home: home}, "r"))

	require.True(t, table.Validate(auth.AnonymousUser, "whatever"))
	require.True(t, table.Validate(auth.AnonymousUser, ""))
}

func TestUnknownUserDoesNotValidate(t *testing.T) {
	table := auth.NewTable()
	require.False(t, table.Validate("ghost", "x"))
	require.False(t, table.HasUser("ghost"))
}

