package ftpd_test

import (
	"testing"

	"github.com/secsy/goftp"
	"github.com/stretchr/testify/require"

	"github.com/vftpd/vftpd"
	"github.com/vftpd/vftpd/auth"
	"github.com/vftpd/vftpd/internal/config"
)

const (
	testUser = "alice"
	testPass = "secret"
)

// newTestServer starts a listening server against a fresh temp-dir home
// for testUser, and stops it when the test ends. Grounded on the
// teacher's NewTestServer/NewTestServerWithDriver harness.
func newTestServer(t *testing.T, tweak func(*config.ServerSettings)) (*ftpd.Server, string) {
	t.Helper()

	home := t.TempDir()

	table := auth.NewTable()
	require.NoError(t, table.AddUser(auth.User{
		Name:         testUser,
		PasswordHash: auth.HashPassword(testUser, testPass),
		Home:         home,
	}, "rw"))

	settings := config.Defaults()
	settings.ListenAddr = "127.0.0.1:0"

	if tweak != nil {
		tweak(&settings)
	}

	srv := ftpd.New(table, settings, nil)
	require.NoError(t, srv.Listen())

	go func() { _ = srv.Serve() }()

	t.Cleanup(func() { _ = srv.Stop() })

	return srv, home
}

func newTestClient(t *testing.T, addr string) *goftp.Client {
	t.Helper()

	client, err := goftp.DialConfig(goftp.Config{
		User:     testUser,
		Password: testPass,
	}, addr)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client
}
