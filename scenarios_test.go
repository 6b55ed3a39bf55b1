package ftpd_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAnonymousNotConfigured exercises spec.md §8 property 1's negative
// twin: an unconfigured "anonymous" user must be rejected without
// revealing whether any other user exists.
func TestAnonymousNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	raw := dialRaw(t, srv.Addr())

	raw.sendAndExpect("USER anonymous", 331)
	raw.sendAndExpect("PASS x@y", 530)
}

// TestPathTraversalDenied covers the VFS containment invariant: a path
// that climbs above the user's root with ".." is clamped at the virtual
// root, so it never reaches the host's /etc and is rejected with 550.
func TestPathTraversalDenied(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	raw := dialRaw(t, srv.Addr())
	raw.sendAndExpect("USER "+testUser, 331)
	raw.sendAndExpect("PASS "+testPass, 230)

	raw.sendAndExpect("CWD ../../../../etc", 550)
	raw.sendAndExpect("RETR ../../../../etc/passwd", 550)
}

// TestRESTResume covers spec.md §8 property 5 and the literal scenario
// in §8.3: a file in the user's home can be partially re-RETRieved
// from a REST offset on the same control connection.
func TestRESTResume(t *testing.T) {
	srv, home := newTestServer(t, nil)

	payload := bytes.Repeat([]byte("0123456789"), 100) // 1000 bytes
	require.NoError(t, os.WriteFile(filepath.Join(home, "foo"), payload, 0o644))

	client := newTestClient(t, srv.Addr())

	raw, err := client.OpenRawConn()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	code, _, err := raw.SendCommand("TYPE I")
	require.NoError(t, err)
	require.Equal(t, 200, code)

	code, _, err = raw.SendCommand("REST 600")
	require.NoError(t, err)
	require.Equal(t, 350, code)

	dcGetter, err := raw.PrepareDataConn()
	require.NoError(t, err)

	code, _, err = raw.SendCommand("RETR foo")
	require.NoError(t, err)
	require.Equal(t, 150, code)

	dc, err := dcGetter()
	require.NoError(t, err)

	got, err := io.ReadAll(dc)
	require.NoError(t, err)
	_ = dc.Close()

	code, _, err = raw.ReadResponse()
	require.NoError(t, err)
	require.Equal(t, 226, code)

	require.Equal(t, payload[600:], got)
}

// TestMaxLoginAttemptsDisconnects covers spec.md §4.4 PASS failure
// handling: after max_login_attempts failures the server disconnects
// rather than keep accepting USER/PASS.
func TestMaxLoginAttemptsDisconnects(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	raw := dialRaw(t, srv.Addr())

	for i := 0; i < 2; i++ {
		raw.sendAndExpect("USER "+testUser, 331)
		raw.sendAndExpect("PASS wrong", 530)
	}

	raw.sendAndExpect("USER "+testUser, 331)

	code, msg := raw.send("PASS wrong")
	require.Equal(t, 530, code)
	require.Contains(t, msg, "Maximum login attempts")

	// the control connection is now closed; a further command must fail.
	_, err := raw.conn.Write([]byte("NOOP\r\n"))
	if err == nil {
		_, err = raw.r.ReadString('\n')
	}
	require.Error(t, err)
}

// TestABORDuringTransfer covers spec.md §8.3 scenario 6: aborting a
// RETR mid-flight closes the data channel and replies 426 then 226.
func TestABORDuringTransfer(t *testing.T) {
	srv, home := newTestServer(t, nil)

	big := bytes.Repeat([]byte("x"), 8<<20)
	require.NoError(t, os.WriteFile(filepath.Join(home, "big"), big, 0o644))

	client := newTestClient(t, srv.Addr())

	raw, err := client.OpenRawConn()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	code, _, err := raw.SendCommand("TYPE I")
	require.NoError(t, err)
	require.Equal(t, 200, code)

	dcGetter, err := raw.PrepareDataConn()
	require.NoError(t, err)

	code, _, err = raw.SendCommand("RETR big")
	require.NoError(t, err)
	require.Equal(t, 150, code)

	dc, err := dcGetter()
	require.NoError(t, err)

	// read a little, then abort before the transfer finishes.
	small := make([]byte, 1024)
	_, err = io.ReadFull(dc, small)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	code, _, err = raw.SendCommand("ABOR")
	require.NoError(t, err)
	require.Equal(t, 426, code)

	code, _, err = raw.ReadResponse()
	require.NoError(t, err)
	require.Equal(t, 226, code)
}
