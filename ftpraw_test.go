package ftpd_test

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// rawControlConn is a bare control-channel client, used where goftp's
// Client (which authenticates eagerly on connect) can't express the
// sequence under test — USER/PASS failure handling in particular.
type rawControlConn struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialRaw(t *testing.T, addr string) *rawControlConn {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	rc := &rawControlConn{t: t, conn: conn, r: bufio.NewReader(conn)}
	rc.readReply() // banner

	return rc
}

func (rc *rawControlConn) readReply() (int, string) {
	rc.t.Helper()

	var lastLine string

	for {
		line, err := rc.r.ReadString('\n')
		require.NoError(rc.t, err)

		lastLine = strings.TrimRight(line, "\r\n")
		if len(lastLine) >= 4 && lastLine[3] == ' ' {
			break
		}
	}

	code, err := strconv.Atoi(lastLine[:3])
	require.NoError(rc.t, err)

	return code, lastLine[4:]
}

func (rc *rawControlConn) send(cmd string) (int, string) {
	rc.t.Helper()

	_, err := fmt.Fprintf(rc.conn, "%s\r\n", cmd)
	require.NoError(rc.t, err)

	return rc.readReply()
}

func (rc *rawControlConn) sendAndExpect(cmd string, expected int) {
	rc.t.Helper()

	code, msg := rc.send(cmd)
	require.Equalf(rc.t, expected, code, "command %q: %s", cmd, msg)
}
