package ftpd

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// dataTransport is the DTP's connection source, active or passive
// (spec §4.2).
type dataTransport interface {
	Open() (net.Conn, error)
	Close() error
	SetInfo(string)
	GetInfo() string
}

var errNoTransferConnection = errors.New("no transfer connection was set up")

// activeTransport dials back to a client-specified address (PORT).
type activeTransport struct {
	raddr *net.TCPAddr
	conn  net.Conn
	info  string
}

func (a *activeTransport) Open() (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	conn, err := dialer.Dial("tcp", a.raddr.String())
	if err != nil {
		return nil, fmt.Errorf("could not establish active connection: %w", err)
	}

	a.conn = conn

	return conn, nil
}

func (a *activeTransport) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}

	return nil
}

func (a *activeTransport) SetInfo(info string) { a.info = info }
func (a *activeTransport) GetInfo() string     { return a.info }

// passiveTransport listens and waits for exactly one incoming
// connection (PASV), rejecting peers that don't match the control
// connection's remote address unless permit_foreign_addresses is set
// (spec §4.2, NEW relative to the teacher).
type passiveTransport struct {
	listener      *net.TCPListener
	conn          net.Conn
	info          string
	expectedHost  string
	permitForeign bool
}

func (p *passiveTransport) Open() (net.Conn, error) {
	if p.conn != nil {
		return p.conn, nil
	}

	for {
		if err := p.listener.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
			return nil, fmt.Errorf("failed to set deadline: %w", err)
		}

		conn, err := p.listener.Accept()
		if err != nil {
			return nil, err
		}

		if !p.permitForeign {
			host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
			if host != p.expectedHost {
				conn.Close()
				continue
			}
		}

		p.conn = conn

		return conn, nil
	}
}

func (p *passiveTransport) Close() error {
	var err error

	if p.listener != nil {
		err = p.listener.Close()
	}

	if p.conn != nil {
		if errConn := p.conn.Close(); err == nil {
			err = errConn
		}
	}

	return err
}

func (p *passiveTransport) SetInfo(info string) { p.info = info }
func (p *passiveTransport) GetInfo() string     { return p.info }

var remoteAddrRegex = regexp.MustCompile(`^([0-9]{1,3},){5}[0-9]{1,3}$`)

func (sess *session) handlePORT(param string) error {
	if !remoteAddrRegex.MatchString(param) {
		sess.writeMessage(StatusSyntaxErrorParameters, "Invalid PORT format.")
		return nil
	}

	parts := strings.Split(param, ",")

	ip := strings.Join(parts[0:4], ".")

	p1, err1 := strconv.Atoi(parts[4])
	p2, err2 := strconv.Atoi(parts[5])

	if err1 != nil || err2 != nil || p1 > 255 || p2 > 255 {
		sess.writeMessage(StatusSyntaxErrorParameters, "Invalid PORT format.")
		return nil
	}

	port := p1<<8 + p2

	settings := sess.server.settings

	if !settings.PermitForeignAddresses {
		host, _, _ := net.SplitHostPort(sess.conn.RemoteAddr().String())
		if ip != host {
			sess.writeMessage(StatusSyntaxErrorParameters, "Can't connect to a foreign address.")
			return nil
		}
	}

	if port < 1024 && !settings.PermitPrivilegedPorts {
		sess.writeMessage(StatusSyntaxErrorParameters, "Can't connect over a privileged port.")
		return nil
	}

	raddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		sess.writeMessage(StatusSyntaxErrorParameters, "Invalid PORT format.")
		return nil
	}

	sess.transferMu.Lock()
	sess.transfer = &activeTransport{raddr: raddr}
	sess.transferMu.Unlock()

	sess.writeMessage(StatusOK, "PORT command successful.")

	return nil
}

var errNoAvailableListeningPort = errors.New("could not find any free passive port")

func (sess *session) findPassiveListener() (*net.TCPListener, error) {
	portRange := sess.server.settings.PassivePortRange
	if portRange == nil {
		addr, _ := net.ResolveTCPAddr("tcp", ":0")
		return net.ListenTCP("tcp", addr)
	}

	attempts := portRange.End - portRange.Start
	if attempts < 10 {
		attempts = 10
	} else if attempts > 1000 {
		attempts = 1000
	}

	for i := 0; i < attempts; i++ {
		port := portRange.Start + rand.Intn(portRange.End-portRange.Start+1) //nolint:gosec
		laddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("0.0.0.0:%d", port))

		if err != nil {
			return nil, err
		}

		listener, err := net.ListenTCP("tcp", laddr)
		if err == nil {
			return listener, nil
		}
	}

	sess.logger.Warn("no free passive port found, falling back to kernel-assigned port",
		"rangeStart", portRange.Start, "rangeEnd", portRange.End)

	addr, _ := net.ResolveTCPAddr("tcp", ":0")

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, errNoAvailableListeningPort
	}

	return listener, nil
}

func (sess *session) handlePASV(string) error {
	listener, err := sess.findPassiveListener()
	if err != nil {
		sess.writeMessage(StatusServiceNotAvailable, fmt.Sprintf("Could not listen for passive connection: %v", err))
		return nil
	}

	host, _, _ := net.SplitHostPort(sess.conn.RemoteAddr().String())

	p := &passiveTransport{
		listener:      listener,
		expectedHost:  host,
		permitForeign: sess.server.settings.PermitForeignAddresses,
	}

	port := listener.Addr().(*net.TCPAddr).Port
	p1 := port / 256
	p2 := port - p1*256

	quads, err := sess.publicAddrQuads()
	if err != nil {
		listener.Close()
		sess.writeMessage(StatusServiceNotAvailable, fmt.Sprintf("Could not listen for passive connection: %v", err))

		return nil
	}

	sess.transferMu.Lock()
	sess.transfer = p
	sess.transferMu.Unlock()

	sess.writeMessage(StatusEnteringPASV,
		fmt.Sprintf("Entering passive mode (%s,%s,%s,%s,%d,%d)", quads[0], quads[1], quads[2], quads[3], p1, p2))

	return nil
}

func (sess *session) publicAddrQuads() ([]string, error) {
	ip := sess.server.settings.PublicHost
	if ip == "" {
		host, _, err := net.SplitHostPort(sess.conn.LocalAddr().String())
		if err != nil {
			return nil, err
		}

		ip = host
	}

	quads := strings.Split(ip, ".")
	if len(quads) != 4 {
		return nil, fmt.Errorf("public address %q is not IPv4", ip)
	}

	return quads, nil
}

// transferOpen opens the DTP connection, replying 150 (or 125 if
// already open) on success.
func (sess *session) transferOpen(info string) (net.Conn, error) {
	sess.transferMu.Lock()
	defer sess.transferMu.Unlock()

	if sess.transfer == nil {
		if sess.isTransferAborted {
			sess.isTransferAborted = false
			return nil, errNoTransferConnection
		}

		sess.writeMessage(StatusActionNotTaken, errNoTransferConnection.Error())

		return nil, errNoTransferConnection
	}

	code := StatusFileStatusOK
	if sess.isTransferOpen {
		code = StatusDataConnectionOpen
	}

	conn, err := sess.transfer.Open()
	if err != nil {
		sess.writeMessage(StatusCannotOpenDataConn, err.Error())
		return nil, err
	}

	sess.isTransferOpen = true
	sess.transfer.SetInfo(info)
	sess.writeMessage(code, "Using transfer connection.")

	return conn, nil
}

// countingWriter tallies bytes sent to the client (RETR, LIST family)
// into an int64 read concurrently by STAT/ABOR, so it must only ever
// be touched through the atomic package.
type countingWriter struct {
	w       io.Writer
	counter *int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	atomic.AddInt64(c.counter, int64(n))

	return n, err
}

// countingReader tallies bytes received from the client (STOR/APPE/STOU).
type countingReader struct {
	r       io.Reader
	counter *int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	atomic.AddInt64(c.counter, int64(n))

	return n, err
}

// closeTransferLocked releases the DTP. Must be called with
// transferMu held.
func (sess *session) closeTransferLocked() error {
	if sess.transfer == nil {
		return nil
	}

	err := sess.transfer.Close()
	sess.isTransferOpen = false
	sess.transfer = nil
	atomic.StoreInt64(&sess.txBytes, 0)
	atomic.StoreInt64(&sess.rxBytes, 0)

	return err
}

// transferClose closes the DTP and reports the outcome to the client
// (spec §4.3 ABOR/completion semantics).
func (sess *session) transferClose(transferErr error) {
	sess.transferMu.Lock()
	defer sess.transferMu.Unlock()

	closeErr := sess.closeTransferLocked()

	if sess.isTransferAborted {
		sess.isTransferAborted = false
		return
	}

	switch {
	case transferErr == nil && closeErr == nil:
		sess.writeMessage(StatusClosingDataConn, "Transfer complete.")
	case closeErr != nil:
		sess.writeMessage(getReplyCode(closeErr, StatusConnectionClosed), transferFailureMessage(closeErr))
	default:
		sess.writeMessage(getReplyCode(transferErr, StatusConnectionClosed), transferFailureMessage(transferErr))
	}

	if sess.getState() == stateQuitPending {
		sess.disconnect()
	}
}
