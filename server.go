// Package ftpd implements an RFC-959 FTP server: a Protocol Interpreter
// driving per-session Data Transfer Processes against a sandboxed
// Virtual Filesystem, authenticated through an Authorizer.
package ftpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vftpd/vftpd/auth"
	"github.com/vftpd/vftpd/internal/config"
	"github.com/vftpd/vftpd/internal/ftplog"
)

// ErrNotListening is returned by Stop when the server isn't listening.
var ErrNotListening = errors.New("not listening")

// ErrTooManyConnections is logged (and the connection dropped) when a
// configured connection cap is hit (spec §4.5).
var ErrTooManyConnections = errors.New("too many connections")

// commandDescription drives the argument check, auth gate and
// dispatch for one command (spec §4.4 command classes).
type commandDescription struct {
	PreAuth         bool // runs in UNAUTH/AWAIT_PASS
	NeedsArg        bool
	ForbidsArg      bool
	PathScoped      bool // validated with validpath(ftp2fs(arg)) before dispatch
	TransferRelated bool // runs in its own goroutine, cancellable via ABOR
	SpecialAction   bool // runs even while a transfer is in progress
	HelpText        string
	Fn              func(*session, string) error
}

var commandsMap = map[string]*commandDescription{ //nolint:gochecknoglobals
	"USER": {PreAuth: true, NeedsArg: true, HelpText: "USER <name>: identify as name", Fn: (*session).handleUSER},
	"PASS": {PreAuth: true, HelpText: "PASS <password>: authenticate", Fn: (*session).handlePASS},
	"QUIT": {PreAuth: true, ForbidsArg: true, SpecialAction: true, HelpText: "QUIT: terminate the session", Fn: (*session).handleQUIT},
	"REIN": {ForbidsArg: true, HelpText: "REIN: reinitialize the session", Fn: (*session).handleREIN},

	"FEAT": {PreAuth: true, ForbidsArg: true, HelpText: "FEAT: list supported extensions", Fn: (*session).handleFEAT},
	"HELP": {PreAuth: true, HelpText: "HELP [cmd]: show help", Fn: (*session).handleHELP},
	"NOOP": {PreAuth: true, ForbidsArg: true, HelpText: "NOOP: do nothing", Fn: (*session).handleNOOP},
	"SYST": {PreAuth: true, ForbidsArg: true, HelpText: "SYST: report the system type", Fn: (*session).handleSYST},
	"STAT": {PreAuth: true, SpecialAction: true, HelpText: "STAT [path]: status or directory listing", Fn: (*session).handleSTAT},

	"ACCT": {NeedsArg: true, HelpText: "ACCT <info>: not supported", Fn: (*session).handleNotImplemented},
	"SITE": {HelpText: "SITE: not supported", Fn: (*session).handleNotImplemented},
	"SMNT": {NeedsArg: true, HelpText: "SMNT <path>: not supported", Fn: (*session).handleNotImplemented},

	"TYPE": {NeedsArg: true, HelpText: "TYPE <A|I>: set transfer type", Fn: (*session).handleTYPE},
	"STRU": {NeedsArg: true, HelpText: "STRU <F>: set file structure", Fn: (*session).handleSTRU},
	"MODE": {NeedsArg: true, HelpText: "MODE <S>: set transfer mode", Fn: (*session).handleMODE},
	"PORT": {NeedsArg: true, HelpText: "PORT <h,h,h,h,p,p>: active mode", Fn: (*session).handlePORT},
	"PASV": {ForbidsArg: true, HelpText: "PASV: passive mode", Fn: (*session).handlePASV},
	"ABOR": {ForbidsArg: true, SpecialAction: true, HelpText: "ABOR: abort the transfer in progress", Fn: (*session).handleABOR},

	"PWD":  {ForbidsArg: true, HelpText: "PWD: print working directory", Fn: (*session).handlePWD},
	"XPWD": {ForbidsArg: true, HelpText: "XPWD: synonym for PWD", Fn: (*session).handlePWD},
	"CWD":  {NeedsArg: true, PathScoped: true, HelpText: "CWD <path>: change working directory", Fn: (*session).handleCWD},
	"XCWD": {NeedsArg: true, PathScoped: true, HelpText: "XCWD: synonym for CWD", Fn: (*session).handleCWD},
	"CDUP": {ForbidsArg: true, HelpText: "CDUP: change to parent directory", Fn: (*session).handleCDUP},
	"XCUP": {ForbidsArg: true, HelpText: "XCUP: synonym for CDUP", Fn: (*session).handleCDUP},
	"MKD":  {NeedsArg: true, HelpText: "MKD <path>: create a directory", Fn: (*session).handleMKD},
	"XMKD": {NeedsArg: true, HelpText: "XMKD: synonym for MKD", Fn: (*session).handleMKD},
	"RMD":  {NeedsArg: true, PathScoped: true, HelpText: "RMD <path>: remove a directory", Fn: (*session).handleRMD},
	"XRMD": {NeedsArg: true, PathScoped: true, HelpText: "XRMD: synonym for RMD", Fn: (*session).handleRMD},

	"LIST": {TransferRelated: true, PathScoped: true, HelpText: "LIST [path]: directory listing", Fn: (*session).handleLIST},
	"NLST": {TransferRelated: true, PathScoped: true, HelpText: "NLST [path]: bare-name directory listing", Fn: (*session).handleNLST},
	"MLSD": {TransferRelated: true, PathScoped: true, HelpText: "MLSD [path]: machine-readable listing", Fn: (*session).handleMLSD},
	"MLST": {PathScoped: true, HelpText: "MLST <path>: machine-readable fact line", Fn: (*session).handleMLST},

	"RETR": {NeedsArg: true, PathScoped: true, TransferRelated: true, HelpText: "RETR <path>: download a file", Fn: (*session).handleRETR},
	"STOR": {NeedsArg: true, PathScoped: true, TransferRelated: true, HelpText: "STOR <path>: upload a file", Fn: (*session).handleSTOR},
	"APPE": {NeedsArg: true, PathScoped: true, TransferRelated: true, HelpText: "APPE <path>: append to a file", Fn: (*session).handleAPPE},
	"STOU": {TransferRelated: true, HelpText: "STOU [prefix]: upload to a unique filename", Fn: (*session).handleSTOU},
	"DELE": {NeedsArg: true, PathScoped: true, HelpText: "DELE <path>: delete a file", Fn: (*session).handleDELE},
	"RNFR": {NeedsArg: true, HelpText: "RNFR <path>: rename source", Fn: (*session).handleRNFR},
	"RNTO": {NeedsArg: true, HelpText: "RNTO <path>: rename destination", Fn: (*session).handleRNTO},
	"ALLO": {NeedsArg: true, HelpText: "ALLO <size>: reserve space (no-op)", Fn: (*session).handleALLO},
	"REST": {NeedsArg: true, HelpText: "REST <offset>: set restart offset", Fn: (*session).handleREST},
	"SIZE": {NeedsArg: true, PathScoped: true, HelpText: "SIZE <path>: report file size", Fn: (*session).handleSIZE},
	"MDTM": {NeedsArg: true, PathScoped: true, HelpText: "MDTM <path>: report modification time", Fn: (*session).handleMDTM},
}

var specialAttentionCommands = []string{"ABOR", "STAT", "QUIT"} //nolint:gochecknoglobals

// Server listens for FTP control connections and spawns a session per
// accepted client.
type Server struct {
	Logger     ftplog.Logger
	settings   config.ServerSettings
	authorizer auth.Authorizer

	listener      net.Listener
	clientCounter uint32

	activeConns int32

	ipMu     sync.Mutex
	ipCounts map[string]int
}

// New creates a Server. It does not start listening.
func New(authorizer auth.Authorizer, settings config.ServerSettings, logger ftplog.Logger) *Server {
	if logger == nil {
		logger = ftplog.NewNoop()
	}

	return &Server{
		Logger:     logger,
		settings:   settings,
		authorizer: authorizer,
		ipCounts:   make(map[string]int),
	}
}

// Listen starts the control-channel listener. Not blocking. The
// listening socket is opened with SO_REUSEADDR/SO_REUSEPORT (see
// control_unix.go/control_windows.go) so a restarted server can rebind
// the same address without waiting out TIME_WAIT.
func (s *Server) Listen() error {
	lc := net.ListenConfig{Control: Control}

	listener, err := lc.Listen(context.Background(), "tcp", s.settings.ListenAddr)
	if err != nil {
		return newNetworkError("cannot listen on main port", err)
	}

	s.listener = listener
	s.Logger.Info("listening", "address", s.listener.Addr())

	return nil
}

// Addr reports the listening address, or "" if not listening.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Stop closes the listener. In-flight sessions are left to finish on
// their own; it does not forcibly disconnect clients.
func (s *Server) Stop() error {
	if s.listener == nil {
		return ErrNotListening
	}

	if err := s.listener.Close(); err != nil {
		return newNetworkError("couldn't close listener", err)
	}

	return nil
}

// Serve accepts and processes incoming clients until the listener is
// closed or an unrecoverable error occurs.
func (s *Server) Serve() error {
	var tempDelay time.Duration

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if stop, finalErr := s.handleAcceptError(err, &tempDelay); stop {
				return finalErr
			}

			continue
		}

		tempDelay = 0

		s.clientArrival(conn)
	}
}

// ListenAndServe chains Listen and Serve.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.Logger.Info("starting")

	return s.Serve()
}

func (s *Server) handleAcceptError(err error, tempDelay *time.Duration) (bool, error) {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		if *tempDelay == 0 {
			*tempDelay = 5 * time.Millisecond
		} else {
			*tempDelay *= 2
		}

		if max := time.Second; *tempDelay > max {
			*tempDelay = max
		}

		s.Logger.Warn("accept error, retrying", "err", err, "delay", *tempDelay)
		time.Sleep(*tempDelay)

		return false, nil
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err.Error() == "use of closed network connection" {
		s.listener = nil
		return true, nil
	}

	s.Logger.Error("listener accept error", "err", err)

	return true, newNetworkError("listener accept error", err)
}

func (s *Server) clientArrival(conn net.Conn) {
	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

	if reason, ok := s.checkConnectionCaps(host); !ok {
		s.Logger.Warn("connection rejected", "err", ErrTooManyConnections, "remote", conn.RemoteAddr(), "reason", reason)
		fmt.Fprintf(conn, "%d %s\r\n", StatusServiceNotAvailable, reason)
		conn.Close()

		return
	}

	atomic.AddInt32(&s.activeConns, 1)
	s.ipMu.Lock()
	s.ipCounts[host]++
	s.ipMu.Unlock()

	s.clientCounter++
	id := s.clientCounter

	sess := s.newSession(conn, id)

	go func() {
		defer s.clientDeparture(host)
		sess.handleCommands()
	}()
}

// checkConnectionCaps enforces max_connections and
// max_connections_per_ip (spec §4.5); the teacher's upstream library
// leaves these as driver-level concerns, this server enforces them
// directly since it owns a concrete Authorizer/VFS stack.
func (s *Server) checkConnectionCaps(host string) (string, bool) {
	if s.settings.MaxConnections > 0 && int(atomic.LoadInt32(&s.activeConns)) >= s.settings.MaxConnections {
		return "Too many connections. Service temporary unavailable.", false
	}

	if s.settings.MaxConnectionsPerIP > 0 {
		s.ipMu.Lock()
		count := s.ipCounts[host]
		s.ipMu.Unlock()

		if count >= s.settings.MaxConnectionsPerIP {
			return "Too many connections from the same IP address.", false
		}
	}

	return "", true
}

func (s *Server) clientDeparture(host string) {
	atomic.AddInt32(&s.activeConns, -1)

	s.ipMu.Lock()
	s.ipCounts[host]--
	if s.ipCounts[host] <= 0 {
		delete(s.ipCounts, host)
	}
	s.ipMu.Unlock()
}
