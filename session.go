package ftpd

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/vftpd/vftpd/internal/ftplog"
	"github.com/vftpd/vftpd/vfs"
)

// authState is the PI's authentication state machine (spec §4.4).
type authState int

const (
	stateUnauth authState = iota
	stateAwaitPass
	stateAuth
	stateQuitPending
)

// TransferType is the session's current data representation type.
type TransferType int

const (
	TransferTypeASCII TransferType = iota
	TransferTypeBinary
)

const maxCommandLine = 2048

// session is the per-connection Protocol Interpreter.
type session struct {
	id     uint32
	server *Server
	logger ftplog.Logger

	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	connectedAt time.Time

	stateMu sync.RWMutex
	state   authState
	user    string

	attemptedLogins int

	vfs *vfs.VFS

	transferType TransferType
	restartPos   int64
	rnfrSource   string

	lastCommand string

	transferMu        sync.Mutex
	transfer          dataTransport
	isTransferOpen    bool
	isTransferAborted bool
	transferInfo      string
	txBytes           int64
	rxBytes           int64

	transferWg sync.WaitGroup
}

func (s *Server) newSession(conn net.Conn, id uint32) *session {
	return &session{
		id:          id,
		server:      s,
		logger:      s.Logger.With("sessionId", id),
		conn:        conn,
		reader:      bufio.NewReader(conn),
		writer:      bufio.NewWriter(conn),
		connectedAt: time.Now().UTC(),
		state:       stateUnauth,
	}
}

func (sess *session) getState() authState {
	sess.stateMu.RLock()
	defer sess.stateMu.RUnlock()

	return sess.state
}

func (sess *session) setState(st authState) {
	sess.stateMu.Lock()
	defer sess.stateMu.Unlock()

	sess.state = st
}

func (sess *session) isAuthenticated() bool {
	return sess.getState() == stateAuth
}

func (sess *session) handleCommands() {
	defer sess.end()

	sess.writeMessage(StatusServiceReady, sess.server.settings.Banner)

	for {
		if sess.getState() == stateQuitPending {
			// let any transfer started before QUIT run to completion;
			// its own transferClose call does the actual disconnect.
			sess.transferWg.Wait()
			return
		}

		if sess.server.settings.IdleTimeoutSeconds > 0 {
			deadline := time.Now().Add(time.Duration(sess.server.settings.IdleTimeoutSeconds) * time.Second)
			if err := sess.conn.SetDeadline(deadline); err != nil {
				sess.logger.Error("set deadline failed", "err", err)
			}
		}

		line, err := sess.readLine()
		if err != nil {
			sess.handleStreamError(err)
			return
		}

		sess.handleCommand(line)
	}
}

// readLine reads a CRLF-delimited line capped at maxCommandLine bytes
// (spec §4.4 framing).
func (sess *session) readLine() (string, error) {
	line, err := sess.reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	if len(line) > maxCommandLine {
		sess.writeMessage(StatusSyntaxErrorNotRecognised, "Command too long.")
		return sess.readLine()
	}

	return line, nil
}

func (sess *session) handleStreamError(err error) {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		sess.logger.Info("idle timeout", "err", err)
		sess.writeMessage(StatusServiceNotAvailable, fmt.Sprintf(
			"command timeout (%d seconds): closing control connection", sess.server.settings.IdleTimeoutSeconds))
		sess.writer.Flush()
		sess.conn.Close()

		return
	}

	sess.logger.Debug("client disconnected", "err", err)
}

func (sess *session) handleCommand(line string) {
	command, param := parseLine(line)
	command = strings.ToUpper(command)

	if command == "PASS" {
		sess.logger.Debug("received line", "line", "PASS ******")
	} else {
		sess.logger.Debug("received line", "line", strings.TrimRight(line, "\r\n"))
	}

	desc := commandsMap[command]
	if desc == nil {
		for _, special := range specialAttentionCommands {
			if strings.HasSuffix(command, special) {
				desc = commandsMap[special]
				command = special

				break
			}
		}

		if desc == nil {
			sess.lastCommand = command
			sess.writeMessage(StatusSyntaxErrorNotRecognised, fmt.Sprintf("Unknown command %q", command))

			return
		}
	}

	state := sess.getState()
	if (state == stateUnauth || state == stateAwaitPass) && !desc.PreAuth {
		sess.writeMessage(StatusNotLoggedIn, "Log in with USER and PASS first.")
		return
	}

	if desc.NeedsArg && param == "" {
		sess.writeMessage(StatusSyntaxErrorParameters, "Syntax error: command needs an argument.")
		return
	}

	if desc.ForbidsArg && param != "" {
		sess.writeMessage(StatusSyntaxErrorParameters, "Syntax error: command does not accept arguments.")
		return
	}

	if command == "STAT" && (state == stateUnauth || state == stateAwaitPass) && param != "" {
		sess.writeMessage(StatusNotLoggedIn, "Log in with USER and PASS first.")
		return
	}

	if desc.PathScoped {
		host := sess.vfs.ToHost(param)
		if !sess.vfs.Validate(host) {
			sess.writeMessage(StatusActionNotTakenNoFile,
				fmt.Sprintf("%q points to a path which is outside the user's root directory.", param))

			return
		}
	}

	if !desc.SpecialAction || (command == "STAT" && param != "") {
		sess.transferWg.Wait()
	}

	sess.lastCommand = command

	if desc.TransferRelated {
		sess.transferMu.Lock()
		sess.isTransferAborted = false
		sess.transferMu.Unlock()

		sess.transferWg.Add(1)

		go func(cmd, param string) {
			defer sess.transferWg.Done()
			sess.executeCommand(desc, cmd, param)
		}(command, param)
	} else {
		sess.executeCommand(desc, command, param)
	}
}

func (sess *session) executeCommand(desc *commandDescription, command, param string) {
	defer func() {
		if r := recover(); r != nil {
			sess.writeMessage(StatusSyntaxErrorNotRecognised, fmt.Sprintf("Unhandled internal error: %v", r))
			sess.logger.Warn("internal command handling error", "err", r, "command", command)
		}
	}()

	if err := desc.Fn(sess, param); err != nil {
		sess.writeMessage(StatusSyntaxErrorNotRecognised, fmt.Sprintf("Error: %v", err))
	}
}

func (sess *session) end() {
	sess.transferMu.Lock()
	sess.isTransferAborted = true
	sess.closeTransferLocked()
	sess.transferMu.Unlock()

	sess.conn.Close()
}

func (sess *session) disconnect() {
	sess.conn.Close()
}

func (sess *session) writeLine(line string) {
	if _, err := sess.writer.WriteString(line + "\r\n"); err != nil {
		sess.logger.Warn("answer couldn't be sent", "line", line, "err", err)
		return
	}

	if err := sess.writer.Flush(); err != nil {
		sess.logger.Warn("couldn't flush line", "err", err)
	}
}

func (sess *session) writeMessage(code int, message string) {
	lines := messageLines(message)

	for i, line := range lines {
		if i < len(lines)-1 {
			sess.writeLine(fmt.Sprintf("%d-%s", code, line))
		} else {
			sess.writeLine(fmt.Sprintf("%d %s", code, line))
		}
	}
}

// multilineAnswer opens a "code-..." block and returns a closer that
// emits the terminating "code End" line.
func (sess *session) multilineAnswer(code int, message string) func() {
	sess.writeLine(fmt.Sprintf("%d-%s", code, message))

	return func() {
		sess.writeLine(fmt.Sprintf("%d End", code))
	}
}

func messageLines(message string) []string {
	lines := make([]string, 0, 1)

	sc := bufio.NewScanner(strings.NewReader(message))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}

	if len(lines) == 0 {
		lines = append(lines, "")
	}

	return lines
}

func parseLine(line string) (string, string) {
	parts := strings.SplitN(strings.Trim(line, "\r\n"), " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}

	return parts[0], parts[1]
}

func quoteDoubling(s string) string {
	if !strings.Contains(s, `"`) {
		return s
	}

	return strings.ReplaceAll(s, `"`, `""`)
}

func (sess *session) handleNotImplemented(string) error {
	sess.writeMessage(StatusCommandNotImplemented, "Command not implemented.")
	return nil
}
