package ftpd

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vftpd/vftpd/vfs"
)

func (sess *session) handleTYPE(param string) error {
	switch strings.ToUpper(strings.ReplaceAll(param, " ", "")) {
	case "A", "AN":
		sess.transferType = TransferTypeASCII
		sess.writeMessage(StatusOK, "Type set to: ASCII.")
	case "I", "L8":
		sess.transferType = TransferTypeBinary
		sess.writeMessage(StatusOK, "Type set to: Binary.")
	default:
		sess.writeMessage(StatusParameterNotImplemented, "Not understood.")
	}

	return nil
}

func (sess *session) handleSTRU(param string) error {
	if strings.EqualFold(param, "F") {
		sess.writeMessage(StatusOK, "Structure set to: File.")
	} else {
		sess.writeMessage(StatusParameterNotImplemented, "Unsupported structure type.")
	}

	return nil
}

func (sess *session) handleMODE(param string) error {
	if strings.EqualFold(param, "S") {
		sess.writeMessage(StatusOK, "Mode set to: Stream.")
	} else {
		sess.writeMessage(StatusParameterNotImplemented, "Unsupported transfer mode.")
	}

	return nil
}

func (sess *session) handleSYST(string) error {
	sess.writeMessage(StatusSystemType, "UNIX Type: L8")
	return nil
}

func (sess *session) handleNOOP(string) error {
	sess.writeMessage(StatusFileOK, "NOOP command successful.")
	return nil
}

var featureList = []string{"MDTM", "REST STREAM", "SIZE", "TVFS"} //nolint:gochecknoglobals

func (sess *session) handleFEAT(string) error {
	close := sess.multilineAnswer(StatusSystemStatus, "Features supported:")
	defer close()

	for _, f := range featureList {
		sess.writeLine(" " + f)
	}

	return nil
}

func (sess *session) handleHELP(param string) error {
	if param != "" {
		desc, ok := commandsMap[strings.ToUpper(param)]
		if !ok || desc.HelpText == "" {
			sess.writeMessage(StatusSyntaxErrorParameters, "Unrecognized command.")
			return nil
		}

		sess.writeMessage(StatusOK, desc.HelpText)

		return nil
	}

	names := make([]string, 0, len(commandsMap))
	for name := range commandsMap {
		names = append(names, name)
	}

	sort.Strings(names)

	close := sess.multilineAnswer(StatusOK, "The following commands are recognized:")
	defer close()

	const perLine = 8

	for i := 0; i < len(names); i += perLine {
		end := i + perLine
		if end > len(names) {
			end = len(names)
		}

		sess.writeLine(" " + strings.Join(names[i:end], " "))
	}

	return nil
}

func (sess *session) handleSTAT(param string) error {
	if param == "" {
		return sess.handleSTATServer()
	}

	return sess.handleSTATFile(param)
}

func (sess *session) handleSTATServer() error {
	close := sess.multilineAnswer(StatusSystemStatus, "Server status:")
	defer close()

	sess.writeLine(fmt.Sprintf(" Connected to %s", sess.conn.RemoteAddr()))

	switch sess.getState() {
	case stateAuth:
		sess.writeLine(fmt.Sprintf(" Logged in as %s", sess.user))
	default:
		sess.writeLine(" Not logged in")
	}

	typeName := "ASCII"
	if sess.transferType == TransferTypeBinary {
		typeName = "Binary"
	}

	sess.writeLine(fmt.Sprintf(" TYPE: %s, STRU: File, MODE: Stream", typeName))

	sess.transferMu.Lock()
	switch {
	case sess.transfer == nil:
		sess.writeLine(" No data connection")
	case !sess.isTransferOpen:
		sess.writeLine(" Data connection waiting for peer")
	default:
		sess.writeLine(fmt.Sprintf(" Data connection open, %d bytes sent, %d bytes received",
			atomic.LoadInt64(&sess.txBytes), atomic.LoadInt64(&sess.rxBytes)))
	}
	sess.transferMu.Unlock()

	return nil
}

func (sess *session) handleSTATFile(param string) error {
	if !sess.vfs.Validate(sess.vfs.ToHost(param)) {
		sess.writeMessage(StatusActionNotTakenNoFile,
			fmt.Sprintf("%q points to a path which is outside the user's root directory.", param))

		return nil
	}

	entries, hostDir, err := sess.vfs.GetStatDir(param)
	if err != nil {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not STAT %q: %v", param, err))
		return nil
	}

	close := sess.multilineAnswer(StatusDirectoryStatus, fmt.Sprintf("Status of %s:", param))
	defer close()

	for _, line := range vfs.RenderLIST(time.Now().UTC(), hostDir, entries) {
		sess.writeLine(" " + line)
	}

	return nil
}

func (sess *session) handleALLO(string) error {
	sess.writeMessage(StatusCommandNotNeeded, "No storage allocation necessary.")
	return nil
}

func (sess *session) handleABOR(string) error {
	sess.transferMu.Lock()
	defer sess.transferMu.Unlock()

	if sess.transfer == nil {
		sess.writeMessage(StatusAbortCommandOK, "No transfer to abort.")
		return nil
	}

	moved := atomic.LoadInt64(&sess.txBytes)+atomic.LoadInt64(&sess.rxBytes) > 0
	inProgress := sess.isTransferOpen && moved

	sess.isTransferAborted = true
	sess.closeTransferLocked()

	if inProgress {
		sess.writeMessage(StatusConnectionClosed, "Connection closed; transfer aborted.")
		sess.writeMessage(StatusClosingDataConn, "ABOR command successful.")
	} else {
		sess.writeMessage(StatusAbortCommandOK, "ABOR command successful; data channel closed.")
	}

	return nil
}
