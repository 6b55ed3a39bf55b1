package ftpd

import (
	"errors"
	"fmt"
	"time"

	"github.com/vftpd/vftpd/vfs"
)

var errPermissionDenied = errors.New("permission denied")

func (sess *session) handlePWD(string) error {
	sess.writeMessage(StatusPathCreated, fmt.Sprintf("%q is the current directory.", quoteDoubling(sess.vfs.Cwd())))
	return nil
}

func (sess *session) handleCWD(param string) error {
	target := sess.vfs.Normalize(param)
	host := sess.vfs.ToHost(target)

	if !sess.vfs.IsDir(host) {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not change to %q: no such directory.", param))
		return nil
	}

	sess.vfs.SetCwd(target)
	sess.writeMessage(StatusFileOK, fmt.Sprintf("Directory changed to %s.", target))

	return nil
}

func (sess *session) handleCDUP(string) error {
	return sess.handleCWD("..")
}

func (sess *session) handleMKD(param string) error {
	target := sess.vfs.Normalize(param)
	host := sess.vfs.ToHost(target)

	if !sess.vfs.Validate(host) {
		sess.writeMessage(StatusActionNotTakenNoFile,
			fmt.Sprintf("%q points to a path which is outside the user's root directory.", param))

		return nil
	}

	if err := sess.requireWrite(host); err != nil {
		return nil
	}

	if err := sess.vfs.Mkdir(host); err != nil {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not create %q: %v", param, err))
		return nil
	}

	sess.writeMessage(StatusPathCreated, fmt.Sprintf("%q directory created.", quoteDoubling(target)))

	return nil
}

func (sess *session) handleRMD(param string) error {
	target := sess.vfs.Normalize(param)
	if target == "/" {
		sess.writeMessage(StatusActionNotTakenNoFile, "Can't remove root directory.")
		return nil
	}

	host := sess.vfs.ToHost(target)

	if err := sess.requireWrite(host); err != nil {
		return nil
	}

	if err := sess.vfs.Rmdir(host); err != nil {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not remove %q: %v", param, err))
		return nil
	}

	sess.writeMessage(StatusFileOK, fmt.Sprintf("Directory %q removed.", param))

	return nil
}

// requireWrite writes the 550 reply and returns a non-nil error when
// the logged-in user lacks write permission on hostPath.
func (sess *session) requireWrite(hostPath string) error {
	if sess.server.authorizer.MayWrite(sess.user, hostPath) {
		return nil
	}

	sess.writeMessage(StatusActionNotTakenNoFile, "Permission denied.")

	return errPermissionDenied
}

// requireRead writes the 550 reply and returns a non-nil error when
// the logged-in user lacks read permission on hostPath.
func (sess *session) requireRead(hostPath string) error {
	if sess.server.authorizer.MayRead(sess.user, hostPath) {
		return nil
	}

	sess.writeMessage(StatusActionNotTakenNoFile, "Permission denied.")

	return errPermissionDenied
}

func (sess *session) listArgPath(param string) string {
	for _, flag := range []string{"-al", "-la", "-a", "-l"} {
		if param == flag {
			return sess.vfs.Cwd()
		}
	}

	if param == "" {
		return sess.vfs.Cwd()
	}

	return param
}

func (sess *session) handleLIST(param string) error {
	path := sess.listArgPath(param)
	host := sess.vfs.ToHost(sess.vfs.Normalize(path))

	entries, err := sess.vfs.Listdir(host)
	if err != nil {
		sess.writeMessage(getReplyCode(err, StatusActionNotTakenNoFile), fmt.Sprintf("Could not list %q: %v", path, err))
		return nil
	}

	lines := vfs.RenderLIST(time.Now().UTC(), host, entries)

	return sess.sendListing("LIST "+param, lines)
}

func (sess *session) handleNLST(param string) error {
	path := sess.listArgPath(param)
	host := sess.vfs.ToHost(sess.vfs.Normalize(path))

	entries, err := sess.vfs.Listdir(host)
	if err != nil {
		sess.writeMessage(getReplyCode(err, StatusActionNotTakenNoFile), fmt.Sprintf("Could not list %q: %v", path, err))
		return nil
	}

	return sess.sendListing("NLST "+param, vfs.RenderNLST(entries))
}

func (sess *session) handleMLSD(param string) error {
	path := sess.listArgPath(param)
	host := sess.vfs.ToHost(sess.vfs.Normalize(path))

	if !sess.vfs.IsDir(host) {
		sess.writeMessage(StatusSyntaxErrorParameters, fmt.Sprintf("%q is not a directory.", param))
		return nil
	}

	entries, err := sess.vfs.Listdir(host)
	if err != nil {
		sess.writeMessage(getReplyCode(err, StatusActionNotTakenNoFile), fmt.Sprintf("Could not list %q: %v", path, err))
		return nil
	}

	return sess.sendListing("MLSD "+param, vfs.RenderMLSD(entries))
}

func (sess *session) sendListing(info string, lines []string) error {
	conn, err := sess.transferOpen(info)
	if err != nil {
		return nil
	}

	out := &countingWriter{w: conn, counter: &sess.txBytes}

	var transferErr error

	for _, line := range lines {
		if _, err := fmt.Fprintf(out, "%s\r\n", line); err != nil {
			transferErr = err
			break
		}
	}

	sess.transferClose(transferErr)

	return nil
}

func (sess *session) handleMLST(param string) error {
	target := sess.vfs.Normalize(param)
	host := sess.vfs.ToHost(target)

	info, err := sess.vfs.Stat(host)
	if err != nil {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not stat %q: %v", param, err))
		return nil
	}

	close := sess.multilineAnswer(StatusFileOK, "File facts follow.")
	defer close()

	sess.writeLine(vfs.RenderMLST(info, target))

	return nil
}
