package ftpd

import (
	"strings"

	"github.com/spf13/afero"

	"github.com/vftpd/vftpd/vfs"
)

func (sess *session) handleUSER(param string) error {
	if sess.isAuthenticated() {
		sess.flushAccount()
	}

	sess.user = param
	sess.setState(stateAwaitPass)
	sess.writeMessage(StatusUserOK, "Username ok, send password.")

	return nil
}

func (sess *session) handlePASS(param string) error {
	state := sess.getState()

	if state == stateAuth {
		sess.writeMessage(StatusBadCommandSequence, "You are already logged in.")
		return nil
	}

	if state != stateAwaitPass || sess.user == "" {
		sess.writeMessage(StatusBadCommandSequence, "Login with USER first.")
		return nil
	}

	user := sess.user
	authz := sess.server.authorizer

	if !authz.HasUser(user) {
		if strings.EqualFold(user, "anonymous") {
			sess.writeMessage(StatusNotLoggedIn, "Anonymous access not allowed.")
		} else {
			sess.failLogin()
		}

		return nil
	}

	if !authz.Validate(user, param) {
		sess.failLogin()
		return nil
	}

	home, err := authz.HomeOf(user)
	if err != nil {
		sess.logger.Warn("login failed", "err", newDriverError("resolving home directory", err))
		sess.failLogin()

		return nil
	}

	sess.vfs = vfs.New(afero.NewOsFs(), home)
	sess.attemptedLogins = 0
	sess.setState(stateAuth)
	sess.writeMessage(StatusUserLoggedIn, authz.MsgLogin(user))

	return nil
}

func (sess *session) failLogin() {
	sess.attemptedLogins++

	max := sess.server.settings.MaxLoginAttempts
	if max > 0 && sess.attemptedLogins >= max {
		sess.writeMessage(StatusNotLoggedIn, "Maximum login attempts. Disconnecting.")
		sess.disconnect()

		return
	}

	sess.user = ""
	sess.setState(stateUnauth)
	sess.writeMessage(StatusNotLoggedIn, "Authentication failed.")
}

// flushAccount resets everything USER/REIN must undo: identity, cwd,
// transfer type, restart offset and any pending rename (spec §4.4
// state-machine / property 7).
func (sess *session) flushAccount() {
	sess.user = ""
	sess.vfs = nil
	sess.transferType = TransferTypeASCII
	sess.restartPos = 0
	sess.rnfrSource = ""
	sess.setState(stateUnauth)
}

func (sess *session) handleQUIT(string) error {
	var msg string
	if sess.isAuthenticated() {
		msg = sess.server.authorizer.MsgQuit(sess.user)
	} else {
		msg = "Goodbye."
	}

	sess.writeMessage(StatusClosingControlConn, msg)

	sess.transferMu.Lock()
	hasTransfer := sess.transfer != nil
	sess.transferMu.Unlock()

	if hasTransfer {
		sess.setState(stateQuitPending)
		return nil
	}

	sess.setState(stateQuitPending)
	sess.disconnect()

	return nil
}

func (sess *session) handleREIN(string) error {
	sess.flushAccount()
	sess.writeMessage(StatusUserLoggedIn, "Ready for new user.")

	return nil
}
