package ftpd

import (
	"errors"
	"fmt"
	"os"
)

// DriverError wraps a failure coming from the Authorizer.
type DriverError struct {
	str string
	err error
}

func newDriverError(str string, err error) DriverError {
	return DriverError{str: str, err: err}
}

func (e DriverError) Error() string {
	return fmt.Sprintf("driver error: %s: %v", e.str, e.err)
}

func (e DriverError) Unwrap() error { return e.err }

// NetworkError wraps a failure from a control or data socket.
type NetworkError struct {
	str string
	err error
}

func newNetworkError(str string, err error) NetworkError {
	return NetworkError{str: str, err: err}
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.str, e.err)
}

func (e NetworkError) Unwrap() error { return e.err }

// getReplyCode centralizes the error->FTP-reply-code mapping spec §7's
// error taxonomy describes, so handlers never hand-roll a code from an
// arbitrary error string. fallback is the bucket the call site already
// knows it's in (550 for a filesystem-failure path, 426 for a
// transfer-failure path); getReplyCode only overrides it for errors
// that carry a more specific classification than their call site does.
func getReplyCode(err error, fallback int) int {
	switch {
	case err == nil:
		return fallback
	case errors.Is(err, errPermissionDenied):
		return StatusActionNotTakenNoFile
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return StatusActionNotTakenNoFile
	default:
		return fallback
	}
}

// transferFailureMessage formats a data-path exception the way spec §7's
// "Data-connection aborted mid-transfer" / "Unknown internal error" rows
// require: the OS/socket message, or "Unknown error" when none is
// available, followed by "; transfer aborted."
func transferFailureMessage(err error) string {
	reason := "Unknown error"
	if err != nil {
		reason = err.Error()
	}

	return reason + "; transfer aborted."
}
