package ftpd

import (
	"fmt"
	"io"
	"path"
	"runtime"
	"strconv"

	"github.com/vftpd/vftpd/vfs"
)

func (sess *session) handleRETR(param string) error {
	target := sess.vfs.Normalize(param)
	host := sess.vfs.ToHost(target)

	if err := sess.requireRead(host); err != nil {
		return nil
	}

	if !sess.vfs.IsFile(host) {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("%q: no such file.", param))
		sess.restartPos = 0

		return nil
	}

	file, err := sess.vfs.Open(host, vfs.OpenReadOnly)
	if err != nil {
		sess.writeMessage(getReplyCode(err, StatusActionNotTakenNoFile), fmt.Sprintf("Could not open %q: %v", param, err))
		sess.restartPos = 0

		return nil
	}

	rest := sess.restartPos
	sess.restartPos = 0

	if rest != 0 {
		if _, err := file.Seek(rest, io.SeekStart); err != nil {
			sess.writeMessage(StatusInvalidRESTParameter, fmt.Sprintf("Could not seek to %d: %v", rest, err))
			file.Close()

			return nil
		}
	}

	conn, err := sess.transferOpen("RETR " + param)
	if err != nil {
		file.Close()
		return nil
	}

	var in io.Reader = file
	if sess.transferType == TransferTypeASCII {
		in = newASCIIConverter(file, convertModeToCRLF)
	}

	out := &countingWriter{w: conn, counter: &sess.txBytes}

	_, copyErr := io.Copy(out, in)
	file.Close()

	sess.transferClose(copyErr)

	return nil
}

func (sess *session) handleSTOR(param string) error {
	return sess.storeFile(param, false)
}

func (sess *session) handleAPPE(param string) error {
	return sess.storeFile(param, true)
}

func (sess *session) storeFile(param string, appending bool) error {
	target := sess.vfs.Normalize(param)
	host := sess.vfs.ToHost(target)

	if err := sess.requireWrite(host); err != nil {
		return nil
	}

	rest := sess.restartPos
	sess.restartPos = 0

	if appending && rest != 0 {
		sess.writeMessage(StatusActionNotTakenNoFile, "REST is not supported with APPE.")
		return nil
	}

	mode := vfs.OpenWriteTruncate
	if appending {
		mode = vfs.OpenAppend
	} else if rest != 0 {
		mode = vfs.OpenReadWrite
	}

	file, err := sess.vfs.Open(host, mode)
	if err != nil {
		sess.writeMessage(getReplyCode(err, StatusActionNotTakenNoFile), fmt.Sprintf("Could not open %q: %v", param, err))
		return nil
	}

	if !appending && rest != 0 {
		if _, err := file.Seek(rest, io.SeekStart); err != nil {
			sess.writeMessage(StatusInvalidRESTParameter, fmt.Sprintf("Could not seek to %d: %v", rest, err))
			file.Close()

			return nil
		}
	}

	conn, err := sess.transferOpen(fmt.Sprintf("%s %s", map[bool]string{true: "APPE", false: "STOR"}[appending], param))
	if err != nil {
		file.Close()
		return nil
	}

	conversionMode := convertModeToCRLF
	if runtime.GOOS != "windows" {
		conversionMode = convertModeToLF
	}

	counted := &countingReader{r: conn, counter: &sess.rxBytes}

	var in io.Reader = counted
	if sess.transferType == TransferTypeASCII {
		in = newASCIIConverter(counted, conversionMode)
	}

	_, copyErr := io.Copy(file, in)

	if errClose := file.Close(); errClose != nil && copyErr == nil {
		copyErr = errClose
	}

	sess.transferClose(copyErr)

	return nil
}

func (sess *session) handleSTOU(param string) error {
	prefix := "ftpd."
	if param != "" {
		prefix = path.Base(param) + "."
	}

	dirHost := sess.vfs.ToHost(sess.vfs.Cwd())

	if err := sess.requireWrite(dirHost); err != nil {
		return nil
	}

	rest := sess.restartPos
	sess.restartPos = 0

	if rest != 0 {
		sess.writeMessage(StatusActionNotTakenNoFile, "REST is not supported with STOU.")
		return nil
	}

	file, name, err := sess.vfs.Mkstemp(dirHost, prefix)
	if err != nil {
		sess.writeMessage(getReplyCode(err, StatusActionNotTakenNoFile), fmt.Sprintf("Could not create unique file: %v", err))
		return nil
	}

	conn, err := sess.transferOpen("STOU FILE: " + name)
	if err != nil {
		file.Close()
		return nil
	}

	conversionMode := convertModeToCRLF
	if runtime.GOOS != "windows" {
		conversionMode = convertModeToLF
	}

	counted := &countingReader{r: conn, counter: &sess.rxBytes}

	var in io.Reader = counted
	if sess.transferType == TransferTypeASCII {
		in = newASCIIConverter(counted, conversionMode)
	}

	_, copyErr := io.Copy(file, in)

	if errClose := file.Close(); errClose != nil && copyErr == nil {
		copyErr = errClose
	}

	sess.transferClose(copyErr)

	return nil
}

func (sess *session) handleDELE(param string) error {
	host := sess.vfs.ToHost(sess.vfs.Normalize(param))

	if err := sess.requireWrite(host); err != nil {
		return nil
	}

	if err := sess.vfs.Remove(host); err != nil {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not delete %q: %v", param, err))
		return nil
	}

	sess.writeMessage(StatusFileOK, fmt.Sprintf("Deleted %q.", param))

	return nil
}

func (sess *session) handleRNFR(param string) error {
	target := sess.vfs.Normalize(param)
	host := sess.vfs.ToHost(target)

	if !sess.vfs.Validate(host) {
		sess.writeMessage(StatusActionNotTakenNoFile,
			fmt.Sprintf("%q points to a path which is outside the user's root directory.", param))

		return nil
	}

	if !sess.vfs.Lexists(host) {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("%q: no such file or directory.", param))
		return nil
	}

	sess.rnfrSource = host
	sess.writeMessage(StatusRestartMarker, "Ready for RNTO.")

	return nil
}

func (sess *session) handleRNTO(param string) error {
	source := sess.rnfrSource
	sess.rnfrSource = ""

	if source == "" {
		sess.writeMessage(StatusBadCommandSequence, "RNFR required first.")
		return nil
	}

	dest := sess.vfs.ToHost(sess.vfs.Normalize(param))
	if !sess.vfs.Validate(dest) {
		sess.writeMessage(StatusActionNotTakenNoFile,
			fmt.Sprintf("%q points to a path which is outside the user's root directory.", param))

		return nil
	}

	if err := sess.requireWrite(dest); err != nil {
		return nil
	}

	if err := sess.vfs.Rename(source, dest); err != nil {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not rename: %v", err))
		return nil
	}

	sess.writeMessage(StatusFileOK, "Rename successful.")

	return nil
}

func (sess *session) handleREST(param string) error {
	offset, err := strconv.ParseInt(param, 10, 64)
	if err != nil || offset < 0 {
		sess.writeMessage(StatusInvalidRESTParameter, "Invalid REST parameter.")
		return nil
	}

	sess.restartPos = offset
	sess.writeMessage(StatusRestartMarker, fmt.Sprintf("Restarting at position %d.", offset))

	return nil
}

func (sess *session) handleSIZE(param string) error {
	host := sess.vfs.ToHost(sess.vfs.Normalize(param))

	if sess.vfs.IsDir(host) {
		sess.writeMessage(StatusActionNotTakenNoFile, "SIZE not allowed on a directory.")
		return nil
	}

	size, err := sess.vfs.GetSize(host)
	if err != nil {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not stat %q: %v", param, err))
		return nil
	}

	sess.writeMessage(StatusFileStatus, strconv.FormatInt(size, 10))

	return nil
}

func (sess *session) handleMDTM(param string) error {
	host := sess.vfs.ToHost(sess.vfs.Normalize(param))

	info, err := sess.vfs.GetMTime(host)
	if err != nil || !info.Mode().IsRegular() {
		sess.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not stat %q.", param))
		return nil
	}

	sess.writeMessage(StatusFileStatus, info.ModTime().UTC().Format("20060102150405"))

	return nil
}
