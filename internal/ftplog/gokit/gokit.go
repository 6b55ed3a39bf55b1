// Package gokit backs ftplog.Logger with go-kit's structured logger.
package gokit

import (
	"fmt"
	"os"

	gklog "github.com/go-kit/kit/log"
	gklevel "github.com/go-kit/kit/log/level"

	"github.com/vftpd/vftpd/internal/ftplog"
)

type logger struct {
	base gklog.Logger
}

// New wraps an existing go-kit logger.
func New(base gklog.Logger) ftplog.Logger {
	return &logger{base: base}
}

// NewStdout returns a go-kit logfmt logger writing to stdout, with a UTC
// timestamp and caller field attached.
func NewStdout() ftplog.Logger {
	base := gklog.NewLogfmtLogger(gklog.NewSyncWriter(os.Stdout))
	base = gklog.With(base, "ts", gklog.DefaultTimestampUTC, "caller", gklog.Caller(5))

	return New(base)
}

func (l *logger) log(leveled gklog.Logger, event string, keyvals ...interface{}) {
	keyvals = append(keyvals, "event", event)
	if err := leveled.Log(keyvals...); err != nil {
		fmt.Fprintln(os.Stderr, "ftplog: logging failed:", err)
	}
}

func (l *logger) Debug(event string, keyvals ...interface{}) {
	l.log(gklevel.Debug(l.base), event, keyvals...)
}

func (l *logger) Info(event string, keyvals ...interface{}) {
	l.log(gklevel.Info(l.base), event, keyvals...)
}

func (l *logger) Warn(event string, keyvals ...interface{}) {
	l.log(gklevel.Warn(l.base), event, keyvals...)
}

func (l *logger) Error(event string, keyvals ...interface{}) {
	l.log(gklevel.Error(l.base), event, keyvals...)
}

func (l *logger) With(keyvals ...interface{}) ftplog.Logger {
	return New(gklog.With(l.base, keyvals...))
}
