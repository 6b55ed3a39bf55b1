// vftpd runs a standalone FTP server against a local directory tree,
// authenticating against a flat virtual-user file.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/vftpd/vftpd"
	"github.com/vftpd/vftpd/auth"
	"github.com/vftpd/vftpd/internal/config"
	"github.com/vftpd/vftpd/internal/ftplog/gokit"
)

func main() {
	var confFile, usersFile string

	flag.StringVar(&confFile, "conf", "settings.toml", "Server settings file")
	flag.StringVar(&usersFile, "users", "users.conf", "Virtual-user table file")
	flag.Parse()

	if _, err := os.Stat(confFile); os.IsNotExist(err) {
		logrus.WithField("file", confFile).Info("no settings file, writing defaults")

		if err := config.WriteDefaultFile(confFile); err != nil {
			logrus.WithField("file", confFile).Fatalf("could not create settings file: %v", err)
		}
	}

	settings, err := config.LoadSettings(confFile)
	if err != nil {
		logrus.WithField("file", confFile).Fatalf("could not load settings: %v", err)
	}

	table := auth.NewTable()
	table.Logger = gokit.NewStdout().With("component", "auth")

	if err := config.PopulateTable(usersFile, table); err != nil {
		logrus.WithField("file", usersFile).Fatalf("could not load users: %v", err)
	}

	logger := gokit.NewStdout().With("component", "server")

	srv := ftpd.New(table, settings, logger)

	done := make(chan struct{})
	go signalHandler(srv, done)

	if err := srv.ListenAndServe(); err != nil {
		logrus.Fatalf("server stopped: %v", err)
		close(done)
	}
}

func signalHandler(srv *ftpd.Server, done chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(ch)

	select {
	case <-ch:
		logrus.Info("shutting down")

		if err := srv.Stop(); err != nil {
			logrus.Warnf("problem stopping server: %v", err)
		}
	case <-done:
	}
}
