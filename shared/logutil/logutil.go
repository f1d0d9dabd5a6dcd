// Package logutil wires up the indexer's logrus output: a prefixed text
// formatter for terminals and optional tee-to-file persistent logging.
package logutil

import (
	"io"
	"os"

	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// ConfigureLogging sets the global logrus level from a verbosity string
// (debug, info, warn, error, fatal, panic) and installs the prefixed
// formatter used across every package logger.
func ConfigureLogging(verbosity string) error {
	level, err := logrus.ParseLevel(verbosity)
	if err != nil {
		return errors.Wrapf(err, "unrecognized verbosity level %q", verbosity)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})
	return nil
}

// ConfigurePersistentLogging adds a log-to-file writer. File content is
// identical to stdout.
func ConfigurePersistentLogging(logFileName string) error {
	logrus.WithField("logFileName", logFileName).Info("Logs will be made persistent")
	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return errors.Wrap(err, "could not open log file")
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	logrus.Info(aurora.Green("file logging initialized").String())
	return nil
}
