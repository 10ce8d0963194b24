package test

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a quiet logger for tests. Set NATLAB_TEST_LOGS to see
// output, 2 for debug, 3 for trace.
func NewLogger() *logrus.Logger {
	l := logrus.New()

	v := os.Getenv("NATLAB_TEST_LOGS")
	if v == "" {
		l.SetOutput(io.Discard)
		return l
	}

	switch v {
	case "2":
		l.SetLevel(logrus.DebugLevel)
	case "3":
		l.SetLevel(logrus.TraceLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	return l
}
