package msnptest

import (
	"os"

	"github.com/sirupsen/logrus"
)

// trace is the opt-in wire-trace logger for this package: silent by
// default, flipped to trace level by setting MSNPTEST_TRACE=1, mirroring
// the teacher's example/proxysip TestMain flipping a second logrus logger
// to TraceLevel under a -debug flag. A library harness has no flag of its
// own to parse, so the env var plays that role instead.
var trace = newTraceLogger()

func newTraceLogger() *logrus.Logger {
	l := logrus.New()
	l.Formatter = &logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	}
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	if os.Getenv("MSNPTEST_TRACE") != "" {
		l.SetLevel(logrus.TraceLevel)
	}
	return l
}

// SetTraceLogger overrides the package-wide wire-trace logger, for a test
// that wants trace output captured somewhere other than stderr.
func SetTraceLogger(l *logrus.Logger) {
	trace = l
}
