package msnptest

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetTraceLoggerCapturesWireTraffic(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.TraceLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true})

	original := trace
	SetTraceLogger(l)
	defer SetTraceLogger(original)

	c := &Conn{Reader: bytes.NewReader(nil), Writer: new(bytes.Buffer)}
	_, err := c.Write([]byte("VER 1 MSNP11 CVR0\r\n"))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "conn ->")
	assert.Contains(t, buf.String(), "VER 1 MSNP11 CVR0")
}

func TestTraceLoggerSilentByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.PanicLevel)

	original := trace
	SetTraceLogger(l)
	defer SetTraceLogger(original)

	c := &Conn{Reader: bytes.NewReader(nil), Writer: new(bytes.Buffer)}
	_, err := c.Write([]byte("VER 1 MSNP11 CVR0\r\n"))
	require.NoError(t, err)

	assert.Empty(t, buf.String())
}
