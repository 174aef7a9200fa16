package msnp

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Command is a single MSNP protocol line, plus an optional binary/UTF-8
// payload for verbs that carry a length-prefixed body (MSG, UBX, ADL, RML,
// the P2P binary verbs, ...). Command never stores the trailing CRLF.
type Command struct {
	Verb string
	// Args holds every space-separated token after the verb, including a
	// leading transaction id where the verb uses one. Most callers use
	// TrID/Arg instead of indexing into this directly.
	Args    []string
	Payload []byte
}

// TrID returns the command's transaction id and whether one was present.
// By MSNP convention the transaction id, when present, is Args[0].
func (c Command) TrID() (uint32, bool) {
	if len(c.Args) == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(c.Args[0], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// Arg returns the i-th argument after the transaction id (if hasTrID is
// true) or after the verb (if not), or "" if it is absent.
func (c Command) Arg(hasTrID bool, i int) string {
	off := 0
	if hasTrID {
		off = 1
	}
	idx := off + i
	if idx < 0 || idx >= len(c.Args) {
		return ""
	}
	return c.Args[idx]
}

// Format renders a command line (without payload) as it goes on the wire,
// e.g. Format("VER", "1", "MSNP11", "CVR0") -> "VER 1 MSNP11 CVR0\r\n".
func Format(verb string, args ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString(verb)
	for _, a := range args {
		buf.WriteByte(' ')
		buf.WriteString(a)
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// FormatPayload renders a command line whose last numeric argument is the
// byte length of payload, followed by payload itself with no added
// separator (the payload carries its own trailing CRLF when the protocol
// requires one).
func FormatPayload(verb string, args []string, payload []byte) []byte {
	full := append(append([]string{}, args...), strconv.Itoa(len(payload)))
	var buf bytes.Buffer
	buf.Write(Format(verb, full...))
	buf.Write(payload)
	return buf.Bytes()
}

// ParseLine splits a single CRLF-stripped wire line into a Command with no
// payload attached. The payload, if the verb requires one, is attached
// separately by the framing reader once it has read as many bytes as the
// line's last argument declares.
func ParseLine(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, " ")
	if len(fields) == 0 || fields[0] == "" {
		return Command{}, fmt.Errorf("%w: empty command line", ErrInvalidArgument)
	}
	return Command{Verb: fields[0], Args: fields[1:]}, nil
}

func (c Command) String() string {
	return string(Format(c.Verb, c.Args...))
}
