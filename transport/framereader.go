package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/msnp11/msnp11go/msnp"
)

// ErrPartial is returned by FrameReader.Feed when the buffered bytes do not
// yet contain a full command, mirroring parser.ErrParseSipPartial: the
// caller should read more bytes off the socket and call Feed again.
var ErrPartial = errors.New("transport: incomplete frame")

const (
	stateLine = iota
	statePayload
)

var streamBufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// FrameReader incrementally decodes a byte stream into msnp.Command values.
// It recognizes MSNP's two framing shapes: a bare CRLF-terminated line, and
// a payload-bearing verb (msnp.HasPayload) whose last numeric argument is
// the byte length of a body that immediately follows with no extra
// delimiter. One FrameReader is created per connection and fed every read()
// result in order.
type FrameReader struct {
	reader *bytes.Buffer
	state  int

	pending msnp.Command
	need    int
	got     int
}

func NewFrameReader() *FrameReader {
	return &FrameReader{}
}

func (f *FrameReader) reset() {
	f.state = stateLine
	f.pending = msnp.Command{}
	f.need = 0
	f.got = 0
}

// Feed appends data to the internal buffer and tries to decode as many
// complete commands as possible, returning them in order. On a partial
// trailing command the unconsumed bytes stay buffered for the next Feed
// call; Feed never returns ErrPartial as an error in the returned slice,
// it only stops producing further commands.
func (f *FrameReader) Feed(data []byte) ([]msnp.Command, error) {
	if f.reader == nil {
		f.reader = streamBufPool.Get().(*bytes.Buffer)
		f.reader.Reset()
	}
	f.reader.Write(data)

	var out []msnp.Command
	for {
		cmd, err := f.next()
		if err != nil {
			if errors.Is(err, ErrPartial) {
				return out, nil
			}
			return out, err
		}
		out = append(out, cmd)
	}
}

// Close releases the reader's pooled buffer. Safe to call multiple times.
func (f *FrameReader) Close() {
	if f.reader != nil {
		streamBufPool.Put(f.reader)
		f.reader = nil
	}
}

func (f *FrameReader) next() (msnp.Command, error) {
	switch f.state {
	case stateLine:
		line, err := nextLine(f.reader)
		if err != nil {
			return msnp.Command{}, ErrPartial
		}
		if len(line) == 0 {
			// Bare keep-alive CRLF from the server; skip it.
			return f.next()
		}

		cmd, err := msnp.ParseLine(line)
		if err != nil {
			return msnp.Command{}, fmt.Errorf("transport: %w", err)
		}

		if !msnp.HasPayload(cmd.Verb) || len(cmd.Args) == 0 {
			f.reset()
			return cmd, nil
		}

		n, err := strconv.Atoi(cmd.Args[len(cmd.Args)-1])
		if err != nil || n < 0 {
			f.reset()
			return cmd, nil
		}

		f.pending = cmd
		f.need = n
		f.got = 0
		f.state = statePayload
		if n == 0 {
			f.reset()
			return cmd, nil
		}
		fallthrough

	case statePayload:
		if f.pending.Payload == nil {
			f.pending.Payload = make([]byte, f.need)
		}
		n, _ := f.reader.Read(f.pending.Payload[f.got:])
		f.got += n
		if f.got < f.need {
			return msnp.Command{}, ErrPartial
		}
		cmd := f.pending
		f.reset()
		return cmd, nil
	}

	return msnp.Command{}, fmt.Errorf("transport: frame reader in unknown state")
}

// nextLine reads up to and including the next CRLF from buf, returning the
// line without the terminator. If buf does not yet contain a full line it
// returns io.EOF and leaves buf's unread bytes intact for the next attempt.
func nextLine(buf *bytes.Buffer) (string, error) {
	data := buf.Bytes()
	idx := bytes.Index(data, []byte("\r\n"))
	if idx < 0 {
		return "", io.EOF
	}
	line := string(data[:idx])
	buf.Next(idx + 2)
	return line, nil
}
