package msnptest

import (
	"bufio"
	"net"
	"strconv"

	"github.com/msnp11/msnp11go/msnp"
)

// ScriptedServer plays the far end of a notification or switchboard
// connection in tests: for every command it reads, it looks up a handler by
// verb and writes back whatever frames that handler returns, mirroring the
// teacher's siptest requester/responder pair but for MSNP's line protocol
// instead of SIP transactions.
type ScriptedServer struct {
	conn     net.Conn
	handlers map[string]func(cmd msnp.Command) [][]byte
}

// NewScriptedServer wraps the server half of a connection (e.g. one end of
// msnptest.PipeConns) and starts reading commands in a goroutine.
func NewScriptedServer(conn net.Conn) *ScriptedServer {
	s := &ScriptedServer{conn: conn, handlers: make(map[string]func(msnp.Command) [][]byte)}
	go s.run()
	return s
}

// On registers the frames to send back whenever a command with this verb
// arrives.
func (s *ScriptedServer) On(verb string, handler func(cmd msnp.Command) [][]byte) {
	s.handlers[verb] = handler
}

func (s *ScriptedServer) run() {
	reader := bufio.NewReader(s.conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		trace.Tracef("server <- %q", line)
		cmd, err := msnp.ParseLine(line)
		if err != nil {
			continue
		}

		if msnp.HasPayload(cmd.Verb) && len(cmd.Args) > 0 {
			if n, perr := strconv.Atoi(cmd.Args[len(cmd.Args)-1]); perr == nil && n > 0 {
				payload := make([]byte, n)
				_, _ = readFull(reader, payload)
				cmd.Payload = payload
				trace.Tracef("server <- payload (%d bytes)", n)
			}
		}

		handler, ok := s.handlers[cmd.Verb]
		if !ok {
			trace.Tracef("server: no handler registered for verb %s", cmd.Verb)
			continue
		}
		for _, frame := range handler(cmd) {
			trace.Tracef("server -> %q", frame)
			s.conn.Write(frame)
		}
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Reply renders a numbered reply echoing the request's transaction id,
// e.g. Reply(cmd, "USR", "OK", "a@b.com") -> "USR <trID> OK a@b.com\r\n".
func Reply(cmd msnp.Command, verb string, args ...string) []byte {
	trID, _ := cmd.TrID()
	full := append([]string{strconv.FormatUint(uint64(trID), 10)}, args...)
	return msnp.Format(verb, full...)
}

// ReplySameTrID is a convenience for replies whose verb equals the request
// verb itself (e.g. "VER <trID> MSNP11 CVR0").
func ReplySameTrID(cmd msnp.Command, args ...string) []byte {
	return Reply(cmd, cmd.Verb, args...)
}
