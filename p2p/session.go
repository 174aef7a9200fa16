package p2p

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
	uuidv1 "github.com/satori/go.uuid"
)

// randomUint32 draws 4 bytes off the pooled CSPRNG google/uuid.New() reads
// from (enabled via EnableRandPool in Init) rather than rolling a second
// generator for the same purpose as the satori uuid used for Call-IDs.
func randomUint32() uint32 {
	id := uuid.New()
	return binary.LittleEndian.Uint32(id[:4])
}

// EufGUID is the EUF-GUID MSNSLP uses to tag a display-picture transfer
// session (as opposed to a file transfer or other P2P application).
const EufGUID = "{A4268EEC-FEC5-49E5-95C3-F126696BDBF6}"

const contentType = "application/x-msnmsgr-sessionreqbody"

var controlFooter = []byte{0, 0, 0, 0}
var dataFooter = []byte{0, 0, 0, 1}

// DisplayPictureSession tracks the state of one MSNSLP display-picture
// transfer, either as the requester (we send INVITE) or the peer serving an
// incoming INVITE. Its method set mirrors the reference implementation's
// DisplayPictureSession one for one; see DESIGN.md for the identifier
// numbering scheme this implementation uses instead of the reference's
// chunk-identifier reuse.
type DisplayPictureSession struct {
	sessionID      uint32
	baseIdentifier uint32
	branch         string
	callID         string
}

// New creates a session with a fresh random base identifier, ready to
// originate an INVITE via Invite.
func New() *DisplayPictureSession {
	return &DisplayPictureSession{
		baseIdentifier: randomUint32(),
	}
}

// NewFromInvite builds a session from a peer's INVITE payload, recovering
// the branch, Call-ID and session id the peer chose so replies correlate.
func NewFromInvite(invite []byte) (*DisplayPictureSession, error) {
	text := string(invite)
	s := &DisplayPictureSession{baseIdentifier: randomUint32()}

	for _, line := range strings.Split(text, "\r\n") {
		switch {
		case strings.HasPrefix(line, "Via:"):
			if idx := strings.Index(line, "branch={"); idx >= 0 {
				rest := line[idx+len("branch={"):]
				if end := strings.IndexByte(rest, '}'); end >= 0 {
					s.branch = rest[:end]
				}
			}
		case strings.HasPrefix(line, "Call-ID:"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "Call-ID:"))
			s.callID = strings.Trim(v, "{}")
		case strings.HasPrefix(line, "SessionID:"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "SessionID:"))
			var id uint32
			if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
				s.sessionID = id
			}
		}
	}

	return s, nil
}

func newToken() string {
	return uuidv1.Must(uuidv1.NewV4()).String()
}

// Invite builds the INVITE message offering our msnObject (the MSN Object
// XML descriptor of the picture we are willing to send) to "to", generating
// a fresh branch/Call-ID/session id the way the reference client does.
func (s *DisplayPictureSession) Invite(to, from, msnObject string) []byte {
	s.branch = newToken()
	s.callID = newToken()
	s.sessionID = randomUint32()

	context := base64.StdEncoding.EncodeToString(append([]byte(msnObject), 0))
	body := fmt.Sprintf(
		"EUF-GUID: %s\r\nSessionID: %d\r\nAppID: 1\r\nContext: %s\r\n\r\n\x00",
		EufGUID, s.sessionID, context,
	)

	headers := fmt.Sprintf(
		"INVITE MSNMSGR:%s MSNSLP/1.0\r\n"+
			"To: <msnmsgr:%s>\r\n"+
			"From: <msnmsgr:%s>\r\n"+
			"Via: MSNSLP/1.0/TLP ;branch={%s}\r\n"+
			"CSeq: 0\r\n"+
			"Call-ID: {%s}\r\n"+
			"Max-Forwards: 0\r\n"+
			"Content-Type: %s\r\n"+
			"Content-Length: %d\r\n\r\n",
		to, to, from, s.branch, s.callID, contentType, len(body),
	)

	message := []byte(headers + body)
	return s.frame(BinaryHeader{
		SessionID:     0,
		Identifier:    s.baseIdentifier,
		DataOffset:    0,
		TotalDataSize: uint64(len(message)),
		Length:        uint32(len(message)),
		Flag:          FlagControl,
		AckIdentifier: s.baseIdentifier + 1,
	}, message, controlFooter)
}

// Acknowledge builds the ACK for an arbitrary received payload. It is a
// pure function of the received header, so it needs no session state -
// mirroring the reference's associated (non-method) acknowledge function.
func Acknowledge(payload []byte) ([]byte, error) {
	h, err := DecodeHeader(payload)
	if err != nil {
		return nil, err
	}

	ack := BinaryHeader{
		SessionID:     h.SessionID,
		Identifier:    ^h.Identifier,
		DataOffset:    0,
		TotalDataSize: h.TotalDataSize,
		Length:        0,
		Flag:          FlagAck,
		AckIdentifier: h.Identifier + 1,
		AckUniqueID:   h.AckUniqueID,
		AckDataSize:   h.AckDataSize,
	}

	var buf bytes.Buffer
	buf.Write(ack.Encode())
	buf.Write(controlFooter)
	return buf.Bytes(), nil
}

// Ok builds the 200 OK accepting an incoming INVITE.
func (s *DisplayPictureSession) Ok(to, from string) []byte {
	body := fmt.Sprintf("EUF-GUID: %s\r\nSessionID: %d\r\n\r\n\x00", EufGUID, s.sessionID)
	headers := fmt.Sprintf(
		"MSNSLP/1.0 200 OK\r\n"+
			"To: <msnmsgr:%s>\r\n"+
			"From: <msnmsgr:%s>\r\n"+
			"Via: MSNSLP/1.0/TLP ;branch={%s}\r\n"+
			"CSeq: 1\r\n"+
			"Call-ID: {%s}\r\n"+
			"Max-Forwards: 0\r\n"+
			"Content-Type: %s\r\n"+
			"Content-Length: %d\r\n\r\n",
		to, from, s.branch, s.callID, contentType, len(body),
	)
	message := []byte(headers + body)
	return s.frame(BinaryHeader{
		SessionID:     0,
		Identifier:    s.baseIdentifier + 1,
		TotalDataSize: uint64(len(message)),
		Length:        uint32(len(message)),
		Flag:          FlagControl,
		AckIdentifier: s.baseIdentifier + 1,
	}, message, controlFooter)
}

// Decline builds the 603 Decline rejecting an incoming INVITE.
func (s *DisplayPictureSession) Decline(to, from string) []byte {
	body := fmt.Sprintf("SessionID: %d\r\n\r\n\x00", s.sessionID)
	headers := fmt.Sprintf(
		"MSNSLP/1.0 603 Decline\r\n"+
			"To: <msnmsgr:%s>\r\n"+
			"From: <msnmsgr:%s>\r\n"+
			"Via: MSNSLP/1.0/TLP ;branch={%s}\r\n"+
			"CSeq: 1\r\n"+
			"Call-ID: {%s}\r\n"+
			"Max-Forwards: 0\r\n"+
			"Content-Type: %s\r\n"+
			"Content-Length: %d\r\n\r\n",
		to, from, s.branch, s.callID, contentType, len(body),
	)
	message := []byte(headers + body)
	return s.frame(BinaryHeader{
		SessionID:     0,
		Identifier:    s.baseIdentifier + 1,
		TotalDataSize: uint64(len(message)),
		Length:        uint32(len(message)),
		Flag:          FlagControl,
		AckIdentifier: s.baseIdentifier + 1,
	}, message, controlFooter)
}

// DataPreparation builds the four-zero-byte-body frame that precedes the
// actual picture data chunks, signalling to the peer that data is about to
// follow.
func (s *DisplayPictureSession) DataPreparation() []byte {
	message := []byte{0, 0, 0, 0}
	return s.frame(BinaryHeader{
		SessionID:     s.sessionID,
		Identifier:    s.baseIdentifier + 2,
		DataOffset:    0,
		TotalDataSize: uint64(len(message)),
		Length:        uint32(len(message)),
		Flag:          FlagControl,
		AckIdentifier: s.baseIdentifier + 2,
	}, message, dataFooter)
}

// chunkSize is the maximum payload carried by one data frame, taken from
// the reference implementation.
const chunkSize = 1202

// Data splits picture into chunkSize pieces and frames each one. Each chunk
// gets its own, strictly increasing identifier (baseIdentifier+3, +4, ...)
// rather than the reference implementation's single reused identifier for
// every chunk - see DESIGN.md for why.
func (s *DisplayPictureSession) Data(picture []byte) [][]byte {
	var frames [][]byte
	var offset uint64
	ident := s.baseIdentifier + 3

	if len(picture) == 0 {
		return frames
	}

	for start := 0; start < len(picture); start += chunkSize {
		end := start + chunkSize
		if end > len(picture) {
			end = len(picture)
		}
		chunk := picture[start:end]

		frames = append(frames, s.frame(BinaryHeader{
			SessionID:     s.sessionID,
			Identifier:    ident,
			DataOffset:    offset,
			TotalDataSize: uint64(len(picture)),
			Length:        uint32(len(chunk)),
			Flag:          FlagData,
			AckIdentifier: ident,
		}, chunk, dataFooter))

		offset += uint64(len(chunk))
		ident++
	}
	return frames
}

// Bye builds the BYE tearing down the session.
func (s *DisplayPictureSession) Bye(to, from string) []byte {
	body := []byte("\r\n\x00")
	headers := fmt.Sprintf(
		"BYE MSNMSGR:%s MSNSLP/1.0\r\n"+
			"To: <msnmsgr:%s>\r\n"+
			"From: <msnmsgr:%s>\r\n"+
			"Via: MSNSLP/1.0/TLP ;branch={%s}\r\n"+
			"CSeq: 0\r\n"+
			"Call-ID: {%s}\r\n"+
			"Max-Forwards: 0\r\n"+
			"Content-Type: %s\r\n"+
			"Content-Length: %d\r\n\r\n",
		to, to, from, s.branch, s.callID, contentType, len(body),
	)
	message := append([]byte(headers), body...)
	return s.frame(BinaryHeader{
		SessionID:     0,
		Identifier:    s.baseIdentifier + 4,
		TotalDataSize: uint64(len(message)),
		Length:        uint32(len(message)),
		Flag:          FlagControl,
		AckIdentifier: s.baseIdentifier + 4,
	}, message, controlFooter)
}

func (s *DisplayPictureSession) frame(h BinaryHeader, message, footer []byte) []byte {
	var buf bytes.Buffer
	buf.Write(h.Encode())
	buf.Write(message)
	buf.Write(footer)
	return buf.Bytes()
}

// SessionID returns the MSNSLP session id negotiated for this transfer.
func (s *DisplayPictureSession) SessionID() uint32 { return s.sessionID }

// CallID returns the SIP-shaped Call-ID this session negotiated, present on
// every control message including BYE (which carries no SessionID line).
func (s *DisplayPictureSession) CallID() string { return s.callID }

func init() {
	uuid.EnableRandPool()
}
