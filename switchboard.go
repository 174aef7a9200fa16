package msnp11go

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/msnp11/msnp11go/msnp"
	"github.com/msnp11/msnp11go/transaction"
	"github.com/msnp11/msnp11go/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Switchboard is one SB TCP session: a one-to-one or group chat, or the
// signalling channel for a P2P display-picture transfer. newOutgoingSwitchboard
// and newIncomingSwitchboard build it over the two handshakes SPEC_FULL.md
// §4.7 describes; from then on both behave identically, mirroring the
// teacher's Dialog shared by DialogClientSession/DialogServerSession.
type Switchboard struct {
	client *Client
	conn   *transport.TCPConnection
	tx     *transaction.Layer
	log    zerolog.Logger

	mu              sync.RWMutex
	sessionID       string
	participants    map[string]struct{}
	transfers       map[string]*p2pTransfer
	transfersByCall map[string]*p2pTransfer

	done      chan struct{}
	closeOnce sync.Once
}

func newSwitchboard(conn net.Conn, client *Client) *Switchboard {
	sb := &Switchboard{
		client:          client,
		conn:            transport.NewTCPConnection(conn),
		tx:              transaction.NewLayer(),
		participants:    make(map[string]struct{}),
		transfers:       make(map[string]*p2pTransfer),
		transfersByCall: make(map[string]*p2pTransfer),
		done:            make(chan struct{}),
	}
	sb.log = log.Logger.With().Str("caller", "msnp11go<Switchboard>").Logger()
	go sb.readLoop()
	return sb
}

// SessionID returns the SB session id (empty until CAL's RINGING reply or
// the incoming RNG has been answered).
func (sb *Switchboard) SessionID() string {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.sessionID
}

func (sb *Switchboard) setSessionID(id string) {
	sb.mu.Lock()
	sb.sessionID = id
	sb.mu.Unlock()
}

// Participants returns the emails currently joined to this session,
// including the local user once login/answer has completed.
func (sb *Switchboard) Participants() []string {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	out := make([]string, 0, len(sb.participants))
	for email := range sb.participants {
		out = append(out, email)
	}
	return out
}

func (sb *Switchboard) addParticipant(email string) {
	sb.mu.Lock()
	sb.participants[email] = struct{}{}
	sb.mu.Unlock()
}

func (sb *Switchboard) removeParticipant(email string) {
	sb.mu.Lock()
	delete(sb.participants, email)
	sb.mu.Unlock()
}

func (sb *Switchboard) sendAndWait(ctx context.Context, verb string, args ...string) (msnp.Command, error) {
	trID := sb.tx.NextTrID()
	full := append([]string{strconv.FormatUint(uint64(trID), 10)}, args...)
	frame := msnp.Format(verb, full...)

	tx, err := sb.tx.Request(ctx, sb.conn, trID, frame)
	if err != nil {
		return msnp.Command{}, fmt.Errorf("%w: %v", msnp.ErrTransmitting, err)
	}
	reply, err := tx.Wait(ctx)
	if err != nil {
		return msnp.Command{}, fmt.Errorf("%w: %v", msnp.ErrReceiving, err)
	}
	return reply, checkNumericError(reply)
}

func (sb *Switchboard) sendAndWaitPayload(ctx context.Context, transMode string, payload []byte) (msnp.Command, error) {
	trID := sb.tx.NextTrID()
	args := []string{strconv.FormatUint(uint64(trID), 10), transMode}
	frame := msnp.FormatPayload("MSG", args, payload)

	tx, err := sb.tx.Request(ctx, sb.conn, trID, frame)
	if err != nil {
		return msnp.Command{}, fmt.Errorf("%w: %v", msnp.ErrTransmitting, err)
	}
	reply, err := tx.Wait(ctx)
	if err != nil {
		return msnp.Command{}, fmt.Errorf("%w: %v", msnp.ErrReceiving, err)
	}
	return reply, checkNumericError(reply)
}

// sendDatacast writes an unacknowledged "D" trans-mode MSG, used for P2P
// framing, without waiting for any reply (the protocol defines none).
func (sb *Switchboard) sendDatacast(payload []byte) error {
	trID := sb.tx.NextTrID()
	args := []string{strconv.FormatUint(uint64(trID), 10), "D"}
	return sb.conn.Write(msnp.FormatPayload("MSG", args, payload))
}

// SendTextMessage sends a plain-text message with the style/colour encoding
// SPEC_FULL.md §4.7 specifies, acknowledged ("A") so delivery failures
// surface as ErrMessageNotDelivered.
func (sb *Switchboard) SendTextMessage(ctx context.Context, text string, bold, italic, underline, strikethrough bool, rgb uint32) error {
	payload := buildTextMessagePayload(text, bold, italic, underline, strikethrough, rgb)
	reply, err := sb.sendAndWaitPayload(ctx, "A", payload)
	if err != nil {
		return err
	}
	if reply.Verb == "NAK" {
		return msnp.ErrMessageNotDelivered
	}
	return nil
}

// SendNudge sends a nudge datacast.
func (sb *Switchboard) SendNudge(ctx context.Context) error {
	payload := buildNudgePayload()
	_, err := sb.sendAndWaitPayload(ctx, "A", payload)
	return err
}

// SendTypingNotification sends the unacknowledged typing-user indicator.
func (sb *Switchboard) SendTypingNotification(ctx context.Context, from string) error {
	payload := buildTypingPayload(from)
	trID := sb.tx.NextTrID()
	args := []string{strconv.FormatUint(uint64(trID), 10), "U"}
	return sb.conn.Write(msnp.FormatPayload("MSG", args, payload))
}

func buildTextMessagePayload(text string, bold, italic, underline, strikethrough bool, rgb uint32) []byte {
	var bits strings.Builder
	if bold {
		bits.WriteByte('B')
	}
	if italic {
		bits.WriteByte('I')
	}
	if underline {
		bits.WriteByte('U')
	}
	if strikethrough {
		bits.WriteByte('S')
	}
	body := strings.ReplaceAll(text, "\n", "\r\n")
	return []byte(fmt.Sprintf(
		"MIME-Version: 1.0\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"X-MMS-IM-Format: FN=Microsoft%%20Sans%%20Serif; EF=%s; CO=%s; CS=1; PF=0\r\n\r\n%s",
		bits.String(), msnp.ColorToWire(rgb), body,
	))
}

func buildNudgePayload() []byte {
	return []byte(
		"MIME-Version: 1.0\r\n" +
			"Content-Type: text/x-msnmsgr-datacast\r\n\r\nID: 1\r\n",
	)
}

func buildTypingPayload(from string) []byte {
	return []byte(fmt.Sprintf(
		"MIME-Version: 1.0\r\n"+
			"Content-Type: text/x-msmsgscontrol\r\n"+
			"TypingUser: %s\r\n\r\n", from,
	))
}

// readLoop owns the SB socket's read half, mirroring notificationSession's
// but routing through the switchboard's own event classification instead of
// msnp.ClassifyNotification (switchboard traffic - JOI/IRO/BYE/MSG - has no
// notification-server analogue).
func (sb *Switchboard) readLoop() {
	fr := transport.NewFrameReader()
	defer fr.Close()
	buf := make([]byte, 4096)

	for {
		n, err := sb.conn.Conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				sb.log.Debug().Msg("switchboard connection closed")
			} else {
				sb.log.Error().Err(err).Msg("read error")
			}
			sb.terminate()
			return
		}

		cmds, err := fr.Feed(buf[:n])
		if err != nil {
			sb.log.Error().Err(err).Msg("framing error")
			sb.terminate()
			return
		}

		for _, cmd := range cmds {
			sb.dispatch(cmd)
		}
	}
}

func (sb *Switchboard) dispatch(cmd msnp.Command) {
	switch cmd.Verb {
	case "JOI":
		if len(cmd.Arg(false, 0)) > 0 {
			email := cmd.Arg(false, 0)
			sb.addParticipant(email)
			sb.client.emit(msnp.EventParticipantInSwitchboard{SessionID: sb.SessionID(), Email: email})
		}
		return
	case "IRO":
		// IRO <index> <total> <email> <name>
		if len(cmd.Args) >= 3 {
			email := cmd.Args[2]
			sb.addParticipant(email)
			sb.client.emit(msnp.EventParticipantInSwitchboard{SessionID: sb.SessionID(), Email: email})
		}
		return
	case "BYE":
		if len(cmd.Args) >= 1 {
			email := cmd.Args[0]
			sb.removeParticipant(email)
			sb.client.emit(msnp.EventParticipantLeftSwitchboard{SessionID: sb.SessionID(), Email: email})
		}
		return
	case "MSG":
		sb.dispatchMessage(cmd)
		return
	}

	if sb.tx.Deliver(cmd) {
		return
	}
}

// dispatchMessage classifies an incoming MSG by its MIME Content-Type, per
// SPEC_FULL.md §4.7/§4.8.
func (sb *Switchboard) dispatchMessage(cmd msnp.Command) {
	from := ""
	if len(cmd.Args) >= 1 {
		from = cmd.Args[0]
	}

	headers, body := splitMIME(cmd.Payload)
	contentType := headers["content-type"]

	switch {
	case strings.HasPrefix(contentType, "text/plain"):
		sb.client.emit(msnp.EventTextMessage{
			SessionID: sb.SessionID(),
			Email:     from,
			Message:   strings.ReplaceAll(body, "\r\n", "\n"),
		})
	case strings.HasPrefix(contentType, "text/x-msnmsgr-datacast"):
		if strings.Contains(body, "ID: 1") {
			sb.client.emit(msnp.EventNudge{SessionID: sb.SessionID(), Email: from})
		}
	case strings.HasPrefix(contentType, "text/x-msmsgscontrol"):
		sb.client.emit(msnp.EventTypingNotification{SessionID: sb.SessionID(), Email: from})
	case strings.HasPrefix(contentType, "application/x-msnmsgrp2p"):
		sb.handleP2PFrame(from, body)
	}
}

// splitMIME parses a MIME-ish envelope into lowercased header names and the
// raw body after the blank-line separator. It tolerates a body that is not
// valid UTF-8 (P2P frames), since callers needing binary access use
// cmd.Payload directly for the boundary offset.
func splitMIME(payload []byte) (map[string]string, string) {
	headers := make(map[string]string)
	text := string(payload)
	idx := strings.Index(text, "\r\n\r\n")
	if idx < 0 {
		return headers, text
	}
	headerBlock := text[:idx]
	body := text[idx+4:]

	for _, line := range strings.Split(headerBlock, "\r\n") {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		val := strings.TrimSpace(line[colon+1:])
		headers[key] = val
	}
	return headers, body
}

func (sb *Switchboard) terminate() {
	sb.closeOnce.Do(func() {
		sb.conn.Close()
		sb.tx.Close()
		close(sb.done)
		sb.client.removeSwitchboard(sb.SessionID())
	})
}

// disconnect sends OUT and tears the session down. Used by Client.Disconnect
// to close every open switchboard.
func (sb *Switchboard) disconnect() {
	sb.conn.Write(msnp.Format("OUT"))
	sb.terminate()
}
