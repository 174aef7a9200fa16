package msnp11go

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/msnp11/msnp11go/msnp"
	"github.com/msnp11/msnp11go/passport"
	"github.com/msnp11/msnp11go/transaction"
	"github.com/msnp11/msnp11go/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// notificationSession owns the single persistent TCP connection to the
// notification server: login, keep-alive, roster mutation, and dispatch of
// unsolicited commands into either the internal PNG/RNG channels or the
// application event stream.
type notificationSession struct {
	client *Client
	conn   *transport.TCPConnection
	tx     *transaction.Layer
	log    zerolog.Logger

	mu          sync.RWMutex
	email       string
	displayName string
	msnObject   string

	// Login-scoped fields, set once by login/authenticate.
	nexusURL     string
	password     string
	redirectAddr string

	qng  chan string
	rng  chan msnp.Command
	done chan struct{}

	// OnCommandSent is an optional hook an example binary can use to feed
	// metrics; the core package itself takes no metrics dependency.
	OnCommandSent func(verb string)

	// OnKeepAliveRoundTrip is an optional hook called with the elapsed time
	// between sending PNG and receiving the matching QNG.
	OnKeepAliveRoundTrip func(time.Duration)

	closeOnce sync.Once
}

func newNotificationSession(conn net.Conn, client *Client) *notificationSession {
	ns := &notificationSession{
		client: client,
		conn:   transport.NewTCPConnection(conn),
		tx:     transaction.NewLayer(),
		qng:    make(chan string, 1),
		rng:    make(chan msnp.Command, 4),
		done:   make(chan struct{}),
	}
	ns.log = log.Logger.With().Str("caller", "msnp11go<NotificationSession>").Logger()
	go ns.readLoop()
	go ns.watchInvitations()
	return ns
}

// login runs the full handshake (VER..GCF). If the server is a dispatch
// server it returns (nextAddr, errRedirected) and the caller should Dial
// nextAddr instead.
func (ns *notificationSession) login(ctx context.Context, email, password, nexusURL string) (string, error) {
	ns.mu.Lock()
	ns.email = email
	ns.mu.Unlock()

	ns.nexusURL = nexusURL
	ns.password = password

	fsm := newLoginFSM(ns)
	if err := fsm.Run(ctx); err != nil {
		if errors.Is(err, errRedirected) {
			return ns.redirectAddr, errRedirected
		}
		return "", err
	}

	go ns.keepAlive()
	return "", nil
}

func (ns *notificationSession) sendAndWait(ctx context.Context, verb string, args ...string) (msnp.Command, error) {
	trID := ns.tx.NextTrID()
	full := append([]string{strconv.FormatUint(uint64(trID), 10)}, args...)
	frame := msnp.Format(verb, full...)

	tx, err := ns.tx.Request(ctx, ns.conn, trID, frame)
	if err != nil {
		return msnp.Command{}, fmt.Errorf("%w: %v", msnp.ErrTransmitting, err)
	}
	if ns.OnCommandSent != nil {
		ns.OnCommandSent(verb)
	}

	reply, err := tx.Wait(ctx)
	if err != nil {
		return msnp.Command{}, fmt.Errorf("%w: %v", msnp.ErrReceiving, err)
	}
	return reply, checkNumericError(reply)
}

func (ns *notificationSession) sendAndWaitPayload(ctx context.Context, verb string, args []string, payload []byte) (msnp.Command, error) {
	trID := ns.tx.NextTrID()
	full := append([]string{strconv.FormatUint(uint64(trID), 10)}, args...)
	frame := msnp.FormatPayload(verb, full, payload)

	tx, err := ns.tx.Request(ctx, ns.conn, trID, frame)
	if err != nil {
		return msnp.Command{}, fmt.Errorf("%w: %v", msnp.ErrTransmitting, err)
	}

	reply, err := tx.Wait(ctx)
	if err != nil {
		return msnp.Command{}, fmt.Errorf("%w: %v", msnp.ErrReceiving, err)
	}
	return reply, checkNumericError(reply)
}

// checkNumericError maps the numeric MSNP reply codes named in SPEC_FULL.md
// §7 to sentinel errors. A reply whose verb is not purely numeric is
// assumed to be a normal terminal reply and returns nil.
func checkNumericError(cmd msnp.Command) error {
	code, err := strconv.Atoi(cmd.Verb)
	if err != nil {
		return nil
	}

	trID, _ := cmd.TrID()
	switch code {
	case 911, 923, 928, 931:
		return &msnp.ServerBusyError{Code: code, TrID: trID}
	case 201, 215, 216, 224, 225, 226, 228, 230:
		return fmt.Errorf("%w: code %d", msnp.ErrInvalidArgument, code)
	case 208:
		return msnp.ErrInvalidContact
	case 282:
		return msnp.ErrMessageNotDelivered
	case 500, 601, 910, 921:
		return &msnp.ServerError{Code: code, TrID: trID}
	}
	if code >= 500 && code < 1000 {
		return &msnp.ServerError{Code: code, TrID: trID}
	}
	return nil
}

func (ns *notificationSession) negotiateVersion(ctx context.Context) error {
	reply, err := ns.sendAndWait(ctx, "VER", "MSNP11", "CVR0")
	if err != nil {
		return err
	}
	if len(reply.Args) < 2 || reply.Args[1] != "MSNP11" {
		return msnp.ErrProtocolNotSupported
	}
	return nil
}

func (ns *notificationSession) sendClientVersion(ctx context.Context) error {
	ns.mu.RLock()
	email := ns.email
	ns.mu.RUnlock()

	_, err := ns.sendAndWait(ctx, "CVR",
		"0x0409", "winnt", "10", "i386", "msnp11go", "1.0", "msmsgs", email)
	return err
}

// authenticate runs the TWN I / Passport / TWN S exchange. It returns
// redirected=true if the server handed back an XFR NS instead of TWN S.
func (ns *notificationSession) authenticate(ctx context.Context) (bool, error) {
	ns.mu.RLock()
	email := ns.email
	ns.mu.RUnlock()

	reply, err := ns.sendAndWait(ctx, "USR", "TWN", "I", email)
	if err != nil {
		return false, err
	}

	if reply.Verb == "XFR" {
		if len(reply.Args) < 3 {
			return false, fmt.Errorf("%w: malformed XFR", msnp.ErrServerError)
		}
		ns.redirectAddr = reply.Args[2]
		return true, nil
	}

	if len(reply.Args) < 4 || reply.Args[1] != "TWN" || reply.Args[2] != "S" {
		return false, fmt.Errorf("%w: unexpected USR reply", msnp.ErrServerError)
	}
	authString := reply.Args[3]

	auth := passport.NewAuthenticator()
	ticket, err := auth.Token(ns.nexusURL, email, ns.password, authString)
	if err != nil {
		return false, err
	}

	okReply, err := ns.sendAndWait(ctx, "USR", "TWN", "S", ticket)
	if err != nil {
		return false, err
	}
	if len(okReply.Args) < 3 || okReply.Args[1] != "OK" {
		return false, fmt.Errorf("%w: USR not accepted", msnp.ErrServerError)
	}

	ns.mu.Lock()
	ns.email = okReply.Args[2]
	if len(okReply.Args) > 3 {
		ns.displayName = msnp.UnescapeString(okReply.Args[3])
	}
	ns.mu.Unlock()

	return false, nil
}

func (ns *notificationSession) synchronize(ctx context.Context) error {
	_, err := ns.sendAndWait(ctx, "SYN", "0", "0")
	return err
}

func (ns *notificationSession) fetchShields(ctx context.Context) error {
	_, err := ns.sendAndWait(ctx, "GCF", "Shields.xml")
	return err
}

// keepAlive sends PNG every interval (server-dictated via QNG) until the
// connection dies or a PNG round trip fails, at which point it emits
// EventDisconnected exactly once. A QNG interval below 5 seconds (or one
// that does not parse) stops the loop.
func (ns *notificationSession) keepAlive() {
	for {
		sent := time.Now()
		if err := ns.conn.Write(msnp.Format("PNG")); err != nil {
			ns.terminate(msnp.EventDisconnected{})
			return
		}

		select {
		case interval, ok := <-ns.qng:
			if !ok {
				ns.terminate(msnp.EventDisconnected{})
				return
			}
			if ns.OnKeepAliveRoundTrip != nil {
				ns.OnKeepAliveRoundTrip(time.Since(sent))
			}
			seconds, err := strconv.Atoi(interval)
			if err != nil || seconds < 5 {
				return
			}
			select {
			case <-time.After(time.Duration(seconds) * time.Second):
			case <-ns.done:
				return
			}
		case <-ns.done:
			return
		}
	}
}

// readLoop owns the socket's read half: it frames incoming bytes, routes
// transaction replies to the correlator, PNG replies to the keep-alive
// loop, RNG invitations to watchInvitations, and everything else through
// the event classifier onto the Client's event channel.
func (ns *notificationSession) readLoop() {
	fr := transport.NewFrameReader()
	defer fr.Close()
	buf := make([]byte, 4096)

	for {
		n, err := ns.conn.Conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				ns.log.Debug().Msg("notification connection closed")
			} else {
				ns.log.Error().Err(err).Msg("read error")
			}
			ns.terminate(msnp.EventDisconnected{})
			return
		}

		cmds, err := fr.Feed(buf[:n])
		if err != nil {
			ns.log.Error().Err(err).Msg("framing error")
			ns.terminate(msnp.EventDisconnected{})
			return
		}

		for _, cmd := range cmds {
			ns.dispatch(cmd)
		}
	}
}

func (ns *notificationSession) dispatch(cmd msnp.Command) {
	switch cmd.Verb {
	case "QNG":
		if len(cmd.Args) > 0 {
			select {
			case ns.qng <- cmd.Args[0]:
			default:
			}
		}
		return
	case "RNG":
		select {
		case ns.rng <- cmd:
		default:
			ns.log.Warn().Msg("dropping RNG invitation, channel full")
		}
		return
	}

	if ns.tx.Deliver(cmd) {
		return
	}

	ev, ok := msnp.ClassifyNotification(cmd)
	if !ok {
		return
	}
	if _, ok := ev.(msnp.EventLoggedInAnotherDevice); ok {
		ns.terminate(ev)
		return
	}
	if _, ok := ev.(msnp.EventDisconnected); ok {
		ns.terminate(ev)
		return
	}
	ns.client.emit(ev)
}

// watchInvitations implements SPEC_FULL.md §4.6 "Incoming switchboard
// invitations": RNG is handled here, never surfaced directly, producing a
// SessionAnswered event once the switchboard is joined.
func (ns *notificationSession) watchInvitations() {
	for {
		select {
		case cmd, ok := <-ns.rng:
			if !ok {
				return
			}
			ns.handleInvitation(cmd)
		case <-ns.done:
			return
		}
	}
}

func (ns *notificationSession) handleInvitation(cmd msnp.Command) {
	if len(cmd.Args) < 4 {
		return
	}
	sessionID := cmd.Args[0]
	hostPort := cmd.Args[1]
	cki := cmd.Args[3]

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sb, err := newIncomingSwitchboard(ctx, ns.client, hostPort, sessionID, cki)
	if err != nil {
		ns.log.Error().Err(err).Msg("failed to join invited switchboard")
		return
	}
	ns.client.addSwitchboard(sb)
	ns.client.emit(msnp.EventSessionAnswered{Session: sb})
}

func (ns *notificationSession) terminate(ev msnp.Event) {
	ns.closeOnce.Do(func() {
		ns.conn.Close()
		ns.tx.Close()
		ns.client.emit(ev)
		close(ns.done)
	})
}

func (ns *notificationSession) close() {
	ns.conn.Close()
}

func (ns *notificationSession) disconnect() error {
	err := ns.conn.Write(msnp.Format("OUT"))
	ns.terminate(msnp.EventDisconnected{})
	return err
}

// --- Roster mutation verbs (SPEC_FULL.md §4.6) ---

func (ns *notificationSession) SetDisplayName(ctx context.Context, name string) error {
	_, err := ns.sendAndWait(ctx, "PRP", "MFN", msnp.EscapeString(name))
	return err
}

func (ns *notificationSession) SetGTC(ctx context.Context, value string) error {
	_, err := ns.sendAndWait(ctx, "GTC", value)
	return err
}

func (ns *notificationSession) SetBLP(ctx context.Context, value string) error {
	_, err := ns.sendAndWait(ctx, "BLP", value)
	return err
}

func (ns *notificationSession) AddContact(ctx context.Context, list, email, displayName string) error {
	if list == "FL" {
		_, err := ns.sendAndWait(ctx, "ADC", "FL", "N="+email, "F="+msnp.EscapeString(displayName))
		return err
	}
	_, err := ns.sendAndWait(ctx, "ADC", list, "N="+email)
	return err
}

func (ns *notificationSession) RemoveContact(ctx context.Context, list, email, guid string) error {
	if list == "FL" {
		_, err := ns.sendAndWait(ctx, "REM", "FL", guid)
		return err
	}
	_, err := ns.sendAndWait(ctx, "REM", list, email)
	return err
}

func (ns *notificationSession) AddGroup(ctx context.Context, name string) (msnp.Command, error) {
	return ns.sendAndWait(ctx, "ADG", msnp.EscapeString(name))
}

func (ns *notificationSession) RemoveGroup(ctx context.Context, guid string) error {
	_, err := ns.sendAndWait(ctx, "RMG", guid)
	return err
}

func (ns *notificationSession) RenameGroup(ctx context.Context, guid, newName string) error {
	_, err := ns.sendAndWait(ctx, "REG", guid, msnp.EscapeString(newName))
	return err
}

func (ns *notificationSession) SetContactGroups(ctx context.Context, guid, groupGUID string) error {
	_, err := ns.sendAndWait(ctx, "ADC", "FL", "C="+guid, groupGUID)
	return err
}

// ChangeStatus sends CHG, setting presence, capability bitmask, and
// optionally an MsnObject descriptor for the account's display picture.
func (ns *notificationSession) ChangeStatus(ctx context.Context, status string, caps uint64, msnObject string) error {
	args := []string{status, strconv.FormatUint(caps, 10)}
	if msnObject != "" {
		args = append(args, msnp.EscapeString(msnObject))
	}
	_, err := ns.sendAndWait(ctx, "CHG", args...)
	return err
}

// SetPersonalMessage publishes the personal message/current-media payload
// via UUX.
func (ns *notificationSession) SetPersonalMessage(ctx context.Context, pm msnp.PersonalMessage) error {
	payload := buildPersonalMessagePayload(pm)
	_, err := ns.sendAndWaitPayload(ctx, "UUX", nil, payload)
	return err
}

func buildPersonalMessagePayload(pm msnp.PersonalMessage) []byte {
	return []byte(fmt.Sprintf(
		"<Data><PSM>%s</PSM><CurrentMedia>%s</CurrentMedia></Data>",
		pm.PSM, pm.CurrentMedia,
	))
}

func (ns *notificationSession) selfMsnObject() string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.msnObject
}

func (ns *notificationSession) selfEmail() string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.email
}
