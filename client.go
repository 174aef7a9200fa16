package msnp11go

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/msnp11/msnp11go/msnp"
	"github.com/msnp11/msnp11go/p2p"
	"github.com/msnp11/msnp11go/passport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultNexusURL is the Passport Nexus endpoint real MSN servers redirect
// clients to for their DALogin URL. Tests and private deployments override
// it with WithNexusURL.
const DefaultNexusURL = "https://nexus.passport.com/rdr/pprdr.asp"

// Client is the SDK's single entry point: one persistent notification
// server session plus zero or more switchboard sessions it creates or
// receives, aggregated the way the teacher's Client embeds a *UserAgent
// aggregating transport+transaction layers.
type Client struct {
	log zerolog.Logger

	email    string
	password string

	nexusURL string

	ns *notificationSession

	mu             sync.Mutex
	switchboards   map[string]*Switchboard
	displayPicture []byte

	events    chan msnp.Event
	closeOnce sync.Once
}

// ClientOption configures a Client before Dial connects.
type ClientOption func(*Client)

// WithClientLogger overrides the client's zerolog.Logger.
func WithClientLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// WithNexusURL overrides the Passport Nexus endpoint, for tests or
// alternate-server deployments.
func WithNexusURL(url string) ClientOption {
	return func(c *Client) { c.nexusURL = url }
}

// WithEventBuffer sets the Events channel's buffer size. Default 32,
// matching the reference implementation's bounded event channel.
func WithEventBuffer(n int) ClientOption {
	return func(c *Client) { c.events = make(chan msnp.Event, n) }
}

// Dial connects to a notification server at addr ("host:port"), logs in as
// email/password, and returns an operational Client. It follows XFR NS
// dispatch-server redirects transparently.
func Dial(ctx context.Context, addr, email, password string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		email:        email,
		password:     password,
		nexusURL:     DefaultNexusURL,
		switchboards: make(map[string]*Switchboard),
		events:       make(chan msnp.Event, 32),
	}
	c.log = log.Logger.With().Str("caller", "msnp11go<Client>").Logger()
	for _, o := range opts {
		o(c)
	}

	for {
		ns, err := dialNotificationSession(ctx, addr, c)
		if err != nil {
			return nil, err
		}

		nextAddr, err := ns.login(ctx, email, password, c.nexusURL)
		if err != nil {
			ns.close()
			if errors.Is(err, errRedirected) {
				addr = nextAddr
				continue
			}
			return nil, err
		}

		c.ns = ns
		go c.watchDisconnect()
		return c, nil
	}
}

func dialNotificationSession(ctx context.Context, addr string, c *Client) (*notificationSession, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", msnp.ErrCouldNotConnect, err)
	}
	return newNotificationSession(conn, c), nil
}

// Events returns the channel of application-level events. It is closed
// exactly once, when Disconnect completes or the connection is lost.
func (c *Client) Events() <-chan msnp.Event {
	return c.events
}

// Email returns the account this client is logged in as.
func (c *Client) Email() string {
	c.ns.mu.RLock()
	defer c.ns.mu.RUnlock()
	return c.ns.email
}

// CreateSession opens a new outgoing switchboard session and invites peer
// into it, driving the XFR SB -> USR -> CAL path described in SPEC_FULL.md
// §4.7.
func (c *Client) CreateSession(ctx context.Context, peer string) (*Switchboard, error) {
	sb, err := newOutgoingSwitchboard(ctx, c, peer)
	if err != nil {
		return nil, err
	}
	c.addSwitchboard(sb)
	return sb, nil
}

func (c *Client) addSwitchboard(sb *Switchboard) {
	c.mu.Lock()
	c.switchboards[sb.SessionID()] = sb
	c.mu.Unlock()
}

func (c *Client) removeSwitchboard(sessionID string) {
	c.mu.Lock()
	delete(c.switchboards, sessionID)
	c.mu.Unlock()
}

// SetDisplayPicture stores the raw picture bytes this client serves to
// peers over P2P, and returns the MsnObject descriptor to publish through
// ChangeStatus so contacts know a picture is available.
func (c *Client) SetDisplayPicture(picture []byte) p2p.MsnObject {
	c.mu.Lock()
	c.displayPicture = picture
	c.mu.Unlock()
	obj := p2p.NewMsnObject(c.Email(), picture)
	c.ns.mu.Lock()
	c.ns.msnObject = obj.String()
	c.ns.mu.Unlock()
	return obj
}

// SetOnCommandSent installs a hook called with the verb of every command
// this client sends to the notification server, for an example binary to
// feed into its own metrics without the core package taking a metrics
// dependency.
func (c *Client) SetOnCommandSent(f func(verb string)) {
	c.ns.OnCommandSent = f
}

// SetOnKeepAliveRoundTrip installs a hook called with the PNG/QNG
// round-trip latency each keep-alive cycle, for an example binary to feed
// into its own metrics.
func (c *Client) SetOnKeepAliveRoundTrip(f func(time.Duration)) {
	c.ns.OnKeepAliveRoundTrip = f
}

func (c *Client) displayPictureBytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayPicture
}

func (c *Client) emit(ev msnp.Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Msg("event channel full, dropping event")
	}
}

// watchDisconnect surfaces the notification session's terminal Disconnected
// signal as the closing event on Client.Events, then closes the channel.
func (c *Client) watchDisconnect() {
	<-c.ns.done
	c.closeOnce.Do(func() {
		close(c.events)
	})
}

// Disconnect sends OUT and tears down every switchboard and the
// notification session. A second call emits no further events, but it
// still tries to write OUT and returns that write's error.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	for id, sb := range c.switchboards {
		sb.disconnect()
		delete(c.switchboards, id)
	}
	c.mu.Unlock()

	return c.ns.disconnect()
}
