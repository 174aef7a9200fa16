package msnp11go

import (
	"context"
	"fmt"
	"net"

	"github.com/msnp11/msnp11go/msnp"
)

// newIncomingSwitchboard answers an RNG invitation: connect to the
// host:port the notification server named, then ANS in with the cookie and
// session id it supplied.
func newIncomingSwitchboard(ctx context.Context, c *Client, hostPort, sessionID, cki string) (*Switchboard, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", msnp.ErrCouldNotConnect, err)
	}

	sb := newSwitchboard(conn, c)
	sb.setSessionID(sessionID)

	reply, err := sb.sendAndWait(ctx, "ANS", c.Email(), cki, sessionID)
	if err != nil {
		sb.terminate()
		return nil, err
	}
	if len(reply.Args) < 2 || reply.Args[1] != "OK" {
		sb.terminate()
		return nil, fmt.Errorf("%w: ANS not accepted", msnp.ErrServerError)
	}
	sb.addParticipant(c.Email())

	return sb, nil
}
