package msnp11go

import (
	"context"
	"fmt"
	"net"

	"github.com/msnp11/msnp11go/msnp"
)

// newOutgoingSwitchboard drives the XFR SB -> USR -> CAL path: ask the
// notification server for a switchboard address and cookie, connect,
// authenticate, then invite peer into the new session.
func newOutgoingSwitchboard(ctx context.Context, c *Client, peer string) (*Switchboard, error) {
	reply, err := c.ns.sendAndWait(ctx, "XFR", "SB")
	if err != nil {
		return nil, err
	}
	if len(reply.Args) < 5 || reply.Args[1] != "SB" || reply.Args[3] != "CKI" {
		return nil, fmt.Errorf("%w: unexpected XFR reply", msnp.ErrServerError)
	}
	addr := reply.Args[2]
	cki := reply.Args[4]

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", msnp.ErrCouldNotConnect, err)
	}

	sb := newSwitchboard(conn, c)

	usrReply, err := sb.sendAndWait(ctx, "USR", c.Email(), cki)
	if err != nil {
		sb.terminate()
		return nil, err
	}
	if len(usrReply.Args) < 3 || usrReply.Args[1] != "OK" {
		sb.terminate()
		return nil, fmt.Errorf("%w: USR not accepted by switchboard", msnp.ErrServerError)
	}
	sb.addParticipant(usrReply.Args[2])

	calReply, err := sb.sendAndWait(ctx, "CAL", peer)
	if err != nil {
		sb.terminate()
		return nil, err
	}
	if len(calReply.Args) < 3 || calReply.Args[1] != "RINGING" {
		sb.terminate()
		return nil, fmt.Errorf("%w: CAL not accepted", msnp.ErrServerError)
	}
	sb.setSessionID(calReply.Args[2])

	return sb, nil
}
