// Package msnp11go is a client SDK for the MSNP11 instant-messaging wire
// protocol, its companion Passport 1.4 authentication handshake, and the
// MSNSLP/P2P binary sub-protocol used for display-picture transfer.
//
// The entry point is Dial, which logs into a notification server and
// returns a *Client streaming typed events (msnp.Event) over Client.Events.
package msnp11go

import "github.com/google/uuid"

// Init seeds the package's random id generators. Call it once at process
// start, before creating any Client.
func Init() {
	uuid.EnableRandPool()
}
