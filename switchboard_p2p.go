package msnp11go

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/msnp11/msnp11go/msnp"
	"github.com/msnp11/msnp11go/p2p"
)

// p2pTransfer tracks one in-flight display-picture exchange, either as the
// requester (we sent INVITE, waiting for OK/data) or as the server (we
// received INVITE, sending data). Routing by the MSNSLP session id lets a
// switchboard run at most one of each direction concurrently per peer.
type p2pTransfer struct {
	session *p2p.DisplayPictureSession

	mu     sync.Mutex
	buffer []byte

	done   chan struct{}
	result []byte
	err    error
}

func (sb *Switchboard) registerTransfer(key string, t *p2pTransfer) {
	sb.mu.Lock()
	sb.transfers[key] = t
	sb.transfersByCall[t.session.CallID()] = t
	sb.mu.Unlock()
}

func (sb *Switchboard) unregisterTransfer(key string) {
	sb.mu.Lock()
	if t, ok := sb.transfers[key]; ok {
		delete(sb.transfersByCall, t.session.CallID())
	}
	delete(sb.transfers, key)
	sb.mu.Unlock()
}

func (sb *Switchboard) lookupTransfer(key string) *p2pTransfer {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.transfers[key]
}

func (sb *Switchboard) lookupTransferByCall(callID string) *p2pTransfer {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.transfersByCall[callID]
}

func (sb *Switchboard) unregisterTransferByCall(callID string) {
	sb.mu.Lock()
	if t, ok := sb.transfersByCall[callID]; ok {
		for k, v := range sb.transfers {
			if v == t {
				delete(sb.transfers, k)
			}
		}
	}
	delete(sb.transfersByCall, callID)
	sb.mu.Unlock()
}

func (sb *Switchboard) sendP2P(to string, frame []byte) error {
	payload := []byte(fmt.Sprintf(
		"MIME-Version: 1.0\r\nContent-Type: application/x-msnmsgrp2p\r\nP2P-Dest: %s\r\n\r\n", to,
	))
	payload = append(payload, frame...)
	return sb.sendDatacast(payload)
}

// RequestDisplayPicture drives the P2P requester flow (SPEC_FULL.md §4.8):
// invite peerEmail to send the picture peerMsnObject describes, and block
// until the transfer completes or ctx is done.
func (sb *Switchboard) RequestDisplayPicture(ctx context.Context, peerEmail, peerMsnObject string) ([]byte, error) {
	selfEmail := sb.client.Email()

	ps := p2p.New()
	invite := ps.Invite(peerEmail, selfEmail, peerMsnObject)
	key := strconv.FormatUint(uint64(ps.SessionID()), 10)

	transfer := &p2pTransfer{session: ps, done: make(chan struct{})}
	sb.registerTransfer(key, transfer)
	defer sb.unregisterTransfer(key)

	if err := sb.sendP2P(peerEmail, invite); err != nil {
		return nil, err
	}

	select {
	case <-transfer.done:
		return transfer.result, transfer.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-sb.done:
		return nil, msnp.ErrDisconnected
	}
}

// handleP2PFrame routes one decoded application/x-msnmsgrp2p body, which is
// itself a 48-byte BinaryHeader plus an SLP/SIP-shaped text body or raw
// picture bytes, per SPEC_FULL.md §4.8.
func (sb *Switchboard) handleP2PFrame(from, body string) {
	data := []byte(body)
	h, err := p2p.DecodeHeader(data)
	if err != nil {
		sb.log.Warn().Err(err).Msg("short p2p frame")
		return
	}
	rest := data[p2p.HeaderSize:]

	if h.Flag == p2p.FlagAck {
		return
	}

	if h.SessionID != 0 {
		sb.handleP2PDataFrame(from, data, h, rest)
		return
	}

	text := strings.TrimRight(string(rest), "\x00")
	switch {
	case strings.HasPrefix(text, "INVITE "):
		sb.handleP2PInvite(from, data, text)
	case strings.HasPrefix(text, "MSNSLP/1.0 200 OK"):
		sb.handleP2POk(from, data, text)
	case strings.HasPrefix(text, "MSNSLP/1.0 603 Decline"):
		sb.handleP2PDecline(text)
	case strings.HasPrefix(text, "BYE "):
		sb.handleP2PBye(from, data, text)
	}
}

func (sb *Switchboard) handleP2PInvite(from string, frame []byte, text string) {
	selfEmail := sb.client.Email()
	selfObject := sb.client.ns.selfMsnObject()

	ps, err := p2p.NewFromInvite([]byte(text))
	if err != nil {
		sb.log.Warn().Err(err).Msg("malformed p2p invite")
		return
	}
	key := strconv.FormatUint(uint64(ps.SessionID()), 10)

	if ack, err := p2p.Acknowledge(frame); err == nil {
		sb.sendP2P(from, ack)
	}

	if !strings.Contains(text, "msnmsgr:"+selfEmail) || !inviteWantsObject(text, selfObject) {
		sb.sendP2P(from, ps.Decline(from, selfEmail))
		return
	}

	transfer := &p2pTransfer{session: ps, done: make(chan struct{})}
	sb.registerTransfer(key, transfer)

	sb.sendP2P(from, ps.Ok(from, selfEmail))
	sb.sendP2P(from, ps.DataPreparation())

	picture := sb.client.displayPictureBytes()
	for _, chunk := range ps.Data(picture) {
		sb.sendP2P(from, chunk)
	}
}

// inviteWantsObject reports whether invite's base64 Context field decodes
// to selfObject (our MsnObject descriptor) plus its trailing NUL.
func inviteWantsObject(invite, selfObject string) bool {
	idx := strings.Index(invite, "Context: ")
	if idx < 0 {
		return false
	}
	rest := invite[idx+len("Context: "):]
	if end := strings.IndexAny(rest, "\r\n"); end >= 0 {
		rest = rest[:end]
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rest))
	if err != nil {
		return false
	}
	return string(decoded) == selfObject+"\x00"
}

func (sb *Switchboard) handleP2POk(from string, frame []byte, text string) {
	ps, err := p2p.NewFromInvite([]byte(text))
	if err != nil {
		return
	}
	key := strconv.FormatUint(uint64(ps.SessionID()), 10)
	if key == "0" {
		return
	}
	if ack, err := p2p.Acknowledge(frame); err == nil {
		sb.sendP2P(from, ack)
	}
}

func (sb *Switchboard) handleP2PDecline(text string) {
	ps, err := p2p.NewFromInvite([]byte(text))
	if err != nil {
		return
	}
	key := strconv.FormatUint(uint64(ps.SessionID()), 10)
	transfer := sb.lookupTransfer(key)
	if transfer == nil {
		return
	}
	transfer.err = msnp.ErrMessageNotDelivered
	close(transfer.done)
}

func (sb *Switchboard) handleP2PBye(from string, frame []byte, text string) {
	ps, err := p2p.NewFromInvite([]byte(text))
	if err != nil {
		return
	}
	if ack, err := p2p.Acknowledge(frame); err == nil {
		sb.sendP2P(from, ack)
	}
	sb.unregisterTransferByCall(ps.CallID())
}

// handleP2PDataFrame accumulates a data-preparation or data-chunk message
// for the transfer identified by h.SessionID, completing the transfer and
// sending BYE once the accumulated bytes reach TotalDataSize.
func (sb *Switchboard) handleP2PDataFrame(from string, frame []byte, h p2p.BinaryHeader, body []byte) {
	key := strconv.FormatUint(uint64(h.SessionID), 10)
	transfer := sb.lookupTransfer(key)
	if transfer == nil {
		return
	}

	// Data-preparation: a control message with a 4-byte all-zero body.
	if h.TotalDataSize == 4 && h.Flag == p2p.FlagControl {
		if ack, err := p2p.Acknowledge(frame); err == nil {
			sb.sendP2P(from, ack)
		}
		return
	}

	chunk := body
	if len(chunk) >= 4 {
		chunk = chunk[:len(chunk)-4] // strip the data footer
	}

	transfer.mu.Lock()
	transfer.buffer = append(transfer.buffer, chunk...)
	complete := uint64(len(transfer.buffer)) >= h.TotalDataSize
	transfer.mu.Unlock()

	if !complete {
		return
	}

	if ack, err := p2p.Acknowledge(frame); err == nil {
		sb.sendP2P(from, ack)
	}

	transfer.result = transfer.buffer
	sb.sendP2P(from, transfer.session.Bye(from, sb.client.Email()))
	sb.client.emit(msnp.EventDisplayPicture{
		SessionID: sb.SessionID(),
		Email:     from,
		Data:      transfer.buffer,
	})
	close(transfer.done)
}
