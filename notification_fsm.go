package msnp11go

import (
	"context"
	"fmt"
	"sync"
)

// loginStage names the notification session's position in the login
// handshake, for logging and tests.
type loginStage int

const (
	stageDisconnected loginStage = iota
	stageTCPOpen
	stageVerNegotiated
	stageCvrSent
	stageTwnIssued
	stageAuthenticated
	stageSynchronised
	stageOperational
)

func (s loginStage) String() string {
	switch s {
	case stageDisconnected:
		return "Disconnected"
	case stageTCPOpen:
		return "TcpOpen"
	case stageVerNegotiated:
		return "VerNegotiated"
	case stageCvrSent:
		return "CvrSent"
	case stageTwnIssued:
		return "TwnIssued"
	case stageAuthenticated:
		return "Authenticated"
	case stageSynchronised:
		return "Synchronised"
	case stageOperational:
		return "Operational"
	default:
		return "Unknown"
	}
}

// loginState is one step of the login handshake: it performs its network
// exchange and returns the next step to run, or nil once login is
// complete. This mirrors the teacher's `FsmState func() FsmInput` field
// pattern in transaction/client_tx_fsm.go: state transitions are values
// returned by each step, not a switch spread across one large method.
type loginState func(ctx context.Context) (loginState, error)

// loginFSM drives a notificationSession from TcpOpen to Operational.
type loginFSM struct {
	ns *notificationSession

	mu    sync.Mutex
	stage loginStage
}

func newLoginFSM(ns *notificationSession) *loginFSM {
	return &loginFSM{ns: ns, stage: stageTCPOpen}
}

func (f *loginFSM) setStage(s loginStage) {
	f.mu.Lock()
	f.stage = s
	f.mu.Unlock()
}

func (f *loginFSM) Stage() loginStage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stage
}

// Run steps through the login handshake to completion or the first error.
func (f *loginFSM) Run(ctx context.Context) error {
	state := f.verState
	for state != nil {
		next, err := state(ctx)
		if err != nil {
			return err
		}
		state = next
	}
	f.setStage(stageOperational)
	return nil
}

func (f *loginFSM) verState(ctx context.Context) (loginState, error) {
	if err := f.ns.negotiateVersion(ctx); err != nil {
		return nil, err
	}
	f.setStage(stageVerNegotiated)
	return f.cvrState, nil
}

func (f *loginFSM) cvrState(ctx context.Context) (loginState, error) {
	if err := f.ns.sendClientVersion(ctx); err != nil {
		return nil, err
	}
	f.setStage(stageCvrSent)
	return f.usrTwnState, nil
}

func (f *loginFSM) usrTwnState(ctx context.Context) (loginState, error) {
	redirected, err := f.ns.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if redirected {
		return nil, errRedirected
	}
	f.setStage(stageTwnIssued)
	return f.authenticatedState, nil
}

func (f *loginFSM) authenticatedState(ctx context.Context) (loginState, error) {
	f.setStage(stageAuthenticated)
	return f.synState, nil
}

func (f *loginFSM) synState(ctx context.Context) (loginState, error) {
	if err := f.ns.synchronize(ctx); err != nil {
		return nil, err
	}
	f.setStage(stageSynchronised)
	return f.shieldsState, nil
}

func (f *loginFSM) shieldsState(ctx context.Context) (loginState, error) {
	if err := f.ns.fetchShields(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

// errRedirected is a sentinel loop-control value, not reported to the
// caller: Dial recognises it and reconnects to the server XFR named
// instead of treating it as a login failure.
var errRedirected = fmt.Errorf("notification session redirected")
