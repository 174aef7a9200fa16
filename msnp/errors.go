package msnp

import (
	"errors"
	"strconv"
)

// Sentinel errors returned by this package and by msnp11go. Callers should
// use errors.Is/errors.As rather than comparing strings.
var (
	ErrResolution                  = errors.New("msnp: could not resolve server address")
	ErrCouldNotConnect              = errors.New("msnp: could not connect to server")
	ErrProtocolNotSupported         = errors.New("msnp: server does not support the requested protocol version")
	ErrAuthenticationHeaderNotFound = errors.New("msnp: authentication header not found in passport response")
	ErrCouldNotGetAuthString        = errors.New("msnp: could not extract authentication string")
	ErrServerIsBusy                 = errors.New("msnp: server is busy")
	ErrServerError                  = errors.New("msnp: server returned an error")
	ErrInvalidArgument              = errors.New("msnp: invalid argument")
	ErrInvalidContact               = errors.New("msnp: invalid contact")
	ErrContactIsOffline             = errors.New("msnp: contact is offline")
	ErrMessageNotDelivered          = errors.New("msnp: message not delivered")
	ErrNotLoggedIn                  = errors.New("msnp: not logged in")
	ErrDisconnected                 = errors.New("msnp: disconnected")
	ErrReceiving                    = errors.New("msnp: error receiving from server")
	ErrTransmitting                 = errors.New("msnp: error transmitting to server")
	ErrCouldNotGetSessionID         = errors.New("msnp: could not get session id")
	ErrCouldNotSetSessionID         = errors.New("msnp: could not set session id")
	ErrBinaryHeaderReading          = errors.New("msnp: could not read binary header")
)

// ServerError wraps a numeric MSNP error code (e.g. "500 1 10\r\n") so callers
// can recover the code with errors.As while errors.Is(err, ErrServerError)
// still succeeds.
type ServerError struct {
	Code int
	TrID uint32
}

func (e *ServerError) Error() string {
	return "msnp: server error " + strconv.Itoa(e.Code)
}

func (e *ServerError) Unwrap() error { return ErrServerError }

// ServerBusyError wraps the 911/923/928/931 "server is busy" reply codes,
// a distinct kind from ServerError per SPEC_FULL.md's error taxonomy:
// errors.Is(err, ErrServerIsBusy) succeeds for these codes and
// errors.Is(err, ErrServerError) does not, and vice versa for ServerError.
type ServerBusyError struct {
	Code int
	TrID uint32
}

func (e *ServerBusyError) Error() string {
	return "msnp: server is busy, code " + strconv.Itoa(e.Code)
}

func (e *ServerBusyError) Unwrap() error { return ErrServerIsBusy }
