package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrNoResponse        = errors.New("protocol: no response")
	ErrProtocolViolation = errors.New("protocol: violation")
	ErrChecksumFailure   = errors.New("protocol: checksum failure")
	ErrTransportClosed   = errors.New("protocol: transport closed")
)

// TransportError is an I/O failure on the link. The connection it happened
// on must be considered unusable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ReplyError reports a block reply byte the transfer state machine cannot
// handle. Drained holds whatever the device sent after it.
type ReplyError struct {
	Reply   Reply
	Drained []byte
}

func (e *ReplyError) Error() string {
	if len(e.Drained) == 0 {
		return fmt.Sprintf("unexpected block reply %s", e.Reply)
	}
	return fmt.Sprintf("unexpected block reply %s (followed by %q)", e.Reply, e.Drained)
}

func (e *ReplyError) Unwrap() error {
	return ErrProtocolViolation
}
