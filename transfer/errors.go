package transfer

import (
	"fmt"

	"argentum/protocol"
)

// NotReadyError reports a recv request the device did not accept. Response
// holds whatever it answered, nil if it stayed silent.
type NotReadyError struct {
	Response []string
}

func (e *NotReadyError) Error() string {
	if e.Response == nil {
		return "device did not answer recv"
	}
	return fmt.Sprintf("device did not get ready, got %q", e.Response)
}

func (e *NotReadyError) Unwrap() error {
	if e.Response == nil {
		return protocol.ErrNoResponse
	}
	return protocol.ErrProtocolViolation
}

// ChecksumError reports a transfer abandoned after too many rejected blocks
type ChecksumError struct {
	Offset   int
	Failures int
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("too many checksum failures (%d), last at offset %d", e.Failures, e.Offset)
}

func (e *ChecksumError) Unwrap() error {
	return protocol.ErrChecksumFailure
}
