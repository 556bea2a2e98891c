package firing

import (
	"fmt"

	"argentum/protocol"
)

// All compressor failures are protocol violations: a malformed job must
// never produce device output.
var (
	ErrFiringOrder   = fmt.Errorf("%w: firing order changed", protocol.ErrProtocolViolation)
	ErrLineTooLong   = fmt.Errorf("%w: firing line too long", protocol.ErrProtocolViolation)
	ErrMalformedLine = fmt.Errorf("%w: malformed line", protocol.ErrProtocolViolation)
)

// LineError locates a failure in the input. Line is 1-based.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
