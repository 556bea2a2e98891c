// Package transfer uploads files to the printer with the block protocol:
// a recv request answered by Ready, then XOR-obfuscated blocks each carrying
// the rolling DJB2 checksum of everything sent so far, acknowledged one byte
// per block.
package transfer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"argentum/firing"
	"argentum/protocol"
)

// Link is the part of the transport a transfer drives. It must be held
// exclusively for the duration of Run.
type Link interface {
	io.Writer
	protocol.TimedReader
	Drain() []byte
}

// ProgressFunc is called after every acknowledged block. Returning false
// cancels the transfer.
type ProgressFunc func(sent, total int) bool

// State of the block state machine
type State int

const (
	StateAwaitReady State = iota
	StateSendingBlock
	StateAwaitAck
	StateRetry
	StateAdvance
	StateAbort
	StateCancelled
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateAwaitReady:
		return "await-ready"
	case StateSendingBlock:
		return "sending-block"
	case StateAwaitAck:
		return "await-ack"
	case StateRetry:
		return "retry"
	case StateAdvance:
		return "advance"
	case StateAbort:
		return "abort"
	case StateCancelled:
		return "cancelled"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is how a transfer ended
type Outcome int

const (
	OutcomeComplete Outcome = iota
	OutcomeCancelled
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "aborted"
	}
}

// Report summarizes a finished transfer
type Report struct {
	Name       string
	Size       int // Bytes declared in the recv request
	RawSize    int // Size of the file before compression
	Compressed bool
	BytesSent  int // Acknowledged payload bytes
	Blocks     int // Acknowledged blocks
	Failures   int // Rejected blocks
	Outcome    Outcome
	Elapsed    time.Duration
}

// Session is one upload. It is not reusable.
type Session struct {
	cfg Config

	name       string
	payload    []byte
	rawSize    int
	compressed bool

	state    State
	offset   int
	hash     uint32
	blocks   int
	failures int
}

// NewSession prepares the upload of contents under name. When compression
// is enabled the contents are run through the firing compressor and the
// smaller of the two forms is sent; a job the compressor rejects is an
// error.
func NewSession(name string, contents []byte, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		cfg:     cfg,
		name:    name,
		payload: contents,
		rawSize: len(contents),
		hash:    protocol.DJB2Seed,
		state:   StateAwaitReady,
	}

	if cfg.Compress {
		compressed, err := firing.Compress(string(contents))
		if err != nil {
			return nil, fmt.Errorf("compress %s: %w", name, err)
		}
		if len(compressed) < len(contents) {
			s.payload = []byte(compressed)
			s.compressed = true
		}
	}

	return s, nil
}

// Size returns the number of payload bytes that will be sent
func (s *Session) Size() int { return len(s.payload) }

// Compressed reports whether the compressed form will be sent
func (s *Session) Compressed() bool { return s.compressed }

// State returns the current state of the block state machine
func (s *Session) State() State { return s.state }

// Checksum returns the rolling checksum over the acknowledged bytes
func (s *Session) Checksum() uint32 { return s.hash }

// Request returns the recv command announcing this upload
func (s *Session) Request() string {
	if s.compressed {
		return fmt.Sprintf("recv %d b %s", len(s.payload), s.name)
	}
	return fmt.Sprintf("recv %d %s", len(s.payload), s.name)
}

// Accept checks the device's answer to the recv request
func (s *Session) Accept(lines []string) error {
	if len(lines) == 0 || lines[0] != protocol.ReadyLine {
		s.state = StateAbort
		return &NotReadyError{Response: lines}
	}
	s.state = StateSendingBlock
	return nil
}

// Run performs the whole upload over link. Cancellation through progress
// or ctx is checked between blocks; it tells the device with a cancel byte
// and returns a report with OutcomeCancelled and a nil error.
func (s *Session) Run(ctx context.Context, link Link, progress ProgressFunc) (Report, error) {
	start := time.Now()
	report := func(outcome Outcome) Report {
		return Report{
			Name:       s.name,
			Size:       len(s.payload),
			RawSize:    s.rawSize,
			Compressed: s.compressed,
			BytesSent:  s.offset,
			Blocks:     s.blocks,
			Failures:   s.failures,
			Outcome:    outcome,
			Elapsed:    time.Since(start),
		}
	}

	if s.state != StateAwaitReady {
		return report(OutcomeAborted), fmt.Errorf("transfer of %s already ran (state %s)", s.name, s.state)
	}

	if err := s.request(link); err != nil {
		s.state = StateAbort
		return report(OutcomeAborted), err
	}

	log.Debug().Str("file", s.name).Int("size", len(s.payload)).Bool("compressed", s.compressed).Msg("sending")

	for s.offset < len(s.payload) {
		if ctx.Err() != nil {
			if err := s.cancel(link); err != nil {
				return report(OutcomeAborted), err
			}
			return report(OutcomeCancelled), nil
		}

		end := min(s.offset+protocol.BlockSize, len(s.payload))
		before := s.hash

		s.state = StateSendingBlock
		var frame []byte
		frame, s.hash = protocol.EncodeBlock(s.payload[s.offset:end], s.hash)
		if _, err := link.Write(frame); err != nil {
			s.state = StateAbort
			return report(OutcomeAborted), err
		}

		s.state = StateAwaitAck
		reply, err := s.readReply(link)
		if err != nil {
			s.state = StateAbort
			return report(OutcomeAborted), err
		}

		switch reply.Kind {
		case protocol.ReplyNack:
			s.state = StateRetry
			s.hash = before
			s.failures++
			log.Debug().Str("file", s.name).Int("offset", s.offset).Int("failures", s.failures).Msg("block rejected")
			if s.failures > s.cfg.MaxFailures {
				s.state = StateAbort
				return report(OutcomeAborted), &ChecksumError{Offset: s.offset, Failures: s.failures}
			}

		case protocol.ReplyAck:
			s.state = StateAdvance
			s.offset = end
			s.blocks++
			if progress != nil && !progress(s.offset, len(s.payload)) {
				if err := s.cancel(link); err != nil {
					return report(OutcomeAborted), err
				}
				return report(OutcomeCancelled), nil
			}

		default:
			s.state = StateAbort
			drained := link.Drain()
			log.Warn().Str("file", s.name).Int("offset", s.offset).Stringer("reply", reply).
				Bytes("rest", drained).Msg("unexpected block reply")
			return report(OutcomeAborted), &protocol.ReplyError{Reply: reply, Drained: drained}
		}
	}

	// Nothing marks the end; the device counts bytes against the declared size
	s.state = StateComplete
	log.Debug().Str("file", s.name).Int("blocks", s.blocks).Int("failures", s.failures).Msg("sent")
	return report(OutcomeComplete), nil
}

func (s *Session) request(link Link) error {
	if _, err := link.Write([]byte(s.Request() + string(protocol.Delimiter))); err != nil {
		return err
	}
	lines, err := protocol.ReadResponse(link, s.cfg.ReadyTimeout, string(protocol.Delimiter))
	if err != nil {
		return err
	}
	if err := s.Accept(lines); err != nil {
		log.Warn().Str("file", s.name).Strs("response", lines).Msg("device not ready")
		return err
	}
	return nil
}

func (s *Session) readReply(link Link) (protocol.Reply, error) {
	link.SetReadTimeout(s.cfg.ReplyTimeout)
	defer link.SetReadTimeout(0)

	buf := make([]byte, 1)
	n, err := link.Read(buf)
	if err != nil {
		return protocol.Reply{}, err
	}
	return protocol.DecodeReply(buf[:n]), nil
}

func (s *Session) cancel(link Link) error {
	s.state = StateCancelled
	log.Info().Str("file", s.name).Int("sent", s.offset).Msg("transfer cancelled")
	_, err := link.Write([]byte{protocol.CancelByte})
	return err
}
