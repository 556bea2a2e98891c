// Package printer is the session controller for an Argentum printer: it
// owns the serial link, performs the version handshake and exchanges text
// commands and file transfers with the firmware, one at a time.
package printer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"argentum/host/serial"
	"argentum/protocol"
	"argentum/transfer"
)

var (
	ErrNotConnected = errors.New("printer: not connected")
	ErrUnknown      = errors.New("printer: unknown error")
)

// Response timeouts and markers used by the firmware
const (
	DefaultWaitTimeout = 30 * time.Second
	HomeTimeout        = 30 * time.Second
	PrintTimeout       = 2 * time.Minute
	LimitsTimeout      = 1 * time.Second
	ListTimeout        = 2 * time.Second
	MD5Timeout         = 10 * time.Second
	DJB2Timeout        = 30 * time.Second

	HomedReply    = "+Homed"
	PrintComplete = "+Print complete"
	LimitsHomed   = "+Limits: X- Y- "

	noResponseMessage = "Printer didn't respond."
)

// Opener opens a serial port; serial.Open unless replaced
type Opener func(cfg *serial.Config) (serial.Port, error)

// Printer represents a connection to an Argentum printer
type Printer struct {
	// Serializes every exchange on the link
	mu sync.Mutex

	// Port settings; Device is filled in by Connect
	serialConfig     serial.Config
	open             Opener
	handshakeTimeout time.Duration
	transferOptions  []transfer.Option

	// Connection state
	port      serial.Port
	transport *protocol.HostTransport
	device    string
	connected bool
	version   *protocol.FirmwareVersion
	lastError string
}

// Option is a functional option for configuring a Printer
type Option func(*Printer)

// WithOpener replaces the function used to open serial ports
func WithOpener(open Opener) Option {
	return func(p *Printer) {
		p.open = open
	}
}

// WithSerialConfig sets the driver, baud rate and poll interval
func WithSerialConfig(cfg serial.Config) Option {
	return func(p *Printer) {
		p.serialConfig = cfg
	}
}

// WithHandshakeTimeout sets how long Connect waits for the banner
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(p *Printer) {
		if timeout > 0 {
			p.handshakeTimeout = timeout
		}
	}
}

// WithTransferOptions sets defaults applied to every Send
func WithTransferOptions(opts ...transfer.Option) Option {
	return func(p *Printer) {
		p.transferOptions = append(p.transferOptions, opts...)
	}
}

// New creates a new Printer instance (not yet connected)
func New(opts ...Option) *Printer {
	p := &Printer{
		serialConfig:     *serial.DefaultConfig(""),
		open:             serial.Open,
		handshakeTimeout: protocol.HandshakeTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect opens device and performs the handshake. The firmware prints a
// banner when the port opens; a version line in it is recorded but its
// absence does not fail the connection.
func (p *Printer) Connect(device string) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()
	p.lastError = ""

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("device", device).Interface("panic", r).Msg("connect failed")
			p.closeLocked()
			p.lastError = "Unknown Error"
			err = fmt.Errorf("%w: %v", ErrUnknown, r)
		}
	}()

	cfg := p.serialConfig
	cfg.Device = device
	port, err := p.open(&cfg)
	if err != nil {
		p.lastError = err.Error()
		return &protocol.TransportError{Op: "open", Err: err}
	}

	// Drop whatever was queued before we opened
	if err := port.Flush(); err != nil {
		log.Debug().Err(err).Str("device", device).Msg("flush failed")
	}

	p.port = port
	p.transport = protocol.NewHostTransport(port)
	p.device = device
	p.connected = true

	lines, err := protocol.ReadResponse(p.transport, p.handshakeTimeout, string(protocol.Delimiter))
	if err != nil {
		return p.failLocked(err)
	}
	if lines == nil {
		p.closeLocked()
		p.lastError = noResponseMessage
		return protocol.ErrNoResponse
	}

	if v, ok := protocol.FindVersion(lines); ok {
		p.version = &v
		log.Info().Str("device", device).Str("version", v.String()).Msg("printer is running version")
	} else {
		log.Info().Str("device", device).Msg("printer connected, no version reported")
	}
	return nil
}

// Disconnect releases the link unconditionally
func (p *Printer) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Printer) closeLocked() error {
	var err error
	if p.transport != nil {
		err = p.transport.Close()
	}
	p.transport = nil
	p.port = nil
	p.connected = false
	p.version = nil
	return err
}

// failLocked records a failure on the live link. Transport errors
// invalidate the connection; anything else is reported as unknown.
func (p *Printer) failLocked(err error) error {
	var terr *protocol.TransportError
	if errors.As(err, &terr) || errors.Is(err, protocol.ErrTransportClosed) {
		log.Warn().Err(err).Str("device", p.device).Msg("link failed, disconnecting")
		p.closeLocked()
		p.lastError = err.Error()
		return err
	}
	p.closeLocked()
	p.lastError = "Unknown Error"
	return fmt.Errorf("%w: %v", ErrUnknown, err)
}

// IsConnected returns whether the printer is connected
func (p *Printer) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Device returns the device path of the current or last connection
func (p *Printer) Device() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device
}

// Version returns the firmware version reported during the handshake
func (p *Printer) Version() (protocol.FirmwareVersion, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.version == nil {
		return protocol.FirmwareVersion{}, false
	}
	return *p.version, true
}

// VersionString formats the firmware version, empty when none was reported
func (p *Printer) VersionString() string {
	if v, ok := p.Version(); ok {
		return v.String()
	}
	return ""
}

// LastError returns a human readable description of the last failure
func (p *Printer) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

// Monitor returns output the printer sent on its own. It never waits: when
// another exchange holds the link, or nothing arrived, it returns nil.
func (p *Printer) Monitor() ([]byte, error) {
	if !p.mu.TryLock() {
		return nil, nil
	}
	defer p.mu.Unlock()

	if !p.connected {
		return nil, nil
	}
	if data := p.transport.Drain(); data != nil {
		return data, nil
	}
	if err := p.transport.Err(); err != nil {
		return nil, p.failLocked(err)
	}
	return nil, nil
}
