package printer

import (
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"argentum/protocol"
)

type commandOptions struct {
	timeout   time.Duration
	expect    string
	expectSet bool
	wait      bool
}

// CommandOption configures a single Command
type CommandOption func(*commandOptions)

// WithTimeout waits up to timeout for a response
func WithTimeout(timeout time.Duration) CommandOption {
	return func(o *commandOptions) {
		o.timeout = timeout
	}
}

// WithExpect stops reading the response once it contains expect
func WithExpect(expect string) CommandOption {
	return func(o *commandOptions) {
		o.expect = expect
		o.expectSet = true
	}
}

// WithWait waits for the command to complete. Unless given explicitly the
// timeout defaults to DefaultWaitTimeout and the expected text to the
// command itself, which the firmware echoes when it is done.
func WithWait() CommandOption {
	return func(o *commandOptions) {
		o.wait = true
	}
}

func resolveCommand(text string, opts []CommandOption) commandOptions {
	var o commandOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.wait {
		if o.timeout == 0 {
			o.timeout = DefaultWaitTimeout
		}
		if !o.expectSet {
			o.expect = text
		}
	}
	return o
}

// Command sends one line to the printer. Without a timeout it returns as
// soon as the line is written, with no response; otherwise it returns the
// response lines, nil if the printer stayed silent.
func (p *Printer) Command(text string, opts ...CommandOption) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commandLocked(text, opts...)
}

func (p *Printer) commandLocked(text string, opts ...CommandOption) ([]string, error) {
	if !p.connected {
		return nil, ErrNotConnected
	}
	o := resolveCommand(text, opts)

	if _, err := p.transport.Write([]byte(text + string(protocol.Delimiter))); err != nil {
		return nil, p.failLocked(err)
	}
	if o.timeout == 0 {
		return nil, nil
	}

	lines, err := protocol.ReadResponse(p.transport, o.timeout, o.expect)
	if err != nil {
		return nil, p.failLocked(err)
	}
	return lines, nil
}

// Axis names a motion axis
type Axis byte

const (
	AxisX Axis = 'X'
	AxisY Axis = 'Y'
)

func waitOptions(wait bool) []CommandOption {
	if wait {
		return []CommandOption{WithWait()}
	}
	return nil
}

// MoveAxis moves a single axis to pos
func (p *Printer) MoveAxis(axis Axis, pos int, wait bool) ([]string, error) {
	return p.Command(fmt.Sprintf("M %c %d", axis, pos), waitOptions(wait)...)
}

// Move moves both axes, X first, as two independent commands
func (p *Printer) Move(x, y int, wait bool) error {
	if _, err := p.MoveAxis(AxisX, x, wait); err != nil {
		return err
	}
	_, err := p.MoveAxis(AxisY, y, wait)
	return err
}

// Home sends the carriage to its limits. With wait it returns once the
// firmware reports +Homed.
func (p *Printer) Home(wait bool) ([]string, error) {
	if wait {
		return p.Command("home", WithTimeout(HomeTimeout), WithExpect(HomedReply))
	}
	return p.Command("home")
}

// Print starts printing a file stored on the printer. With wait it returns
// once the firmware reports completion.
func (p *Printer) Print(filename string, wait bool) ([]string, error) {
	if wait {
		return p.Command("p "+filename, WithTimeout(PrintTimeout), WithExpect(PrintComplete))
	}
	return p.Command("p " + filename)
}

func (p *Printer) Calibrate() error {
	_, err := p.Command("c")
	return err
}

func (p *Printer) Pause() error {
	_, err := p.Command("P")
	return err
}

func (p *Printer) Resume() error {
	_, err := p.Command("R")
	return err
}

func (p *Printer) Start() error {
	_, err := p.Command("p")
	return err
}

func (p *Printer) Stop() error {
	_, err := p.Command("S")
	return err
}

// Fire triggers one primitive on one printhead address
func (p *Printer) Fire(address, primitive string) error {
	log.Debug().Str("address", address).Str("primitive", primitive).Msg("firing")
	_, err := p.Command("\x01" + address + primitive + "\x00")
	return err
}

// IsHomed asks for the limit switch state
func (p *Printer) IsHomed() (bool, error) {
	lines, err := p.Command("lim", WithTimeout(LimitsTimeout))
	if err != nil {
		return false, err
	}
	return slices.Contains(lines, LimitsHomed), nil
}

// MissingFiles returns the names the printer does not list. A printer that
// lists nothing is missing all of them.
func (p *Printer) MissingFiles(names []string) ([]string, error) {
	lines, err := p.Command("ls", WithTimeout(ListTimeout))
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range names {
		if !slices.Contains(lines, "+"+name) {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
