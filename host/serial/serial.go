package serial

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - go.bug.st/serial (default)
// - github.com/tarm/serial
// - a raw TTY device through github.com/mattn/go-tty
// - in-memory pipes for testing
//
// Reads must return after at most the configured read timeout; a read that
// times out returns 0, nil.
type Port interface {
	io.ReadWriteCloser

	// Flush discards any data buffered in either direction
	Flush() error
}

// Driver names
const (
	DriverBugst = "bugst"
	DriverTarm  = "tarm"
	DriverTTY   = "tty"
)

// Printer USB identity (Arduino Mega 2560 R3)
const (
	PrinterVID = "2341"
	PrinterPID = "0042"
)

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Driver selects the serial library; empty means DriverBugst
	Driver string

	// Baud rate (USB CDC boards ignore it, the firmware expects 115200)
	Baud int

	// ReadTimeout is how long a single port read may block. It only sets
	// the polling granularity of the host transport.
	ReadTimeout time.Duration
}

// DefaultConfig returns the configuration the printer firmware expects
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Driver:      DriverBugst,
		Baud:        115200,
		ReadTimeout: 50 * time.Millisecond,
	}
}

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
	Product string
}

type openFunc func(cfg *Config) (Port, error)

// drivers is filled by the driver files available on this platform
var drivers = map[string]openFunc{}

// Drivers lists the drivers available in this build
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the port described by cfg with the selected driver
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("no serial device given")
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverBugst
	}
	open, ok := drivers[driver]
	if !ok {
		return nil, fmt.Errorf("unknown serial driver %q (available: %v)", driver, Drivers())
	}
	return open(cfg)
}
