//go:build !wasm

package serial

import (
	"fmt"

	"github.com/mattn/go-tty"
)

func init() {
	drivers[DriverTTY] = openTTY
}

// TTYPort drives the device node directly as a raw terminal. The line
// settings (baud included) are left as the system configured them, which
// USB CDC boards ignore anyway.
type TTYPort struct {
	tty     *tty.TTY
	restore func() error
}

func openTTY(cfg *Config) (Port, error) {
	t, err := tty.OpenDevice(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to open tty %s: %w", cfg.Device, err)
	}

	// MustRaw panics if the device refuses raw mode
	restore := t.MustRaw()

	return &TTYPort{tty: t, restore: restore}, nil
}

// Read reads data from the device
func (p *TTYPort) Read(b []byte) (int, error) {
	return p.tty.Input().Read(b)
}

// Write writes data to the device
func (p *TTYPort) Write(b []byte) (int, error) {
	return p.tty.Output().Write(b)
}

// Close restores the terminal mode and closes the device
func (p *TTYPort) Close() error {
	if p.restore != nil {
		_ = p.restore()
	}
	return p.tty.Close()
}

// Flush waits for pending output to reach the device
func (p *TTYPort) Flush() error {
	return p.tty.Output().Sync()
}
