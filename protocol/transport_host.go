package protocol

import (
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// HostTransport is the host side of the serial link. A background read loop
// moves bytes from the port into a FIFO; callers then read from the FIFO
// either non-blocking (the default) or with a timeout set through
// SetReadTimeout, the way a serial port configured with timeout=0 would
// behave.
type HostTransport struct {
	// Serial I/O
	port io.ReadWriteCloser

	// Receive side, guarded by mu
	mu      sync.Mutex
	input   *FifoBuffer
	readErr error
	timeout time.Duration

	// Signalled (non-blocking) whenever the read loop stores data or an error
	dataChan chan struct{}

	writeMutex sync.Mutex

	// Stop channel for graceful shutdown
	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewHostTransport creates a new host-side transport and starts its read loop
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:     port,
		input:    NewFifoBuffer(DefaultReceiveBuffer),
		dataChan: make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// Write sends data to the serial port
func (t *HostTransport) Write(p []byte) (int, error) {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	select {
	case <-t.stopChan:
		return 0, ErrTransportClosed
	default:
	}

	n, err := t.port.Write(p)
	if err != nil {
		return n, &TransportError{Op: "write", Err: err}
	}
	if n != len(p) {
		return n, &TransportError{Op: "write", Err: io.ErrShortWrite}
	}
	return n, nil
}

// SetReadTimeout sets how long Read waits for the first byte. Zero makes
// Read non-blocking.
func (t *HostTransport) SetReadTimeout(d time.Duration) {
	t.mu.Lock()
	t.timeout = d
	t.mu.Unlock()
}

// ReadTimeout returns the current read timeout
func (t *HostTransport) ReadTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

// Read copies buffered bytes into p. When nothing is buffered it waits up to
// the read timeout for data and returns 0, nil if none arrives.
func (t *HostTransport) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	t.mu.Lock()
	timeout := t.timeout
	t.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		t.mu.Lock()
		if !t.input.IsEmpty() {
			n := t.input.Read(p)
			t.mu.Unlock()
			return n, nil
		}
		err := t.readErr
		t.mu.Unlock()

		if err != nil {
			return 0, err
		}
		if expired == nil {
			return 0, nil
		}

		select {
		case <-t.dataChan:
		case <-expired:
			return 0, nil
		case <-t.stopChan:
			return 0, ErrTransportClosed
		}
	}
}

// Buffered returns the number of bytes that can be read without waiting
func (t *HostTransport) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.input.Available()
}

// Drain returns every byte that can be read without waiting
func (t *HostTransport) Drain() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.input.IsEmpty() {
		return nil
	}
	data := make([]byte, t.input.Available())
	n := t.input.Read(data)
	return data[:n]
}

// Err returns the error that stopped the read loop, if any
func (t *HostTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readErr
}

// readLoop continuously reads from the serial port into the input buffer.
// Ports are opened with a short poll timeout so a read returning 0, nil is
// an idle poll, not an error.
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			if !t.push(buffer[:n]) {
				return
			}
		}
		if err != nil {
			select {
			case <-t.stopChan:
				return
			default:
			}
			log.Debug().Err(err).Msg("serial read loop stopped")
			t.mu.Lock()
			t.readErr = &TransportError{Op: "read", Err: err}
			t.mu.Unlock()
			t.signal()
			return
		}
	}
}

// push stores data in the FIFO, waiting for the consumer when it is full.
// It returns false if the transport was closed while waiting.
func (t *HostTransport) push(data []byte) bool {
	warned := false
	for len(data) > 0 {
		t.mu.Lock()
		n := t.input.Write(data)
		full := t.input.Free() == 0
		t.mu.Unlock()

		data = data[n:]
		if n > 0 {
			t.signal()
		}
		if len(data) == 0 {
			break
		}
		if full && !warned {
			log.Debug().Int("pending", len(data)).Msg("receive buffer full, waiting for reader")
			warned = true
		}

		select {
		case <-t.stopChan:
			return false
		case <-time.After(time.Millisecond):
		}
	}
	return true
}

func (t *HostTransport) signal() {
	select {
	case t.dataChan <- struct{}{}:
	default:
	}
}

// Close stops the read loop and closes the serial port. It is safe to call
// more than once.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		// Closing the port unblocks a read in progress
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan

		// Nothing may be read from a closed link
		t.mu.Lock()
		t.input.Reset()
		t.mu.Unlock()
	})
	return err
}
