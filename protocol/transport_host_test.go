package protocol

import (
	"errors"
	"io"
	"net"
	"reflect"
	"testing"
	"time"
)

func newPipeTransport(t *testing.T) (*HostTransport, net.Conn) {
	t.Helper()
	host, device := net.Pipe()
	transport := NewHostTransport(host)
	t.Cleanup(func() {
		transport.Close()
		device.Close()
	})
	return transport, device
}

func TestHostTransportNonBlockingRead(t *testing.T) {
	transport, _ := newPipeTransport(t)

	start := time.Now()
	n, err := transport.Read(make([]byte, 8))
	if n != 0 || err != nil {
		t.Errorf("expected 0, nil from an empty non-blocking read, got %d, %v", n, err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Errorf("non-blocking read took %v", time.Since(start))
	}
}

func TestHostTransportTimedRead(t *testing.T) {
	transport, device := newPipeTransport(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		device.Write([]byte("G"))
	}()

	transport.SetReadTimeout(2 * time.Second)
	defer transport.SetReadTimeout(0)

	buf := make([]byte, 1)
	n, err := transport.Read(buf)
	if err != nil || n != 1 || buf[0] != 'G' {
		t.Fatalf("expected to read 'G', got %d %q %v", n, buf[:n], err)
	}
}

func TestHostTransportReadTimesOut(t *testing.T) {
	transport, _ := newPipeTransport(t)

	transport.SetReadTimeout(30 * time.Millisecond)
	n, err := transport.Read(make([]byte, 1))
	if n != 0 || err != nil {
		t.Errorf("expected timeout to return 0, nil, got %d, %v", n, err)
	}
	if transport.ReadTimeout() != 30*time.Millisecond {
		t.Errorf("ReadTimeout() = %v", transport.ReadTimeout())
	}
}

func TestHostTransportResponse(t *testing.T) {
	transport, device := newPipeTransport(t)

	go device.Write([]byte("Argentum\r\n2.3.10-rc1+abcd1234\r\n"))

	lines, err := ReadResponse(transport, time.Second, "\n")
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	expected := []string{"Argentum", "2.3.10-rc1+abcd1234", ""}
	if !reflect.DeepEqual(lines, expected) {
		t.Errorf("lines = %q, expected %q", lines, expected)
	}
	if transport.ReadTimeout() != 0 {
		t.Errorf("transport left blocking with timeout %v", transport.ReadTimeout())
	}
}

func TestHostTransportWrite(t *testing.T) {
	transport, device := newPipeTransport(t)

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := io.ReadAtLeast(device, buf, 4)
		got <- buf[:n]
	}()

	if _, err := transport.Write([]byte("lim\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if data := <-got; string(data) != "lim\n" {
		t.Errorf("device received %q", data)
	}
}

func TestHostTransportDrain(t *testing.T) {
	transport, device := newPipeTransport(t)

	device.Write([]byte("junk after reply"))
	deadline := time.Now().Add(time.Second)
	for transport.Buffered() < len("junk after reply") && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if data := transport.Drain(); string(data) != "junk after reply" {
		t.Errorf("Drain() = %q", data)
	}
	if transport.Drain() != nil {
		t.Error("second Drain() should be empty")
	}
}

func TestHostTransportReadError(t *testing.T) {
	transport, device := newPipeTransport(t)

	device.Close()

	transport.SetReadTimeout(time.Second)
	_, err := transport.Read(make([]byte, 1))
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError after device hangup, got %v", err)
	}
	if terr.Op != "read" {
		t.Errorf("Op = %q", terr.Op)
	}
}

func TestHostTransportClose(t *testing.T) {
	transport, _ := newPipeTransport(t)

	if err := transport.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if _, err := transport.Write([]byte("x")); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("write after close: %v", err)
	}
}

func TestHostTransportCloseDiscardsInput(t *testing.T) {
	transport, device := newPipeTransport(t)

	device.Write([]byte("+Temp 21\r\n"))
	deadline := time.Now().Add(time.Second)
	for transport.Buffered() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	transport.Close()
	if n := transport.Buffered(); n != 0 {
		t.Errorf("%d bytes still buffered after close", n)
	}
	if data := transport.Drain(); data != nil {
		t.Errorf("Drain() after close = %q", data)
	}
}

// A reader slower than the device must still see every byte in order
func TestHostTransportBackpressure(t *testing.T) {
	host, device := net.Pipe()
	transport := &HostTransport{
		port:     host,
		input:    NewFifoBuffer(8),
		dataChan: make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go transport.readLoop()
	defer func() {
		transport.Close()
		device.Close()
	}()

	sent := "0123456789abcdefghijklmnopqrstuvwxyz"
	go device.Write([]byte(sent))

	var got []byte
	transport.SetReadTimeout(time.Second)
	buf := make([]byte, 5)
	for len(got) < len(sent) {
		n, err := transport.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n == 0 {
			t.Fatalf("timed out after %q", got)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != sent {
		t.Errorf("read %q, expected %q", got, sent)
	}
}
