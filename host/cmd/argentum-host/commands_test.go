package main

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"argentum/firing"
	"argentum/host/config"
	"argentum/host/printer"
	"argentum/host/serial"
)

func testHost(t *testing.T) (*host, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := config.Default()
	cfg.FilesDir = t.TempDir()
	return newHost(cfg, &out), &out
}

func TestRunArguments(t *testing.T) {
	h, _ := testHost(t)

	tests := []struct {
		name string
		args []string
		err  string
	}{
		{"bogus", nil, "unknown command"},
		{"move", []string{"1"}, "usage: move <x> <y>"},
		{"move", []string{"1", "2", "3"}, "usage: move <x> <y>"},
		{"movex", []string{"left"}, "invalid position"},
		{"send", []string{"a.txt", "fast"}, "usage: send"},
		{"compress", nil, "usage: compress"},
	}

	for _, test := range tests {
		err := h.run(test.name, test.args)
		if err == nil || !strings.Contains(err.Error(), test.err) {
			t.Errorf("%s %q: error %v, expected %q", test.name, test.args, err, test.err)
		}
	}
}

func TestRunNeedsConnection(t *testing.T) {
	h, _ := testHost(t)

	for _, name := range []string{"homed", "stop", "version"} {
		if err := h.run(name, nil); !errors.Is(err, printer.ErrNotConnected) {
			t.Errorf("%s: expected ErrNotConnected, got %v", name, err)
		}
	}
	if err := h.run("raw", []string{"lim"}); !errors.Is(err, printer.ErrNotConnected) {
		t.Errorf("raw: expected ErrNotConnected, got %v", err)
	}
}

func TestHelpListsCommands(t *testing.T) {
	h, out := testHost(t)

	if err := h.run("HELP", nil); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, c := range commandList() {
		if !strings.Contains(out.String(), c.Usage) {
			t.Errorf("help does not mention %q", c.Usage)
		}
	}
}

func TestCommandListSorted(t *testing.T) {
	list := commandList()
	for i := 1; i < len(list); i++ {
		if list[i-1].Name >= list[i].Name {
			t.Errorf("%q listed before %q", list[i-1].Name, list[i].Name)
		}
	}
}

func TestDevice(t *testing.T) {
	h, _ := testHost(t)
	h.listPorts = func() ([]serial.PortInfo, error) {
		return []serial.PortInfo{{Name: "/dev/ttyACM3", IsUSB: true, VID: "2341", PID: "0042"}}, nil
	}

	tests := []struct {
		configured string
		args       []string
		expected   string
	}{
		{config.AutoPort, nil, "/dev/ttyACM3"},
		{config.AutoPort, []string{"COM4"}, "COM4"},
		{"/dev/ttyUSB0", nil, "/dev/ttyUSB0"},
		{"/dev/ttyUSB0", []string{"auto"}, "/dev/ttyACM3"},
	}

	for _, test := range tests {
		h.cfg.Port = test.configured
		device, err := h.device(test.args)
		if err != nil || device != test.expected {
			t.Errorf("port %q args %q: device %q, %v, expected %q", test.configured, test.args, device, err, test.expected)
		}
	}

	h.cfg.Port = config.AutoPort
	h.listPorts = func() ([]serial.PortInfo, error) { return nil, nil }
	if _, err := h.device(nil); err == nil {
		t.Error("expected an error when no printer is attached")
	}
}

func TestPorts(t *testing.T) {
	h, out := testHost(t)
	h.listPorts = func() ([]serial.PortInfo, error) {
		return []serial.PortInfo{{Name: "/dev/ttyACM3", VID: "2341", PID: "0042", Serial: "95735"}}, nil
	}

	if err := h.run("ports", nil); err != nil {
		t.Fatalf("ports: %v", err)
	}
	if !strings.Contains(out.String(), "/dev/ttyACM3") || !strings.Contains(out.String(), "2341:0042") {
		t.Errorf("ports printed %q", out.String())
	}
}

func TestPath(t *testing.T) {
	h, _ := testHost(t)
	h.cfg.FilesDir = "jobs"

	abs, _ := filepath.Abs("job.txt")
	tests := map[string]string{
		"job.txt":     filepath.Join("jobs", "job.txt"),
		"sub/job.txt": filepath.Join("jobs", "sub", "job.txt"),
		abs:           abs,
	}
	for in, expected := range tests {
		if got := h.path(in); got != expected {
			t.Errorf("path(%q) = %q, expected %q", in, got, expected)
		}
	}
}

const job = "M X 10\nF 80000\nF 40000\nF C0000\nF 20000\nF A0000\nF 60000\nF E0000\nF 10000\nF 90000\nF 50000\nF D0000\nF 30000\nF B0000\n"

func TestCompressExpandFiles(t *testing.T) {
	h, out := testHost(t)
	if err := os.WriteFile(h.path("job.txt"), []byte(job), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := h.run("compress", []string{"job.txt", "job.bin"}); err != nil {
		t.Fatalf("compress: %v", err)
	}
	compressed, err := os.ReadFile(h.path("job.bin"))
	if err != nil {
		t.Fatal(err)
	}
	expected, _ := firing.Compress(job)
	if string(compressed) != expected {
		t.Errorf("compressed file %q, expected %q", compressed, expected)
	}
	if !strings.Contains(out.String(), "job.bin") {
		t.Errorf("no summary printed: %q", out.String())
	}

	out.Reset()
	if err := h.run("expand", []string{"job.bin"}); err != nil {
		t.Fatalf("expand: %v", err)
	}
	if out.String() != job {
		t.Errorf("expand printed %q", out.String())
	}
}

func TestCompressRejectsMalformedJob(t *testing.T) {
	h, _ := testHost(t)
	if err := os.WriteFile(h.path("bad.txt"), []byte("Q\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.run("compress", []string{"bad.txt"}); !errors.Is(err, firing.ErrMalformedLine) {
		t.Errorf("expected ErrMalformedLine, got %v", err)
	}
}

// pipePort is a serial.Port over one end of a net.Pipe
type pipePort struct {
	net.Conn
}

func (pipePort) Flush() error { return nil }

// linkRecorder opens in-memory printers that report homed and records
// the devices opened and the lines received
type linkRecorder struct {
	mu      sync.Mutex
	devices []string
	lines   []string
}

func (r *linkRecorder) open(cfg *serial.Config) (serial.Port, error) {
	r.mu.Lock()
	r.devices = append(r.devices, cfg.Device)
	r.mu.Unlock()

	host, device := net.Pipe()
	go func() {
		defer device.Close()
		device.Write([]byte("Argentum\r\n1.0.0+0123abcd\r\n"))
		br := bufio.NewReader(device)
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSuffix(line, "\n")
			r.mu.Lock()
			r.lines = append(r.lines, line)
			r.mu.Unlock()
			if line == "lim" {
				device.Write([]byte(printer.LimitsHomed + "\r\n"))
			}
		}
	}()
	return pipePort{host}, nil
}

func (r *linkRecorder) opened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.devices...)
}

// received waits briefly for line to reach the printer
func (r *linkRecorder) received(line string) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, l := range r.lines {
			if l == line {
				r.mu.Unlock()
				return true
			}
		}
		r.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	return false
}

func oneShotHost(t *testing.T, port string, link *linkRecorder) (*host, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := config.Default()
	cfg.Port = port
	cfg.FilesDir = t.TempDir()
	cfg.HandshakeTimeout = 200 * time.Millisecond
	h := newHost(cfg, &out, printer.WithOpener(link.open))
	t.Cleanup(func() { h.printer.Disconnect() })
	return h, &out
}

func TestRunOnceConnectsFirst(t *testing.T) {
	link := &linkRecorder{}
	h, out := oneShotHost(t, "/dev/ttyACM7", link)

	if err := h.runOnce("homed", nil); err != nil {
		t.Fatalf("homed: %v", err)
	}
	if opened := link.opened(); len(opened) != 1 || opened[0] != "/dev/ttyACM7" {
		t.Errorf("opened %q, expected the configured port", opened)
	}
	if !strings.Contains(out.String(), "Homed: true") {
		t.Errorf("output %q", out.String())
	}
	if !strings.Contains(out.String(), "Firmware 1.0.0+0123abcd") {
		t.Errorf("connect did not report the version: %q", out.String())
	}
}

func TestRunOnceAutoPort(t *testing.T) {
	link := &linkRecorder{}
	h, _ := oneShotHost(t, config.AutoPort, link)
	h.listPorts = func() ([]serial.PortInfo, error) {
		return []serial.PortInfo{{Name: "/dev/ttyACM2", IsUSB: true, VID: "2341", PID: "0042"}}, nil
	}

	if err := h.runOnce("stop", nil); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if opened := link.opened(); len(opened) != 1 || opened[0] != "/dev/ttyACM2" {
		t.Errorf("opened %q", opened)
	}
	if !link.received("S") {
		t.Error("stop never reached the printer")
	}
}

func TestRunOnceOfflineCommands(t *testing.T) {
	link := &linkRecorder{}
	h, _ := oneShotHost(t, "/dev/ttyACM7", link)
	if err := os.WriteFile(h.path("job.txt"), []byte(job), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, args := range [][]string{{"help"}, {"compress", "job.txt"}} {
		if err := h.runOnce(args[0], args[1:]); err != nil {
			t.Errorf("%s: %v", args[0], err)
		}
	}
	if err := h.runOnce("move", []string{"1"}); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Errorf("move with one argument: %v", err)
	}
	if opened := link.opened(); len(opened) != 0 {
		t.Errorf("offline commands opened %q", opened)
	}
}

func TestRunOnceConnectFailure(t *testing.T) {
	var out bytes.Buffer
	cfg := config.Default()
	cfg.Port = "/dev/ttyACM9"
	h := newHost(cfg, &out, printer.WithOpener(func(*serial.Config) (serial.Port, error) {
		return nil, errors.New("no such device")
	}))

	if err := h.runOnce("homed", nil); err == nil || !strings.Contains(err.Error(), "no such device") {
		t.Errorf("expected the open failure, got %v", err)
	}
}
