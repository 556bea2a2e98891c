//go:build !wasm

package serial

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")

	if cfg.Device != "/dev/ttyACM0" || cfg.Baud != 115200 || cfg.Driver != DriverBugst {
		t.Errorf("unexpected default config %+v", cfg)
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadTimeout > time.Second {
		t.Errorf("read timeout %v should be a short poll interval", cfg.ReadTimeout)
	}
}

func TestDrivers(t *testing.T) {
	expected := []string{DriverBugst, DriverTarm, DriverTTY}
	if got := Drivers(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Drivers() = %v, expected %v", got, expected)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("Open(nil) should fail")
	}
	if _, err := Open(&Config{Driver: DriverTarm}); err == nil {
		t.Error("Open without a device should fail")
	}

	cfg := DefaultConfig("/dev/null")
	cfg.Driver = "webserial"
	_, err := Open(cfg)
	if err == nil || !strings.Contains(err.Error(), "webserial") {
		t.Errorf("expected unknown driver error, got %v", err)
	}
}

func TestTimeoutRead(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		n       int
		err     error
		wantN   int
		wantErr error
	}{
		{0, io.EOF, 0, nil},
		{3, nil, 3, nil},
		{2, io.EOF, 2, io.EOF},
		{0, boom, 0, boom},
	}

	for _, test := range tests {
		n, err := timeoutRead(test.n, test.err)
		if n != test.wantN || err != test.wantErr {
			t.Errorf("timeoutRead(%d, %v) = %d, %v", test.n, test.err, n, err)
		}
	}
}

func TestFilterPrinters(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"},
		{Name: "/dev/ttyACM1", IsUSB: true, VID: "2341", PID: "0042"},
		{Name: "COM4", IsUSB: true, VID: "2341", PID: "0042"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
	}

	found := filterPrinters(ports)
	if len(found) != 2 || found[0].Name != "/dev/ttyACM1" || found[1].Name != "COM4" {
		t.Errorf("filterPrinters() = %+v", found)
	}

	if !IsPrinter(PortInfo{IsUSB: true, VID: "2341", PID: "0042"}) {
		t.Error("printer not recognised")
	}
	if IsPrinter(PortInfo{VID: "2341", PID: "0042"}) {
		t.Error("a non-USB port cannot be the printer")
	}
}
