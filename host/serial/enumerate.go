//go:build !wasm

package serial

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ListPorts returns every serial port the system reports
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			IsUSB:   d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return ports, nil
}

// FindPrinterPorts returns the ports that look like an Argentum controller
func FindPrinterPorts() ([]PortInfo, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}
	return filterPrinters(ports), nil
}

func filterPrinters(ports []PortInfo) []PortInfo {
	var found []PortInfo
	for _, p := range ports {
		if IsPrinter(p) {
			found = append(found, p)
		}
	}
	return found
}

// IsPrinter reports whether p carries the printer's USB VID:PID.
// Platforms differ in the case of the hex digits.
func IsPrinter(p PortInfo) bool {
	return p.IsUSB && strings.EqualFold(p.VID, PrinterVID) && strings.EqualFold(p.PID, PrinterPID)
}
