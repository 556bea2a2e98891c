// Package protocol implements the Argentum printer link protocol: the
// newline-delimited text exchange, the block transfer framing and the
// byte-level host transport both ride on.
package protocol

import "time"

// Version represents the host controller version
const Version = "0.1.0"

// Link constants
const (
	BaudRate  = 115200
	Delimiter = '\n'

	// HandshakeTimeout bounds the wait for the banner the firmware prints
	// after the port is opened (and the board resets).
	HandshakeTimeout = 2 * time.Second
)

// Block transfer constants
const (
	BlockSize        = 1024 // Maximum payload bytes per block
	ChecksumSize     = 4    // Little-endian rolling checksum trailer
	ObfuscationKey   = 0x26 // XORed into every payload byte on the wire
	MaxBlockFailures = 12   // A transfer aborts on the failure after this many
	ReplyTimeout     = 10 * time.Second

	// Reply bytes sent by the device after each block
	ReplyGood = 'G'
	ReplyBad  = 'B'

	// CancelByte is sent by the host in place of the next block
	CancelByte = 'C'

	// ReadyLine is the first response line to an accepted recv request
	ReadyLine = "Ready"
)
