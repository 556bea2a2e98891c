// Package firing converts plaintext print jobs (one motion or firing command
// per line) into the compact line format the printer firmware consumes, and
// back.
//
// A job looks like
//
//	M X 1200
//	F 80123
//	F 40000
//	...
//	M Y 40
//
// where every run of firing lines between two motion lines is one firing
// group holding exactly one firing per printhead channel, in ChannelOrder.
package firing

// ChannelOrder is the order in which the firmware expects the 13 printhead
// channels of a firing group. It is part of the wire format.
const ChannelOrder = "84C2A6E195D3B"

const (
	// ChannelCount is the number of firings in a complete group
	ChannelCount = len(ChannelOrder)

	// PayloadSize is the number of hex digits in a firing primitive
	PayloadSize = 4

	// MaxLineLength bounds a compressed firing line: every channel's full
	// payload plus the separators between them.
	MaxLineLength = ChannelCount*PayloadSize + ChannelCount - 1

	// MaxParts is the number of recent parts the back-reference cache holds
	MaxParts = 25

	// DuplicateLine replaces a firing line identical to the previous one
	DuplicateLine = "d"

	// zeroMarker flags a payload whose first part is 00
	zeroMarker = 'z'

	separator = ","
)

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
