package firing

import (
	"fmt"
	"strings"
)

// compressor holds the state of a single compression pass
type compressor struct {
	out []string

	// Pending firing group and where it started
	group     []string
	groupLine int
	groupText string

	lastLine   string // previous emitted firing line, before d substitution
	lastFiring string // previous firing that was not collapsed, id included
	parts      partsCache
}

// Compress converts a plaintext job into the firmware's compact format.
// Empty lines are ignored. Any structural problem aborts the whole pass
// with a *LineError; no partial output is returned.
func Compress(contents string) (string, error) {
	c := &compressor{}

	lines := strings.Split(contents, "\n")
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		if err := c.line(i+1, line); err != nil {
			return "", err
		}
	}
	if err := c.flush(); err != nil {
		return "", err
	}

	return strings.Join(c.out, "\n") + "\n", nil
}

func (c *compressor) line(n int, line string) error {
	switch line[0] {
	case 'M':
		if len(line) < 4 {
			return &LineError{Line: n, Text: line, Err: ErrMalformedLine}
		}
		if err := c.flush(); err != nil {
			return err
		}
		// Y is implied when the axis is not X
		if line[2] == 'X' {
			c.out = append(c.out, "X"+line[4:])
		} else {
			c.out = append(c.out, line[4:])
		}

	case 'F':
		firing := ""
		if len(line) > 2 {
			firing = line[2:]
		}
		if len(firing) != 1+PayloadSize || !isHex(firing[1:]) {
			return &LineError{Line: n, Text: line, Err: ErrMalformedLine}
		}
		if len(c.group) == 0 {
			c.groupLine, c.groupText = n, line
		}
		c.group = append(c.group, c.token(firing))

	default:
		return &LineError{Line: n, Text: line, Err: ErrMalformedLine}
	}
	return nil
}

// token shortens one firing. A payload repeating the previous firing's
// collapses to the bare channel id; zero halves become the z marker and a
// part.
func (c *compressor) token(firing string) string {
	id, payload := firing[:1], firing[1:]
	if c.lastFiring != "" && payload == c.lastFiring[1:] {
		return id
	}
	c.lastFiring = firing

	var prefix, part string
	switch {
	case payload == "0000":
		return id + string(zeroMarker)
	case payload[:2] == "00":
		prefix, part = id+string(zeroMarker), payload[2:]
	case payload[2:] == "00":
		prefix, part = id, payload[:2]
	default:
		return firing
	}
	return prefix + c.parts.encode(part)
}

// flush closes the pending firing group, if any
func (c *compressor) flush() error {
	if len(c.group) == 0 {
		return nil
	}
	group := c.group
	c.group = nil

	fail := func(err error) error {
		return &LineError{Line: c.groupLine, Text: c.groupText, Err: err}
	}

	if len(group) != ChannelCount {
		return fail(fmt.Errorf("%w: group has %d firings, expected %d", ErrFiringOrder, len(group), ChannelCount))
	}
	fields := make([]string, len(group))
	for i, token := range group {
		if token[0] != ChannelOrder[i] {
			return fail(fmt.Errorf("%w: channel %c at position %d, expected %c", ErrFiringOrder, token[0], i+1, ChannelOrder[i]))
		}
		fields[i] = token[1:]
	}

	line := joinFields(fields)
	if len(line) > MaxLineLength {
		return fail(fmt.Errorf("%w: %d characters", ErrLineTooLong, len(line)))
	}

	if c.lastLine != "" && line == c.lastLine {
		c.out = append(c.out, DuplicateLine)
	} else {
		c.out = append(c.out, line)
	}
	c.lastLine = line
	return nil
}

// joinFields comma-joins the channel fields. An empty first field is held
// as a "." placeholder until the next field takes its place.
func joinFields(fields []string) string {
	var line string
	for i, field := range fields {
		switch {
		case i == 0:
			line = field
			if line == "" {
				line = "."
			}
		case line == ".":
			line = separator + field
		default:
			line += separator + field
		}
	}
	return line
}
