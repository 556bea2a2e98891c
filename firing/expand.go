package firing

import (
	"fmt"
	"strings"
)

// expander mirrors the firmware's decoder. Its state tracks the
// compressor's step for step, which is what makes back-references and
// collapsed firings resolvable.
type expander struct {
	out []string

	lastLine    string
	lastPayload string
	parts       partsCache
}

// Expand reverses Compress, producing canonical plaintext lines
// ("M X <n>", "M Y <n>", "F <id><payload>").
func Expand(compressed string) (string, error) {
	e := &expander{}

	for i, line := range strings.Split(compressed, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		if err := e.line(line); err != nil {
			return "", &LineError{Line: i + 1, Text: line, Err: err}
		}
	}

	return strings.Join(e.out, "\n") + "\n", nil
}

func (e *expander) line(line string) error {
	switch {
	case line == DuplicateLine:
		if e.lastLine == "" {
			return fmt.Errorf("%w: duplicate marker without a previous firing line", ErrMalformedLine)
		}
		// The fields repeat verbatim, but they must be decoded again
		// against the current state.
		return e.firingLine(e.lastLine)
	case strings.Contains(line, separator):
		if err := e.firingLine(line); err != nil {
			return err
		}
		e.lastLine = line
	case line[0] == 'X':
		e.out = append(e.out, "M X "+line[1:])
	default:
		e.out = append(e.out, "M Y "+line)
	}
	return nil
}

func (e *expander) firingLine(line string) error {
	fields := strings.Split(line, separator)
	if len(fields) != ChannelCount {
		return fmt.Errorf("%w: line has %d fields, expected %d", ErrFiringOrder, len(fields), ChannelCount)
	}
	if fields[0] == "." {
		fields[0] = ""
	}

	for i, field := range fields {
		payload, err := e.payload(field)
		if err != nil {
			return fmt.Errorf("channel %c: %w", ChannelOrder[i], err)
		}
		e.out = append(e.out, fmt.Sprintf("F %c%s", ChannelOrder[i], payload))
	}
	return nil
}

func (e *expander) payload(field string) (string, error) {
	if field == "" {
		if e.lastPayload == "" {
			return "", fmt.Errorf("%w: repeat without a previous firing", ErrMalformedLine)
		}
		return e.lastPayload, nil
	}

	var payload string
	switch {
	case field == string(zeroMarker):
		payload = "0000"
	case field[0] == zeroMarker:
		part, err := e.part(field[1:])
		if err != nil {
			return "", err
		}
		payload = "00" + part
	case len(field) == PayloadSize:
		if !isHex(field) {
			return "", fmt.Errorf("%w: bad payload %q", ErrMalformedLine, field)
		}
		payload = field
	default:
		part, err := e.part(field)
		if err != nil {
			return "", err
		}
		payload = part + "00"
	}

	e.lastPayload = payload
	return payload, nil
}

// part resolves a back-reference letter or records a literal part
func (e *expander) part(ref string) (string, error) {
	switch len(ref) {
	case 1:
		part, ok := e.parts.lookup(ref[0])
		if !ok {
			return "", fmt.Errorf("%w: unknown part reference %q", ErrMalformedLine, ref)
		}
		return part, nil
	case 2:
		if !isHex(ref) {
			return "", fmt.Errorf("%w: bad part %q", ErrMalformedLine, ref)
		}
		e.parts.push(ref)
		return ref, nil
	default:
		return "", fmt.Errorf("%w: bad part %q", ErrMalformedLine, ref)
	}
}
