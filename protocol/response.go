package protocol

import (
	"bytes"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// TimedReader is the part of the transport the response reader needs
type TimedReader interface {
	io.Reader
	SetReadTimeout(d time.Duration)
	Buffered() int
}

// ReadResponse waits up to timeout for the first byte of a response, then
// keeps taking whatever is immediately available until nothing more is, or
// the accumulated bytes contain expect. The reader is always left
// non-blocking.
//
// It returns nil if nothing was read at all.
func ReadResponse(r TimedReader, timeout time.Duration, expect string) ([]string, error) {
	r.SetReadTimeout(timeout)
	defer r.SetReadTimeout(0)

	var response []byte
	first := make([]byte, 1)
	for {
		n, err := r.Read(first)
		if err != nil {
			return nil, err
		}
		response = append(response, first[:n]...)

		waiting := r.Buffered()
		if waiting == 0 {
			break
		}
		more := make([]byte, waiting)
		n, err = r.Read(more)
		if err != nil {
			return nil, err
		}
		response = append(response, more[:n]...)

		if expect != "" && bytes.Contains(response, []byte(expect)) {
			break
		}
	}

	if len(response) == 0 {
		return nil, nil
	}
	return SplitLines(DecodeText(response)), nil
}

// DecodeText decodes device output as UTF-8, dropping invalid sequences.
// A well-formed U+FFFD sent by the device is kept.
func DecodeText(data []byte) string {
	out, _, err := transform.Bytes(dropIllFormed{}, data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(out)
}

// dropIllFormed copies valid UTF-8 and skips every byte that does not start
// a valid encoding
type dropIllFormed struct{ transform.NopResetter }

func (dropIllFormed) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		size := 1
		if src[nSrc] >= utf8.RuneSelf {
			if !atEOF && !utf8.FullRune(src[nSrc:]) {
				return nDst, nSrc, transform.ErrShortSrc
			}
			var r rune
			r, size = utf8.DecodeRune(src[nSrc:])
			if r == utf8.RuneError && size == 1 {
				nSrc++
				continue
			}
		}
		if nDst+size > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], src[nSrc:nSrc+size])
		nSrc += size
	}
	return nDst, nSrc, nil
}

// SplitLines splits text on newlines and cuts every line at its first
// carriage return. Empty segments are kept, so "Ready\n" yields
// ["Ready", ""].
func SplitLines(text string) []string {
	lines := strings.Split(text, string(Delimiter))
	for i, line := range lines {
		if before, _, found := strings.Cut(line, "\r"); found {
			lines[i] = before
		}
	}
	return lines
}
