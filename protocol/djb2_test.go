package protocol

import (
	"bytes"
	"io"
	"testing"
)

func TestSumDJB2(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected uint32
	}{
		{data: []byte{}, expected: 5381},
		{data: []byte("a"), expected: 0x0002b606},
		{data: []byte("hello world"), expected: 0x3551c8c1},
		// High bytes count as negative signed chars
		{data: []byte{0xFF, 0x80, 0x7F}, expected: 0x0b869ea3},
	}

	for _, tc := range testCases {
		if got := SumDJB2(tc.data); got != tc.expected {
			t.Errorf("SumDJB2(%q) = 0x%08x, expected 0x%08x", tc.data, got, tc.expected)
		}
	}
}

func TestDJB2SignedBytes(t *testing.T) {
	if got := SumDJB2([]byte{0xFF}); got != 5381*33-1 {
		t.Errorf("0xFF should add -1, got %d", got)
	}
	if got := SumDJB2([]byte{0x80}); got != 5381*33-128 {
		t.Errorf("0x80 should add -128, got %d", got)
	}
}

func TestDJB2ChunkedMatchesWhole(t *testing.T) {
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i*7 + i/3)
	}
	whole := SumDJB2(data)

	for _, chunk := range []int{1, 3, 64, 1024, 4999} {
		h := DJB2Seed
		for pos := 0; pos < len(data); pos += chunk {
			end := pos + chunk
			if end > len(data) {
				end = len(data)
			}
			h = UpdateDJB2(h, data[pos:end])
		}
		if h != whole {
			t.Errorf("chunk size %d: got 0x%08x, expected 0x%08x", chunk, h, whole)
		}
	}
}

func TestDJB2Hash32(t *testing.T) {
	h := NewDJB2()
	if _, err := io.Copy(h, bytes.NewReader([]byte("hello world"))); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if h.Sum32() != 0x3551c8c1 {
		t.Errorf("Sum32 = 0x%08x", h.Sum32())
	}
	if sum := h.Sum(nil); !bytes.Equal(sum, []byte{0x35, 0x51, 0xc8, 0xc1}) {
		t.Errorf("Sum = %x", sum)
	}

	h.Reset()
	if h.Sum32() != DJB2Seed {
		t.Errorf("after Reset expected seed, got %d", h.Sum32())
	}
}

func TestFormatDJB2(t *testing.T) {
	if got := FormatDJB2(0x2b606); got != "0002b606" {
		t.Errorf("FormatDJB2 = %q", got)
	}
}
