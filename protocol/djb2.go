package protocol

import (
	"fmt"
	"hash"
)

// DJB2Seed is the initial value of the rolling checksum
const DJB2Seed uint32 = 5381

// UpdateDJB2 folds p into the running hash h. Bytes are treated as signed
// chars, matching the firmware, so values >= 0x80 are subtracted.
func UpdateDJB2(h uint32, p []byte) uint32 {
	for _, b := range p {
		h = h*33 + uint32(int32(int8(b)))
	}
	return h
}

// SumDJB2 returns the hash of p starting from DJB2Seed
func SumDJB2(p []byte) uint32 {
	return UpdateDJB2(DJB2Seed, p)
}

// FormatDJB2 formats a hash the way the firmware's djb2 command prints it
func FormatDJB2(h uint32) string {
	return fmt.Sprintf("%08x", h)
}

type djb2 struct {
	sum uint32
}

// NewDJB2 returns a hash.Hash32 computing the rolling checksum, so whole
// files can be hashed with io.Copy.
func NewDJB2() hash.Hash32 {
	return &djb2{sum: DJB2Seed}
}

func (d *djb2) Write(p []byte) (int, error) {
	d.sum = UpdateDJB2(d.sum, p)
	return len(p), nil
}

func (d *djb2) Sum(b []byte) []byte {
	s := d.sum
	return append(b, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *djb2) Sum32() uint32 { return d.sum }
func (d *djb2) Reset()        { d.sum = DJB2Seed }
func (d *djb2) Size() int     { return 4 }
func (d *djb2) BlockSize() int {
	return 1
}
