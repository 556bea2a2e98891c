package protocol

import "encoding/binary"

// EncodeBlock builds the wire frame for one transfer block: the payload
// XORed with ObfuscationKey followed by the little-endian rolling checksum.
// The checksum continues from hash over the plain payload bytes; the new
// value is returned so the caller can keep or roll it back.
func EncodeBlock(block []byte, hash uint32) ([]byte, uint32) {
	frame := make([]byte, len(block), len(block)+ChecksumSize)
	for i, b := range block {
		frame[i] = b ^ ObfuscationKey
	}
	hash = UpdateDJB2(hash, block)
	frame = binary.LittleEndian.AppendUint32(frame, hash)
	return frame, hash
}

// DecodeBlock reverses EncodeBlock. It returns the plain payload and the
// checksum carried in the trailer.
func DecodeBlock(frame []byte) ([]byte, uint32, bool) {
	if len(frame) < ChecksumSize {
		return nil, 0, false
	}
	n := len(frame) - ChecksumSize
	block := make([]byte, n)
	for i, b := range frame[:n] {
		block[i] = b ^ ObfuscationKey
	}
	return block, binary.LittleEndian.Uint32(frame[n:]), true
}
