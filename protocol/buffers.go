package protocol

// DefaultReceiveBuffer is the FIFO capacity the host transport uses. It holds
// far more than any response the firmware sends between two reads.
const DefaultReceiveBuffer = 16 * 1024

// FifoBuffer is a circular buffer holding received serial bytes until the
// protocol layer consumes them. It is not safe for concurrent use; the
// transport guards it with its own mutex.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity.
// One slot is kept free to tell a full buffer from an empty one.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends as much of data as fits and returns the count written
func (f *FifoBuffer) Write(data []byte) int {
	n := min(len(data), f.Free())
	first := copy(f.buf[f.write:min(f.write+n, f.size)], data[:n])
	copy(f.buf, data[first:n])
	f.write = (f.write + n) % f.size
	return n
}

// Read moves up to len(data) buffered bytes into data
func (f *FifoBuffer) Read(data []byte) int {
	n := min(len(data), f.Available())
	first := copy(data[:n], f.buf[f.read:min(f.read+n, f.size)])
	copy(data[first:n], f.buf)
	f.read = (f.read + n) % f.size
	return n
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	return (f.write - f.read + f.size) % f.size
}

// Free returns the number of bytes that can still be written
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset discards everything buffered
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
