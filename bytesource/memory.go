package bytesource

import "fmt"

// MemoryByteSource is a ByteSource backed by an in-memory byte slice. It
// exists for tests and for small fixtures; production callers read from a
// real dump file via FileByteSource.
type MemoryByteSource struct {
	data []byte
}

// NewMemoryByteSource wraps data as a ByteSource. data is not copied.
func NewMemoryByteSource(data []byte) *MemoryByteSource {
	return &MemoryByteSource{data: data}
}

// Read returns exactly length bytes starting at off, or an error if the
// range runs past the end of data.
func (s *MemoryByteSource) Read(off, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	end := off + length
	if end < off || end > uint64(len(s.data)) {
		return nil, fmt.Errorf("bytesource: read [%d,%d) out of range (len %d): %w", off, end, len(s.data), ErrShortRead)
	}
	out := make([]byte, length)
	copy(out, s.data[off:end])
	return out, nil
}
