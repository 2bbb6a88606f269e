package bytesource

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// FileByteSource is a ByteSource backed by an open *os.File, read with
// direct unix.Pread calls rather than os.File.ReadAt. A single mutex
// serialises access so that a FileByteSource is itself safe for concurrent
// readers, matching the sharing contract in xenaddr's concurrency model.
type FileByteSource struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileByteSource opens path for reading and wraps it as a ByteSource.
// The caller is responsible for calling Close when done.
func NewFileByteSource(path string) (*FileByteSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bytesource: open %s: %w", path, err)
	}
	return &FileByteSource{file: f}, nil
}

// Close closes the underlying file.
func (s *FileByteSource) Close() error {
	return s.file.Close()
}

// Read returns exactly length bytes starting at off, or an error.
func (s *FileByteSource) Read(off, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, length)

	s.mu.Lock()
	defer s.mu.Unlock()

	var got int
	for uint64(got) < length {
		n, err := unix.Pread(int(s.file.Fd()), buf[got:], int64(off)+int64(got))
		if err != nil {
			return nil, fmt.Errorf("bytesource: pread at %d: %w", off, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("bytesource: pread at %d: %w", off, ErrShortRead)
		}
		got += n
	}

	return buf, nil
}
