// Package bytesource defines the random-access byte-range contract that
// xenaddr's parsers and sparse reader treat as their "base" file, plus two
// reference implementations of it.
package bytesource

import "errors"

// ErrShortRead is returned when a ByteSource cannot honour a requested
// length, e.g. because the request runs past the end of the underlying
// file.
var ErrShortRead = errors.New("bytesource: short read")

// ByteSource is a random-access read-only view of some underlying file.
// Implementations must return exactly length bytes or a non-nil error;
// partial reads are not a valid success case.
//
// xenaddr borrows a ByteSource — it never closes or owns one, and it is
// the caller's responsibility to keep it alive for at least as long as
// any AddressSpace built on top of it.
type ByteSource interface {
	Read(off, length uint64) ([]byte, error)
}
