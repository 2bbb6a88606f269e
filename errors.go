package xenaddr

import "errors"

// Sentinel error kinds returned by Open and AddressSpace's read methods.
// Constructor and read failures wrap one of these with
// fmt.Errorf("...: %w", ...); callers should compare with errors.Is.
var (
	// ErrNoByteSource is returned when Open is called with a nil
	// ByteSource.
	ErrNoByteSource = errors.New("xenaddr: no byte source")

	// ErrUnrecognisedFormat is returned when none of the three
	// supported container magics match.
	ErrUnrecognisedFormat = errors.New("xenaddr: unrecognised format")

	// ErrUnsupportedFormat is returned for an ELF variant other than
	// class-64, little-endian.
	ErrUnsupportedFormat = errors.New("xenaddr: unsupported format")

	// ErrNotACoreFile is returned when an ELF64 file's e_type is not
	// ET_CORE.
	ErrNotACoreFile = errors.New("xenaddr: not a core file")

	// ErrMalformedHeader is returned when a required structural read
	// fails outside the tolerated ELF note/P2M walk.
	ErrMalformedHeader = errors.New("xenaddr: malformed header")

	// ErrUnsupportedFeature is returned when a snapshot's record stream
	// contains a TMEM/TMEM_EXTRA tag.
	ErrUnsupportedFeature = errors.New("xenaddr: unsupported feature")

	// ErrOutOfRange is returned by Read/ZRead when the requested GPA
	// exceeds the dump's declared maximum PFN.
	ErrOutOfRange = errors.New("xenaddr: address out of range")

	// ErrIoError wraps a failure propagated from the underlying
	// ByteSource that isn't itself a recognised format/structure error.
	ErrIoError = errors.New("xenaddr: I/O error")
)
