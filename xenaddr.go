// Package xenaddr provides a read-only, sparse, page-granular
// physical-memory address space over a Xen guest dump: either an ELF64
// xen-dumpcore file from a running guest, or a saved/migrated guest image
// in the libvirt-wrapped or xl-native stream format.
//
// Open probes the container format, builds a PFN → file-offset index, and
// returns an AddressSpace that translates guest physical addresses
// through that index, serving reads that may span present and absent
// (hole) pages.
package xenaddr

import (
	"errors"
	"fmt"

	"github.com/xendump/xenaddr/bytesource"
	"github.com/xendump/xenaddr/internal/elfcore"
	"github.com/xendump/xenaddr/internal/format"
	"github.com/xendump/xenaddr/internal/pfnindex"
	"github.com/xendump/xenaddr/internal/snapshot"
)

// AddressSpace is a read-only, page-granular view of a Xen guest's
// physical memory. It borrows its ByteSource and owns its Index
// exclusively; both are immutable for the AddressSpace's lifetime.
type AddressSpace struct {
	kind   format.Kind
	reader *sparseReader
}

// Open probes bs's container format, parses its index, and returns a
// ready-to-use AddressSpace. bs must outlive the returned AddressSpace.
func Open(bs bytesource.ByteSource) (*AddressSpace, error) {
	if bs == nil {
		return nil, ErrNoByteSource
	}

	kind, err := format.Probe(bs)
	if err != nil {
		return nil, translateProbeErr(err)
	}

	idx, err := parseIndex(bs, kind)
	if err != nil {
		return nil, err
	}

	return &AddressSpace{
		kind:   kind,
		reader: newSparseReader(idx, bs),
	}, nil
}

func parseIndex(bs bytesource.ByteSource, kind format.Kind) (*pfnindex.Index, error) {
	switch kind {
	case format.KindElfCore:
		idx, err := elfcore.Parse(bs)
		if err != nil {
			return nil, translateElfCoreErr(err)
		}
		return idx, nil

	case format.KindLibvirtSnapshot:
		idx, err := snapshot.Parse(bs, snapshot.WrapperLibvirt)
		if err != nil {
			return nil, translateSnapshotErr(err)
		}
		return idx, nil

	case format.KindXLSnapshot:
		idx, err := snapshot.Parse(bs, snapshot.WrapperXL)
		if err != nil {
			return nil, translateSnapshotErr(err)
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("xenaddr: unknown probed kind %v", kind)
	}
}

func translateProbeErr(err error) error {
	switch {
	case errors.Is(err, format.ErrUnsupportedFormat):
		return fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	case errors.Is(err, format.ErrUnrecognisedFormat):
		return fmt.Errorf("%w: %w", ErrUnrecognisedFormat, err)
	default:
		return fmt.Errorf("%w: %w", ErrIoError, err)
	}
}

func translateElfCoreErr(err error) error {
	switch {
	case errors.Is(err, elfcore.ErrNotACoreFile):
		return fmt.Errorf("%w: %w", ErrNotACoreFile, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}
}

func translateSnapshotErr(err error) error {
	switch {
	case errors.Is(err, snapshot.ErrUnsupportedFeature):
		return fmt.Errorf("%w: %w", ErrUnsupportedFeature, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}
}

// IsValidAddress reports whether gpa's page lies within the dump's
// declared maximum PFN. Absence of a concrete page mapping is not
// invalidity — it is a hole, served as zero bytes by Read.
func (a *AddressSpace) IsValidAddress(gpa uint64) bool {
	return a.reader.isValid(gpa)
}

// GetAddress translates gpa to a file offset, if gpa's page is present in
// the index.
func (a *AddressSpace) GetAddress(gpa uint64) (offset uint64, ok bool) {
	return a.reader.translate(gpa)
}

// Read returns exactly length bytes starting at gpa, zero-filling any
// absent (hole) pages. It fails with ErrOutOfRange if gpa's page exceeds
// the declared maximum PFN.
func (a *AddressSpace) Read(gpa, length uint64) ([]byte, error) {
	return a.reader.read(gpa, length)
}

// ZRead is an alias of Read, kept for parity with the upstream tooling's
// historical naming; the two are semantically identical here.
func (a *AddressSpace) ZRead(gpa, length uint64) ([]byte, error) {
	return a.reader.read(gpa, length)
}

// Runs returns the address space's advertised physical memory ranges. For
// the ELF-core and libvirt-snapshot forms this is a single run covering
// [0, (max_pfn+1)<<page_shift), or no runs when no maximum PFN was
// declared. The xl-snapshot form advertises no runs.
func (a *AddressSpace) Runs() []Run {
	if a.kind == format.KindXLSnapshot {
		return nil
	}
	if !a.reader.idx.MaxPFNSet() {
		return nil
	}
	return []Run{{
		VirtStart: 0,
		PhysStart: 0,
		Length:    a.reader.idx.Size(),
	}}
}
