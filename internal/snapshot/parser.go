package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/xendump/xenaddr/bytesource"
	"github.com/xendump/xenaddr/internal/pfnindex"
	"github.com/xendump/xenaddr/internal/xsave"
)

// ErrMalformedHeader is returned when the wrapper header cannot be read,
// its magic does not match the expected Wrapper, or the Wrapper is unknown.
var ErrMalformedHeader = errors.New("snapshot: malformed wrapper header")

// ErrUnsupportedFeature is returned when the record stream contains a
// TMEM or TMEM_EXTRA tag, which this module cannot interpret.
var ErrUnsupportedFeature = errors.New("snapshot: unsupported TMEM record")

// exclusionRange is a reserved PFN range that must never raise max_pfn:
// these cover special pages (shared info, grant tables, and similar)
// that a guest's page tables can reference without them ever growing the
// guest's advertised physical memory size.
type exclusionRange struct{ lo, hi uint64 }

var exclusions = []exclusionRange{
	{983040, 984063},
	{1032192, 1032206},
	{1044475, 1044479},
}

func inExclusionRange(pfn uint64) bool {
	for _, r := range exclusions {
		if pfn >= r.lo && pfn <= r.hi {
			return true
		}
	}
	return false
}

// Parse skips the wrapper header and p2m_size word, then consumes the
// tagged record stream until a zero count, building a pfnindex.Index from
// the PFN-batch records.
func Parse(bs bytesource.ByteSource, wrapper Wrapper) (*pfnindex.Index, error) {
	offset, err := skipWrapper(bs, wrapper)
	if err != nil {
		return nil, err
	}

	// p2m_size (u64, little-endian): read and skipped past. Only the
	// PFN-level information seen later in the record stream feeds
	// max_pfn.
	offset += 8

	builder := pfnindex.NewBuilder(pageSize)

	for {
		countRaw, err := bs.Read(offset, 4)
		if err != nil {
			return nil, fmt.Errorf("snapshot: reading record count at %d: %w", offset, err)
		}
		offset += 4
		count := int32(binary.LittleEndian.Uint32(countRaw))

		if count == 0 {
			break
		}

		if count < 0 {
			kind, skip := xsave.Dispatch(count)
			if kind == xsave.KindUnsupported {
				return nil, fmt.Errorf("%w: tag %d", ErrUnsupportedFeature, count)
			}
			offset += uint64(skip)
			continue
		}

		newOffset, err := consumeBatch(bs, offset, uint32(count), builder)
		if err != nil {
			return nil, err
		}
		offset = newOffset
	}

	return builder.Build(), nil
}

// skipWrapper reads and validates the fixed wrapper header, returning the
// file offset immediately after the wrapper and its opaque XML/opt
// payload.
func skipWrapper(bs bytesource.ByteSource, wrapper Wrapper) (uint64, error) {
	switch wrapper {
	case WrapperLibvirt:
		hdr, err := bs.Read(0, libvirtHeaderSize)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
		}
		if !bytes.Equal(hdr[:len(LibvirtMagic)], LibvirtMagic) {
			return 0, fmt.Errorf("%w: libvirt magic mismatch", ErrMalformedHeader)
		}
		xmlLen := binary.LittleEndian.Uint32(hdr[libvirtXMLLenOff : libvirtXMLLenOff+4])
		return uint64(libvirtHeaderSize) + uint64(xmlLen), nil

	case WrapperXL:
		hdr, err := bs.Read(0, xlHeaderSize)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
		}
		if !bytes.Equal(hdr[:len(XLMagic)], XLMagic) {
			return 0, fmt.Errorf("%w: xl magic mismatch", ErrMalformedHeader)
		}
		optDataLen := binary.LittleEndian.Uint32(hdr[xlOptDataLenOff : xlOptDataLenOff+4])
		return uint64(xlHeaderSize) + uint64(optDataLen), nil

	default:
		return 0, fmt.Errorf("%w: unknown wrapper %v", ErrMalformedHeader, wrapper)
	}
}

// consumeBatch reads a PFN-batch record of count descriptors starting at
// offset (immediately after the count word), records present pages in
// builder, and returns the file offset immediately after the batch's page
// data.
func consumeBatch(bs bytesource.ByteSource, offset uint64, count uint32, builder *pfnindex.Builder) (uint64, error) {
	descBytes, err := bs.Read(offset, uint64(count)*4)
	if err != nil {
		return 0, fmt.Errorf("snapshot: reading PFN descriptor batch at %d: %w", offset, err)
	}
	dataStart := offset + uint64(count)*4

	present := uint64(0)
	for i := uint32(0); i < count; i++ {
		word := binary.LittleEndian.Uint32(descBytes[i*4 : i*4+4])
		if xsave.DescriptorAbsent(word) {
			continue
		}
		pfn := xsave.DescriptorPFN(word)
		builder.Set(pfn, dataStart+present*pageSize)
		if !inExclusionRange(pfn) {
			builder.RaiseMaxPFN(pfn)
		}
		present++
	}

	return dataStart + present*pageSize, nil
}
