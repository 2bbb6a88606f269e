package xenaddr

import (
	"fmt"

	"github.com/xendump/xenaddr/bytesource"
	"github.com/xendump/xenaddr/internal/pfnindex"
)

// Run describes a contiguous advertised range of physical memory.
type Run struct {
	VirtStart uint64
	PhysStart uint64
	Length    uint64
}

// sparseReader answers is_valid/translate/read queries against an Index
// and a borrowed ByteSource, stitching present and absent pages together
// with zero-fill.
type sparseReader struct {
	idx *pfnindex.Index
	bs  bytesource.ByteSource
}

func newSparseReader(idx *pfnindex.Index, bs bytesource.ByteSource) *sparseReader {
	return &sparseReader{idx: idx, bs: bs}
}

// isValid reports whether gpa's page is within the declared maximum PFN.
// Absence of a concrete mapping is not invalidity — it is a hole.
func (r *sparseReader) isValid(gpa uint64) bool {
	if !r.idx.MaxPFNSet() {
		return false
	}
	pfn := gpa >> r.idx.PageShift()
	return pfn <= r.idx.MaxPFN()
}

// translate returns the file offset corresponding to gpa, if gpa's page
// is present in the index.
func (r *sparseReader) translate(gpa uint64) (uint64, bool) {
	pageShift := r.idx.PageShift()
	pageSize := r.idx.PageSize()
	pfn := gpa >> pageShift
	off, ok := r.idx.Offset(pfn)
	if !ok {
		return 0, false
	}
	return off + (gpa % pageSize), true
}

// read splits the request into a leading partial page, whole pages, and
// a trailing partial page, translating and zero-filling each segment in
// turn.
func (r *sparseReader) read(gpa, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	if !r.isValid(gpa) {
		return nil, fmt.Errorf("xenaddr: gpa %#x: %w", gpa, ErrOutOfRange)
	}

	pageSize := r.idx.PageSize()

	out := make([]byte, 0, length)

	first := pageSize - (gpa % pageSize)
	if length < first {
		first = length
	}

	seg, err := r.readSegment(gpa, first)
	if err != nil {
		return nil, err
	}
	out = append(out, seg...)

	remaining := length - first
	fullPages := remaining / pageSize
	tail := remaining % pageSize

	addr := gpa + first
	for i := uint64(0); i < fullPages; i++ {
		seg, err := r.readSegment(addr, pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, seg...)
		addr += pageSize
	}

	if tail > 0 {
		seg, err := r.readSegment(addr, tail)
		if err != nil {
			return nil, err
		}
		out = append(out, seg...)
	}

	return out, nil
}

// readSegment reads segLen bytes starting at gpa, which must lie entirely
// within a single page. It delegates to the ByteSource when the page is
// present, or zero-fills when the page is absent.
func (r *sparseReader) readSegment(gpa, segLen uint64) ([]byte, error) {
	if segLen == 0 {
		return []byte{}, nil
	}
	off, ok := r.translate(gpa)
	if !ok {
		return make([]byte, segLen), nil
	}
	data, err := r.bs.Read(off, segLen)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %d bytes at offset %d: %w", ErrIoError, segLen, off, err)
	}
	return data, nil
}
