// Package pfnindex holds the PFN → file-offset mapping built once while
// parsing a Xen dump or snapshot, and shared read-only thereafter by the
// sparse reader that serves address-space reads from it.
package pfnindex

// Index is an immutable mapping from guest page-frame number to absolute
// file offset, plus the scalar attributes needed to interpret it.
//
// maxPFNSet tracks whether anything ever declared a maximum PFN for this
// dump: the ELF-core form always sets it (from the dumpcore header, even
// if that header declares zero pages); the snapshot form only raises it
// when a present page is actually observed. A snapshot stream that never
// records a single present page (nothing but control tags) therefore has
// no valid address at all, rather than spuriously validating PFN 0
// against a max of zero.
type Index struct {
	offsets   map[uint64]uint64
	pageSize  uint64
	pageShift uint
	maxPFN    uint64
	maxPFNSet bool
}

// PageSize returns the page size in bytes used by this dump.
func (idx *Index) PageSize() uint64 { return idx.pageSize }

// PageShift returns log2(PageSize()).
func (idx *Index) PageShift() uint { return idx.pageShift }

// MaxPFN returns the largest PFN ever declared present during parsing.
func (idx *Index) MaxPFN() uint64 { return idx.maxPFN }

// MaxPFNSet reports whether a maximum PFN was ever declared for this
// dump. When false, no address is valid.
func (idx *Index) MaxPFNSet() bool { return idx.maxPFNSet }

// Size returns the declared physical memory size in bytes,
// (MaxPFN()+1) << PageShift(), or 0 when no maximum PFN was declared.
func (idx *Index) Size() uint64 {
	if !idx.maxPFNSet {
		return 0
	}
	return (idx.maxPFN + 1) << idx.pageShift
}

// Empty returns a valid Index with no present pages and no declared
// maximum PFN, used when a parser's structural walk fails but the
// address space must still be constructible in a degraded mode.
func Empty() *Index {
	return &Index{offsets: make(map[uint64]uint64)}
}

// Offset returns the file offset for pfn and whether pfn is present.
func (idx *Index) Offset(pfn uint64) (offset uint64, ok bool) {
	offset, ok = idx.offsets[pfn]
	return offset, ok
}

// Len returns the number of present pages in the index.
func (idx *Index) Len() int {
	return len(idx.offsets)
}

// Builder accumulates PFN → offset entries during parsing. It is not
// safe for concurrent use; each parser builds its Index single-threaded.
type Builder struct {
	offsets   map[uint64]uint64
	pageSize  uint64
	pageShift uint
	maxPFN    uint64
	maxPFNSet bool
}

// NewBuilder starts a Builder for a dump with the given page size.
// pageSize must be a power of two.
func NewBuilder(pageSize uint64) *Builder {
	return &Builder{
		offsets:   make(map[uint64]uint64),
		pageSize:  pageSize,
		pageShift: log2(pageSize),
	}
}

// Set records that pfn's contents live at the given file offset. Later
// calls for the same pfn overwrite earlier ones: the last record for a
// PFN in the stream wins.
func (b *Builder) Set(pfn, offset uint64) {
	b.offsets[pfn] = offset
}

// MaxPFN returns the current high-water mark, before Build freezes it.
func (b *Builder) MaxPFN() uint64 { return b.maxPFN }

// SetMaxPFN unconditionally sets the declared maximum PFN, e.g. from an
// ELF dumpcore header's xch_nr_pages — even a declared value of zero
// marks the maximum as set.
func (b *Builder) SetMaxPFN(pfn uint64) {
	b.maxPFN = pfn
	b.maxPFNSet = true
}

// RaiseMaxPFN raises the high-water mark to pfn if pfn is larger than the
// current value, and marks the maximum as set. Used by the snapshot
// parser's exclusion-set clamp, where the maximum is only ever known
// once a present page has actually been observed.
func (b *Builder) RaiseMaxPFN(pfn uint64) {
	if !b.maxPFNSet || pfn > b.maxPFN {
		b.maxPFN = pfn
	}
	b.maxPFNSet = true
}

// Build freezes the accumulated state into an immutable Index.
func (b *Builder) Build() *Index {
	return &Index{
		offsets:   b.offsets,
		pageSize:  b.pageSize,
		pageShift: b.pageShift,
		maxPFN:    b.maxPFN,
		maxPFNSet: b.maxPFNSet,
	}
}

// log2 returns the base-2 logarithm of a power-of-two n. It panics on 0 or
// a non-power-of-two input: a dump's page size is always a power of two.
func log2(n uint64) uint {
	if n == 0 || n&(n-1) != 0 {
		panic("pfnindex: page size must be a power of two")
	}
	var shift uint
	for n > 1 {
		n >>= 1
		shift++
	}
	return shift
}
