package elfcore

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/xendump/xenaddr/bytesource"
	"github.com/xendump/xenaddr/internal/pfnindex"
)

// ErrNotACoreFile is returned when the ELF64 file's e_type is not ET_CORE.
var ErrNotACoreFile = errors.New("elfcore: not an ET_CORE file")

// ErrMalformedHeader is returned when the base ELF64 header itself cannot
// be read or is not class-64, little-endian. A malformed note/P2M walk, by contrast, degrades to an empty
// index rather than returning this error — see Parse.
var ErrMalformedHeader = errors.New("elfcore: malformed ELF64 header")

const elf64HeaderSize = 64

// Parse validates that bs holds an ELF64, little-endian, ET_CORE file,
// then attempts the Xen dumpcore note walk and P2M table build. A failure
// during that note/P2M walk is tolerated: Parse returns a valid, empty
// Index rather than an error, so the resulting address space can still be
// constructed in a degraded, everything-out-of-range mode.
func Parse(bs bytesource.ByteSource) (*pfnindex.Index, error) {
	ehdr, err := bs.Read(0, elf64HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}

	class := elf.Class(ehdr[4])
	data := elf.Data(ehdr[5])
	if class != wantClass || data != wantData {
		return nil, fmt.Errorf("%w: class %v data %v, want %v/%v", ErrMalformedHeader, class, data, wantClass, wantData)
	}

	eType := binary.LittleEndian.Uint16(ehdr[16:18])
	if eType != uint16(wantType) {
		return nil, ErrNotACoreFile
	}

	idx, err := buildIndex(bs, ehdr)
	if err != nil {
		return pfnindex.Empty(), nil
	}
	return idx, nil
}

// buildIndex performs the note walk and P2M table build. Any error it
// returns is treated by Parse as the tolerated "degraded mode" case,
// never as a constructor failure.
func buildIndex(bs bytesource.ByteSource, ehdr []byte) (*pfnindex.Index, error) {
	shOff := binary.LittleEndian.Uint64(ehdr[40:48])
	shEntSize := binary.LittleEndian.Uint16(ehdr[58:60])
	shNum := binary.LittleEndian.Uint16(ehdr[60:62])

	if int(shNum) < minSections {
		return nil, fmt.Errorf("elfcore: only %d section headers, need at least %d", shNum, minSections)
	}

	shdrs := make([]sectionHeader, minSections)
	for i := range shdrs {
		sh, err := readSectionHeader(bs, shOff, shEntSize, i)
		if err != nil {
			return nil, err
		}
		shdrs[i] = sh
	}

	header, err := readDumpcoreHeaderNote(bs, shdrs[noteSectionIdx].offset)
	if err != nil {
		return nil, err
	}
	if header.PageSize == 0 || header.PageSize&(header.PageSize-1) != 0 {
		return nil, fmt.Errorf("elfcore: dumpcore page size %d is not a power of two", header.PageSize)
	}

	builder := pfnindex.NewBuilder(header.PageSize)
	builder.SetMaxPFN(header.NrPages)

	pageCursor := shdrs[pagesSectionIdx].offset
	p2mSh := shdrs[p2mSectionIdx]
	p2mTable, err := bs.Read(p2mSh.offset, p2mSh.size)
	if err != nil {
		return nil, fmt.Errorf("elfcore: reading P2M table: %w", err)
	}

	for off := 0; off+8 <= len(p2mTable); off += 8 {
		pfn := binary.LittleEndian.Uint64(p2mTable[off : off+8])
		builder.Set(pfn, pageCursor)
		pageCursor += header.PageSize
	}

	return builder.Build(), nil
}

type sectionHeader struct {
	offset uint64
	size   uint64
}

// readSectionHeader reads the offset/size fields of the idx'th Elf64_Shdr.
// The other eight fields of the section header are never needed here: the
// parser indexes sections by raw ordinal, not by name or type.
func readSectionHeader(bs bytesource.ByteSource, shOff uint64, shEntSize uint16, idx int) (sectionHeader, error) {
	entOff := shOff + uint64(idx)*uint64(shEntSize)
	raw, err := bs.Read(entOff, uint64(shEntSize))
	if err != nil {
		return sectionHeader{}, fmt.Errorf("elfcore: reading section header %d: %w", idx, err)
	}
	if len(raw) < 40 {
		return sectionHeader{}, fmt.Errorf("elfcore: section header %d too short", idx)
	}
	return sectionHeader{
		offset: binary.LittleEndian.Uint64(raw[24:32]),
		size:   binary.LittleEndian.Uint64(raw[32:40]),
	}, nil
}

// readDumpcoreHeaderNote walks the .note.Xen section to find the dumpcore
// header note: it pre-advances by xenElfnoteDescSize to skip a preceding
// note's descriptor, reads the note header there and requires it to
// identify XenElfnoteDumpcoreHeader, then advances by the same fixed
// amount again (not the note header's true 12-byte size) before reading
// the 32-byte HeaderNote descriptor. Both advances are fixed steps, not
// derived from the notes' namesz/descsz fields; this layout is kept as-is
// and has not been checked against a real xen-dumpcore file.
func readDumpcoreHeaderNote(bs bytesource.ByteSource, noteSectionOff uint64) (HeaderNote, error) {
	noteHdrOff := noteSectionOff + xenElfnoteDescSize
	nhdr, err := bs.Read(noteHdrOff, noteHeaderSize)
	if err != nil {
		return HeaderNote{}, fmt.Errorf("elfcore: reading dumpcore note header: %w", err)
	}

	nType := NoteType(binary.LittleEndian.Uint32(nhdr[8:12]))
	if nType != XenElfnoteDumpcoreHeader {
		return HeaderNote{}, fmt.Errorf("elfcore: dumpcore note has type %#x, want %#x", nType, XenElfnoteDumpcoreHeader)
	}

	descOff := noteHdrOff + xenElfnoteDescSize
	desc, err := bs.Read(descOff, headerNoteDescSize)
	if err != nil {
		return HeaderNote{}, fmt.Errorf("elfcore: reading dumpcore header descriptor: %w", err)
	}

	return HeaderNote{
		Magic:    binary.LittleEndian.Uint64(desc[0:8]),
		NrCPU:    binary.LittleEndian.Uint64(desc[8:16]),
		NrPages:  binary.LittleEndian.Uint64(desc[16:24]),
		PageSize: binary.LittleEndian.Uint64(desc[24:32]),
	}, nil
}
