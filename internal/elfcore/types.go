// Package elfcore parses the ELF64 core-dump form of a Xen guest snapshot
// (xen-dumpcore-style): it locates the fixed section ordinals the dumper
// produces, walks the Xen dumpcore note, and builds a pfnindex.Index from
// the P2M table.
package elfcore

import "debug/elf"

// ELF structural constants this parser checks against: a xen-dumpcore
// file is always ELF64, little-endian, ET_CORE.
const (
	wantClass = elf.ELFCLASS64
	wantData  = elf.ELFDATA2LSB
	wantType  = elf.ET_CORE
)

// NoteType identifies an ELF note's n_type field.
type NoteType uint32

// XEN_ELFNOTE_* values identifying the notes xen-dumpcore writes into
// the .note.Xen section.
const (
	XenElfnoteDumpcoreNone          NoteType = 0x2000000
	XenElfnoteDumpcoreHeader        NoteType = 0x2000001
	XenElfnoteDumpcoreXenVersion    NoteType = 0x2000002
	XenElfnoteDumpcoreFormatVersion NoteType = 0x2000003
)

// xenElfnoteDescSize is the fixed pre-advance from the start of the
// .note.Xen section to the dumpcore header note; the bytes it skips are
// not parsed. The same constant is reused verbatim as the header note's
// own descriptor offset, rather than the note header's true 12-byte size.
// This fixed layout has not been checked against a real xen-dumpcore file.
const xenElfnoteDescSize = 16

// Section ordinals xen-dumpcore always emits in this order: the dumper
// does not guarantee section names, only this positional layout.
const (
	noteSectionIdx  = 2
	pagesSectionIdx = 5
	p2mSectionIdx   = 6
	minSections     = p2mSectionIdx + 1
)

// noteHeaderSize is the size of an Elf64_Nhdr (namesz, descsz, type).
const noteHeaderSize = 12

// headerNoteDescSize is the size of the XEN_ELF_HEADER_DESC descriptor:
// magic, nr_vcpus, nr_pages, page_size, each an 8-byte little-endian word.
const headerNoteDescSize = 32

// HeaderNote is the decoded XEN_ELF_HEADER_DESC descriptor.
type HeaderNote struct {
	Magic    uint64
	NrCPU    uint64
	NrPages  uint64
	PageSize uint64
}
