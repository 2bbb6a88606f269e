package snapshot

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xendump/xenaddr/bytesource"
	"github.com/xendump/xenaddr/internal/xenfixture"
	"github.com/xendump/xenaddr/internal/xsave"
)

func descWord(pfn uint64) uint32 {
	return uint32(pfn) // PFInfoNoTab is the zero high nibble
}

func TestParseLibvirtSnapshot(t *testing.T) {
	page := bytes.Repeat([]byte{0x42}, 4096)
	data := xenfixture.BuildLibvirtSnapshot(0, xenfixture.SnapshotOptions{
		P2MSize: 1,
		Tags: []xenfixture.Tag{
			{Count: 1, Descriptors: []uint32{descWord(7)}, Pages: [][]byte{page}},
		},
	})
	bs := bytesource.NewMemoryByteSource(data)

	idx, err := Parse(bs, WrapperLibvirt)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if idx.MaxPFN() != 7 {
		t.Fatalf("MaxPFN() = %d, want 7", idx.MaxPFN())
	}
	off, ok := idx.Offset(7)
	if !ok {
		t.Fatal("Offset(7) not present")
	}
	got, err := bs.Read(off, 4096)
	if err != nil {
		t.Fatalf("reading translated page: %v", err)
	}
	if !bytes.Equal(got, page) {
		t.Fatal("translated page contents mismatch")
	}
}

func TestParseXLSnapshotControlTagsOnly(t *testing.T) {
	data := xenfixture.BuildXLSnapshot(0, xenfixture.SnapshotOptions{
		P2MSize: 0,
		Tags: []xenfixture.Tag{
			{Count: xsave.IDLastCheckpoint},
		},
	})
	bs := bytesource.NewMemoryByteSource(data)

	idx, err := Parse(bs, WrapperXL)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if idx.MaxPFNSet() {
		t.Fatal("MaxPFNSet() = true with no PFN batch ever seen, want false")
	}
}

func TestParseTmemUnsupported(t *testing.T) {
	data := xenfixture.BuildXLSnapshot(0, xenfixture.SnapshotOptions{
		P2MSize: 0,
		Tags: []xenfixture.Tag{
			{Count: xsave.IDTmem},
		},
	})
	bs := bytesource.NewMemoryByteSource(data)

	_, err := Parse(bs, WrapperXL)
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("Parse err = %v, want ErrUnsupportedFeature", err)
	}
}

func TestParseTmemExtraUnsupported(t *testing.T) {
	data := xenfixture.BuildXLSnapshot(0, xenfixture.SnapshotOptions{
		P2MSize: 0,
		Tags: []xenfixture.Tag{
			{Count: xsave.IDTmemExtra},
		},
	})
	bs := bytesource.NewMemoryByteSource(data)

	_, err := Parse(bs, WrapperXL)
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("Parse err = %v, want ErrUnsupportedFeature", err)
	}
}

func TestParseUnhandledNegativeTagPassesThrough(t *testing.T) {
	page := bytes.Repeat([]byte{0x77}, 4096)
	data := xenfixture.BuildXLSnapshot(0, xenfixture.SnapshotOptions{
		P2MSize: 0,
		Tags: []xenfixture.Tag{
			// IDToolstack has no skipTable entry: it must default to a
			// zero-byte skip and parsing must continue past it.
			{Count: xsave.IDToolstack},
			{Count: 1, Descriptors: []uint32{descWord(3)}, Pages: [][]byte{page}},
		},
	})
	bs := bytesource.NewMemoryByteSource(data)

	idx, err := Parse(bs, WrapperXL)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if idx.MaxPFN() != 3 {
		t.Fatalf("MaxPFN() = %d, want 3", idx.MaxPFN())
	}
}

func TestParseExclusionSetBoundaryPinning(t *testing.T) {
	page := bytes.Repeat([]byte{0x01}, 4096)
	// 983039 lies just outside the first exclusion range [983040,984063]
	// and must raise max_pfn; 983040 lies at its low boundary and must
	// not.
	data := xenfixture.BuildXLSnapshot(0, xenfixture.SnapshotOptions{
		P2MSize: 0,
		Tags: []xenfixture.Tag{
			{
				Count: 2,
				Descriptors: []uint32{
					descWord(983039),
					descWord(983040),
				},
				Pages: [][]byte{page, page},
			},
		},
	})
	bs := bytesource.NewMemoryByteSource(data)

	idx, err := Parse(bs, WrapperXL)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if idx.MaxPFN() != 983039 {
		t.Fatalf("MaxPFN() = %d, want 983039 (983040 must be excluded)", idx.MaxPFN())
	}
	if _, ok := idx.Offset(983040); !ok {
		t.Fatal("Offset(983040) not present: exclusion affects max_pfn only, not presence")
	}
}

func TestParseExclusionSetUpperBoundary(t *testing.T) {
	page := bytes.Repeat([]byte{0x01}, 4096)
	// 984063 is the high end of the first exclusion range and must not
	// raise max_pfn; 984064 is just past it and must.
	data := xenfixture.BuildXLSnapshot(0, xenfixture.SnapshotOptions{
		P2MSize: 0,
		Tags: []xenfixture.Tag{
			{
				Count: 2,
				Descriptors: []uint32{
					descWord(984063),
					descWord(984064),
				},
				Pages: [][]byte{page, page},
			},
		},
	})
	bs := bytesource.NewMemoryByteSource(data)

	idx, err := Parse(bs, WrapperXL)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if idx.MaxPFN() != 984064 {
		t.Fatalf("MaxPFN() = %d, want 984064", idx.MaxPFN())
	}
}

func TestParseMalformedWrapperMagic(t *testing.T) {
	data := make([]byte, libvirtHeaderSize+8)
	bs := bytesource.NewMemoryByteSource(data)

	_, err := Parse(bs, WrapperLibvirt)
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("Parse err = %v, want ErrMalformedHeader", err)
	}
}
