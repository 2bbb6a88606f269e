package format

import (
	"errors"
	"testing"

	"github.com/xendump/xenaddr/bytesource"
	"github.com/xendump/xenaddr/internal/snapshot"
)

func TestProbeElfCore(t *testing.T) {
	data := make([]byte, 64)
	copy(data, []byte{0x7F, 'E', 'L', 'F', 2, 1})
	bs := bytesource.NewMemoryByteSource(data)

	kind, err := Probe(bs)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if kind != KindElfCore {
		t.Fatalf("Probe kind = %v, want KindElfCore", kind)
	}
}

func TestProbeUnsupportedElfVariant(t *testing.T) {
	data := make([]byte, 64)
	copy(data, []byte{0x7F, 'E', 'L', 'F', 1, 2}) // 32-bit, big-endian
	bs := bytesource.NewMemoryByteSource(data)

	_, err := Probe(bs)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Probe err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestProbeLibvirtSnapshot(t *testing.T) {
	data := make([]byte, 64)
	copy(data, snapshot.LibvirtMagic)
	bs := bytesource.NewMemoryByteSource(data)

	kind, err := Probe(bs)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if kind != KindLibvirtSnapshot {
		t.Fatalf("Probe kind = %v, want KindLibvirtSnapshot", kind)
	}
}

func TestProbeXLSnapshot(t *testing.T) {
	data := make([]byte, 48)
	copy(data, snapshot.XLMagic)
	bs := bytesource.NewMemoryByteSource(data)

	kind, err := Probe(bs)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if kind != KindXLSnapshot {
		t.Fatalf("Probe kind = %v, want KindXLSnapshot", kind)
	}
}

func TestProbeUnrecognisedFormat(t *testing.T) {
	bs := bytesource.NewMemoryByteSource([]byte("not a dump at all, just text"))

	_, err := Probe(bs)
	if !errors.Is(err, ErrUnrecognisedFormat) {
		t.Fatalf("Probe err = %v, want ErrUnrecognisedFormat", err)
	}
}

func TestProbeShortFileFallsThrough(t *testing.T) {
	bs := bytesource.NewMemoryByteSource([]byte("hello"))

	_, err := Probe(bs)
	if !errors.Is(err, ErrUnrecognisedFormat) {
		t.Fatalf("Probe err = %v, want ErrUnrecognisedFormat", err)
	}
}

func TestProbeEmptySource(t *testing.T) {
	bs := bytesource.NewMemoryByteSource(nil)

	_, err := Probe(bs)
	if !errors.Is(err, ErrUnrecognisedFormat) {
		t.Fatalf("Probe err = %v, want ErrUnrecognisedFormat", err)
	}
}
