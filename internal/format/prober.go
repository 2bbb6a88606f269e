// Package format inspects the first bytes of a ByteSource and decides
// which of the three supported Xen dump/snapshot container parsers
// should handle it.
package format

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xendump/xenaddr/bytesource"
	"github.com/xendump/xenaddr/internal/snapshot"
)

// Kind identifies which parser should handle a probed ByteSource.
type Kind int

const (
	// KindElfCore is an ELF64 ET_CORE xen-dumpcore file.
	KindElfCore Kind = iota
	// KindLibvirtSnapshot is a libvirt-wrapped Xen save stream.
	KindLibvirtSnapshot
	// KindXLSnapshot is an xl-tool native Xen save stream.
	KindXLSnapshot
)

// ErrUnrecognisedFormat is returned when none of the three magics match.
var ErrUnrecognisedFormat = errors.New("format: unrecognised container format")

// ErrUnsupportedFormat is returned for an ELF file that is not class-64,
// little-endian.
var ErrUnsupportedFormat = errors.New("format: unsupported ELF variant")

var elfIdent = []byte{0x7F, 'E', 'L', 'F', 2, 1}

const probeSize = 32

// Probe reads up to probeSize bytes of bs and classifies the container
// format. A source shorter than any given magic simply fails to match
// that magic rather than erroring, so a short, unrelated file falls
// through to ErrUnrecognisedFormat instead of a spurious I/O error.
func Probe(bs bytesource.ByteSource) (Kind, error) {
	head, err := probeHead(bs)
	if err != nil {
		return 0, fmt.Errorf("format: reading probe header: %w", err)
	}

	if hasPrefix(head, elfIdent[:4]) {
		// Any ELF file starts "\x7fELF"; only class-64/little-endian is
		// supported here.
		if hasPrefix(head, elfIdent) {
			return KindElfCore, nil
		}
		return 0, ErrUnsupportedFormat
	}
	if hasPrefix(head, snapshot.LibvirtMagic) {
		return KindLibvirtSnapshot, nil
	}
	if hasPrefix(head, snapshot.XLMagic) {
		return KindXLSnapshot, nil
	}
	return 0, ErrUnrecognisedFormat
}

// hasPrefix reports whether head is at least as long as prefix and starts
// with it.
func hasPrefix(head, prefix []byte) bool {
	return len(head) >= len(prefix) && bytes.Equal(head[:len(prefix)], prefix)
}

// probeHead returns the longest prefix of bs, up to probeSize bytes, that
// the ByteSource can actually produce. A short underlying file yields a
// shorter (possibly empty) slice rather than an error; any other failure
// is returned as-is.
func probeHead(bs bytesource.ByteSource) ([]byte, error) {
	for _, n := range []uint64{probeSize, 16, 6, 0} {
		data, err := bs.Read(0, n)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, bytesource.ErrShortRead) {
			return nil, err
		}
	}
	return nil, nil
}
