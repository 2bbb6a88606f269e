package xenfixture

import "encoding/binary"

const (
	libvirtHeaderSize = 64
	xlHeaderSize      = 48
	libvirtXMLLenOff  = 20
	xlOptDataLenOff   = 44
)

var (
	libvirtMagic = []byte("libvirt-xml\n \x00 \r")
	xlMagic      = []byte("Xen saved domain, xl format\n \x00 \r")
)

// Tag is one control or batch record in a snapshot record stream.
type Tag struct {
	// Count is the raw 4-byte record count: negative is a control tag,
	// positive is a PFN-descriptor batch size, zero is end-of-stream.
	Count int32
	// Descriptors holds the batch's Count PFN-descriptor words, absent
	// ones included, used only when Count > 0.
	Descriptors []uint32
	// Pages holds one page's contents per present descriptor, same
	// order as Descriptors.
	Pages [][]byte
	// SkipBytes holds the raw bytes to emit immediately after a
	// negative control tag, used only when Count < 0 (e.g. the 12 or 20
	// bytes a fixed-size control record carries).
	SkipBytes []byte
}

// SnapshotOptions controls how BuildLibvirtSnapshot/BuildXLSnapshot
// assemble a fixture.
type SnapshotOptions struct {
	P2MSize uint64 // p2m_size field; its value is opaque to the parser
	Tags    []Tag  // record stream, NOT including the trailing Count==0
}

// BuildLibvirtSnapshot assembles a libvirt-wrapped Xen save stream: a
// 64-byte header (magic + 4-byte XML length at offset 20), that many
// bytes of (here, empty-content) XML, then the page-record stream.
func BuildLibvirtSnapshot(xmlLen uint32, opts SnapshotOptions) []byte {
	header := make([]byte, libvirtHeaderSize)
	copy(header, libvirtMagic)
	binary.LittleEndian.PutUint32(header[libvirtXMLLenOff:libvirtXMLLenOff+4], xmlLen)

	body := make([]byte, xmlLen)
	stream := buildRecordStream(opts)

	out := make([]byte, 0, len(header)+len(body)+len(stream))
	out = append(out, header...)
	out = append(out, body...)
	out = append(out, stream...)
	return out
}

// BuildXLSnapshot assembles an xl-native Xen save stream: a 48-byte
// header (magic + 4-byte optional-data length at offset 44), that many
// bytes of optional data, then the page-record stream.
func BuildXLSnapshot(optDataLen uint32, opts SnapshotOptions) []byte {
	header := make([]byte, xlHeaderSize)
	copy(header, xlMagic)
	binary.LittleEndian.PutUint32(header[xlOptDataLenOff:xlOptDataLenOff+4], optDataLen)

	body := make([]byte, optDataLen)
	stream := buildRecordStream(opts)

	out := make([]byte, 0, len(header)+len(body)+len(stream))
	out = append(out, header...)
	out = append(out, body...)
	out = append(out, stream...)
	return out
}

// buildRecordStream emits the p2m_size field, then each tag in order,
// then a terminating Count==0 word.
func buildRecordStream(opts SnapshotOptions) []byte {
	var out []byte

	p2mSize := make([]byte, 8)
	binary.LittleEndian.PutUint64(p2mSize, opts.P2MSize)
	out = append(out, p2mSize...)

	for _, t := range opts.Tags {
		countBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(countBuf, uint32(t.Count))
		out = append(out, countBuf...)

		if t.Count < 0 {
			out = append(out, t.SkipBytes...)
			continue
		}

		for _, d := range t.Descriptors {
			wordBuf := make([]byte, 4)
			binary.LittleEndian.PutUint32(wordBuf, d)
			out = append(out, wordBuf...)
		}
		for _, p := range t.Pages {
			out = append(out, p...)
		}
	}

	out = append(out, 0, 0, 0, 0) // terminating Count == 0
	return out
}
