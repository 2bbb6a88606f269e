// Package snapshot parses the libvirt-wrapped and xl-native Xen
// save/migrate stream formats: a small fixed wrapper header, a p2m_size
// word, and a tagged record stream mixing XC_SAVE_ID_* control records
// with PFN-batch page data. It builds a pfnindex.Index from the PFN-batch
// records.
package snapshot

// Wrapper identifies which fixed header preceded the p2m_size word.
type Wrapper int

const (
	// WrapperLibvirt is the libvirt-xml wrapped stream format.
	WrapperLibvirt Wrapper = iota
	// WrapperXL is the xl-tool native stream format.
	WrapperXL
)

// LibvirtMagic is the literal 16-byte magic at the start of a
// libvirt-wrapped stream.
var LibvirtMagic = []byte("libvirt-xml\n \x00 \r")

// XLMagic is the literal 32-byte magic at the start of an xl-native
// stream.
var XLMagic = []byte("Xen saved domain, xl format\n \x00 \r")

const (
	libvirtHeaderSize = 64
	xlHeaderSize      = 48

	libvirtXMLLenOff = 20 // offset of xml_len (u32) within the libvirt header
	xlOptDataLenOff  = 44 // offset of opt_data_len (u32) within the xl header

	pageSize  = 4096
	pageShift = 12
)
