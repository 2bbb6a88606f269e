// Package xsave holds the constant tables that describe a Xen xc_save
// record stream: the negative XC_SAVE_ID_* control tags and the PFN
// descriptor type field used by snapshot-form dumps.
//
// Values are taken from original_source/xen_snapshot.py's constant block;
// the dispatch itself is modelled as a lookup table rather than the
// original's if/elif chain.
package xsave

// Control tag identifiers. Only a handful of these change parsing
// behaviour (see skipTable); the rest are listed for documentation parity with
// the original source and fall through to the default zero-skip rule.
const (
	IDEnableVerifyMode       = -1
	IDVCPUInfo               = -2
	IDHVMIdentPT             = -3
	IDHVMVM86TSS             = -4
	IDTmem                   = -5
	IDTmemExtra              = -6
	IDTSCInfo                = -7
	IDHVMConsolePFN          = -8
	IDLastCheckpoint         = -9
	IDHVMACPIIOPortsLocation = -10
	IDHVMViridian            = -11
	IDCompressedData         = -12
	IDEnableCompression      = -13
	IDHVMGenerationIDAddr    = -14
	IDHVMPagingRingPFN       = -15
	IDHVMAccessRingPFN       = -16
	IDHVMSharingRingPFN      = -17
	IDToolstack              = -18
)

// TagKind classifies how the parser must react to a control tag.
type TagKind int

const (
	// KindSkip means: discard a fixed number of bytes after the count
	// word, then keep scanning.
	KindSkip TagKind = iota
	// KindUnsupported means: abort the parse (TMEM payloads, which this
	// module cannot interpret without decompression support it
	// deliberately does not have).
	KindUnsupported
)

// tagRule describes the fixed-size skip (in bytes, after the 4-byte count
// word) for a given negative count value.
type tagRule struct {
	kind TagKind
	skip int
}

// skipTable lists every control tag whose record carries a fixed-size
// payload after the count word. Tags absent from this table use the "any
// other negative → skip 0" default in Dispatch.
var skipTable = map[int32]tagRule{
	IDVCPUInfo:               {KindSkip, 12},
	IDHVMIdentPT:             {KindSkip, 12},
	IDHVMVM86TSS:             {KindSkip, 12},
	IDHVMConsolePFN:          {KindSkip, 12},
	IDHVMACPIIOPortsLocation: {KindSkip, 12},
	IDHVMViridian:            {KindSkip, 12},
	IDTSCInfo:                {KindSkip, 20},
	IDTmem:                   {KindUnsupported, 0},
	IDTmemExtra:              {KindUnsupported, 0},
}

// Dispatch returns the skip rule for a negative count value read from the
// record stream. Tags with no entry in skipTable are ordinary zero-skip
// control tags, matching the original's catch-all else branch.
func Dispatch(count int32) (kind TagKind, skip int) {
	if rule, ok := skipTable[count]; ok {
		return rule.kind, rule.skip
	}
	return KindSkip, 0
}

// PFN descriptor type field, high nibble at bit 28.
const (
	LTABShift = 28
	LTABMask  = 0xf << LTABShift

	PFInfoNoTab  = 0x0 << LTABShift
	PFInfoXTab   = 0xf << LTABShift
	PFInfoXAlloc = 0xe << LTABShift
	PFInfoBroken = 0xd << LTABShift
)

// DescriptorAbsent reports whether a raw PFN descriptor word denotes a
// page with no persisted contents (torn down, lazily allocated, or
// unreadable).
func DescriptorAbsent(word uint32) bool {
	switch word & LTABMask {
	case PFInfoXTab, PFInfoXAlloc, PFInfoBroken:
		return true
	default:
		return false
	}
}

// DescriptorPFN extracts the PFN from a raw descriptor word.
func DescriptorPFN(word uint32) uint64 {
	return uint64(word &^ uint32(LTABMask))
}
