// Package h265 holds HEVC NAL unit helpers.
package h265

// NAL unit types (ITU-T H.265 Table 7-1, RFC 7798 section 4.4).
const (
	TypeBLAWLP     = 16
	TypeCRA        = 21
	TypeVPS        = 32
	TypeSPS        = 33
	TypePPS        = 34
	TypeAUD        = 35
	TypeAP         = 48
	TypeFU         = 49
	TypePACI       = 50
	irapRangeFirst = TypeBLAWLP
	irapRangeLast  = 23
)

// HeaderLength is the size of the two-byte NAL unit header.
const HeaderLength = 2

// NALU is an H.265 NAL unit, starting with its two-byte header.
type NALU []byte

func (nalu NALU) ForbiddenBit() byte {
	return nalu[0] >> 7
}

func (nalu NALU) Type() byte {
	return nalu[0] >> 1 & 0x3f
}

func (nalu NALU) LayerID() byte {
	return (nalu[0]&1)<<5 | nalu[1]>>3
}

// TID returns nuh_temporal_id_plus1.
func (nalu NALU) TID() byte {
	return nalu[1] & 0x07
}

// IsRandomAccess reports whether nalu is an IRAP picture or a parameter set.
func (nalu NALU) IsRandomAccess() bool {
	t := nalu.Type()
	return (t >= irapRangeFirst && t <= irapRangeLast) || (t >= TypeVPS && t <= TypePPS)
}

// WithType returns the first header byte of nalu rewritten to carry type t,
// keeping the F bit and the high bit of the layer ID.
func WithType(b0 byte, t byte) byte {
	return b0&0x81 | (t&0x3f)<<1
}
