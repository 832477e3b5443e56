// Package h264 holds H.264 NAL unit helpers shared by the RTP depacketizer
// and the sinks.
package h264

import (
	"github.com/nareix/joy4/codec/h264parser"
)

// NAL unit types (ITU-T H.264 Table 7-1, RFC 6184 Table 1).
const (
	TypeSlice  = 1
	TypeIDR    = 5
	TypeSEI    = 6
	TypeSPS    = 7
	TypePPS    = 8
	TypeAUD    = 9
	TypeSTAPA  = 24
	TypeSTAPB  = 25
	TypeMTAP16 = 26
	TypeMTAP24 = 27
	TypeFUA    = 28
	TypeFUB    = 29
)

// StartCode precedes every NAL unit in an Annex B byte stream.
var StartCode = []byte{0, 0, 0, 1}

type NALU []byte

func (nalu NALU) ForbiddenBit() byte {
	return nalu[0] & 0x80 >> 7
}

func (nalu NALU) NRI() byte {
	return nalu[0] & 0x60 >> 5
}

func (nalu NALU) Type() byte {
	return nalu[0] & 0x1f
}

// IsRandomAccess reports whether a decoder can start at this NAL unit.
func (nalu NALU) IsRandomAccess() bool {
	switch nalu.Type() {
	case TypeIDR, TypeSPS, TypePPS:
		return true
	}
	return false
}

// AppendAnnexB appends a start code and the NAL unit to dst.
func AppendAnnexB(dst []byte, nalu []byte) []byte {
	dst = append(dst, StartCode...)
	return append(dst, nalu...)
}

// ParameterSets summarizes a pair of SPS and PPS.
type ParameterSets struct {
	SPS, PPS      []byte
	Width, Height int
}

// ParseParameterSets validates the SPS and PPS and extracts the picture size.
func ParseParameterSets(sps, pps []byte) (ParameterSets, error) {
	codec, err := h264parser.NewCodecDataFromSPSAndPPS(sps, pps)
	if err != nil {
		return ParameterSets{}, err
	}
	return ParameterSets{
		SPS:    sps,
		PPS:    pps,
		Width:  codec.Width(),
		Height: codec.Height(),
	}, nil
}
