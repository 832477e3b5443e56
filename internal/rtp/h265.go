package rtp

import (
	"github.com/lanikai/rtprx/internal/media"
	"github.com/lanikai/rtprx/internal/media/h264"
	"github.com/lanikai/rtprx/internal/media/h265"
	"github.com/lanikai/rtprx/internal/packet"
)

// RTP depacketization of H.265 video streams.
// See [RFC 7798](https://tools.ietf.org/html/rfc7798).

func init() {
	registerFormat("H265", parseH265)
}

func parseH265(pt *PayloadType) (*payloadFormat, error) {
	maxDONDiff, err := pt.Parameters.Int("sprop-max-don-diff", 0)
	if err != nil {
		return nil, err
	}

	info := media.StreamInfo{Codec: media.H265}
	for _, key := range []string{"sprop-vps", "sprop-sps", "sprop-pps", "sprop-sei"} {
		sets, err := pt.Parameters.Base64List(key)
		if err != nil {
			log.Warn("Ignoring %s: %v", key, err)
			continue
		}
		for _, nal := range sets {
			if len(nal) >= h265.HeaderLength {
				info.Config = h264.AppendAnnexB(info.Config, nal)
			}
		}
	}

	return &payloadFormat{
		info: info,
		open: func(out *output) Depacketizer {
			return &h265Depacketizer{
				nalOutput: nalOutput{
					out:          out,
					params:       info.Config,
					randomAccess: func(nal []byte) bool { return len(nal) >= 2 && h265.NALU(nal).IsRandomAccess() },
				},
				donl: maxDONDiff > 0,
			}
		},
	}, nil
}

type h265Depacketizer struct {
	nalOutput

	// Units carry a decoding order number (DONL/DOND fields).
	donl bool
}

func (d *h265Depacketizer) Decode(p *Packet) {
	if p.Discontinuity {
		d.discontinuity()
	}
	d.decode(p, p.Payload)
}

func (d *h265Depacketizer) decode(p *Packet, payload []byte) {
	if len(payload) <= h265.HeaderLength {
		return
	}

	typ := h265.NALU(payload).Type()
	if typ != h265.TypeFU {
		d.flushFragment()
	}

	switch typ {
	case h265.TypeAP:
		d.decodeAP(p, payload[h265.HeaderLength:])
	case h265.TypeFU:
		d.decodeFU(p, payload)
	case h265.TypePACI:
		d.decodePACI(p, payload)
	default:
		if d.donl {
			if len(payload) <= h265.HeaderLength+2 {
				return
			}
			nal := make([]byte, 0, len(payload)-2)
			nal = append(nal, payload[:h265.HeaderLength]...)
			payload = append(nal, payload[h265.HeaderLength+2:]...)
		}
		d.emit(payload, p.PTS, p.Marker)
	}
}

// Aggregation packet: NAL units with 16-bit size prefixes. With DONL, the
// first unit is preceded by a 16-bit DONL and the others by an 8-bit DOND.
// See https://tools.ietf.org/html/rfc7798#section-4.4.2
func (d *h265Depacketizer) decodeAP(p *Packet, data []byte) {
	r := packet.NewReader(data)
	first := true
	for r.Remaining() > 0 {
		if d.donl {
			if first {
				r.Skip(2)
			} else {
				r.Skip(1)
			}
		}
		first = false
		if r.CheckRemaining(2) != nil {
			log.Debug("H.265: truncated aggregation packet")
			return
		}
		size := int(r.ReadUint16())
		if size < h265.HeaderLength || r.CheckRemaining(size) != nil {
			log.Debug("H.265: bad aggregation unit size %d", size)
			return
		}
		nal := r.ReadSlice(size)
		d.emit(nal, p.PTS, p.Marker && r.Remaining() == 0)
	}
}

// Fragmentation unit: payload header, FU header, optional DONL in the first
// fragment, then the fragment itself.
// See https://tools.ietf.org/html/rfc7798#section-4.4.3
func (d *h265Depacketizer) decodeFU(p *Packet, payload []byte) {
	if len(payload) < h265.HeaderLength+1 {
		return
	}
	start, end, typ := splitByte116(payload[h265.HeaderLength])
	data := payload[h265.HeaderLength+1:]

	if start {
		if d.donl {
			if len(data) < 2 {
				return
			}
			data = data[2:]
		}
		header := []byte{h265.WithType(payload[0], typ), payload[1]}
		d.startFragment(header, data, p.PTS)
	} else if !d.appendFragment(data) {
		log.Trace(3, "H.265: fragment without start")
		return
	}

	if end {
		d.endFragment(p.Marker)
	}
}

// Payload content information: a header extension wrapped around an ordinary
// payload whose type is carried in the PACI fields.
//     0                   1
//     0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
//    +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//    |A|   cType   | PHSsize |F0..2|Y|
//    +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// See https://tools.ietf.org/html/rfc7798#section-4.4.4
func (d *h265Depacketizer) decodePACI(p *Packet, payload []byte) {
	r := packet.NewReader(payload[h265.HeaderLength:])
	fields := r.ReadUint16()
	cType := byte(fields>>9) & 0x3f
	phsSize := int(fields>>4) & 0x1f
	r.Skip(phsSize) // Header extension
	if r.Err() != nil || cType == h265.TypePACI {
		log.Debug("H.265: malformed PACI packet")
		return
	}

	rest := r.ReadRemaining()
	inner := make([]byte, 0, h265.HeaderLength+len(rest))
	inner = append(inner, h265.WithType(payload[0], cType), payload[1])
	d.decode(p, append(inner, rest...))
}

func (d *h265Depacketizer) Close() {
	d.fragment = nil
}
