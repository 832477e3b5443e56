package rtp

import (
	"github.com/pkg/errors"

	"github.com/lanikai/rtprx/internal/media"
	"github.com/lanikai/rtprx/internal/media/h264"
	"github.com/lanikai/rtprx/internal/packet"
)

// RTP depacketization of H.264 video streams.
// See [RFC 6184](https://tools.ietf.org/html/rfc6184).

func init() {
	registerFormat("H264", parseH264)
}

func parseH264(pt *PayloadType) (*payloadFormat, error) {
	mode, err := pt.Parameters.Int("packetization-mode", 0)
	if err != nil {
		return nil, err
	}
	if mode < 0 || mode > 2 {
		return nil, errors.Wrapf(errNotSupported, "packetization-mode %d", mode)
	}

	info := media.StreamInfo{Codec: media.H264}
	sets, err := pt.Parameters.Base64List("sprop-parameter-sets")
	if err != nil {
		log.Warn("Ignoring sprop-parameter-sets: %v", err)
	}
	var sps, pps []byte
	for _, nal := range sets {
		if len(nal) == 0 {
			continue
		}
		info.Config = h264.AppendAnnexB(info.Config, nal)
		switch h264.NALU(nal).Type() {
		case h264.TypeSPS:
			sps = nal
		case h264.TypePPS:
			pps = nal
		}
	}
	if sps != nil && pps != nil {
		ps, err := h264.ParseParameterSets(sps, pps)
		if err != nil {
			log.Warn("Invalid H.264 parameter sets: %v", err)
		} else {
			info.Width, info.Height = ps.Width, ps.Height
			log.Debug("H.264 coded size %dx%d", ps.Width, ps.Height)
		}
	}

	clockRate := pt.ClockRate
	return &payloadFormat{
		info: info,
		open: func(out *output) Depacketizer {
			return &h264Depacketizer{
				nalOutput: nalOutput{
					out:          out,
					params:       info.Config,
					randomAccess: func(nal []byte) bool { return h264.NALU(nal).IsRandomAccess() },
				},
				clockRate: clockRate,
			}
		},
	}, nil
}

type h264Depacketizer struct {
	nalOutput
	clockRate int
}

func (d *h264Depacketizer) Decode(p *Packet) {
	if p.Discontinuity {
		d.discontinuity()
	}
	if len(p.Payload) == 0 {
		return
	}

	_, _, typ := splitByte125(p.Payload[0])
	if typ != h264.TypeFUA && typ != h264.TypeFUB {
		d.flushFragment()
	}

	switch typ {
	case 0, 30, 31:
		log.Trace(3, "H.264: dropping NAL unit of type %d", typ)
	case h264.TypeSTAPA:
		d.decodeSTAP(p, p.Payload[1:])
	case h264.TypeSTAPB:
		if len(p.Payload) < 3 {
			return
		}
		d.decodeSTAP(p, p.Payload[3:]) // Skip DON
	case h264.TypeMTAP16:
		d.decodeMTAP(p, p.Payload[1:], 2)
	case h264.TypeMTAP24:
		d.decodeMTAP(p, p.Payload[1:], 3)
	case h264.TypeFUA:
		d.decodeFU(p, false)
	case h264.TypeFUB:
		d.decodeFU(p, true)
	default:
		d.emit(p.Payload, p.PTS, p.Marker)
	}
}

// Single-time aggregation packet: a sequence of 16-bit sizes, each followed by
// a NAL unit. See https://tools.ietf.org/html/rfc6184#section-5.7.1
func (d *h264Depacketizer) decodeSTAP(p *Packet, data []byte) {
	r := packet.NewReader(data)
	for r.Remaining() > 0 {
		if r.CheckRemaining(2) != nil {
			log.Debug("H.264: truncated STAP")
			return
		}
		size := int(r.ReadUint16())
		if size == 0 || r.CheckRemaining(size) != nil {
			log.Debug("H.264: bad STAP unit size %d", size)
			return
		}
		nal := r.ReadSlice(size)
		d.emit(nal, p.PTS, p.Marker && r.Remaining() == 0)
	}
}

// Multi-time aggregation packet: a decoding order number base, then units
// with their own timestamp offsets.
// See https://tools.ietf.org/html/rfc6184#section-5.7.2
func (d *h264Depacketizer) decodeMTAP(p *Packet, data []byte, offsetSize int) {
	r := packet.NewReader(data)
	r.Skip(2) // DONB
	for r.Err() == nil && r.Remaining() > 0 {
		if r.CheckRemaining(2) != nil {
			break
		}
		size := int(r.ReadUint16())
		if size <= 1+offsetSize || r.CheckRemaining(size) != nil {
			log.Debug("H.264: bad MTAP unit size %d", size)
			return
		}
		r.Skip(1) // DOND
		var offset uint32
		if offsetSize == 2 {
			offset = uint32(r.ReadUint16())
		} else {
			offset = r.ReadUint24()
		}
		nal := r.ReadSlice(size - 1 - offsetSize)
		pts := p.PTS + ticksToDuration(int64(offset), d.clockRate)
		d.emit(nal, pts, p.Marker && r.Remaining() == 0)
	}
}

// Fragmentation unit. The original NAL header is rebuilt from the F and NRI
// bits of the FU indicator and the type of the FU header. FU-B carries a DON
// in its first fragment only.
// See https://tools.ietf.org/html/rfc6184#section-5.8
func (d *h264Depacketizer) decodeFU(p *Packet, withDON bool) {
	if len(p.Payload) < 2 {
		return
	}
	indicator := p.Payload[0]
	start, end, _, typ := splitByte1115(p.Payload[1])
	data := p.Payload[2:]

	if start {
		if withDON {
			if len(data) < 2 {
				return
			}
			data = data[2:]
		}
		d.startFragment([]byte{indicator&0xe0 | typ}, data, p.PTS)
	} else if !d.appendFragment(data) {
		log.Trace(3, "H.264: fragment without start")
		return
	}

	if end {
		d.endFragment(p.Marker)
	}
}

func (d *h264Depacketizer) Close() {
	d.fragment = nil
}
