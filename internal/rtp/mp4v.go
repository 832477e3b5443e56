package rtp

import (
	"bytes"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/rtprx/internal/media"
)

// RTP depacketization of MPEG-4 visual elementary streams (MP4V-ES).
// See https://tools.ietf.org/html/rfc6416#section-5

func init() {
	registerFormat("MP4V-ES", parseMP4V)
}

// Start code of a video object plane.
var vopStartCode = []byte{0, 0, 1, 0xb6}

func parseMP4V(pt *PayloadType) (*payloadFormat, error) {
	config, err := hex.DecodeString(pt.Parameters.Get("config"))
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	if len(config) == 0 {
		config = nil
	}
	info := media.StreamInfo{Codec: media.MPEG4Video, Config: config}
	return &payloadFormat{
		info: info,
		open: func(out *output) Depacketizer {
			return &mp4vDepacketizer{out: out, header: config}
		},
	}, nil
}

type mp4vDepacketizer struct {
	out    *output
	header []byte
	dts    dtsReorder

	// Frame under reassembly, up to the marker bit.
	frame     []byte
	pending   bool
	pts       time.Duration
	timestamp uint32
}

func (d *mp4vDepacketizer) Decode(p *Packet) {
	if p.Discontinuity {
		d.flush(media.FlagCorrupted)
		d.dts.reset()
	}
	if d.pending && p.Timestamp != d.timestamp {
		// Marker bit lost
		d.flush(media.FlagCorrupted)
	}
	if !d.pending {
		d.pending = true
		d.pts = p.PTS
		d.timestamp = p.Timestamp
		d.frame = nil
	}
	d.frame = append(d.frame, p.Payload...)
	if p.Marker {
		d.flush(0)
	}
}

func (d *mp4vDepacketizer) flush(flags media.Flags) {
	if !d.pending {
		return
	}
	d.pending = false
	if len(d.frame) == 0 {
		return
	}

	pts := d.pts
	dts := d.dts.next(pts)
	if d.header != nil {
		d.out.write(&media.Buffer{Data: d.header, PTS: pts, DTS: dts, Flags: media.FlagRandomAccess})
		d.header = nil
	}
	if isIntraVOP(d.frame) {
		flags |= media.FlagRandomAccess
	}
	d.out.write(&media.Buffer{Data: d.frame, PTS: pts, DTS: dts, Flags: flags | media.FlagAUEnd})
	d.frame = nil
}

// Reports whether the first VOP in the frame is intra coded.
func isIntraVOP(frame []byte) bool {
	i := bytes.Index(frame, vopStartCode)
	if i < 0 || i+len(vopStartCode) >= len(frame) {
		return false
	}
	return frame[i+len(vopStartCode)]>>6 == 0
}

func (d *mp4vDepacketizer) Close() {
	d.frame = nil
	d.pending = false
}
