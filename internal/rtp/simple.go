package rtp

import (
	"strings"
	"time"

	"github.com/lanikai/rtprx/internal/media"
)

// Payload formats that carry whole frames, forwarded as they are.

var passthroughCodecs = map[string]media.Codec{
	"opus": media.Opus,
	"gsm":  media.GSM,
	"g723": media.G723,
	"g728": media.G728,
	"g729": media.G729,
	"dvi4": media.DVI4,
}

func init() {
	for name := range passthroughCodecs {
		registerFormat(name, parsePassthrough)
	}
	registerFormat("MPV", parseMPV)
}

func parsePassthrough(pt *PayloadType) (*payloadFormat, error) {
	info := media.StreamInfo{
		Codec:    passthroughCodecs[strings.ToLower(pt.Name)],
		Channels: pt.Channels,
	}
	if info.Channels == 0 {
		info.Channels = 1
	}
	return &payloadFormat{
		info: info,
		open: func(out *output) Depacketizer {
			return &passthroughDepacketizer{out: out}
		},
	}, nil
}

type passthroughDepacketizer struct {
	out *output
}

func (d *passthroughDepacketizer) Decode(p *Packet) {
	if len(p.Payload) == 0 {
		return
	}
	d.out.write(&media.Buffer{
		Data:  append([]byte(nil), p.Payload...),
		PTS:   p.PTS,
		DTS:   p.PTS,
		Flags: media.FlagAUEnd | media.FlagRandomAccess,
	})
}

func (d *passthroughDepacketizer) Close() {}

// MPEG-1/2 video: each payload starts with a 4-byte video-specific header,
// followed by a 4-byte MPEG-2 extension header if the T bit is set. The
// marker bit ends a picture.
// See https://tools.ietf.org/html/rfc2250#section-3.4
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |    MBZ  |T|         TR        | |N|S|B|E|  P  | | BFC | | FFC |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//                                   AN              FBV     FFV
const (
	mpvHeaderSize          = 4
	mpvExtensionHeaderSize = 4

	// Picture coding type of an I picture.
	mpvIntraPicture = 1
)

func parseMPV(pt *PayloadType) (*payloadFormat, error) {
	return &payloadFormat{
		info: media.StreamInfo{Codec: media.MPEGVideo},
		open: func(out *output) Depacketizer {
			return &mpvDepacketizer{out: out}
		},
	}, nil
}

type mpvDepacketizer struct {
	out *output
	dts dtsReorder

	// Picture being accumulated, up to the marker bit.
	picture   []byte
	flags     media.Flags
	pts       time.Duration
	timestamp uint32
	pending   bool
}

func (d *mpvDepacketizer) Decode(p *Packet) {
	if p.Discontinuity {
		d.flush(media.FlagCorrupted)
		d.dts.reset()
	}
	if len(p.Payload) < mpvHeaderSize {
		return
	}
	header := p.Payload[:mpvHeaderSize]
	data := p.Payload[mpvHeaderSize:]
	if header[0]&0x04 != 0 {
		if len(data) < mpvExtensionHeaderSize {
			return
		}
		data = data[mpvExtensionHeaderSize:]
	}

	if d.pending && p.Timestamp != d.timestamp {
		d.flush(media.FlagCorrupted)
	}
	if !d.pending {
		d.pending = true
		d.picture = nil
		d.flags = 0
		d.pts = p.PTS
		d.timestamp = p.Timestamp
	}
	if header[2]&0x07 == mpvIntraPicture {
		d.flags |= media.FlagRandomAccess
	}
	d.picture = append(d.picture, data...)
	if p.Marker {
		d.flush(0)
	}
}

func (d *mpvDepacketizer) flush(flags media.Flags) {
	if !d.pending {
		return
	}
	d.pending = false
	if len(d.picture) == 0 {
		return
	}
	d.out.write(&media.Buffer{
		Data:  d.picture,
		PTS:   d.pts,
		DTS:   d.dts.next(d.pts),
		Flags: d.flags | flags | media.FlagAUEnd,
	})
	d.picture = nil
}

func (d *mpvDepacketizer) Close() {
	d.picture = nil
	d.pending = false
}
