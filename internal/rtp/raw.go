package rtp

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/rtprx/internal/media"
	"github.com/lanikai/rtprx/internal/packet"
)

// RTP depacketization of uncompressed video. Each payload carries an
// extended sequence number, then one or more line segment headers, then the
// segment data, in pixel groups (pgroups).
// See https://tools.ietf.org/html/rfc4175#section-4
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |   Extended Sequence Number    |            Length             |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |F|          Line No            |C|           Offset            |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// Interlaced fields are written into the frame as separate line ranges.

func init() {
	registerFormat("raw", parseRawVideo)
}

// Size in bytes of a pixel group, and the number of pixels it covers.
type pgroup struct {
	size, pixels int
}

var pgroups = map[string]map[int]pgroup{
	"rgb":         {8: {3, 1}, 10: {15, 4}, 12: {9, 2}, 16: {6, 1}},
	"rgba":        {8: {4, 1}, 10: {5, 1}, 12: {6, 1}, 16: {8, 1}},
	"bgr":         {8: {3, 1}, 10: {15, 4}, 12: {9, 2}, 16: {6, 1}},
	"bgra":        {8: {4, 1}, 10: {5, 1}, 12: {6, 1}, 16: {8, 1}},
	"ycbcr-4:4:4": {8: {3, 1}, 10: {15, 4}, 12: {9, 2}, 16: {6, 1}},
	"ycbcr-4:2:2": {8: {4, 2}, 10: {5, 2}, 12: {6, 2}, 16: {8, 2}},
}

func parseRawVideo(pt *PayloadType) (*payloadFormat, error) {
	params := pt.Parameters
	sampling := params.Get("sampling")
	width, err := params.Int("width", 0)
	if err != nil {
		return nil, err
	}
	height, err := params.Int("height", 0)
	if err != nil {
		return nil, err
	}
	depth, err := params.Int("depth", 8)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || width > 32767 || height > 32767 {
		return nil, errors.Errorf("bad frame size %dx%d", width, height)
	}
	g, found := pgroups[strings.ToLower(sampling)][depth]
	if !found {
		return nil, errors.Wrapf(errNotSupported, "sampling %q at depth %d", sampling, depth)
	}
	if width%g.pixels != 0 {
		return nil, errors.Errorf("width %d is not a multiple of %d", width, g.pixels)
	}

	info := media.StreamInfo{
		Codec:         media.RawVideo,
		Width:         width,
		Height:        height,
		BitsPerSample: depth,
		Config:        []byte(sampling),
	}
	stride := width / g.pixels * g.size
	return &payloadFormat{
		info: info,
		open: func(out *output) Depacketizer {
			return &rawDepacketizer{
				out:    out,
				pgroup: g,
				stride: stride,
				height: height,
			}
		},
	}, nil
}

type rawDepacketizer struct {
	out    *output
	pgroup pgroup
	stride int
	height int

	// Frame being filled, with its timestamp.
	frame     []byte
	pts       time.Duration
	timestamp uint32
	damaged   bool
}

// A line segment header.
type rawSegment struct {
	length int
	line   int
	offset int
}

func (d *rawDepacketizer) Decode(p *Packet) {
	if d.frame != nil && p.Timestamp != d.timestamp {
		// Marker bit lost
		d.flush(true)
	}
	if d.frame == nil {
		d.frame = make([]byte, d.stride*d.height)
		d.pts = p.PTS
		d.timestamp = p.Timestamp
		d.damaged = false
	}
	if p.Discontinuity {
		d.damaged = true
	}

	r := packet.NewReader(p.Payload)
	r.Skip(2) // Extended sequence number
	var segments []rawSegment
	for {
		s := rawSegment{length: int(r.ReadUint16())}
		s.line = int(r.ReadUint16() & 0x7fff)
		offset := r.ReadUint16()
		s.offset = int(offset & 0x7fff)
		if r.Err() != nil {
			log.Debug("raw video: truncated segment headers")
			d.damaged = true
			return
		}
		segments = append(segments, s)
		if offset&0x8000 == 0 {
			break
		}
	}

	for _, s := range segments {
		data := r.ReadSlice(s.length)
		if r.Err() != nil {
			log.Debug("raw video: truncated segment")
			d.damaged = true
			break
		}
		start := s.line*d.stride + s.offset/d.pgroup.pixels*d.pgroup.size
		if s.line >= d.height || s.offset%d.pgroup.pixels != 0 || start+len(data) > (s.line+1)*d.stride {
			log.Debug("raw video: segment line %d offset %d length %d out of bounds", s.line, s.offset, s.length)
			d.damaged = true
			continue
		}
		copy(d.frame[start:], data)
	}

	if p.Marker {
		d.flush(false)
	}
}

func (d *rawDepacketizer) flush(incomplete bool) {
	flags := media.FlagAUEnd | media.FlagRandomAccess
	if incomplete || d.damaged {
		flags |= media.FlagCorrupted
	}
	d.out.write(&media.Buffer{Data: d.frame, PTS: d.pts, DTS: d.pts, Flags: flags})
	d.frame = nil
}

func (d *rawDepacketizer) Close() {
	d.frame = nil
}
