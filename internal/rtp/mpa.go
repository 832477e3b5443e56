package rtp

import (
	"time"

	"github.com/lanikai/rtprx/internal/media"
	"github.com/lanikai/rtprx/internal/media/mpa"
	"github.com/lanikai/rtprx/internal/packet"
)

// RTP depacketization of MPEG-1/2 audio. Each payload starts with a 4-byte
// header carrying the byte offset of the payload within the audio frame.
// A payload holds either one or more whole frames, or one fragment of a frame.
// See https://tools.ietf.org/html/rfc2250#section-3.5
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |             MBZ               |          Frag_offset          |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

const mpaHeaderSize = 4

func init() {
	registerFormat("MPA", parseMPA)
}

func parseMPA(pt *PayloadType) (*payloadFormat, error) {
	return &payloadFormat{
		info: media.StreamInfo{Codec: media.MPEGAudio, Channels: pt.Channels},
		open: func(out *output) Depacketizer {
			return &mpaDepacketizer{out: out}
		},
	}, nil
}

type mpaDepacketizer struct {
	out *output

	// Frame under reassembly, starting with its header. frameSize is 0 for a
	// free-format frame, which ends where the next one starts.
	frame     []byte
	frameSize int
	framePTS  time.Duration
	pending   bool

	// Measured bitrate of a free-format stream, once known.
	freeBitrate int
}

func (d *mpaDepacketizer) Decode(p *Packet) {
	r := packet.NewReader(p.Payload)
	r.Skip(2) // MBZ
	offset := int(r.ReadUint16())
	data := r.ReadRemaining()
	if r.Err() != nil {
		return
	}

	if p.Discontinuity {
		d.flush(true)
	}
	if offset == 0 {
		d.flush(false)
		d.decodeFrames(data, p.PTS)
		return
	}

	if !d.pending || offset != len(d.frame) {
		log.Trace(3, "MPA: dropping fragment at offset %d", offset)
		d.pending = false
		d.frame = nil
		return
	}
	d.frame = append(d.frame, data...)
	if d.frameSize > 0 && len(d.frame) >= d.frameSize {
		d.emit(d.frame[:d.frameSize], d.framePTS, 0)
		d.pending = false
		d.frame = nil
	}
}

// Split a payload starting on a frame boundary into frames. A trailing
// partial frame is kept for the following fragments.
func (d *mpaDepacketizer) decodeFrames(data []byte, pts time.Duration) {
	for len(data) > 0 {
		h, err := mpa.Parse(data)
		if err != nil {
			log.Debug("MPA: %v", err)
			return
		}
		size := h.FrameSize()
		if h.FreeFormat() {
			size = nextFrameHeader(data)
			if size > 0 && d.freeBitrate == 0 {
				d.freeBitrate = h.FreeFormatBitrate(size)
				log.Debug("MPA: free-format stream at %d b/s", d.freeBitrate)
			}
		}
		if size == 0 || size > len(data) {
			d.pending = true
			d.frame = append([]byte(nil), data...)
			d.frameSize = size
			d.framePTS = pts
			if size == 0 {
				log.Trace(5, "MPA: free-format frame, size unknown until the next frame")
			}
			return
		}
		d.emit(data[:size], pts, 0)
		data = data[size:]
		pts += time.Duration(h.Samples) * time.Second / time.Duration(h.SampleRate)
	}
}

// Find the next free-format frame header matching the first one. Returns the
// distance to it, or 0.
func nextFrameHeader(data []byte) int {
	for i := mpa.HeaderLength; i+mpa.HeaderLength <= len(data); i++ {
		if data[i] == 0xff && data[i+1] == data[1] &&
			data[i+2]&0xfc == data[2]&0xfc {
			return i
		}
	}
	return 0
}

// Deal with a pending frame when a new frame starts. Free-format frames
// are complete at that point; anything else is corrupted.
func (d *mpaDepacketizer) flush(lost bool) {
	if !d.pending {
		return
	}
	if d.frameSize == 0 && !lost {
		d.emit(d.frame, d.framePTS, 0)
	} else {
		d.emit(d.frame, d.framePTS, media.FlagCorrupted)
	}
	d.pending = false
	d.frame = nil
}

func (d *mpaDepacketizer) emit(frame []byte, pts time.Duration, flags media.Flags) {
	d.out.write(&media.Buffer{
		Data:  append([]byte(nil), frame...),
		PTS:   pts,
		DTS:   pts,
		Flags: flags | media.FlagAUEnd | media.FlagRandomAccess,
	})
}

func (d *mpaDepacketizer) Close() {
	d.frame = nil
	d.pending = false
}
