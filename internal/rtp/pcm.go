package rtp

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/lanikai/rtprx/internal/media"
)

// RTP payload formats for uncompressed and sample-based audio.
// See https://tools.ietf.org/html/rfc3551#section-4.5 and RFC 3190.

type pcmFormat struct {
	codec         media.Codec
	bitsPerSample int
}

var pcmFormats = map[string]pcmFormat{
	"l8":      {media.LinearPCM, 8},
	"l16":     {media.LinearPCM, 16},
	"l20":     {media.LinearPCM, 20},
	"l24":     {media.LinearPCM, 24},
	"pcmu":    {media.PCMU, 8},
	"pcma":    {media.PCMA, 8},
	"g722":    {media.G722, 8},
	"g726-16": {media.G726, 2},
	"g726-24": {media.G726, 3},
	"g726-32": {media.G726, 4},
	"g726-40": {media.G726, 5},
}

// Channel permutations from the RTP channel order (RFC 3551 section 4.1,
// after AIFF-C) to the usual interleaved order, indexed by channel count. Entry
// i is the RTP channel that becomes output channel i.
var channelOrders = [...][]int{
	4: {0, 2, 1, 3}, // l c r S -> l r c S
	6: {0, 3, 2, 1, 4, 5},
}

func init() {
	for name := range pcmFormats {
		registerFormat(name, parsePCM)
	}
}

func parsePCM(pt *PayloadType) (*payloadFormat, error) {
	f := pcmFormats[strings.ToLower(pt.Name)]
	channels := pt.Channels
	if channels == 0 {
		channels = 1
	}
	if channels > 8 {
		return nil, errors.Wrapf(errNotSupported, "%d channels", channels)
	}

	info := media.StreamInfo{
		Codec:         f.codec,
		Channels:      channels,
		BitsPerSample: f.bitsPerSample,
	}
	var order []int
	if f.bitsPerSample%8 == 0 && channels < len(channelOrders) {
		order = channelOrders[channels]
	}
	return &payloadFormat{
		info: info,
		open: func(out *output) Depacketizer {
			return &pcmDepacketizer{
				out:       out,
				order:     order,
				frameSize: channels * f.bitsPerSample / 8,
			}
		},
	}, nil
}

// pcmDepacketizer emits each payload as one buffer, with interleaved channels
// reordered where needed.
type pcmDepacketizer struct {
	out   *output
	order []int

	// Bytes per sample frame (all channels), if byte-aligned.
	frameSize int
}

func (d *pcmDepacketizer) Decode(p *Packet) {
	if len(p.Payload) == 0 {
		return
	}
	data := append([]byte(nil), p.Payload...)
	if d.order != nil {
		if len(data)%d.frameSize != 0 {
			log.Debug("PCM: %d bytes is not a whole number of %d-byte frames", len(data), d.frameSize)
			data = data[:len(data)-len(data)%d.frameSize]
		}
		reorderChannels(data, d.order, d.frameSize/len(d.order))
	}
	d.out.write(&media.Buffer{
		Data:  data,
		PTS:   p.PTS,
		DTS:   p.PTS,
		Flags: media.FlagAUEnd | media.FlagRandomAccess,
	})
}

// Permute the channels of each interleaved sample frame in place.
func reorderChannels(data []byte, order []int, sampleSize int) {
	frameSize := sampleSize * len(order)
	tmp := make([]byte, frameSize)
	for off := 0; off+frameSize <= len(data); off += frameSize {
		frame := data[off : off+frameSize]
		copy(tmp, frame)
		for i, ch := range order {
			copy(frame[i*sampleSize:(i+1)*sampleSize], tmp[ch*sampleSize:(ch+1)*sampleSize])
		}
	}
}

func (d *pcmDepacketizer) Close() {}
