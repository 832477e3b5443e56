package rtp

import (
	"bytes"
	"encoding/hex"
	"time"

	"github.com/nareix/joy4/codec/aacparser"
	"github.com/nareix/joy4/utils/bits"
	"github.com/pkg/errors"

	"github.com/lanikai/rtprx/internal/media"
)

// RTP depacketization of MPEG-4 audio in LATM framing (MP4A-LATM). Only
// out-of-band configuration (cpresent=0) is supported.
// See https://tools.ietf.org/html/rfc6416#section-6

func init() {
	registerFormat("MP4A-LATM", parseLATM)
}

// Offset of the AudioSpecificConfig within a StreamMuxConfig, in bits:
// audioMuxVersion, allStreamsSameTimeFraming, numSubFrames, numProgram,
// numLayer.
const ascBitOffset = 1 + 1 + 6 + 4 + 3

// Parsed StreamMuxConfig, for audioMuxVersion 0 with a single program and
// layer.
type streamMuxConfig struct {
	numSubFrames int
	asc          []byte
	sampleRate   int
	channels     int
}

func parseLATM(pt *PayloadType) (*payloadFormat, error) {
	cpresent, err := pt.Parameters.Int("cpresent", 1)
	if err != nil {
		return nil, err
	}
	if cpresent != 0 {
		return nil, errors.Wrap(errNotSupported, "in-band StreamMuxConfig (cpresent=1)")
	}
	config, err := hex.DecodeString(pt.Parameters.Get("config"))
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	smc, err := parseStreamMuxConfig(config)
	if err != nil {
		return nil, err
	}

	info := media.StreamInfo{
		Codec:    media.MPEG4Audio,
		Channels: smc.channels,
		Config:   smc.asc,
	}
	frameTicks := aacFrameSamples
	if smc.sampleRate > 0 {
		frameTicks = aacFrameSamples * pt.ClockRate / smc.sampleRate
	}
	clockRate := pt.ClockRate
	return &payloadFormat{
		info: info,
		open: func(out *output) Depacketizer {
			return &latmDepacketizer{
				out:          out,
				numSubFrames: smc.numSubFrames,
				frameLength:  ticksToDuration(int64(frameTicks), clockRate),
			}
		},
	}, nil
}

func parseStreamMuxConfig(config []byte) (smc streamMuxConfig, err error) {
	br := &bits.Reader{R: bytes.NewReader(config)}
	fields := make([]uint, 5)
	for i, n := range []int{1, 1, 6, 4, 3} {
		if fields[i], err = br.ReadBits(n); err != nil {
			return smc, errors.Wrap(err, "StreamMuxConfig")
		}
	}
	audioMuxVersion, numSubFrames, numProgram, numLayer := fields[0], fields[2], fields[3], fields[4]
	if audioMuxVersion != 0 || numProgram != 0 || numLayer != 0 {
		return smc, errors.Wrapf(errNotSupported, "StreamMuxConfig version %d with %d programs, %d layers",
			audioMuxVersion, numProgram+1, numLayer+1)
	}
	smc.numSubFrames = int(numSubFrames)

	// Realign the AudioSpecificConfig to a byte boundary.
	asc := shiftBits(config, ascBitOffset)
	mac, err := aacparser.ParseMPEG4AudioConfigBytes(asc)
	if err != nil {
		return smc, errors.Wrap(err, "AudioSpecificConfig")
	}
	smc.sampleRate = mac.SampleRate
	smc.channels = int(mac.ChannelConfig)

	if n := ascBits(asc); n > 0 {
		// frameLengthType follows; only fixed frame length 0 (variable
		// payload length) is used by RTP senders.
		tail := &bits.Reader{R: bytes.NewReader(shiftBits(asc, n))}
		if frameLengthType, err := tail.ReadBits(3); err == nil && frameLengthType != 0 {
			return smc, errors.Wrapf(errNotSupported, "frameLengthType %d", frameLengthType)
		}
		asc = asc[:(n+7)/8]
		if n%8 != 0 {
			asc[len(asc)-1] &= 0xff << uint(8-n%8)
		}
	}
	smc.asc = asc
	return smc, nil
}

// Length in bits of an AudioSpecificConfig for the general audio object types,
// or 0 if it cannot be determined without a full parser.
func ascBits(asc []byte) int {
	br := &bits.Reader{R: bytes.NewReader(asc)}
	n := 0
	read := func(width int) uint {
		v, err := br.ReadBits(width)
		if err != nil {
			return 0
		}
		n += width
		return v
	}

	objectType := read(5)
	if objectType == 31 {
		objectType = 32 + read(6)
	}
	if read(4) == 0xf {
		read(24) // Explicit sampling frequency
	}
	read(4) // Channel configuration

	switch objectType {
	case 1, 2, 3, 4, 6, 7:
		read(1) // frameLengthFlag
		if read(1) == 1 {
			read(14) // coreCoderDelay
		}
		extension := read(1)
		if objectType == 6 || objectType == 7 {
			read(3) // layerNr
		}
		if extension != 0 {
			return 0
		}
		return n
	}
	return 0
}

// Return b shifted left by n bits.
func shiftBits(b []byte, n int) []byte {
	skip, shift := n/8, uint(n%8)
	if skip >= len(b) {
		return nil
	}
	out := make([]byte, len(b)-skip)
	for i := range out {
		out[i] = b[skip+i] << shift
		if shift > 0 && skip+i+1 < len(b) {
			out[i] |= b[skip+i+1] >> (8 - shift)
		}
	}
	return out
}

type latmDepacketizer struct {
	out          *output
	numSubFrames int
	frameLength  time.Duration

	// audioMuxElement under reassembly, up to the marker bit.
	element   []byte
	pts       time.Duration
	timestamp uint32
	pending   bool
}

func (d *latmDepacketizer) Decode(p *Packet) {
	if d.pending && (p.Discontinuity || p.Timestamp != d.timestamp) {
		log.Debug("MP4A-LATM: incomplete audioMuxElement")
		d.pending = false
	}
	if !d.pending {
		d.pending = true
		d.element = nil
		d.pts = p.PTS
		d.timestamp = p.Timestamp
	}
	d.element = append(d.element, p.Payload...)
	if p.Marker {
		d.pending = false
		d.decodeElements(d.element)
		d.element = nil
	}
}

// Split one or more audioMuxElements into access units. Each subframe is
// preceded by PayloadLengthInfo: a run of 0xff bytes plus a final byte, summed.
func (d *latmDepacketizer) decodeElements(data []byte) {
	pts := d.pts
	for len(data) > 0 {
		for i := 0; i <= d.numSubFrames && len(data) > 0; i++ {
			length := 0
			for len(data) > 0 {
				b := data[0]
				data = data[1:]
				length += int(b)
				if b != 0xff {
					break
				}
			}
			if length > len(data) {
				log.Debug("MP4A-LATM: subframe of %d bytes, %d left", length, len(data))
				return
			}
			if length > 0 {
				d.out.write(&media.Buffer{
					Data:  append([]byte(nil), data[:length]...),
					PTS:   pts,
					DTS:   pts,
					Flags: media.FlagAUEnd | media.FlagRandomAccess,
				})
			}
			data = data[length:]
			pts += d.frameLength
		}
	}
}

func (d *latmDepacketizer) Close() {
	d.element = nil
	d.pending = false
}
