// Package mpa parses MPEG-1/2 audio frame headers (ISO/IEC 11172-3 and
// 13818-3, including the unofficial MPEG-2.5 extension).
package mpa

import (
	"errors"
)

// HeaderLength is the size of a frame header.
const HeaderLength = 4

var (
	ErrSync     = errors.New("mpa: no frame sync")
	ErrReserved = errors.New("mpa: reserved header value")
)

type Version uint8

const (
	MPEG1 Version = iota
	MPEG2
	MPEG25
)

// Header is a decoded MPEG audio frame header.
type Header struct {
	Version    Version
	Layer      int // 1, 2 or 3
	Protected  bool
	Bitrate    int // bits per second; 0 for free format
	SampleRate int
	Padding    bool
	Channels   int

	// Samples per channel in one frame.
	Samples int
}

var bitrates = [2][3][15]int{
	{ // MPEG-1
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384},
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
	},
	{ // MPEG-2 and 2.5
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	},
}

var sampleRates = [3][3]int{
	{44100, 48000, 32000},
	{22050, 24000, 16000},
	{11025, 12000, 8000},
}

// Parse decodes the first four bytes of b.
func Parse(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderLength {
		return h, ErrSync
	}
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	if v>>21 != 0x7ff {
		return h, ErrSync
	}

	switch v >> 19 & 3 {
	case 0:
		h.Version = MPEG25
	case 2:
		h.Version = MPEG2
	case 3:
		h.Version = MPEG1
	default:
		return h, ErrReserved
	}

	layer := int(v >> 17 & 3)
	if layer == 0 {
		return h, ErrReserved
	}
	h.Layer = 4 - layer
	h.Protected = v>>16&1 == 0

	bitrateIndex := v >> 12 & 0xf
	if bitrateIndex == 0xf {
		return h, ErrReserved
	}
	table := 0
	if h.Version != MPEG1 {
		table = 1
	}
	h.Bitrate = bitrates[table][h.Layer-1][bitrateIndex] * 1000

	rateIndex := v >> 10 & 3
	if rateIndex == 3 {
		return h, ErrReserved
	}
	h.SampleRate = sampleRates[h.Version][rateIndex]
	h.Padding = v>>9&1 == 1

	h.Channels = 2
	if v>>6&3 == 3 {
		h.Channels = 1
	}

	switch {
	case h.Layer == 1:
		h.Samples = 384
	case h.Layer == 3 && h.Version != MPEG1:
		h.Samples = 576
	default:
		h.Samples = 1152
	}
	return h, nil
}

// FreeFormat reports whether the frame size must be found by scanning for
// the next header.
func (h Header) FreeFormat() bool {
	return h.Bitrate == 0
}

// FrameSize returns the length of the frame in bytes, header included, or 0
// for free format.
func (h Header) FrameSize() int {
	if h.Bitrate == 0 {
		return 0
	}
	padding := 0
	if h.Padding {
		padding = 1
	}
	if h.Layer == 1 {
		return (12*h.Bitrate/h.SampleRate + padding) * 4
	}
	return h.Samples/8*h.Bitrate/h.SampleRate + padding
}

// FreeFormatBitrate derives the bitrate of a free-format stream from the
// measured distance between two consecutive headers.
func (h Header) FreeFormatBitrate(frameSize int) int {
	padding := 0
	if h.Padding {
		padding = 1
	}
	if h.Layer == 1 {
		return (frameSize/4 - padding) * h.SampleRate / 12
	}
	return (frameSize - padding) * h.SampleRate * 8 / h.Samples
}
