package mpa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   Header
		size   int
	}{
		{
			"mpeg1 layer3 128k 44.1k stereo",
			[]byte{0xff, 0xfb, 0x90, 0x00},
			Header{Version: MPEG1, Layer: 3, Bitrate: 128000, SampleRate: 44100, Channels: 2, Samples: 1152},
			417,
		},
		{
			"mpeg1 layer2 192k 48k mono padded",
			[]byte{0xff, 0xfd, 0xa6, 0xc0},
			Header{Version: MPEG1, Layer: 2, Bitrate: 192000, SampleRate: 48000, Padding: true, Channels: 1, Samples: 1152},
			577,
		},
		{
			"mpeg2 layer3 64k 22.05k",
			[]byte{0xff, 0xf3, 0x80, 0x00},
			Header{Version: MPEG2, Layer: 3, Bitrate: 64000, SampleRate: 22050, Channels: 2, Samples: 576},
			208,
		},
		{
			"mpeg1 layer1 384k 32k",
			[]byte{0xff, 0xff, 0xc8, 0x00},
			Header{Version: MPEG1, Layer: 1, Bitrate: 384000, SampleRate: 32000, Channels: 2, Samples: 384},
			576,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Parse(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h)
			assert.Equal(t, tt.size, h.FrameSize())
		})
	}
}

func TestParseFreeFormat(t *testing.T) {
	h, err := Parse([]byte{0xff, 0xfb, 0x00, 0x00})
	require.NoError(t, err)
	assert.True(t, h.FreeFormat())
	assert.Equal(t, 0, h.FrameSize())

	// 417-byte frames at 44.1 kHz are 128 kb/s, give or take rounding.
	assert.InDelta(t, 128000, h.FreeFormatBitrate(417), 500)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte{0xff, 0xfb})
	assert.Equal(t, ErrSync, err)
	_, err = Parse([]byte{0x00, 0x00, 0x00, 0x00})
	assert.Equal(t, ErrSync, err)
	_, err = Parse([]byte{0xff, 0xeb, 0x90, 0x00}) // reserved version
	assert.Equal(t, ErrReserved, err)
	_, err = Parse([]byte{0xff, 0xf9, 0x90, 0x00}) // reserved layer
	assert.Equal(t, ErrReserved, err)
	_, err = Parse([]byte{0xff, 0xfb, 0xf0, 0x00}) // bad bitrate
	assert.Equal(t, ErrReserved, err)
	_, err = Parse([]byte{0xff, 0xfb, 0x9c, 0x00}) // bad sample rate
	assert.Equal(t, ErrReserved, err)
}
