package rtp

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/rtprx/internal/media"
)

const aacHBR = "streamtype=5; profile-level-id=15; mode=AAC-hbr; config=1210; " +
	"SizeLength=13; IndexLength=3; IndexDeltaLength=3"

func TestMPEG4GenericAAC(t *testing.T) {
	d, s := openDepacketizer(t, "mpeg4-generic", 44100, 2, aacHBR)

	assert.Equal(t, media.MPEG4Audio, s.Info.Codec)
	assert.Equal(t, []byte{0x12, 0x10}, s.Info.Config)
	assert.Equal(t, 2, s.Info.Channels)

	// Two AUs of 100 and 50 bytes.
	payload := []byte{0x00, 0x20, 0x03, 0x20, 0x01, 0x90}
	payload = append(payload, bytes.Repeat([]byte{0xaa}, 100)...)
	payload = append(payload, bytes.Repeat([]byte{0xbb}, 50)...)
	d.Decode(&Packet{Payload: payload, Marker: true, PTS: time.Second})

	require.Len(t, s.Buffers, 2)
	assert.Equal(t, bytes.Repeat([]byte{0xaa}, 100), s.Buffers[0].Data)
	assert.Equal(t, bytes.Repeat([]byte{0xbb}, 50), s.Buffers[1].Data)
	assert.Equal(t, time.Second, s.Buffers[0].PTS)
	assert.Equal(t, time.Second, s.Buffers[0].DTS)
	assert.Equal(t, time.Second+ticksToDuration(1024, 44100), s.Buffers[1].PTS)
	for _, b := range s.Buffers {
		assert.Equal(t, media.FlagAUEnd|media.FlagRandomAccess, b.Flags)
	}
}

func TestMPEG4GenericFragmented(t *testing.T) {
	d, s := openDepacketizer(t, "mpeg4-generic", 44100, 2, aacHBR)

	// One AU of 300 bytes over three packets.
	header := []byte{0x00, 0x10, 0x09, 0x60}
	au := make([]byte, 300)
	for i := range au {
		au[i] = byte(i)
	}
	d.Decode(&Packet{Timestamp: 1000, Payload: append(append([]byte(nil), header...), au[:120]...)})
	d.Decode(&Packet{Timestamp: 1000, Payload: append(append([]byte(nil), header...), au[120:240]...)})
	assert.Empty(t, s.Buffers)
	d.Decode(&Packet{Timestamp: 1000, Payload: append(append([]byte(nil), header...), au[240:]...), Marker: true})

	require.Len(t, s.Buffers, 1)
	assert.Equal(t, au, s.Buffers[0].Data)
	assert.False(t, s.Buffers[0].Has(media.FlagCorrupted))
}

func TestMPEG4GenericFragmentLost(t *testing.T) {
	d, s := openDepacketizer(t, "mpeg4-generic", 44100, 2, aacHBR)

	header := []byte{0x00, 0x10, 0x09, 0x60}
	d.Decode(&Packet{Timestamp: 1000, Payload: append(append([]byte(nil), header...), make([]byte, 120)...)})
	d.Decode(&Packet{Timestamp: 2024, Discontinuity: true,
		Payload: []byte{0x00, 0x10, 0x00, 0x18, 1, 2, 3}, Marker: true})

	require.Len(t, s.Buffers, 2)
	assert.True(t, s.Buffers[0].Has(media.FlagCorrupted))
	assert.Len(t, s.Buffers[0].Data, 120)
	assert.Equal(t, []byte{1, 2, 3}, s.Buffers[1].Data)
	assert.False(t, s.Buffers[1].Has(media.FlagCorrupted))
}

func TestMPEG4GenericTruncatedHeaders(t *testing.T) {
	d, s := openDepacketizer(t, "mpeg4-generic", 44100, 2, aacHBR)

	d.Decode(&Packet{Payload: []byte{0x00, 0x40, 0x03}, Marker: true})
	// Second AU claims more data than present.
	d.Decode(&Packet{Payload: []byte{0x00, 0x20, 0x00, 0x10, 0x00, 0x50, 1, 2, 3}, Marker: true})

	require.Len(t, s.Buffers, 1)
	assert.Equal(t, []byte{1, 2}, s.Buffers[0].Data)
}

func TestMPEG4GenericConstantSize(t *testing.T) {
	d, s := openDepacketizer(t, "mpeg4-generic", 8000, 1,
		"streamtype=5; mode=CELP-cbr; constantSize=4; constantDuration=160")

	d.Decode(&Packet{Payload: []byte{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3}, Marker: true})

	require.Len(t, s.Buffers, 3)
	assert.Equal(t, []byte{3, 3, 3, 3}, s.Buffers[2].Data)
	assert.Equal(t, 40*time.Millisecond, s.Buffers[2].PTS)
}

func TestMPEG4GenericVideo(t *testing.T) {
	d, s := openDepacketizer(t, "mpeg4-generic", 90000, 0,
		"streamtype=4; mode=generic; config=000001B001")

	assert.Equal(t, media.MPEG4Video, s.Info.Codec)

	d.Decode(&Packet{Timestamp: 0, Payload: []byte{0, 0, 1, 0xb6, 0x10}})
	d.Decode(&Packet{Timestamp: 0, Payload: []byte{0x20}, Marker: true})

	require.Len(t, s.Buffers, 2)
	assert.Equal(t, []byte{0, 0, 1, 0xb0, 0x01}, s.Buffers[0].Data)
	assert.Equal(t, []byte{0, 0, 1, 0xb6, 0x10, 0x20}, s.Buffers[1].Data)
	assert.True(t, s.Buffers[1].Has(media.FlagAUEnd))
}

func TestMPEG4GenericParameters(t *testing.T) {
	_, err := NewPayloadType(96, "mpeg4-generic", 44100, 2, "mode=AAC-xyz")
	assert.Error(t, err)
	_, err = NewPayloadType(96, "mpeg4-generic", 44100, 2, "mode=AAC-hbr; config=zz")
	assert.Error(t, err)
	_, err = NewPayloadType(96, "mpeg4-generic", 44100, 2, "mode=AAC-hbr; SizeLength=40")
	assert.Error(t, err)
	_, err = NewPayloadType(96, "mpeg4-generic", 8000, 1, "mode=CELP-cbr")
	assert.Error(t, err)
	_, err = NewPayloadType(96, "mpeg4-generic", 90000, 0, "streamtype=3")
	assert.Error(t, err)
}

func TestMPEG4GenericSampleRateMismatch(t *testing.T) {
	// 48 kHz clock, 24 kHz AudioSpecificConfig (HE-AAC style signalling).
	d, s := openDepacketizer(t, "mpeg4-generic", 48000, 2,
		"streamtype=5; mode=AAC-hbr; config=1310; SizeLength=13; IndexLength=3; IndexDeltaLength=3")

	payload := []byte{0x00, 0x20, 0x00, 0x08, 0x00, 0x08, 1, 2}
	d.Decode(&Packet{Payload: payload, Marker: true})

	require.Len(t, s.Buffers, 2)
	assert.Equal(t, ticksToDuration(2048, 48000), s.Buffers[1].PTS)
}
