//////////////////////////////////////////////////////////////////////////////
//
// Elementary stream identity and output sinks
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

// Package media defines the access units produced by RTP depacketizers and the
// sinks that consume them.
package media

import (
	"fmt"

	"github.com/lanikai/rtprx/internal/logging"
)

var log = logging.DefaultLogger.WithTag("media")

// Codec identifies the format of an elementary stream.
type Codec string

const (
	H264        Codec = "h264"
	H265        Codec = "h265"
	MPEG4Video  Codec = "mp4v"
	MPEG4Audio  Codec = "mp4a" // AAC and other MPEG-4 audio object types
	MPEGAudio   Codec = "mpga" // MPEG-1/2 audio layers I-III
	MPEGVideo   Codec = "mpgv" // MPEG-1/2 video
	MP2T        Codec = "mp2t"
	Opus        Codec = "opus"
	PCMU        Codec = "ulaw"
	PCMA        Codec = "alaw"
	G722        Codec = "g722"
	G723        Codec = "g723"
	G726        Codec = "g726"
	G728        Codec = "g728"
	G729        Codec = "g729"
	GSM         Codec = "gsm"
	DVI4        Codec = "dvi4"
	LinearPCM   Codec = "lpcm" // big-endian signed samples (L8 is unsigned)
	RawVideo    Codec = "rawv"
	Unspecified Codec = ""
)

// Extension returns a conventional file name extension for the codec.
func (c Codec) Extension() string {
	switch c {
	case H264:
		return "h264"
	case H265:
		return "h265"
	case MPEG4Video:
		return "m4v"
	case MPEG4Audio:
		return "aac"
	case MPEGAudio:
		return "mp3"
	case MPEGVideo:
		return "m2v"
	case MP2T:
		return "ts"
	case Opus:
		return "opus"
	case PCMU:
		return "ul"
	case PCMA:
		return "al"
	case Unspecified:
		return "bin"
	}
	return string(c)
}

// StreamInfo describes the elementary stream that one RTP source carries
// under one payload type.
type StreamInfo struct {
	SSRC        uint32
	PayloadType uint8
	Codec       Codec

	// RTP clock rate, in Hz.
	ClockRate int

	// Audio layout; zero when not applicable. Raw video also reports its
	// sample depth here.
	Channels      int
	BitsPerSample int

	// Video geometry, when known.
	Width, Height int

	// Out-of-band decoder configuration, e.g. an AudioSpecificConfig for AAC
	// or the VOL header for MPEG-4 video.
	Config []byte
}

func (info StreamInfo) String() string {
	s := fmt.Sprintf("ssrc=%08x pt=%d %s/%d", info.SSRC, info.PayloadType, info.Codec, info.ClockRate)
	if info.Channels > 0 {
		s += fmt.Sprintf("/%d", info.Channels)
	}
	return s
}
