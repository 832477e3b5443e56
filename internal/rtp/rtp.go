// Package rtp receives RTP media streams: it orders packets per source,
// absorbs network jitter, and turns payloads into elementary-stream access
// units for a media.Sink.
//
// See RFC 3550 (RTP) and RFC 3551 (audio/video profile).
package rtp

import (
	"time"

	"github.com/lanikai/rtprx/internal/logging"
)

var log = logging.DefaultLogger.WithTag("rtp")

const (
	// RFC 3550 defines RTP version 2.
	rtpVersion = 2

	// Size of the fixed RTP header.
	rtpHeaderSize = 12
)

// Packet is the part of an RTP packet that a depacketizer sees: the payload
// with the CSRC list, header extension and padding removed.
type Packet struct {
	Sequence  uint16
	Timestamp uint32
	Marker    bool

	// Presentation time derived from Timestamp, relative to the first packet
	// delivered for the source.
	PTS time.Duration

	// Set when packets were lost (or the source resynchronized) between the
	// previous packet and this one.
	Discontinuity bool

	Payload []byte
}

// Depacketizer reassembles access units from the payloads of one source. An
// instance is bound to a single payload type; it is created when a source
// starts using that type and closed when the source switches away or expires.
type Depacketizer interface {
	Decode(p *Packet)
	Close()
}

// Convert an RTP timestamp difference into a duration.
func ticksToDuration(ticks int64, clockRate int) time.Duration {
	return time.Duration(ticks * int64(time.Second) / int64(clockRate))
}
