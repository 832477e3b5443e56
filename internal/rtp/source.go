package rtp

import (
	"time"

	"github.com/lanikai/rtprx/internal/media"
)

// A packet waiting in the reorder queue of a source.
type queuedPacket struct {
	seq       uint16
	timestamp uint32
	pt        uint8
	marker    bool
	arrival   time.Time
	payload   []byte
}

// source is the receive state of one SSRC.
type source struct {
	ssrc uint32

	// Sequence tracking (RFC 3550 appendix A.1). maxSeq is the next expected
	// sequence number, badSeq the one that would confirm a resynchronization
	// and lastSeq the last one delivered.
	maxSeq  uint16
	badSeq  uint16
	lastSeq uint16

	// Interarrival jitter in RTP clock ticks (RFC 3550 appendix A.8).
	jitter int64

	// Arrival time and RTP timestamp of the latest packet.
	lastRx time.Time
	lastTS uint32

	// Packets not yet delivered, in sequence order.
	queue []*queuedPacket

	// Presentation time of the last delivered RTP timestamp.
	refSet bool
	refRTP uint32
	refPTS time.Duration

	// Payload type in use, with its depacketizer and sink.
	pt  *PayloadType
	dec Depacketizer
	out *output

	// The next delivered packet follows a gap.
	discontinuity bool
}

func newSource(ssrc uint32, seq uint16, timestamp uint32, now time.Time) *source {
	return &source{
		ssrc:    ssrc,
		maxSeq:  seq,
		badSeq:  seq,
		lastSeq: seq - 1,
		lastRx:  now,
		lastTS:  timestamp,
	}
}

func (src *source) updateJitter(now time.Time, timestamp uint32, clockRate int) {
	// Whole seconds first, so long silences do not overflow.
	since := now.Sub(src.lastRx)
	elapsed := int64(since/time.Second)*int64(clockRate) +
		int64(since%time.Second)*int64(clockRate)/int64(time.Second)
	d := int64(int32(uint32(elapsed) - (timestamp - src.lastTS)))
	if d < 0 {
		d = -d
	}
	src.jitter += (d - src.jitter + 8) >> 4
}

// Insert a packet in sequence order. Returns false for duplicates.
func (src *source) insert(qp *queuedPacket) bool {
	i := len(src.queue)
	for ; i > 0; i-- {
		d := seqDelta(qp.seq, src.queue[i-1].seq)
		if d == 0 {
			return false
		}
		if d > 0 {
			break
		}
	}
	src.queue = append(src.queue, nil)
	copy(src.queue[i+1:], src.queue[i:])
	src.queue[i] = qp
	return true
}

func (src *source) pop() *queuedPacket {
	qp := src.queue[0]
	src.queue[0] = nil
	src.queue = src.queue[1:]
	return qp
}

// Convert an RTP timestamp to a presentation time, relative to the previous
// delivered packet. RTP timestamps are only compared modulo 2^32, so streams
// longer than the wraparound period keep a continuous clock.
func (src *source) presentationTime(timestamp uint32, clockRate int) time.Duration {
	if !src.refSet {
		src.refSet = true
		src.refRTP = timestamp
		src.refPTS = 0
	}
	pts := src.refPTS + ticksToDuration(int64(int32(timestamp-src.refRTP)), clockRate)
	src.refRTP = timestamp
	src.refPTS = pts
	return pts
}

// Open a sink and depacketizer for a payload type.
func (src *source) bind(pt *PayloadType, open media.SinkFactory) error {
	src.pt = pt

	info := pt.format.info
	info.SSRC = src.ssrc
	info.PayloadType = pt.Number
	info.ClockRate = pt.ClockRate
	sink, err := open(info)
	if err != nil {
		return err
	}
	log.Info("Source %08x: receiving %v", src.ssrc, info)
	src.out = &output{info: info, sink: sink}
	src.dec = pt.format.open(src.out)
	return nil
}

// Close the depacketizer and sink of the current payload type.
func (src *source) unbind() {
	if src.dec != nil {
		src.dec.Close()
		src.dec = nil
	}
	if src.out != nil {
		if err := src.out.sink.Close(); err != nil {
			log.Warn("Source %08x: close sink: %v", src.ssrc, err)
		}
		src.out = nil
	}
	src.pt = nil
}

func (src *source) close() {
	src.unbind()
	src.queue = nil
}
