package rtp

import (
	"time"

	pionrtp "github.com/pion/rtp"
	errors "golang.org/x/xerrors"
)

// Session receives the RTP packets of one media description. It is not safe
// for concurrent use: a single goroutine (normally ServeDatagram or
// ServeStream) owns it and everything it creates, sinks aside.
type Session struct {
	SessionOptions

	// Negotiated payload types, indexed by number.
	payloadTypes [128]*PayloadType

	// Active sources, in order of creation.
	sources []*source

	stats Stats
}

// Stats counts what happened to received packets.
type Stats struct {
	Received      uint64 // RTP packets given to Enqueue
	Delivered     uint64 // RTP packets passed to a depacketizer
	Malformed     uint64 // bad header, padding or extension
	Duplicate     uint64
	Discarded     uint64 // out-of-window sequence numbers, flushed on resync
	Lost          uint64 // sequence numbers never received
	Late          uint64 // arrived after their successors were delivered
	UnknownType   uint64 // payload type not negotiated
	TooManySource uint64 // dropped because MaxSources was reached
	SRTPRejected  uint64 // failed authentication or replay check
	RTCP          uint64 // RTCP packets discarded
	Expired       uint64 // sources destroyed after SourceTimeout
}

func NewSession(opts SessionOptions) (*Session, error) {
	opts.setDefaults()
	if opts.MaxDropout >= 0x8000 || opts.MaxMisorder >= 0x8000 {
		return nil, errors.Errorf("sequence tolerances must be below 32768 (dropout %d, misorder %d)",
			opts.MaxDropout, opts.MaxMisorder)
	}
	return &Session{SessionOptions: opts}, nil
}

// AddPayloadType registers a payload type. All payload types must be added
// before the first packet is received.
func (s *Session) AddPayloadType(pt *PayloadType) error {
	if len(s.sources) > 0 {
		return errors.Errorf("add payload type %v: %w", pt, errSessionStarted)
	}
	if pt.ClockRate <= 0 {
		return errors.Errorf("add payload type %v: %w", pt, errZeroClockRate)
	}
	if s.payloadTypes[pt.Number] != nil {
		return errors.Errorf("add payload type %v: %w", pt, errDuplicateType)
	}
	s.payloadTypes[pt.Number] = pt
	return nil
}

// PayloadType returns the registered payload type with the given number, or
// nil.
func (s *Session) PayloadType(number uint8) *PayloadType {
	return s.payloadTypes[number&0x7f]
}

// Stats returns a snapshot of the packet counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// Sources returns the SSRCs of the active sources.
func (s *Session) Sources() []uint32 {
	ssrcs := make([]uint32, len(s.sources))
	for i, src := range s.sources {
		ssrcs[i] = src.ssrc
	}
	return ssrcs
}

// Close destroys every source, closing their depacketizers and sinks.
// Buffered packets are discarded.
func (s *Session) Close() error {
	for _, src := range s.sources {
		src.close()
	}
	s.sources = nil
	return nil
}

// Enqueue accepts one plain RTP packet received at time now. The packet is
// copied. Malformed and unwanted packets are dropped silently; the only
// trace they leave is in Stats and the debug log.
func (s *Session) Enqueue(buf []byte, now time.Time) {
	s.stats.Received++

	if len(buf) < rtpHeaderSize || buf[0]>>6 != rtpVersion {
		log.Trace(3, "Dropping malformed packet (%d bytes)", len(buf))
		s.stats.Malformed++
		return
	}
	var p pionrtp.Packet
	if err := p.Unmarshal(append([]byte(nil), buf...)); err != nil {
		log.Trace(3, "Dropping malformed packet: %v", err)
		s.stats.Malformed++
		return
	}
	if p.Padding && buf[len(buf)-1] == 0 {
		log.Trace(3, "Dropping packet with zero padding length")
		s.stats.Malformed++
		return
	}

	src := s.findSource(p.SSRC, now)
	if src == nil {
		if len(s.sources) >= s.MaxSources {
			log.Warn("Too many RTP sources, dropping packet from %08x", p.SSRC)
			s.stats.TooManySource++
			return
		}
		src = newSource(p.SSRC, p.SequenceNumber, p.Timestamp, now)
		s.sources = append(s.sources, src)
		log.Debug("New source %08x, sequence %d", src.ssrc, p.SequenceNumber)
	} else if pt := s.payloadTypes[p.PayloadType]; pt != nil {
		src.updateJitter(now, p.Timestamp, pt.ClockRate)
	}
	src.lastRx = now
	src.lastTS = p.Timestamp

	seq := p.SequenceNumber
	delta := int(seq - src.maxSeq)
	switch {
	case delta <= s.MaxDropout:
		// In order, or a tolerable gap
		src.maxSeq = seq + 1
	case delta >= 0x10000-s.MaxMisorder:
		// Tolerable reordering
	case seq == src.badSeq:
		log.Warn("Source %08x: sequence discontinuity (got %d, expected %d)", src.ssrc, seq, src.maxSeq)
		s.stats.Discarded += uint64(len(src.queue))
		src.queue = nil
		src.maxSeq = seq + 1
		src.badSeq = seq + 1
		src.lastSeq = seq - 1
		src.discontinuity = true
	default:
		log.Debug("Source %08x: dropping packet %d (expected %d)", src.ssrc, seq, src.maxSeq)
		src.badSeq = seq + 1
		s.stats.Discarded++
		return
	}

	qp := &queuedPacket{
		seq:       seq,
		timestamp: p.Timestamp,
		pt:        p.PayloadType,
		marker:    p.Marker,
		arrival:   now,
		payload:   p.Payload,
	}
	if !src.insert(qp) {
		log.Trace(2, "Source %08x: duplicate packet %d", src.ssrc, seq)
		s.stats.Duplicate++
	}
}

// Find the source with the given SSRC, destroying idle sources on the way.
func (s *Session) findSource(ssrc uint32, now time.Time) *source {
	var found *source
	kept := s.sources[:0]
	for _, src := range s.sources {
		if src.ssrc == ssrc {
			found = src
		} else if now.Sub(src.lastRx) > s.SourceTimeout {
			log.Info("Source %08x timed out", src.ssrc)
			src.close()
			s.stats.Expired++
			continue
		}
		kept = append(kept, src)
	}
	for i := len(kept); i < len(s.sources); i++ {
		s.sources[i] = nil
	}
	s.sources = kept
	return found
}

// Dequeue delivers every packet that is due at time now: packets that are
// next in sequence, and packets that have waited out the reordering delay.
// If packets remain buffered, pending is true and deadline is the earliest
// time at which one of them will be due.
func (s *Session) Dequeue(now time.Time) (deadline time.Time, pending bool) {
	for _, src := range s.sources {
		for len(src.queue) > 0 {
			head := src.queue[0]
			if seqDelta(head.seq, src.lastSeq+1) > 0 {
				due := head.arrival.Add(s.reorderDelay(src, head))
				if now.Before(due) {
					if !pending || due.Before(deadline) {
						deadline = due
					}
					pending = true
					break
				}
			}
			src.pop()
			s.decode(src, head)
		}
	}
	return deadline, pending
}

// DequeueAll delivers every buffered packet regardless of gaps.
func (s *Session) DequeueAll() {
	for _, src := range s.sources {
		for len(src.queue) > 0 {
			s.decode(src, src.pop())
		}
	}
}

// How long to wait for missing packets before skipping them: three times the
// interarrival jitter, but at least minReorderDelay.
func (s *Session) reorderDelay(src *source, head *queuedPacket) time.Duration {
	delay := minReorderDelay
	if pt := s.payloadTypes[head.pt]; pt != nil {
		if d := ticksToDuration(3*src.jitter, pt.ClockRate); d > delay {
			delay = d
		}
	}
	return delay
}

// Hand one packet to the depacketizer of its payload type.
func (s *Session) decode(src *source, qp *queuedPacket) {
	gap := qp.seq - (src.lastSeq + 1)
	if gap >= 0x8000 {
		log.Debug("Source %08x: packet %d arrived too late", src.ssrc, qp.seq)
		s.stats.Late++
		return
	}
	if gap != 0 {
		log.Warn("Source %08x: %d packet(s) lost before %d", src.ssrc, gap, qp.seq)
		s.stats.Lost += uint64(gap)
		src.discontinuity = true
	}
	src.lastSeq = qp.seq

	pt := s.payloadTypes[qp.pt]
	if pt == nil {
		log.Debug("Source %08x: unknown payload type %d", src.ssrc, qp.pt)
		s.stats.UnknownType++
		return
	}
	if src.pt != pt {
		src.unbind()
		if err := src.bind(pt, s.SinkFactory); err != nil {
			log.Warn("Source %08x: cannot open sink for %v: %v", src.ssrc, pt, err)
		}
	}
	if src.dec == nil {
		return
	}

	p := Packet{
		Sequence:  qp.seq,
		Timestamp: qp.timestamp,
		Marker:    qp.marker,
		PTS:       src.presentationTime(qp.timestamp, pt.ClockRate),
		Payload:   qp.payload,
	}
	if src.discontinuity {
		p.Discontinuity = true
		src.out.discontinuity = true
		src.discontinuity = false
	}
	s.stats.Delivered++
	src.dec.Decode(&p)
}
