package media

import (
	"errors"
)

// Sink consumes the access units of one elementary stream. WriteBuffer may
// block; the caller does not retain buf after the call returns unless the
// sink copies it.
type Sink interface {
	WriteBuffer(buf *Buffer) error
	Close() error
}

// SinkFactory opens a sink for a newly bound stream. It is called from the
// RTP session goroutine whenever a source starts using a payload type.
type SinkFactory func(info StreamInfo) (Sink, error)

var errNoSinks = errors.New("no sink could be opened")

type discardSink struct{}

func (discardSink) WriteBuffer(*Buffer) error { return nil }
func (discardSink) Close() error              { return nil }

// Discard is a SinkFactory whose sinks drop everything.
func Discard(StreamInfo) (Sink, error) {
	return discardSink{}, nil
}

// Tee combines sink factories: each stream is written to a sink from every
// factory. Factories that fail are logged and skipped, unless all of them do.
func Tee(factories ...SinkFactory) SinkFactory {
	return func(info StreamInfo) (Sink, error) {
		var sinks multiSink
		for _, open := range factories {
			s, err := open(info)
			if err != nil {
				log.Warn("Cannot open sink for %v: %v", info, err)
				continue
			}
			sinks = append(sinks, s)
		}
		if len(sinks) == 0 {
			return nil, errNoSinks
		}
		return sinks, nil
	}
}

type multiSink []Sink

func (m multiSink) WriteBuffer(buf *Buffer) error {
	var first error
	for _, s := range m {
		if err := s.WriteBuffer(buf); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multiSink) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Collector is a SinkFactory that keeps every buffer in memory, grouped by
// stream. It is meant for tests and offline tools.
type Collector struct {
	Streams []*CollectedStream
}

// CollectedStream is the output of one sink opened by a Collector.
type CollectedStream struct {
	Info    StreamInfo
	Buffers []Buffer
	Closed  bool
}

func (c *Collector) Open(info StreamInfo) (Sink, error) {
	s := &CollectedStream{Info: info}
	c.Streams = append(c.Streams, s)
	return s, nil
}

// Buffers returns the buffers of all streams, in stream order.
func (c *Collector) Buffers() []Buffer {
	var all []Buffer
	for _, s := range c.Streams {
		all = append(all, s.Buffers...)
	}
	return all
}

func (s *CollectedStream) WriteBuffer(buf *Buffer) error {
	b := *buf
	b.Data = append([]byte(nil), buf.Data...)
	s.Buffers = append(s.Buffers, b)
	return nil
}

func (s *CollectedStream) Close() error {
	s.Closed = true
	return nil
}
