package rtp

import (
	"time"

	"github.com/lanikai/rtprx/internal/media"
	"github.com/lanikai/rtprx/internal/srtp"
)

type SessionOptions struct {
	// Largest forward jump of sequence numbers accepted without
	// resynchronization.
	MaxDropout int

	// Largest backward jump of sequence numbers accepted as reordering.
	MaxMisorder int

	// Maximum number of simultaneous sources (SSRCs).
	MaxSources int

	// Sources that stay silent for longer are destroyed.
	SourceTimeout time.Duration

	// Opens a sink each time a source binds a payload type. Defaults to
	// media.Discard.
	SinkFactory media.SinkFactory

	// Receive-side SRTP context. Nil for plain RTP.
	SRTP *srtp.Context

	// Socket receive buffer size for ServeDatagram. 0 keeps the OS default.
	ReceiveBufferSize int

	// Maximum number of datagrams read per receive pass.
	BatchSize int
}

const (
	defaultMaxDropout    = 3000
	defaultMaxMisorder   = 100
	defaultMaxSources    = 1
	defaultSourceTimeout = 5 * time.Second
	defaultBatchSize     = 16

	// Minimum reordering delay, on top of the jitter estimate.
	minReorderDelay = 25 * time.Millisecond
)

func (opts *SessionOptions) setDefaults() {
	if opts.MaxDropout <= 0 {
		opts.MaxDropout = defaultMaxDropout
	}
	if opts.MaxMisorder <= 0 {
		opts.MaxMisorder = defaultMaxMisorder
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = defaultMaxSources
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = defaultSourceTimeout
	}
	if opts.SinkFactory == nil {
		opts.SinkFactory = media.Discard
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
}
