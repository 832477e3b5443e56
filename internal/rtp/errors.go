package rtp

import (
	"github.com/pkg/errors"
)

var (
	// A payload format is recognized but cannot be handled with the given
	// parameters, or not at all.
	errNotSupported = errors.New("not supported")

	// No payload type of a media description could be used.
	ErrNoPayloadTypes = errors.New("no usable payload type (unsupported, SDP required)")

	errZeroClockRate  = errors.New("zero clock rate")
	errSessionStarted = errors.New("payload types are fixed once a source exists")
	errDuplicateType  = errors.New("duplicate payload type")
)
