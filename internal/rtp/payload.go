package rtp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/lanikai/rtprx/internal/media"
	"github.com/lanikai/rtprx/internal/sdp"
)

// PayloadType is a negotiated RTP payload type, bound to the depacketizer for
// its encoding.
type PayloadType struct {
	// Payload type number (<= 127).
	Number uint8

	// Encoding name as given by rtpmap (e.g. "H264"), or the RFC 3551 name of
	// a static payload type.
	Name string

	// Clock rate in Hz. Always positive.
	ClockRate int

	// Number of audio channels; 0 if not applicable.
	Channels int

	// Codec-specific format parameters, from the SDP fmtp attribute.
	Parameters sdp.FormatParameters

	format *payloadFormat
}

// payloadFormat is what a format parser makes of a payload type.
type payloadFormat struct {
	// Description of the elementary stream. SSRC, payload type and clock rate
	// are filled in per source.
	info media.StreamInfo

	// Create a depacketizer writing to out.
	open func(out *output) Depacketizer
}

// A function validating the parameters of a payload type.
type formatParser func(pt *PayloadType) (*payloadFormat, error)

var formats = map[string]formatParser{}

// Register the depacketizer for an encoding name (case-insensitive).
func registerFormat(name string, parse formatParser) {
	formats[strings.ToLower(name)] = parse
}

// Encodings lists the supported encoding names.
func Encodings() []string {
	var names []string
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPayloadType validates a payload type description. The fmtp string holds
// the "key=value; ..." format parameters. An encoding without a depacketizer
// yields an error wrapping errNotSupported.
func NewPayloadType(number uint8, name string, clockRate, channels int, fmtp string) (*PayloadType, error) {
	if number > 127 {
		return nil, errors.Errorf("payload type %d out of range", number)
	}
	if clockRate <= 0 {
		return nil, errors.Wrapf(errZeroClockRate, "payload type %d (%s)", number, name)
	}
	parse, found := formats[strings.ToLower(name)]
	if !found {
		return nil, errors.Wrapf(errNotSupported, "payload type %d: encoding %q", number, name)
	}

	pt := &PayloadType{
		Number:     number,
		Name:       name,
		ClockRate:  clockRate,
		Channels:   channels,
		Parameters: sdp.ParseFormatParameters(fmtp),
	}
	f, err := parse(pt)
	if err != nil {
		return nil, errors.Wrapf(err, "payload type %d (%s)", number, name)
	}
	pt.format = f
	return pt, nil
}

// Codec returns the elementary stream format of the payload type.
func (pt *PayloadType) Codec() media.Codec {
	return pt.format.info.Codec
}

func (pt *PayloadType) String() string {
	s := fmt.Sprintf("%d %s/%d", pt.Number, pt.Name, pt.ClockRate)
	if pt.Channels > 0 {
		s += fmt.Sprintf("/%d", pt.Channels)
	}
	return s
}

// output hands access units to the sink of one source.
type output struct {
	info media.StreamInfo
	sink media.Sink

	// Flag the next buffer as discontinuous.
	discontinuity bool

	failed bool
}

func (o *output) write(buf *media.Buffer) {
	if o.discontinuity {
		buf.Flags |= media.FlagDiscontinuity
		o.discontinuity = false
	}
	if err := o.sink.WriteBuffer(buf); err != nil {
		if !o.failed {
			log.Warn("%v: sink: %v", o.info, err)
		}
		o.failed = true
	}
}
