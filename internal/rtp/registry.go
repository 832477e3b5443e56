package rtp

import (
	"github.com/pkg/errors"

	"github.com/lanikai/rtprx/internal/sdp"
)

// PayloadTypesFromSDP builds the payload types of an RTP media description.
// Numbers without an rtpmap fall back to the static RFC 3551 assignments.
// Entries that are malformed, or whose encoding is not supported, are
// skipped and counted. Finding no usable entry at all is an error.
func PayloadTypesFromSDP(m *sdp.Media) (types []*PayloadType, skipped int, err error) {
	if !m.IsRTP() {
		return nil, 0, errors.Errorf("media %q: protocol %q is not RTP/AVP", m.Type, m.Proto)
	}

	for _, c := range m.PayloadCandidates() {
		if c.Err != nil {
			log.Debug("Skipping payload type: %v", c.Err)
			skipped++
			continue
		}

		var pt *PayloadType
		var err error
		if c.Name == "" {
			pt, err = StaticPayloadType(c.Number)
			if err == nil && c.Parameters != "" {
				// Static type refined by fmtp
				pt, err = NewPayloadType(pt.Number, pt.Name, pt.ClockRate, pt.Channels, c.Parameters)
			}
		} else {
			pt, err = NewPayloadType(c.Number, c.Name, c.ClockRate, c.Channels, c.Parameters)
		}
		if err != nil {
			log.Debug("Skipping payload type %v: %v", c, err)
			skipped++
			continue
		}
		log.Debug("Payload type %v: %s", pt, pt.Codec())
		types = append(types, pt)
	}

	if len(types) == 0 {
		return nil, skipped, errors.Wrapf(ErrNoPayloadTypes, "media %q", m.Type)
	}
	return types, skipped, nil
}
