package sdp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PayloadCandidate describes one payload type listed on a media line, with
// whatever its rtpmap and fmtp attributes say about it.
type PayloadCandidate struct {
	Number uint8

	// From a=rtpmap:<number> <name>/<rate>[/<channels>]. Name is empty if
	// there is no rtpmap for this number.
	Name      string
	ClockRate int
	Channels  int // 0 if unspecified

	// From a=fmtp:<number> <parameters>.
	Parameters string

	// Set if the format number or its rtpmap could not be parsed.
	Err error
}

var errBadPayloadNumber = errors.New("payload type number outside 0-127")

// PayloadCandidates lists the payload types of an RTP media description, in
// order of preference.
func (m *Media) PayloadCandidates() []PayloadCandidate {
	rtpmaps := make(map[uint8]string)
	for _, v := range m.GetAttrs("rtpmap") {
		if n, rest, ok := splitNumber(v); ok {
			if _, dup := rtpmaps[n]; !dup {
				rtpmaps[n] = rest
			}
		}
	}
	fmtps := make(map[uint8]string)
	for _, v := range m.GetAttrs("fmtp") {
		if n, rest, ok := splitNumber(v); ok {
			if _, dup := fmtps[n]; !dup {
				fmtps[n] = rest
			}
		}
	}

	var candidates []PayloadCandidate
	for _, f := range m.Format {
		n, err := strconv.ParseUint(f, 10, 8)
		if err != nil || n > 127 {
			candidates = append(candidates, PayloadCandidate{Err: &sdpParseError{"payload format", f, errBadPayloadNumber}})
			continue
		}
		c := PayloadCandidate{Number: uint8(n), Parameters: fmtps[uint8(n)]}
		if rtpmap, ok := rtpmaps[uint8(n)]; ok {
			c.Name, c.ClockRate, c.Channels, c.Err = parseRTPMap(rtpmap)
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// Split "<number> <rest>" as found in rtpmap and fmtp attribute values.
func splitNumber(v string) (n uint8, rest string, ok bool) {
	f := strings.SplitN(strings.TrimSpace(v), " ", 2)
	i, err := strconv.ParseUint(f[0], 10, 8)
	if err != nil || i > 127 {
		return 0, "", false
	}
	if len(f) == 2 {
		rest = strings.TrimSpace(f[1])
	}
	return uint8(i), rest, true
}

// Parse "<encoding name>/<clock rate>[/<encoding parameters>]".
func parseRTPMap(v string) (name string, rate, channels int, err error) {
	f := strings.Split(v, "/")
	if len(f) < 2 || len(f) > 3 || f[0] == "" {
		return "", 0, 0, &sdpParseError{"rtpmap", v, nil}
	}
	name = f[0]
	if rate, err = strconv.Atoi(f[1]); err != nil || rate < 0 {
		return "", 0, 0, &sdpParseError{"rtpmap", v, err}
	}
	if len(f) == 3 {
		if channels, err = strconv.Atoi(f[2]); err != nil || channels <= 0 {
			return "", 0, 0, &sdpParseError{"rtpmap", v, err}
		}
	}
	return name, rate, channels, nil
}

func (c PayloadCandidate) String() string {
	if c.Name == "" {
		return strconv.Itoa(int(c.Number))
	}
	s := fmt.Sprintf("%d %s/%d", c.Number, c.Name, c.ClockRate)
	if c.Channels > 0 {
		s += "/" + strconv.Itoa(c.Channels)
	}
	return s
}
