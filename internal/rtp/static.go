package rtp

// Static payload types of the RTP/AVP profile.
// See https://tools.ietf.org/html/rfc3551#section-6
type staticPayloadType struct {
	name      string
	clockRate int
	channels  int
}

var staticPayloadTypes = [35]staticPayloadType{
	0:  {"PCMU", 8000, 1},
	3:  {"GSM", 8000, 1},
	4:  {"G723", 8000, 1},
	5:  {"DVI4", 8000, 1},
	6:  {"DVI4", 16000, 1},
	7:  {"LPC", 8000, 1},
	8:  {"PCMA", 8000, 1},
	9:  {"G722", 8000, 1},
	10: {"L16", 44100, 2},
	11: {"L16", 44100, 1},
	12: {"QCELP", 8000, 1},
	13: {"CN", 8000, 1},
	14: {"MPA", 90000, 0},
	15: {"G728", 8000, 1},
	16: {"DVI4", 11025, 1},
	17: {"DVI4", 22050, 1},
	18: {"G729", 8000, 1},
	25: {"CelB", 90000, 0},
	26: {"JPEG", 90000, 0},
	28: {"nv", 90000, 0},
	31: {"H261", 90000, 0},
	32: {"MPV", 90000, 0},
	33: {"MP2T", 90000, 0},
	34: {"H263", 90000, 0},
}

// StaticPayloadType returns the RFC 3551 default for a payload type number.
// It fails for unassigned numbers and for encodings without a depacketizer.
func StaticPayloadType(number uint8) (*PayloadType, error) {
	if int(number) >= len(staticPayloadTypes) || staticPayloadTypes[number].name == "" {
		return nil, errNotSupported
	}
	s := staticPayloadTypes[number]
	return NewPayloadType(number, s.name, s.clockRate, s.channels, "")
}
