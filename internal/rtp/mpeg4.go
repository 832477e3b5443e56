package rtp

import (
	"bytes"
	"encoding/hex"
	"strings"
	"time"

	"github.com/nareix/joy4/codec/aacparser"
	"github.com/nareix/joy4/utils/bits"
	"github.com/pkg/errors"

	"github.com/lanikai/rtprx/internal/media"
	"github.com/lanikai/rtprx/internal/packet"
)

// RTP depacketization of MPEG-4 elementary streams (mpeg4-generic).
// See [RFC 3640](https://tools.ietf.org/html/rfc3640).

func init() {
	registerFormat("mpeg4-generic", parseMPEG4Generic)
}

// MPEG-4 systems stream types (ISO/IEC 14496-1 Table 6).
const (
	streamTypeVisual = 4
	streamTypeAudio  = 5
)

// AAC frames hold 1024 samples per channel.
const aacFrameSamples = 1024

// Widths of the AU header fields, in bits.
type auHeaderLayout struct {
	sizeLength             int
	indexLength            int
	indexDeltaLength       int
	ctsDeltaLength         int
	dtsDeltaLength         int
	randomAccessIndication bool
	streamStateIndication  int
	auxDataSizeLength      int
}

// Field widths preset by the mode parameter.
// See https://tools.ietf.org/html/rfc3640#section-3.3
var modeLayouts = map[string]auHeaderLayout{
	"generic":  {},
	"celp-cbr": {},
	"celp-vbr": {sizeLength: 6, indexLength: 2, indexDeltaLength: 2},
	"aac-lbr":  {sizeLength: 6, indexLength: 2, indexDeltaLength: 2},
	"aac-hbr":  {sizeLength: 13, indexLength: 3, indexDeltaLength: 3},
}

func (l *auHeaderLayout) present() bool {
	return l.sizeLength > 0 || l.indexLength > 0 || l.indexDeltaLength > 0 ||
		l.ctsDeltaLength > 0 || l.dtsDeltaLength > 0 ||
		l.randomAccessIndication || l.streamStateIndication > 0
}

func parseMPEG4Generic(pt *PayloadType) (*payloadFormat, error) {
	params := pt.Parameters
	mode := strings.ToLower(params.Get("mode"))
	if mode == "" {
		mode = "generic"
	}
	layout, found := modeLayouts[mode]
	if !found {
		return nil, errors.Wrapf(errNotSupported, "mode %q", mode)
	}

	var err error
	intParam := func(key string, v *int) {
		if err == nil {
			*v, err = params.Int(key, *v)
			if err == nil && (*v < 0 || *v > 32) {
				err = errors.Errorf("%s=%d out of range", key, *v)
			}
		}
	}
	intParam("sizelength", &layout.sizeLength)
	intParam("indexlength", &layout.indexLength)
	intParam("indexdeltalength", &layout.indexDeltaLength)
	intParam("ctsdeltalength", &layout.ctsDeltaLength)
	intParam("dtsdeltalength", &layout.dtsDeltaLength)
	intParam("streamstateindication", &layout.streamStateIndication)
	intParam("auxiliarydatasizelength", &layout.auxDataSizeLength)
	rai := 0
	intParam("randomaccessindication", &rai)
	layout.randomAccessIndication = rai != 0
	if err != nil {
		return nil, err
	}

	constantSize, err := params.Int("constantsize", 0)
	if err != nil {
		return nil, err
	}
	constantDuration, err := params.Int("constantduration", 0)
	if err != nil {
		return nil, err
	}
	if mode == "celp-cbr" && constantSize <= 0 {
		return nil, errors.New("CELP-cbr requires constantSize")
	}

	defaultType := 0
	if strings.HasPrefix(mode, "aac") || strings.HasPrefix(mode, "celp") {
		defaultType = streamTypeAudio
	}
	streamType, err := params.Int("streamtype", defaultType)
	if err != nil {
		return nil, err
	}

	config, err := hex.DecodeString(params.Get("config"))
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}

	info := media.StreamInfo{Channels: pt.Channels, Config: config}
	switch streamType {
	case streamTypeAudio:
		info.Codec = media.MPEG4Audio
		frameTicks := aacFrameSamples
		if len(config) > 0 {
			asc, err := aacparser.ParseMPEG4AudioConfigBytes(config)
			if err != nil {
				log.Warn("Invalid AudioSpecificConfig %x: %v", config, err)
			} else {
				if asc.ChannelConfig > 0 {
					info.Channels = int(asc.ChannelConfig)
				}
				if asc.SampleRate > 0 && asc.SampleRate != pt.ClockRate {
					frameTicks = aacFrameSamples * pt.ClockRate / asc.SampleRate
				}
			}
		}
		if constantDuration == 0 {
			constantDuration = frameTicks
		}
	case streamTypeVisual:
		info.Codec = media.MPEG4Video
	default:
		return nil, errors.Wrapf(errNotSupported, "streamType %d", streamType)
	}

	clockRate := pt.ClockRate
	return &payloadFormat{
		info: info,
		open: func(out *output) Depacketizer {
			d := &mpeg4Depacketizer{
				out:              out,
				layout:           layout,
				constantSize:     constantSize,
				constantDuration: constantDuration,
				clockRate:        clockRate,
				video:            streamType == streamTypeVisual,
			}
			if d.video && len(config) > 0 {
				d.header = config
			}
			return d
		},
	}, nil
}

// One parsed AU header.
type auHeader struct {
	size  int
	index int // AU-Index for the first header, AU-Index-delta otherwise
	cts   int // CTS-delta, if hasCTS
	dts   int // DTS-delta, if hasDTS
	rap   bool

	hasCTS, hasDTS bool
}

type mpeg4Depacketizer struct {
	out *output

	layout           auHeaderLayout
	constantSize     int
	constantDuration int
	clockRate        int
	video            bool

	// Written ahead of the first access unit (video configuration).
	header []byte

	dts dtsReorder

	// Access unit being reassembled from fragments.
	fragment     []byte
	fragmentSize int // expected size; 0 if unknown
	fragmentAU   auHeader
	fragmentPTS  time.Duration
	fragmentTS   uint32
	fragmenting  bool
}

func (d *mpeg4Depacketizer) Decode(p *Packet) {
	if p.Discontinuity {
		d.flushFragment()
		d.dts.reset()
	}

	data := p.Payload
	var headers []auHeader
	if d.layout.present() {
		r := packet.NewReader(data)
		length := int(r.ReadUint16())
		section := r.ReadSlice((length + 7) / 8)
		if r.Err() != nil {
			log.Debug("mpeg4-generic: truncated AU header section")
			return
		}
		var err error
		headers, err = d.parseHeaders(section, length)
		if err != nil {
			log.Debug("mpeg4-generic: %v", err)
			return
		}
		data = r.ReadRemaining()
	}
	if d.layout.auxDataSizeLength > 0 {
		br := &bits.Reader{R: bytes.NewReader(data)}
		auxSize, err := br.ReadBits64(d.layout.auxDataSizeLength)
		skip := (d.layout.auxDataSizeLength + int(auxSize) + 7) / 8
		if err != nil || skip > len(data) {
			log.Debug("mpeg4-generic: truncated auxiliary section")
			return
		}
		data = data[skip:]
	}

	if d.fragmenting && p.Timestamp != d.fragmentTS {
		d.flushFragment()
	}

	switch {
	case len(headers) == 0 && d.constantSize > 0:
		for i := 0; len(data) >= d.constantSize; i++ {
			h := auHeader{size: d.constantSize}
			d.emit(data[:d.constantSize], d.timestamps(p.PTS, i, h), h, p.Marker && len(data) == d.constantSize)
			data = data[d.constantSize:]
		}
	case len(headers) == 0:
		// One access unit, possibly spread over packets up to the marker.
		d.appendFragment(p, auHeader{}, 0, data)
	case len(headers) == 1 && headers[0].size > len(data):
		d.appendFragment(p, headers[0], headers[0].size, data)
	default:
		if d.fragmenting {
			d.flushFragment()
		}
		index := 0
		for i, h := range headers {
			if i == 0 {
				index = h.index
			} else {
				index += h.index + 1
			}
			size := h.size
			if d.layout.sizeLength == 0 {
				size = d.constantSize
			}
			if size == 0 && len(headers) == 1 {
				size = len(data)
			}
			if size <= 0 || size > len(data) {
				log.Debug("mpeg4-generic: AU %d of %d: size %d, %d bytes left", i, len(headers), size, len(data))
				return
			}
			d.emit(data[:size], d.timestamps(p.PTS, index, h), h, true)
			data = data[size:]
		}
	}
}

// Parse the AU header section, which is length bits long.
func (d *mpeg4Depacketizer) parseHeaders(section []byte, length int) ([]auHeader, error) {
	br := &bits.Reader{R: bytes.NewReader(section)}
	consumed := 0
	var err error
	read := func(n int) int {
		if n == 0 || err != nil {
			return 0
		}
		var v uint64
		v, err = br.ReadBits64(n)
		consumed += n
		return int(v)
	}

	l := &d.layout
	var headers []auHeader
	for consumed < length {
		var h auHeader
		h.size = read(l.sizeLength)
		if len(headers) == 0 {
			h.index = read(l.indexLength)
		} else {
			h.index = read(l.indexDeltaLength)
		}
		if l.ctsDeltaLength > 0 && read(1) == 1 {
			h.cts = signExtend(read(l.ctsDeltaLength), l.ctsDeltaLength)
			h.hasCTS = true
		}
		if l.dtsDeltaLength > 0 && read(1) == 1 {
			h.dts = signExtend(read(l.dtsDeltaLength), l.dtsDeltaLength)
			h.hasDTS = true
		}
		if l.randomAccessIndication {
			h.rap = read(1) == 1
		}
		read(l.streamStateIndication)

		if err != nil || consumed > length {
			return nil, errors.Errorf("AU header section of %d bits is inconsistent", length)
		}
		headers = append(headers, h)
	}
	return headers, nil
}

func signExtend(v, width int) int {
	if width > 0 && v&(1<<(width-1)) != 0 {
		v -= 1 << width
	}
	return v
}

type auTimes struct {
	pts, dts time.Duration
}

// Timestamps of the AU with the given index in a packet.
func (d *mpeg4Depacketizer) timestamps(base time.Duration, index int, h auHeader) auTimes {
	var t auTimes
	if h.hasCTS {
		t.pts = base + ticksToDuration(int64(h.cts), d.clockRate)
	} else {
		t.pts = base + ticksToDuration(int64(index*d.constantDuration), d.clockRate)
	}
	switch {
	case h.hasDTS:
		t.dts = t.pts - ticksToDuration(int64(h.dts), d.clockRate)
	case d.video:
		t.dts = d.dts.next(t.pts)
	default:
		t.dts = t.pts
	}
	return t
}

func (d *mpeg4Depacketizer) emit(data []byte, t auTimes, h auHeader, last bool) {
	if d.header != nil {
		d.out.write(&media.Buffer{Data: d.header, PTS: t.pts, DTS: t.dts, Flags: media.FlagRandomAccess})
		d.header = nil
	}
	flags := media.Flags(0)
	if last {
		flags |= media.FlagAUEnd
	}
	if h.rap || !d.video {
		flags |= media.FlagRandomAccess
	}
	d.out.write(&media.Buffer{
		Data:  append([]byte(nil), data...),
		PTS:   t.pts,
		DTS:   t.dts,
		Flags: flags,
	})
}

// Accumulate a fragment of an access unit of the given size (0 if unknown,
// in which case the marker bit ends it).
func (d *mpeg4Depacketizer) appendFragment(p *Packet, h auHeader, size int, data []byte) {
	if !d.fragmenting {
		d.fragmenting = true
		d.fragment = nil
		d.fragmentSize = size
		d.fragmentAU = h
		d.fragmentPTS = p.PTS
		d.fragmentTS = p.Timestamp
	}
	d.fragment = append(d.fragment, data...)

	if (d.fragmentSize > 0 && len(d.fragment) >= d.fragmentSize) || p.Marker {
		d.fragmenting = false
		au := d.fragment
		d.fragment = nil
		if d.fragmentSize > 0 && len(au) != d.fragmentSize {
			log.Debug("mpeg4-generic: AU of %d bytes, expected %d", len(au), d.fragmentSize)
			d.out.write(&media.Buffer{Data: au, PTS: d.fragmentPTS, DTS: media.NoTimestamp, Flags: media.FlagAUEnd | media.FlagCorrupted})
			return
		}
		d.emit(au, d.timestamps(d.fragmentPTS, 0, d.fragmentAU), d.fragmentAU, true)
	}
}

func (d *mpeg4Depacketizer) flushFragment() {
	if d.fragmenting {
		d.fragmenting = false
		if len(d.fragment) > 0 {
			d.out.write(&media.Buffer{Data: d.fragment, PTS: d.fragmentPTS, DTS: media.NoTimestamp, Flags: media.FlagAUEnd | media.FlagCorrupted})
		}
		d.fragment = nil
	}
}

func (d *mpeg4Depacketizer) Close() {
	d.fragment = nil
	d.fragmenting = false
}
