package rtp

import (
	"io"

	"github.com/nareix/joy4/format/ts"

	"github.com/lanikai/rtprx/internal/media"
)

// RTP payload format for MPEG-2 transport streams: the payload is a whole
// number of 188-byte TS packets. The elementary streams are extracted with
// an embedded demuxer, which runs on its own goroutine behind a pipe.
// See https://tools.ietf.org/html/rfc2250#section-2

func init() {
	registerFormat("MP2T", parseMP2T)
}

const tsPacketSize = 188

func parseMP2T(pt *PayloadType) (*payloadFormat, error) {
	return &payloadFormat{
		info: media.StreamInfo{Codec: media.MP2T},
		open: newMP2TDepacketizer,
	}, nil
}

type mp2tDepacketizer struct {
	out  *output
	pipe *io.PipeWriter
	done chan struct{}
}

func newMP2TDepacketizer(out *output) Depacketizer {
	pr, pw := io.Pipe()
	d := &mp2tDepacketizer{
		// Private copy: the session goroutine flags discontinuities on out,
		// which the transport stream tracks on its own.
		out:  &output{info: out.info, sink: out.sink},
		pipe: pw,
		done: make(chan struct{}),
	}
	go d.demux(pr)
	return d
}

func (d *mp2tDepacketizer) Decode(p *Packet) {
	if len(p.Payload)%tsPacketSize != 0 {
		log.Debug("MP2T: payload of %d bytes is not a whole number of TS packets", len(p.Payload))
	}
	if _, err := d.pipe.Write(p.Payload); err != nil {
		log.Trace(3, "MP2T: %v", err)
	}
}

// Runs until the pipe is closed. The sink is only written from here.
func (d *mp2tDepacketizer) demux(r *io.PipeReader) {
	defer close(d.done)

	demuxer := ts.NewDemuxer(r)
	for {
		pkt, err := demuxer.ReadPacket()
		if err != nil {
			if err != io.EOF && err != io.ErrClosedPipe {
				log.Warn("MP2T: %v", err)
			}
			// Keep the writer from blocking.
			io.Copy(io.Discard, r)
			return
		}

		flags := media.FlagAUEnd
		if pkt.IsKeyFrame {
			flags |= media.FlagRandomAccess
		}
		d.out.write(&media.Buffer{
			Data:  pkt.Data,
			PTS:   pkt.Time + pkt.CompositionTime,
			DTS:   pkt.Time,
			Flags: flags,
			Track: int(pkt.Idx),
		})
	}
}

func (d *mp2tDepacketizer) Close() {
	d.pipe.Close()
	<-d.done
}
