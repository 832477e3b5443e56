package rtp

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	errors "golang.org/x/xerrors"
)

// Magic number at the start of a pcapng section header block.
const pcapngMagic = 0x0a0d0d0a

type captureReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// ServeCapture replays the UDP datagrams of a pcap or pcapng capture,
// using capture timestamps as the clock. If port is nonzero, only datagrams
// sent to that port are used. Everything still buffered at the end of the
// capture is delivered.
func (s *Session) ServeCapture(ctx context.Context, r io.Reader, port int) error {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return errors.Errorf("read capture header: %w", err)
	}
	var capture captureReader
	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		capture, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		capture, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return errors.Errorf("read capture header: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, ci, err := capture.ReadPacketData()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Errorf("read capture: %w", err)
		}

		packet := gopacket.NewPacket(data, capture.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || (port != 0 && int(udp.DstPort) != port) {
			continue
		}

		s.Receive(udp.Payload, ci.Timestamp)
		s.Dequeue(ci.Timestamp)
	}
	s.DequeueAll()
	return nil
}
