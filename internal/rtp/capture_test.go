package rtp

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Write UDP datagrams to an Ethernet capture, 20ms apart.
func writeCapture(t *testing.T, port uint16, datagrams ...[]byte) []byte {
	var out bytes.Buffer
	w := pcapgo.NewWriter(&out)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	ts := epoch
	for _, d := range datagrams {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(10, 0, 0, 1),
			DstIP:    net.IPv4(10, 0, 0, 2),
		}
		udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(port)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(d)))

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
		ts = ts.Add(20 * time.Millisecond)
	}
	return out.Bytes()
}

func TestServeCapture(t *testing.T) {
	s, c := newTestSession(t, SessionOptions{})

	capture := writeCapture(t, 5004, pcmuPacket(t, 1), pcmuPacket(t, 3), pcmuPacket(t, 2), pcmuPacket(t, 4))
	require.NoError(t, s.ServeCapture(context.Background(), bytes.NewReader(capture), 5004))

	assert.Equal(t, []uint16{1, 2, 3, 4}, payloadSeqs(c.Buffers()))
	assert.Equal(t, uint64(0), s.Stats().Lost)
}

func TestServeCapturePortFilter(t *testing.T) {
	s, c := newTestSession(t, SessionOptions{})

	capture := writeCapture(t, 6000, pcmuPacket(t, 1))
	require.NoError(t, s.ServeCapture(context.Background(), bytes.NewReader(capture), 5004))
	assert.Empty(t, c.Buffers())

	require.NoError(t, s.ServeCapture(context.Background(), bytes.NewReader(capture), 0))
	assert.Len(t, c.Buffers(), 1)
}

func TestServeCaptureBadHeader(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{})
	assert.Error(t, s.ServeCapture(context.Background(), bytes.NewReader([]byte("not a capture file")), 0))
	assert.Error(t, s.ServeCapture(context.Background(), bytes.NewReader(nil), 0))
}
