package rtp

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/rtprx/internal/media"
	"github.com/lanikai/rtprx/internal/packet"
	"github.com/lanikai/rtprx/internal/srtp"
)

var (
	testKey  = []byte("TopSecret128bits")
	testSalt = []byte("SodiumChloride")
)

func newSRTPPair(t *testing.T) (tx, rx *srtp.Context) {
	tx, err := srtp.NewContext(testKey, testSalt, srtp.Config{})
	require.NoError(t, err)
	rx, err = srtp.NewContext(testKey, testSalt, srtp.Config{})
	require.NoError(t, err)
	return tx, rx
}

func protectRTP(t *testing.T, c *srtp.Context, plain []byte) []byte {
	buf := make([]byte, len(plain)+c.Overhead())
	copy(buf, plain)
	n, err := c.EncryptRTP(buf, len(plain))
	require.NoError(t, err)
	return buf[:n]
}

func receiverReport(t *testing.T) []byte {
	rr := rtcp.ReceiverReport{SSRC: 0xcafe}
	b, err := rr.Marshal()
	require.NoError(t, err)
	return b
}

func TestReceiveSRTP(t *testing.T) {
	tx, rx := newSRTPPair(t)
	s, c := newTestSession(t, SessionOptions{SRTP: rx})

	s.Receive(protectRTP(t, tx, pcmuPacket(t, 1)), epoch)
	s.Receive(protectRTP(t, tx, pcmuPacket(t, 2)), epoch)

	// Flip a payload bit.
	forged := protectRTP(t, tx, pcmuPacket(t, 3))
	forged[rtpHeaderSize] ^= 1
	s.Receive(forged, epoch)
	s.Dequeue(epoch)

	assert.Equal(t, []uint16{1, 2}, payloadSeqs(c.Buffers()))
	assert.Equal(t, uint64(1), s.Stats().SRTPRejected)
}

func TestReceiveSRTCP(t *testing.T) {
	tx, rx := newSRTPPair(t)
	s, c := newTestSession(t, SessionOptions{SRTP: rx})

	rr := receiverReport(t)
	buf := make([]byte, len(rr)+4+srtp.DefaultTagLength)
	copy(buf, rr)
	n, err := tx.EncryptRTCP(buf, len(rr))
	require.NoError(t, err)

	s.Receive(buf[:n], epoch)
	s.Dequeue(epoch)
	assert.Empty(t, c.Buffers())
	assert.Equal(t, uint64(1), s.Stats().RTCP)
	assert.Equal(t, uint64(0), s.Stats().Received)
	assert.Equal(t, uint64(0), s.Stats().SRTPRejected)
}

func TestReceiveRTCP(t *testing.T) {
	s, c := newTestSession(t, SessionOptions{})

	s.Receive(receiverReport(t), epoch)
	s.Receive(pcmuPacket(t, 1), epoch)
	s.Dequeue(epoch)

	assert.Len(t, c.Buffers(), 1)
	assert.Equal(t, uint64(1), s.Stats().RTCP)
	assert.Equal(t, uint64(1), s.Stats().Received)
}

// Frame packets as RFC 4571 does.
func frameStream(t *testing.T, packets ...[]byte) []byte {
	w := packet.NewWriterSize(65536)
	for _, p := range packets {
		w.WriteUint16(uint16(len(p)))
		require.NoError(t, w.WriteSlice(p))
	}
	return w.Bytes()
}

func TestServeStream(t *testing.T) {
	s, c := newTestSession(t, SessionOptions{})

	stream := frameStream(t, pcmuPacket(t, 7), pcmuPacket(t, 8), receiverReport(t), pcmuPacket(t, 10))
	require.NoError(t, s.ServeStream(context.Background(), bytes.NewReader(stream)))

	buffers := c.Buffers()
	require.Equal(t, []uint16{7, 8, 10}, payloadSeqs(buffers))
	assert.True(t, buffers[2].Has(media.FlagDiscontinuity))
	assert.Equal(t, uint64(1), s.Stats().RTCP)
}

func TestServeStreamTruncated(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{})

	stream := frameStream(t, pcmuPacket(t, 1))
	err := s.ServeStream(context.Background(), bytes.NewReader(stream[:len(stream)-1]))
	assert.Error(t, err)
}

func TestServeDatagram(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan media.Buffer, 16)
	s, err := NewSession(SessionOptions{
		SinkFactory: func(media.StreamInfo) (media.Sink, error) {
			return chanSink(received), nil
		},
	})
	require.NoError(t, err)
	pt, err := StaticPayloadType(0)
	require.NoError(t, err)
	require.NoError(t, s.AddPayloadType(pt))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.ServeDatagram(ctx, conn)
	}()

	sender, err := net.Dial("udp4", conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()
	for seq := uint16(1); seq <= 3; seq++ {
		_, err := sender.Write(pcmuPacket(t, seq))
		require.NoError(t, err)
	}

	var seqs []uint16
	for len(seqs) < 3 {
		select {
		case b := <-received:
			seqs = append(seqs, payloadSeqs([]media.Buffer{b})...)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for packets")
		}
	}
	assert.Equal(t, []uint16{1, 2, 3}, seqs)

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeDatagram did not return after cancel")
	}
}

type chanSink chan media.Buffer

func (ch chanSink) WriteBuffer(buf *media.Buffer) error {
	b := *buf
	b.Data = append([]byte(nil), buf.Data...)
	ch <- b
	return nil
}

func (ch chanSink) Close() error { return nil }
