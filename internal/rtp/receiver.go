package rtp

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	"github.com/pion/rtcp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	errors "golang.org/x/xerrors"

	"github.com/lanikai/rtprx/internal/packet"
	"github.com/lanikai/rtprx/internal/srtp"
)

const (
	// Largest datagram we expect.
	maxDatagramSize = 65536

	// RFC 4571 frames carry a 16-bit length.
	maxFrameSize = 65535
)

// Receive handles one packet from the transport: RTCP is verified (when SRTP
// is in use) and discarded, SRTP is verified and decrypted, and RTP is
// enqueued. The buffer may be modified in place.
func (s *Session) Receive(buf []byte, now time.Time) {
	if isRTCP(buf) {
		s.stats.RTCP++
		if s.SRTP != nil {
			plain, err := s.SRTP.DecryptRTCP(buf)
			if err != nil {
				s.rejectSRTP("SRTCP", err)
				return
			}
			buf = plain
		}
		var h rtcp.Header
		if err := h.Unmarshal(buf); err != nil {
			log.Trace(3, "Discarding malformed RTCP: %v", err)
			return
		}
		log.Trace(5, "Discarding RTCP %v (%d bytes)", h.Type, len(buf))
		return
	}

	if s.SRTP != nil {
		plain, err := s.SRTP.DecryptRTP(buf)
		if err != nil {
			s.rejectSRTP("SRTP", err)
			return
		}
		buf = plain
	}
	s.Enqueue(buf, now)
}

func (s *Session) rejectSRTP(what string, err error) {
	if errors.Is(err, srtp.ErrAccess) {
		log.Warn("%s: %v", what, err)
		s.stats.SRTPRejected++
	} else {
		log.Trace(3, "%s: %v", what, err)
		s.stats.Malformed++
	}
}

// Demultiplex RTP/RTCP. See https://tools.ietf.org/html/rfc5761#section-4.
func isRTCP(buf []byte) bool {
	return len(buf) >= 2 && buf[1] >= 192 && buf[1] <= 223
}

// ServeDatagram receives packets from conn until ctx is cancelled or a read
// fails. Each wake-up reads a batch of datagrams, then delivers whatever is
// due; the read deadline is set to the next delivery deadline.
func (s *Session) ServeDatagram(ctx context.Context, conn net.PacketConn) error {
	if s.ReceiveBufferSize > 0 {
		if err := setReceiveBuffer(conn, s.ReceiveBufferSize); err != nil {
			log.Warn("Cannot set receive buffer size: %v", err)
		}
	}

	stop := context.AfterFunc(ctx, func() {
		// Unblock any pending read.
		conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	batch := newBatchReader(conn, s.BatchSize)
	var deadline time.Time
	var pending bool
	for {
		if !pending {
			deadline = time.Time{}
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := batch.read()
		now := time.Now()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ne net.Error
			if !errors.As(err, &ne) || !ne.Timeout() {
				return err
			}
		}
		for i := 0; i < n; i++ {
			s.Receive(batch.datagram(i), now)
		}
		deadline, pending = s.Dequeue(now)
	}
}

// ServeStream receives RFC 4571 framed packets from r until EOF, ctx
// cancellation or a read error. The stream is already ordered, so every packet
// is delivered immediately.
func (s *Session) ServeStream(ctx context.Context, r io.Reader) error {
	if conn, ok := r.(interface{ SetReadDeadline(time.Time) error }); ok {
		stop := context.AfterFunc(ctx, func() {
			conn.SetReadDeadline(time.Unix(1, 0))
		})
		defer stop()
	}

	br := bufio.NewReader(r)
	buf := make([]byte, maxFrameSize)
	var length [2]byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.ReadFull(br, length[:]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		n := int(packet.NewReader(length[:]).ReadUint16())
		if _, err := io.ReadFull(br, buf[:n]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Errorf("read %d-byte frame: %w", n, err)
		}
		s.Receive(buf[:n], time.Now())
		s.DequeueAll()
	}
}

// batchReader reads several datagrams per system call where the platform
// allows it (recvmmsg on Linux).
type batchReader struct {
	read4 *ipv4.PacketConn
	read6 *ipv6.PacketConn
	msgs  []ipv4.Message
}

func newBatchReader(conn net.PacketConn, size int) *batchReader {
	b := &batchReader{msgs: make([]ipv4.Message, size)}
	for i := range b.msgs {
		b.msgs[i].Buffers = [][]byte{make([]byte, maxDatagramSize)}
	}
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && addr.IP.To4() == nil {
		b.read6 = ipv6.NewPacketConn(conn)
	} else {
		b.read4 = ipv4.NewPacketConn(conn)
	}
	return b
}

func (b *batchReader) read() (int, error) {
	if b.read6 != nil {
		return b.read6.ReadBatch(b.msgs, 0)
	}
	return b.read4.ReadBatch(b.msgs, 0)
}

func (b *batchReader) datagram(i int) []byte {
	return b.msgs[i].Buffers[0][:b.msgs[i].N]
}
