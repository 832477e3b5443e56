package srtp

import (
	"crypto/hmac"
	"encoding/binary"

	"github.com/lanikai/rtprx/internal/packet"
)

// EncryptRTP protects the RTP packet held in buf[:n] in place: the payload is
// encrypted and the ROC and authentication tag are appended as configured.
// It returns the length of the SRTP packet. If buf cannot hold it, the packet
// is left untouched and the required length is returned with ErrNoSpace.
// See https://tools.ietf.org/html/rfc3711#section-3.1
func (c *Context) EncryptRTP(buf []byte, n int) (int, error) {
	if n < rtpHeaderLength || n > len(buf) {
		return 0, errShortPacket
	}
	seq := binary.BigEndian.Uint16(buf[2:4])
	tagLen, rocLen := c.rtpTrailer(seq)
	need := n + rocLen + tagLen
	if len(buf) < need {
		return need, ErrNoSpace
	}

	roc := c.estimateROC(seq)
	if err := c.cryptRTP(buf[:n], seq, roc); err != nil {
		return 0, err
	}

	if rocLen+tagLen > 0 {
		// From https://tools.ietf.org/html/rfc3711#section-4.2:
		//   M = Authenticated Portion || ROC
		var rocBytes [rocLength]byte
		binary.BigEndian.PutUint32(rocBytes[:], roc)
		tag := c.rtp.auth(buf[:n], rocBytes[:])

		w := packet.NewWriter(buf)
		w.Seek(n)
		if rocLen > 0 {
			w.WriteUint32(roc)
		}
		if err := w.WriteSlice(tag[:tagLen]); err != nil {
			return 0, err
		}
	}
	return need, nil
}

// DecryptRTP verifies and decrypts the SRTP packet in buf, in place. On
// success it returns the RTP packet, a prefix of buf. Authentication and
// replay failures wrap ErrAccess; the context is left unchanged by them.
func (c *Context) DecryptRTP(buf []byte) ([]byte, error) {
	n := len(buf)
	if n < rtpHeaderLength {
		return nil, errShortPacket
	}
	seq := binary.BigEndian.Uint16(buf[2:4])
	tagLen, rocLen := c.rtpTrailer(seq)
	if n < rtpHeaderLength+rocLen+tagLen {
		return nil, errShortPacket
	}
	n -= rocLen + tagLen

	roc := c.estimateROC(seq)
	carried := roc
	if rocLen > 0 {
		carried = binary.BigEndian.Uint32(buf[n:])
	}

	if tagLen > 0 {
		var rocBytes [rocLength]byte
		binary.BigEndian.PutUint32(rocBytes[:], carried)
		tag := c.rtp.auth(buf[:n], rocBytes[:])
		if !hmac.Equal(tag[:tagLen], buf[n+rocLen:n+rocLen+tagLen]) {
			return nil, ErrAuth
		}
	}

	if rocLen > 0 {
		// Trust the carried roll-over counter over our estimate. If it is
		// ahead, the high-water mark moves with it.
		roc = carried
	}
	if err := c.cryptRTP(buf[:n], seq, roc); err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// rtpTrailer returns the tag and ROC lengths that follow a packet with the
// given sequence number, according to the RCC mode.
// See https://tools.ietf.org/html/rfc4771#section-3
func (c *Context) rtpTrailer(seq uint16) (tagLen, rocLen int) {
	tagLen = c.cfg.TagLen
	if c.cfg.RCCMode == 0 {
		return tagLen, 0
	}
	if seq%c.cfg.RCCRate == 0 {
		rocLen = rocLength
		if c.cfg.RCCMode == 3 {
			tagLen = 0
		} else {
			tagLen -= rocLength
		}
	} else if c.cfg.RCCMode&1 != 0 {
		// Modes 1 and 3 only protect ROC-carrying packets, if any.
		tagLen = 0
	}
	return tagLen, rocLen
}

// estimateROC guesses the roll-over counter of a packet from its sequence
// number and the highest accepted one.
// See https://tools.ietf.org/html/rfc3711#section-3.3.1
func (c *Context) estimateROC(seq uint16) uint32 {
	roc := c.roc
	if !c.rtpStarted {
		return roc
	}
	if seq-c.seq < 0x8000 {
		// Sequence is ahead.
		if seq < c.seq {
			roc++ // wrapped forward
		}
	} else if seq > c.seq {
		roc-- // late packet from before the last wrap
	}
	return roc
}

// cryptRTP enforces the replay window and then encrypts or decrypts the
// payload of pkt in place.
func (c *Context) cryptRTP(pkt []byte, seq uint16, roc uint32) error {
	offset, err := rtpPayloadOffset(pkt)
	if err != nil {
		return err
	}

	index := uint64(roc)<<16 | uint64(seq)
	if !c.rtpStarted {
		c.rtpStarted = true
		c.rtpWindow = 1
		c.roc, c.seq = roc, seq
	} else {
		high := uint64(c.roc)<<16 | uint64(c.seq)
		delta := int64(index) - int64(high)
		if !c.rtpWindow.accept(delta) {
			return ErrReplay
		}
		if delta > 0 {
			c.roc, c.seq = roc, seq
		}
	}

	ssrc := binary.BigEndian.Uint32(pkt[8:12])
	c.rtp.encrypt(pkt[offset:], ssrc, index)
	return nil
}

// rtpPayloadOffset returns where the payload starts, after the fixed header,
// CSRC list and header extension.
func rtpPayloadOffset(pkt []byte) (int, error) {
	r := packet.NewReader(pkt)
	b := r.ReadUint8()
	if b>>6 != 2 {
		return 0, errVersion
	}
	r.Skip(rtpHeaderLength - 1)
	r.Skip(4 * int(b&0x0f))
	if b&0x10 != 0 {
		r.Skip(2) // profile
		r.Skip(4 * int(r.ReadUint16()))
	}
	if r.Err() != nil {
		return 0, errShortPacket
	}
	return r.Offset(), nil
}
