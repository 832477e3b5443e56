package srtp

import (
	"crypto/hmac"
	"encoding/binary"

	"github.com/lanikai/rtprx/internal/packet"
)

// EncryptRTCP protects the RTCP packet (compound or reduced-size) held in
// buf[:n] in place, appending E || SRTCP index and the authentication tag.
// Everything after the first 8 bytes is encrypted. It returns the SRTCP
// length, or the required length with ErrNoSpace.
// See https://tools.ietf.org/html/rfc3711#section-3.4
func (c *Context) EncryptRTCP(buf []byte, n int) (int, error) {
	if n < rtcpHeaderLength || n > len(buf) {
		return 0, errShortPacket
	}
	if buf[0]>>6 != 2 {
		return 0, errVersion
	}
	need := n + 4 + c.cfg.TagLen
	if len(buf) < need {
		return need, ErrNoSpace
	}

	// The index is 31 bits wide and starts at 1.
	c.rtcpIndex = (c.rtcpIndex + 1) &^ eFlagMask
	index := c.rtcpIndex

	word := index
	if c.rtcpEncrypted() {
		ssrc := binary.BigEndian.Uint32(buf[4:8])
		c.rtcp.encrypt(buf[rtcpHeaderLength:n], ssrc, uint64(index))
		word |= eFlagMask
	}

	w := packet.NewWriter(buf)
	w.Seek(n)
	w.WriteUint32(word)
	if c.cfg.TagLen > 0 {
		// From https://tools.ietf.org/html/rfc3711#section-4.2:
		//   in the case of SRTCP, M SHALL consist of the Authenticated
		//   Portion only.
		tag := c.rtcp.auth(buf[:n+4])
		if err := w.WriteSlice(tag[:c.cfg.TagLen]); err != nil {
			return 0, err
		}
	}
	return need, nil
}

// DecryptRTCP verifies and decrypts the SRTCP packet in buf, in place, and
// returns the RTCP packet as a prefix of buf.
func (c *Context) DecryptRTCP(buf []byte) ([]byte, error) {
	tagLen := c.cfg.TagLen
	if len(buf) < rtcpHeaderLength+4+tagLen {
		return nil, errShortPacket
	}
	n := len(buf) - tagLen
	if tagLen > 0 {
		tag := c.rtcp.auth(buf[:n])
		if !hmac.Equal(tag[:tagLen], buf[n:n+tagLen]) {
			return nil, ErrAuth
		}
	}

	n -= 4
	word := binary.BigEndian.Uint32(buf[n:])
	if buf[0]>>6 != 2 {
		return nil, errVersion
	}
	if (word&eFlagMask != 0) != c.rtcpEncrypted() {
		return nil, errEncryptBit
	}
	index := word &^ eFlagMask

	if !c.rtcpStarted {
		c.rtcpStarted = true
		c.rtcpWindow = 1
		c.rtcpIndex = index
	} else {
		// Signed distance in 31-bit index space.
		delta := int64(int32((index-c.rtcpIndex)<<1) >> 1)
		if !c.rtcpWindow.accept(delta) {
			return nil, ErrReplay
		}
		if delta > 0 {
			c.rtcpIndex = index
		}
	}

	if word&eFlagMask != 0 {
		ssrc := binary.BigEndian.Uint32(buf[4:8])
		c.rtcp.encrypt(buf[rtcpHeaderLength:n], ssrc, uint64(index))
	}
	return buf[:n], nil
}

func (c *Context) rtcpEncrypted() bool {
	return c.cfg.Cipher != CipherNull && !c.cfg.UnencryptedRTCP
}
