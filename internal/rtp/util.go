package rtp

// Convenience functions for dealing with payload header bytes. For example,
// the H.264 NAL unit header:
//    0 1 2 3 4 5 6 7
//   +-+-+-+-+-+-+-+-+
//   |F|NRI|  Type   |
//   +-+-+-+-+-+-+-+-+
// can be parsed with
//    F, NRI, Type := splitByte125(header[0])

// Split a byte into the first bit, the next 2 bits, and the remaining 5 bits.
func splitByte125(v byte) (a1 bool, b2 byte, c5 byte) {
	a1 = (v >> 7 & 0x01) == 1
	b2 = v >> 5 & 0x03
	c5 = v & 0x1f
	return
}

// Split a byte into two flag bits and the remaining 6 bits, e.g. the H.265 FU
// header:
//    0 1 2 3 4 5 6 7
//   +-+-+-+-+-+-+-+-+
//   |S|E|  FuType   |
//   +-+-+-+-+-+-+-+-+
func splitByte116(v byte) (a1 bool, b1 bool, c6 byte) {
	a1 = v&0x80 != 0
	b1 = v&0x40 != 0
	c6 = v & 0x3f
	return
}

// Split a byte into three flag bits and the remaining 5 bits, e.g. the H.264
// FU header:
//    0 1 2 3 4 5 6 7
//   +-+-+-+-+-+-+-+-+
//   |S|E|R|  Type   |
//   +-+-+-+-+-+-+-+-+
func splitByte1115(v byte) (a1 bool, b1 bool, c1 bool, d5 byte) {
	a1 = v&0x80 != 0
	b1 = v&0x40 != 0
	c1 = v&0x20 != 0
	d5 = v & 0x1f
	return
}

// Signed distance from sequence number b to a, taking wraparound into
// account.
func seqDelta(a, b uint16) int16 {
	return int16(a - b)
}

// Reports whether sequence number a precedes b.
func seqBefore(a, b uint16) bool {
	return seqDelta(a, b) < 0
}
