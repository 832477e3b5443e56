package srtp

// Width of the sliding replay window, in packets.
// See https://tools.ietf.org/html/rfc3711#section-3.3.2
const replayWindowSize = 64

// replayWindow remembers which of the last 64 packet indices below (and
// including) the high-water mark have been accepted. Bit i stands for the
// packet i positions behind the high-water mark.
type replayWindow uint64

// accept records a packet at signed distance delta from the high-water mark.
// A positive delta moves the mark forward. Otherwise the packet is accepted
// only if it is within the window and not yet seen.
func (w *replayWindow) accept(delta int64) bool {
	if delta > 0 {
		if delta >= replayWindowSize {
			*w = 1
		} else {
			*w = *w<<uint(delta) | 1
		}
		return true
	}

	back := -delta
	if back >= replayWindowSize || (*w>>uint(back))&1 != 0 {
		return false
	}
	*w |= 1 << uint(back)
	return true
}
