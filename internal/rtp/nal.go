package rtp

import (
	"time"

	"github.com/lanikai/rtprx/internal/media"
	"github.com/lanikai/rtprx/internal/media/h264"
)

// nalOutput writes NAL units to a sink in Annex B framing, one buffer per NAL
// unit, and keeps the fragmentation state shared by H.264 and H.265.
type nalOutput struct {
	out *output

	// Parameter sets from the SDP, written ahead of the first NAL unit.
	params []byte

	// Whether a NAL unit (header included) is a random access point.
	randomAccess func(nal []byte) bool

	dts      dtsReorder
	lastPTS  time.Duration
	lastDTS  time.Duration
	haveLast bool

	// NAL unit under reassembly, with start code, or nil.
	fragment    []byte
	fragmentPTS time.Duration
}

// Called on packet loss: the partial NAL unit is flushed as corrupted and
// timestamp reordering starts over.
func (n *nalOutput) discontinuity() {
	n.flushFragment()
	n.dts.reset()
	n.haveLast = false
}

// Decode timestamp for an access unit. All NAL units of one access unit
// share it.
func (n *nalOutput) decodeTime(pts time.Duration) time.Duration {
	if !n.haveLast || pts != n.lastPTS {
		n.lastPTS = pts
		n.lastDTS = n.dts.next(pts)
		n.haveLast = true
	}
	return n.lastDTS
}

// Write one complete NAL unit. last marks the end of an access unit.
func (n *nalOutput) emit(nal []byte, pts time.Duration, last bool) {
	data := make([]byte, 0, len(h264.StartCode)+len(nal))
	n.write(h264.AppendAnnexB(data, nal), pts, last, 0)
}

// Write an Annex B buffer.
func (n *nalOutput) write(data []byte, pts time.Duration, last bool, flags media.Flags) {
	if n.params != nil {
		n.out.write(&media.Buffer{
			Data:  n.params,
			PTS:   pts,
			DTS:   n.decodeTime(pts),
			Flags: media.FlagRandomAccess,
		})
		n.params = nil
	}
	if last {
		flags |= media.FlagAUEnd
	}
	if len(data) > len(h264.StartCode) && n.randomAccess(data[len(h264.StartCode):]) {
		flags |= media.FlagRandomAccess
	}
	n.out.write(&media.Buffer{
		Data:  data,
		PTS:   pts,
		DTS:   n.decodeTime(pts),
		Flags: flags,
	})
}

// Begin reassembling a fragmented NAL unit from its reconstructed header and
// first fragment. A previous incomplete unit is flushed as corrupted.
func (n *nalOutput) startFragment(header, data []byte, pts time.Duration) {
	n.flushFragment()
	buf := make([]byte, 0, len(h264.StartCode)+len(header)+2*len(data))
	buf = append(buf, h264.StartCode...)
	buf = append(buf, header...)
	n.fragment = append(buf, data...)
	n.fragmentPTS = pts
}

// Append a continuation fragment. Returns false if the start was lost.
func (n *nalOutput) appendFragment(data []byte) bool {
	if n.fragment == nil {
		return false
	}
	n.fragment = append(n.fragment, data...)
	return true
}

// Write the reassembled NAL unit.
func (n *nalOutput) endFragment(last bool) {
	if n.fragment != nil {
		n.write(n.fragment, n.fragmentPTS, last, 0)
		n.fragment = nil
	}
}

func (n *nalOutput) flushFragment() {
	if n.fragment != nil {
		log.Debug("%v: incomplete fragmented NAL unit", n.out.info)
		n.write(n.fragment, n.fragmentPTS, false, media.FlagCorrupted)
		n.fragment = nil
	}
}
