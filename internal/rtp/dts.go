package rtp

import (
	"sort"
	"time"

	"github.com/lanikai/rtprx/internal/media"
)

// Deepest picture reordering that dtsReorder will discover.
const maxReorderDepth = 4

// dtsReorder derives decode timestamps for streams that only transmit
// presentation timestamps. It keeps the latest presentation timestamps in
// reception order and learns the reordering depth from how far back a lower
// timestamp shows up. The decode timestamp of a frame is then the timestamp
// that many positions below the highest one seen.
type dtsReorder struct {
	history []time.Duration
	depth   int

	// First timestamp since the last reset, for warm-up interpolation.
	first time.Duration
	count int

	last time.Duration
}

func (d *dtsReorder) reset() {
	d.history = d.history[:0]
	d.depth = 0
	d.count = 0
	d.last = media.NoTimestamp
}

// next returns the decode timestamp for a frame with the given presentation
// timestamp. Results never decrease and never exceed pts.
func (d *dtsReorder) next(pts time.Duration) time.Duration {
	if d.count == 0 {
		d.first = pts
		d.last = media.NoTimestamp
	}
	d.count++

	// Reordering depth: how many frames received earlier come later in
	// presentation order.
	later := 0
	for _, h := range d.history {
		if h > pts {
			later++
		}
	}
	if later > d.depth {
		d.depth = later
		if d.depth > maxReorderDepth {
			d.depth = maxReorderDepth
		}
	}

	d.history = append(d.history, pts)
	if len(d.history) > 2*maxReorderDepth+1 {
		d.history = d.history[1:]
	}

	var dts time.Duration
	if d.count > maxReorderDepth {
		sorted := append([]time.Duration(nil), d.history...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		idx := len(sorted) - 1 - d.depth
		if idx < 0 {
			idx = 0
		}
		dts = sorted[idx]
	} else {
		// Warm-up: creep forward from the first timestamp.
		dts = d.first + (pts-d.first)/maxReorderDepth
	}

	if d.last != media.NoTimestamp && dts < d.last {
		dts = d.last
	}
	if dts > pts {
		dts = pts
	}
	d.last = dts
	return dts
}
