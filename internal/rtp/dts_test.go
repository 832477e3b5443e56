package rtp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func TestDTSReorderBFrames(t *testing.T) {
	var d dtsReorder
	d.reset()

	// I0 P3 B1 B2 P6 B4 B5 ... at 25 frames per second.
	order := []int{0, 3, 1, 2, 6, 4, 5, 9, 7, 8, 12, 10, 11}
	expected := []int{0, 30, 30, 30, 120, 160, 200, 240, 280, 320, 360, 400, 440}
	for i, n := range order {
		pts := ms(40 * n)
		dts := d.next(pts)
		assert.Equal(t, ms(expected[i]), dts, "frame %d (pts %v)", i, pts)
	}
	assert.Equal(t, 1, d.depth)
}

func TestDTSReorderInvariants(t *testing.T) {
	var d dtsReorder
	d.reset()

	order := []int{0, 4, 2, 1, 3, 8, 6, 5, 7, 12, 10, 9, 11, 16, 14, 13, 15}
	last := time.Duration(-1)
	for _, n := range order {
		pts := ms(40 * n)
		dts := d.next(pts)
		assert.True(t, dts <= pts, "dts %v > pts %v", dts, pts)
		assert.True(t, dts >= last, "dts %v < %v", dts, last)
		last = dts
	}
}

func TestDTSReorderInOrder(t *testing.T) {
	var d dtsReorder
	d.reset()

	for n := 0; n < 8; n++ {
		d.next(ms(40 * n))
	}
	assert.Equal(t, 0, d.depth)
	assert.Equal(t, ms(320), d.next(ms(320)))

	d.reset()
	assert.Equal(t, ms(1000), d.next(ms(1000)))
	assert.Equal(t, ms(1010), d.next(ms(1040)))
}
