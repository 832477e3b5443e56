package media

import (
	"math"
	"strings"
	"time"
)

// Flags qualify an access-unit buffer.
type Flags uint8

const (
	// The buffer ends an access unit.
	FlagAUEnd Flags = 1 << iota

	// Data was lost between the previous buffer and this one.
	FlagDiscontinuity

	// The buffer is known to be incomplete or damaged.
	FlagCorrupted

	// The buffer starts a random access point (e.g. a key frame).
	FlagRandomAccess
)

func (f Flags) String() string {
	var names []string
	for _, n := range []struct {
		f    Flags
		name string
	}{
		{FlagAUEnd, "au-end"},
		{FlagDiscontinuity, "discontinuity"},
		{FlagCorrupted, "corrupted"},
		{FlagRandomAccess, "random-access"},
	} {
		if f&n.f != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// NoTimestamp marks an unknown presentation or decode time.
const NoTimestamp = time.Duration(math.MinInt64)

// Buffer is one access unit, or one part of an access unit, of an elementary
// stream. Timestamps are relative to the start of the RTP session.
type Buffer struct {
	Data  []byte
	PTS   time.Duration
	DTS   time.Duration // NoTimestamp if unknown
	Flags Flags

	// Elementary stream index inside a multiplexed payload (MPEG-2 TS).
	// Always 0 otherwise.
	Track int
}

// Has reports whether all of the given flags are set.
func (b *Buffer) Has(f Flags) bool {
	return b.Flags&f == f
}
