package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var networkOrder = binary.BigEndian

// ErrShortBuffer is latched by a Reader when a read runs past the end of its
// buffer.
var ErrShortBuffer = errors.New("short buffer")

// Reader is a big-endian read cursor over a byte slice. Reads never panic: a
// read past the end returns zero values (or nil slices) and latches
// ErrShortBuffer, which is reported by Err.
type Reader struct {
	buffer []byte
	offset int
	err    error
}

func NewReader(buffer []byte) *Reader {
	return &Reader{buffer: buffer}
}

// Reset points the reader at a new buffer and clears any latched error.
func (r *Reader) Reset(buffer []byte) {
	r.buffer = buffer
	r.offset = 0
	r.err = nil
}

// Err returns ErrShortBuffer if any read ran out of bytes.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) take(n int) []byte {
	if n < 0 || r.Remaining() < n {
		r.err = ErrShortBuffer
		r.offset = len(r.buffer)
		return nil
	}
	v := r.buffer[r.offset : r.offset+n]
	r.offset += n
	return v
}

func (r *Reader) ReadUint8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) ReadUint16() uint16 {
	if b := r.take(2); b != nil {
		return networkOrder.Uint16(b)
	}
	return 0
}

func (r *Reader) ReadUint24() uint32 {
	if b := r.take(3); b != nil {
		return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}
	return 0
}

func (r *Reader) ReadUint32() uint32 {
	if b := r.take(4); b != nil {
		return networkOrder.Uint32(b)
	}
	return 0
}

// ReadSlice returns the next n bytes without copying them.
func (r *Reader) ReadSlice(n int) []byte {
	return r.take(n)
}

// PeekUint8 returns the next byte without advancing.
func (r *Reader) PeekUint8() uint8 {
	if r.Remaining() < 1 {
		return 0
	}
	return r.buffer[r.offset]
}

func (r *Reader) Skip(n int) {
	r.take(n)
}

// Discard bytes up to the next multiple of width, e.g. Align(4) skips ahead
// until the next aligned 4-byte boundary.
func (r *Reader) Align(width int) {
	r.Skip(width*((r.offset+width-1)/width) - r.offset)
}

func (r *Reader) ReadRemaining() []byte {
	v := r.buffer[r.offset:]
	r.offset += len(v)
	return v
}

// Return the number of bytes left in the buffer.
func (r *Reader) Remaining() int {
	return len(r.buffer) - r.offset
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.offset
}

func (r *Reader) CheckRemaining(needed int) error {
	if r.Remaining() < needed {
		return fmt.Errorf("%d bytes remaining, %d needed: %w", r.Remaining(), needed, ErrShortBuffer)
	}
	return nil
}
