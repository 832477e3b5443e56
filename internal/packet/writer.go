package packet

import (
	"fmt"
)

// Writer is a big-endian write cursor over a fixed byte slice. Fixed-width
// writes panic when the buffer is full; callers check capacity up front.
type Writer struct {
	buffer []byte
	offset int
}

func NewWriter(buffer []byte) *Writer {
	return &Writer{buffer, 0}
}

func NewWriterSize(n int) *Writer {
	return NewWriter(make([]byte, n))
}

func (w *Writer) WriteUint8(v uint8) {
	w.buffer[w.offset] = v
	w.offset++
}

func (w *Writer) WriteUint16(v uint16) {
	networkOrder.PutUint16(w.buffer[w.offset:], v)
	w.offset += 2
}

func (w *Writer) WriteUint24(v uint32) {
	w.WriteUint8(byte(v >> 16))
	w.WriteUint8(byte(v >> 8))
	w.WriteUint8(byte(v))
}

func (w *Writer) WriteUint32(v uint32) {
	networkOrder.PutUint32(w.buffer[w.offset:], v)
	w.offset += 4
}

func (w *Writer) WriteUint64(v uint64) {
	networkOrder.PutUint64(w.buffer[w.offset:], v)
	w.offset += 8
}

// Write the given bytes, if there is enough room.
func (w *Writer) WriteSlice(p []byte) error {
	if err := w.CheckCapacity(len(p)); err != nil {
		return err
	}
	w.offset += copy(w.buffer[w.offset:], p)
	return nil
}

func (w *Writer) ZeroPad(n int) {
	for i := 0; i < n; i++ {
		w.WriteUint8(0)
	}
}

// Pad with zeros up to the next multiple of width, e.g. Align(4) adds zero
// bytes until the next 4-byte boundary.
func (w *Writer) Align(width int) {
	boundary := width * ((w.offset + width - 1) / width)
	for w.offset < boundary {
		w.buffer[w.offset] = 0
		w.offset++
	}
}

// Seek moves the cursor to an absolute offset, which must lie within the
// buffer.
func (w *Writer) Seek(offset int) {
	if offset < 0 || offset > len(w.buffer) {
		panic(fmt.Sprintf("packet.Writer: seek to %d outside [0, %d]", offset, len(w.buffer)))
	}
	w.offset = offset
}

// Return the number of bytes written so far.
func (w *Writer) Length() int {
	return w.offset
}

// Return the number of bytes that can still be written.
func (w *Writer) Available() int {
	return len(w.buffer) - w.offset
}

// CheckCapacity reports whether needed more bytes fit after the cursor.
func (w *Writer) CheckCapacity(needed int) error {
	if w.Available() < needed {
		return fmt.Errorf("%d bytes available, %d needed", w.Available(), needed)
	}
	return nil
}

// Return a slice of the bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buffer[0:w.offset]
}

func (w *Writer) Reset() {
	w.offset = 0
}
