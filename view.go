// Bounded views over a shared physical stream.
//
// Every segment is addressed through a View: a logical stream mapped onto
// [start, start+length) of the container. Views never trust the physical
// cursor, because the writer, the reader and every layer above share it;
// each operation seeks to its own translated position first.
//
// A layer that keeps a fixed header at the front of its range (the
// integrity envelope) shifts the view's origin past that header. Logical
// position 0 then maps to the first content byte while the header stays
// reachable through the raw accessors.
package segfile

import (
	"errors"
	"fmt"
	"io"
)

// View is a position-translated, range-limited window onto a physical
// stream. Writes extend its length; reads stop at it.
type View struct {
	f      io.ReadSeeker
	w      io.Writer // nil when the physical stream is read-only
	start  int64     // Physical offset of raw byte 0
	origin int64     // Raw offset of logical byte 0
	size   int64     // Raw length, origin included
	pos    int64     // Logical position
	owner  bool      // Close f when the view closes
	closed bool

	// onClose runs once, after the view is marked closed. The multiplexer
	// uses it to record the final length and release its segment lock.
	onClose func(v *View) error
}

// NewView returns a view over length bytes of f starting at physical offset
// start. The view is writable when f also implements io.Writer. When owner
// is set, closing the view closes f if it implements io.Closer.
func NewView(f io.ReadSeeker, start, length int64, owner bool) (*View, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil stream", ErrInvalidArgument)
	}
	if start < 0 || length < 0 {
		return nil, fmt.Errorf("%w: view range [%d, +%d)", ErrInvalidArgument, start, length)
	}
	w, _ := f.(io.Writer)
	return &View{f: f, w: w, start: start, size: length, owner: owner}, nil
}

// toPhysical maps a logical position to a physical stream offset.
func (v *View) toPhysical(logical int64) int64 {
	return v.start + v.origin + logical
}

// toLogical maps a physical stream offset to a logical position.
func (v *View) toLogical(physical int64) int64 {
	return physical - v.start - v.origin
}

// setOrigin moves logical position 0 to raw offset n and rewinds.
func (v *View) setOrigin(n int64) {
	v.origin = n
	if v.size < n {
		v.size = n
	}
	v.pos = 0
}

// Read copies up to len(p) bytes and returns io.EOF at the logical end. A
// physical stream that ends early yields io.ErrUnexpectedEOF.
func (v *View) Read(p []byte) (int, error) {
	if v.closed {
		return 0, ErrClosed
	}
	remaining := v.Len() - v.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	if _, err := v.f.Seek(v.toPhysical(v.pos), io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(v.f, p)
	v.pos += int64(n)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}

// Write stores p at the current position, growing the view as needed.
func (v *View) Write(p []byte) (int, error) {
	if v.closed {
		return 0, ErrClosed
	}
	if v.w == nil {
		return 0, fmt.Errorf("%w: view is read-only", ErrInvalidOperation)
	}
	if _, err := v.f.Seek(v.toPhysical(v.pos), io.SeekStart); err != nil {
		return 0, err
	}
	n, err := v.w.Write(p)
	v.pos += int64(n)
	if end := v.origin + v.pos; end > v.size {
		v.size = end
	}
	return n, err
}

// Seek sets the logical position. Positions past the end are allowed; reads
// there return io.EOF and writes extend the view.
func (v *View) Seek(offset int64, whence int) (int64, error) {
	if v.closed {
		return 0, ErrClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = v.pos + offset
	case io.SeekEnd:
		abs = v.Len() + offset
	default:
		return 0, fmt.Errorf("%w: whence %d", ErrInvalidArgument, whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("%w: negative position %d", ErrInvalidArgument, abs)
	}
	v.pos = abs
	return abs, nil
}

// Position returns the logical position.
func (v *View) Position() int64 { return v.pos }

// PhysicalPosition returns the physical offset the next operation touches.
func (v *View) PhysicalPosition() int64 { return v.toPhysical(v.pos) }

// SetPhysicalPosition moves to the logical position that maps onto physical
// offset p. Offsets before the origin are rejected.
func (v *View) SetPhysicalPosition(p int64) error {
	logical := v.toLogical(p)
	if logical < 0 {
		return fmt.Errorf("%w: physical offset %d precedes view origin", ErrInvalidArgument, p)
	}
	v.pos = logical
	return nil
}

// Len returns the logical length.
func (v *View) Len() int64 { return v.size - v.origin }

// CanSeek is always true: views require a seekable physical stream.
func (v *View) CanSeek() bool { return true }

// CanWrite reports whether the physical stream accepts writes.
func (v *View) CanWrite() bool { return v.w != nil }

// Start returns the physical offset of the view's first raw byte.
func (v *View) Start() int64 { return v.start }

// rawLen is the stored length including anything below the origin.
func (v *View) rawLen() int64 { return v.size }

// readRaw fills p from raw offset off, ignoring the origin.
func (v *View) readRaw(off int64, p []byte) error {
	if off < 0 || off+int64(len(p)) > v.size {
		return fmt.Errorf("%w: raw read [%d, +%d) outside view of %d bytes", ErrCorrupt, off, len(p), v.size)
	}
	if _, err := v.f.Seek(v.start+off, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(v.f, p); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// writeRaw stores p at raw offset off, ignoring the origin.
func (v *View) writeRaw(off int64, p []byte) error {
	if v.w == nil {
		return fmt.Errorf("%w: view is read-only", ErrInvalidOperation)
	}
	if _, err := v.f.Seek(v.start+off, io.SeekStart); err != nil {
		return err
	}
	if _, err := v.w.Write(p); err != nil {
		return err
	}
	if end := off + int64(len(p)); end > v.size {
		v.size = end
	}
	return nil
}

// seekEnd leaves the physical cursor just past the view's last byte so
// anything appended after this segment lands in the right place.
func (v *View) seekEnd() error {
	_, err := v.f.Seek(v.start+v.size, io.SeekStart)
	return err
}

// Close releases the view. The physical stream is closed only when the view
// owns it. Closing twice is a no-op.
func (v *View) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	var errs []error
	if v.onClose != nil {
		errs = append(errs, v.onClose(v))
	}
	if v.owner {
		if c, ok := v.f.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
