// Multiplexer writer.
//
// The writer owns the physical cursor. It writes the first header block on
// open, then appends segment bodies after it. Each BeginSegment claims the
// next header slot, positions the body at the end of data and stacks the
// requested layers. Closing the segment records its final length in the
// slot and moves the end of data past it.
package segfile

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Writer appends segments to a container.
type Writer struct {
	f      io.ReadWriteSeeker
	opts   Options
	log    zerolog.Logger
	file   *os.File // Set when the writer opened the file itself
	lock   *fileLock
	cur    *headerBlock // Block receiving new records
	tail   int64        // End of data
	count  int
	open   *Segment
	closed bool
}

// NewWriter starts a container at f's current position. The caller keeps
// ownership of f; it must not be used by anything else until Close.
func NewWriter(f io.ReadWriteSeeker, opts Options) (*Writer, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil stream", ErrInvalidArgument)
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	base, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		f:    f,
		opts: opts,
		log:  opts.Logger.With().Str("component", "writer").Logger(),
		cur:  &headerBlock{offset: base, reserved: opts.Slots},
	}
	if err := w.writeAt(base, w.cur.encode()); err != nil {
		return nil, fmt.Errorf("writing header block: %w", err)
	}
	w.tail = w.cur.end()
	return w, nil
}

// Create creates or truncates the file at path and starts a container in
// it. The file is held under an exclusive lock until Close.
func Create(path string, opts Options) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	lock, err := acquire(f, LockExclusive, opts.WaitLock)
	if err != nil {
		f.Close()
		return nil, err
	}
	// Truncate only once the lock is held so a concurrent reader never
	// sees the file emptied under it.
	if err := f.Truncate(0); err != nil {
		release(lock, f)
		return nil, err
	}
	w, err := NewWriter(f, opts)
	if err != nil {
		release(lock, f)
		return nil, err
	}
	w.file, w.lock = f, lock
	return w, nil
}

// BeginSegment claims the next header slot and returns a stream for the new
// segment's content. Only one segment may be open at a time.
func (w *Writer) BeginSegment(typ uint32, flags Flags) (*Segment, error) {
	if w.closed {
		return nil, ErrClosed
	}
	if w.open != nil {
		return nil, fmt.Errorf("%w: segment %d is still open", ErrInvalidOperation, w.open.Type())
	}
	if typ > MaxType {
		return nil, fmt.Errorf("%w: type tag %d exceeds %d", ErrInvalidArgument, typ, MaxType)
	}
	if w.cur.count == w.cur.reserved {
		if err := w.extend(); err != nil {
			return nil, err
		}
	}

	rec := Record{
		Type:       typ,
		Assured:    flags&Assured != 0,
		Compressed: flags&Compressed != 0,
		Start:      w.tail,
	}
	if rec.Compressed {
		rec.Codec = w.opts.Codec
	}
	seg := &Segment{rec: rec, block: w.cur, slot: w.cur.count, writing: true}
	if err := w.writeSlot(seg); err != nil {
		return nil, err
	}
	w.cur.count++
	if err := w.writeAt(w.cur.offset, w.cur.encodeHeader()); err != nil {
		return nil, fmt.Errorf("updating header block: %w", err)
	}

	view, err := NewView(w.f, rec.Start, 0, false)
	if err != nil {
		return nil, err
	}
	view.onClose = func(v *View) error { return w.closeStream(seg, v.rawLen()) }
	w.open = seg
	seg.top = view

	if rec.Assured {
		env, err := createEnvelope(view, w.opts.Signing, w.log)
		if err != nil {
			view.Close()
			return nil, err
		}
		seg.env = env
		seg.top = env
	}
	if rec.Compressed {
		c, err := newCompressWriter(seg.top, rec.Codec, w.opts.CompressionLevel)
		if err != nil {
			seg.top.Close()
			return nil, err
		}
		seg.top = c
	}

	w.log.Debug().Uint32("type", typ).Int64("start", rec.Start).
		Bool("assured", rec.Assured).Bool("compressed", rec.Compressed).
		Msg("segment started")
	return seg, nil
}

// extend writes a continuation block at the end of data and links the
// current block to it.
func (w *Writer) extend() error {
	next := &headerBlock{offset: w.tail, reserved: min(w.cur.reserved*2, MaxSlots)}
	if err := w.writeAt(next.offset, next.encode()); err != nil {
		return fmt.Errorf("writing continuation block: %w", err)
	}
	w.cur.next = next.offset
	if err := w.writeAt(w.cur.offset, w.cur.encodeHeader()); err != nil {
		return fmt.Errorf("linking continuation block: %w", err)
	}
	w.log.Debug().Int64("offset", next.offset).Int("slots", next.reserved).Msg("header block added")
	w.cur = next
	w.tail = next.end()
	return nil
}

// closeStream runs when a segment's view closes. It records the final
// stored length and releases the one-open-segment lock.
func (w *Writer) closeStream(seg *Segment, length int64) error {
	if w.open != seg {
		return fmt.Errorf("%w: closing a segment this writer did not open", ErrInvalidOperation)
	}
	w.open = nil
	seg.rec.Length = length
	if err := w.writeSlot(seg); err != nil {
		return fmt.Errorf("recording segment length: %w", err)
	}
	w.tail = seg.rec.Start + length
	w.count++
	if _, err := w.f.Seek(w.tail, io.SeekStart); err != nil {
		return err
	}
	w.log.Debug().Uint32("type", seg.rec.Type).Int64("length", length).Msg("segment closed")
	return nil
}

func (w *Writer) writeSlot(seg *Segment) error {
	buf := make([]byte, recordSize)
	seg.rec.encode(buf)
	return w.writeAt(seg.block.slotOffset(seg.slot), buf)
}

// writeAt patches bytes at an absolute offset.
func (w *Writer) writeAt(offset int64, data []byte) error {
	if _, err := w.f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := w.f.Write(data)
	return err
}

// Len returns the number of segments closed so far.
func (w *Writer) Len() int { return w.count }

// Size returns the end of data: the container's total length when it
// started at offset 0.
func (w *Writer) Size() int64 { return w.tail }

// Close leaves the physical cursor at the end of data and, for containers
// opened with Create, syncs, unlocks and closes the file. It fails while a
// segment is still open.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if w.open != nil {
		return fmt.Errorf("%w: segment %d is still open", ErrInvalidOperation, w.open.Type())
	}
	w.closed = true
	if _, err := w.f.Seek(w.tail, io.SeekStart); err != nil {
		return err
	}
	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		release(w.lock, w.file)
		return err
	}
	return release(w.lock, w.file)
}
