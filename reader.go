// Multiplexer reader.
//
// The reader loads the whole header table chain on open and then hands out
// segments in table order. A cursor tracks the next record; typed scans
// move it forward past records of other types, and Reset rewinds it.
package segfile

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Reader reads segments from a container.
type Reader struct {
	f       io.ReadSeeker
	opts    Options
	log     zerolog.Logger
	file    *os.File
	lock    *fileLock
	records []Record
	cursor  int
	open    *Segment
	closed  bool
}

// NewReader parses the container starting at f's current position. The
// caller keeps ownership of f.
func NewReader(f io.ReadSeeker, opts Options) (*Reader, error) {
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
	r := &Reader{
		f:    f,
		opts: opts,
		log:  opts.Logger.With().Str("component", "reader").Logger(),
	}

	// readBlock rejects links that do not move forward, so the chain
	// always terminates.
	blocks := 0
	for offset := base; ; {
		b, records, err := readBlock(f, offset)
		if err != nil {
			return nil, err
		}
		r.records = append(r.records, records...)
		blocks++
		if b.next == 0 {
			break
		}
		offset = b.next
	}
	r.log.Debug().Int("segments", len(r.records)).Int("blocks", blocks).Msg("header table loaded")
	return r, nil
}

// Open opens the container at path for reading under a shared lock.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	lock, err := acquire(f, LockShared, opts.WaitLock)
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := NewReader(f, opts)
	if err != nil {
		release(lock, f)
		return nil, err
	}
	r.file, r.lock = f, lock
	return r, nil
}

// Records returns a copy of the header table in container order.
func (r *Reader) Records() []Record {
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of segments in the container.
func (r *Reader) Len() int { return len(r.records) }

// Next opens the segment at the cursor and advances past it. It returns
// io.EOF after the last record and ErrInvalidOperation while a previously
// returned segment is still open. Assured segments are verified before
// Next returns; a failed check is an ErrIntegrity and the cursor stays
// advanced.
func (r *Reader) Next() (*Segment, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.open != nil {
		return nil, fmt.Errorf("%w: segment %d is still open", ErrInvalidOperation, r.open.Type())
	}
	if r.cursor >= len(r.records) {
		return nil, io.EOF
	}
	idx := r.cursor
	r.cursor++
	seg, err := r.openSegment(r.records[idx])
	if err != nil {
		return nil, fmt.Errorf("segment %d: %w", idx, err)
	}
	return seg, nil
}

// NextOfType skips forward to the first record with the given type tag and
// opens it. Skipped records stay reachable after Reset. When no record
// matches it returns io.EOF and leaves the cursor where it was.
func (r *Reader) NextOfType(typ uint32) (*Segment, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.open != nil {
		return nil, fmt.Errorf("%w: segment %d is still open", ErrInvalidOperation, r.open.Type())
	}
	for i := r.cursor; i < len(r.records); i++ {
		if r.records[i].Type == typ {
			r.cursor = i
			return r.Next()
		}
	}
	return nil, io.EOF
}

// Reset rewinds the cursor to the first record.
func (r *Reader) Reset() error {
	if r.closed {
		return ErrClosed
	}
	if r.open != nil {
		return fmt.Errorf("%w: cannot reset while segment %d is open", ErrInvalidOperation, r.open.Type())
	}
	r.cursor = 0
	return nil
}

func (r *Reader) openSegment(rec Record) (*Segment, error) {
	view, err := NewView(r.f, rec.Start, rec.Length, false)
	if err != nil {
		return nil, err
	}
	seg := &Segment{rec: rec, top: view}
	view.onClose = func(*View) error { return r.closeStream(seg) }

	if rec.Assured {
		env, err := openEnvelope(view, r.opts.Signing, r.opts.Verify, r.log)
		if err != nil {
			return nil, err
		}
		seg.env = env
		seg.top = env
	}
	if rec.Compressed {
		c, err := newDecompressReader(seg.top, rec.Codec)
		if err != nil {
			return nil, err
		}
		seg.top = c
	}
	r.open = seg
	return seg, nil
}

// closeStream runs when a segment's view closes and releases the
// one-open-segment lock.
func (r *Reader) closeStream(seg *Segment) error {
	if r.open != seg {
		return fmt.Errorf("%w: closing a segment this reader did not open", ErrInvalidOperation)
	}
	r.open = nil
	return nil
}

// Close releases the reader. Containers opened with Open are unlocked and
// closed. It fails while a segment is still open.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	if r.open != nil {
		return fmt.Errorf("%w: segment %d is still open", ErrInvalidOperation, r.open.Type())
	}
	r.closed = true
	if r.file == nil {
		return nil
	}
	return release(r.lock, r.file)
}
