package segfile

import (
	"fmt"
	"io"
)

// Segment is the stream handed out by Writer.BeginSegment and Reader.Next.
// It must be closed before the owning Writer or Reader will hand out
// another one.
type Segment struct {
	rec     Record
	top     stream    // Outermost layer
	env     *Envelope // nil unless assured
	block   *headerBlock
	slot    int
	writing bool
	closed  bool
}

// Record returns the segment's header table entry. For a segment being
// written, Length is final only after Close.
func (s *Segment) Record() Record { return s.rec }

// Type returns the segment's type tag.
func (s *Segment) Type() uint32 { return s.rec.Type }

// Envelope returns the integrity layer, or nil for unassured segments.
func (s *Segment) Envelope() *Envelope { return s.env }

func (s *Segment) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.writing {
		return 0, fmt.Errorf("%w: segment opened for writing", ErrInvalidOperation)
	}
	return s.top.Read(p)
}

func (s *Segment) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if !s.writing {
		return 0, fmt.Errorf("%w: segment opened for reading", ErrInvalidOperation)
	}
	return s.top.Write(p)
}

// Seek is available on uncompressed segments. Offsets are relative to the
// first content byte.
func (s *Segment) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	sk, ok := s.top.(io.Seeker)
	if !ok {
		return 0, fmt.Errorf("%w: compressed segments are not seekable", ErrInvalidOperation)
	}
	return sk.Seek(offset, whence)
}

// Close finalizes the layers inside-out: compression flush, integrity
// header patch, then the header table entry. Closing twice is a no-op.
func (s *Segment) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.top.Close()
}
