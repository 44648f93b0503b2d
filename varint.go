// Compact integer codec for length prefixes inside headers.
//
// Integers are written as 7-bit groups, least significant group first, with
// the high bit of every byte except the last set as a continuation marker.
// This is the same wire form as protobuf/multiformats unsigned varints; the
// multiformats implementation is used because it rejects non-minimal
// encodings, which keeps every value's byte representation unique.
package segfile

import (
	"fmt"
	"io"
	"math"

	"github.com/multiformats/go-varint"
)

// MaxInt is the largest value the compact codec accepts.
const MaxInt = math.MaxInt32

// maxIntBytes is ceil(31/7): the longest valid encoding of MaxInt.
const maxIntBytes = 5

// IntSize returns the number of bytes the compact encoding of v occupies,
// or 0 when v is outside [0, MaxInt] and has no encoding.
func IntSize(v int) int {
	if v < 0 || v > MaxInt {
		return 0
	}
	return varint.UvarintSize(uint64(v))
}

// AppendInt appends the compact encoding of v to dst.
func AppendInt(dst []byte, v int) ([]byte, error) {
	if v < 0 || v > MaxInt {
		return dst, fmt.Errorf("%w: compact integer %d out of range", ErrInvalidArgument, v)
	}
	var buf [maxIntBytes]byte
	n := varint.PutUvarint(buf[:], uint64(v))
	return append(dst, buf[:n]...), nil
}

// WriteInt writes the compact encoding of v to w.
func WriteInt(w io.Writer, v int) error {
	buf, err := AppendInt(nil, v)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadInt decodes one compact integer from r. Overlong, non-minimal or
// out-of-range encodings are reported as ErrCorrupt.
func ReadInt(r io.ByteReader) (int, error) {
	// varint.ReadUvarint accepts up to 9 bytes; cap at our width first so a
	// run of continuation bytes never reads past the field.
	lr := &limitedByteReader{r: r, n: maxIntBytes}
	v, err := varint.ReadUvarint(lr)
	if err != nil {
		if err == io.EOF && lr.read == 0 {
			return 0, io.EOF
		}
		if lr.exhausted {
			return 0, fmt.Errorf("%w: compact integer exceeds %d bytes", ErrCorrupt, maxIntBytes)
		}
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, fmt.Errorf("%w: compact integer: %w", ErrCorrupt, err)
	}
	if v > MaxInt {
		return 0, fmt.Errorf("%w: compact integer %d out of range", ErrCorrupt, v)
	}
	return int(v), nil
}

// WriteByteArray writes len(b) as a compact integer followed by b.
func WriteByteArray(w io.Writer, b []byte) error {
	if err := WriteInt(w, len(b)); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadByteArray reads a length-prefixed byte array written by WriteByteArray.
// Lengths above max are rejected before allocating.
func ReadByteArray(r io.Reader, max int) ([]byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &singleByteReader{r: r}
	}
	n, err := ReadInt(br)
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, fmt.Errorf("%w: byte array length %d exceeds limit %d", ErrCorrupt, n, max)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: byte array: %w", ErrCorrupt, err)
	}
	return buf, nil
}

// limitedByteReader stops after n bytes so a corrupt varint cannot consume
// the fields that follow it.
type limitedByteReader struct {
	r         io.ByteReader
	n         int
	read      int
	exhausted bool
}

func (l *limitedByteReader) ReadByte() (byte, error) {
	if l.read >= l.n {
		l.exhausted = true
		return 0, io.ErrUnexpectedEOF
	}
	b, err := l.r.ReadByte()
	if err != nil {
		return 0, err
	}
	l.read++
	return b, nil
}

// singleByteReader adapts an io.Reader without buffering, so nothing past
// the prefix is consumed.
type singleByteReader struct {
	r   io.Reader
	buf [1]byte
}

func (s *singleByteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		return 0, err
	}
	return s.buf[0], nil
}
