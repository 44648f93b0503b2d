// Compression decorator for segment streams.
//
// The decorator is always the outermost layer. On write it compresses into
// the integrity envelope (or bare view), so the envelope digest covers the
// compressed bytes. On read the envelope has already been verified by the
// time a decoder is built, so corrupt input never reaches the decompressor
// under VerifyFull.
//
// Deflate is the format's default codec. Zstd and LZ4 are selectable per
// writer; the codec is recorded in the segment's flag bits so readers need
// no configuration to decode it.
package segfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a compression algorithm. Values are stored in two flag
// bits of each header record; changing them breaks existing containers.
type Codec uint8

const (
	CodecDeflate Codec = 0
	CodecZstd    Codec = 1
	CodecLZ4     Codec = 2
)

// String returns the codec's configuration name.
func (c Codec) String() string {
	switch c {
	case CodecDeflate:
		return "deflate"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec parses "deflate", "zstd" or "lz4".
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "deflate", "":
		return CodecDeflate, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return 0, fmt.Errorf("%w: codec %q", ErrUnsupported, name)
	}
}

// stream is what each layer exposes to the one above it.
type stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// compressor transparently deflates writes or inflates reads over inner.
type compressor struct {
	inner  stream
	enc    io.WriteCloser // Set when writing
	dec    io.ReadCloser  // Set when reading
	closed bool
}

// Compression levels follow the same 1..3 scale for every codec; 0 picks
// the codec default.
func newCompressWriter(inner stream, codec Codec, level int) (*compressor, error) {
	var enc io.WriteCloser
	switch codec {
	case CodecDeflate:
		l := flate.DefaultCompression
		switch level {
		case 1:
			l = flate.BestSpeed
		case 3:
			l = flate.BestCompression
		}
		w, err := flate.NewWriter(inner, l)
		if err != nil {
			return nil, err
		}
		enc = w
	case CodecZstd:
		l := zstd.SpeedDefault
		switch level {
		case 1:
			l = zstd.SpeedFastest
		case 3:
			l = zstd.SpeedBetterCompression
		}
		w, err := zstd.NewWriter(inner, zstd.WithEncoderLevel(l), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		enc = w
	case CodecLZ4:
		w := lz4.NewWriter(inner)
		l := lz4.Fast
		switch level {
		case 2:
			l = lz4.Level5
		case 3:
			l = lz4.Level9
		}
		if err := w.Apply(lz4.CompressionLevelOption(l), lz4.ConcurrencyOption(1)); err != nil {
			return nil, err
		}
		enc = w
	default:
		return nil, fmt.Errorf("%w: codec %d", ErrUnsupported, uint8(codec))
	}
	return &compressor{inner: inner, enc: enc}, nil
}

func newDecompressReader(inner stream, codec Codec) (*compressor, error) {
	var dec io.ReadCloser
	switch codec {
	case CodecDeflate:
		dec = flate.NewReader(inner)
	case CodecZstd:
		d, err := zstd.NewReader(inner, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
		dec = d.IOReadCloser()
	case CodecLZ4:
		dec = io.NopCloser(lz4.NewReader(inner))
	default:
		return nil, fmt.Errorf("%w: codec %d", ErrUnsupported, uint8(codec))
	}
	return &compressor{inner: inner, dec: dec}, nil
}

func (c *compressor) Read(p []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if c.dec == nil {
		return 0, fmt.Errorf("%w: compressed segment opened for writing", ErrInvalidOperation)
	}
	n, err := c.dec.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: decompress: %w", ErrCorrupt, err)
	}
	return n, err
}

func (c *compressor) Write(p []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if c.enc == nil {
		return 0, fmt.Errorf("%w: compressed segment opened for reading", ErrInvalidOperation)
	}
	return c.enc.Write(p)
}

// Close flushes the encoder (or releases the decoder) before closing the
// layer underneath.
func (c *compressor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var err error
	if c.enc != nil {
		err = c.enc.Close()
	}
	if c.dec != nil {
		err = c.dec.Close()
	}
	return errors.Join(err, c.inner.Close())
}
