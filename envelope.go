// Integrity envelopes: a fixed-size header in front of a segment's content
// holding its digest, an optional signature and the declared content length.
//
// Header layout (little-endian):
//
//	[H]byte hash             H = digest size of the configured algorithm
//	[S]byte signature        S = key signature size, 0 without a key
//	int64   declared length
//
// The digest input is always LE64(length) followed by the content, so a body
// cannot be truncated or extended without changing the digest.
//
// An envelope being created writes a zeroed placeholder header, accepts
// content, and on Close rewrites the header in place. The header width is
// fixed when the envelope is built so the patch never shifts data. An
// envelope opened over existing bytes is read-only and verifies according to
// its VerifyMode.
package segfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// VerifyMode selects how strictly an assured segment is checked on open.
// The zero value is VerifyFull; skipping verification must be asked for.
type VerifyMode int

const (
	VerifyFull VerifyMode = iota // Signature, digest and length
	VerifyHash                   // Signature over the stored digest only
	VerifyNone                   // No checks
)

// String returns the mode's configuration name.
func (m VerifyMode) String() string {
	switch m {
	case VerifyFull:
		return "full"
	case VerifyHash:
		return "hash"
	case VerifyNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseVerifyMode parses "full", "hash" or "none".
func ParseVerifyMode(name string) (VerifyMode, error) {
	switch name {
	case "full", "":
		return VerifyFull, nil
	case "hash":
		return VerifyHash, nil
	case "none":
		return VerifyNone, nil
	default:
		return 0, fmt.Errorf("%w: verify mode %q", ErrInvalidArgument, name)
	}
}

// hashChunk is the read size used while digesting content.
const hashChunk = 8 * 1024

type envelopeState int

const (
	envelopeCreating envelopeState = iota
	envelopeVerifying
	envelopeFinalized
)

// Envelope is the integrity layer of an assured segment.
type Envelope struct {
	view     *View
	ctx      SigningContext
	state    envelopeState
	closed   bool
	hash     []byte
	sig      []byte
	declared int64
	log      zerolog.Logger
}

// createEnvelope reserves a placeholder header at the front of an empty,
// writable view.
func createEnvelope(view *View, ctx SigningContext, log zerolog.Logger) (*Envelope, error) {
	if ctx.algorithm().Size() == 0 {
		return nil, fmt.Errorf("%w: hash algorithm %d", ErrUnsupported, int(ctx.Algorithm))
	}
	if !view.CanWrite() {
		return nil, fmt.Errorf("%w: envelope needs a writable view", ErrInvalidOperation)
	}
	if view.rawLen() != 0 {
		return nil, fmt.Errorf("%w: envelope must start on an empty view", ErrInvalidOperation)
	}
	size := ctx.headerSize()
	if err := view.writeRaw(0, make([]byte, size)); err != nil {
		return nil, fmt.Errorf("reserving integrity header: %w", err)
	}
	view.setOrigin(size)
	return &Envelope{view: view, ctx: ctx, state: envelopeCreating, log: log}, nil
}

// openEnvelope parses the header of a finalized envelope and verifies it.
func openEnvelope(view *View, ctx SigningContext, mode VerifyMode, log zerolog.Logger) (*Envelope, error) {
	alg := ctx.algorithm()
	if alg.Size() == 0 {
		return nil, fmt.Errorf("%w: hash algorithm %d", ErrUnsupported, int(ctx.Algorithm))
	}
	size := ctx.headerSize()
	if view.rawLen() < size {
		return nil, fmt.Errorf("%w: %d bytes cannot hold a %d byte integrity header", ErrCorrupt, view.rawLen(), size)
	}
	buf := make([]byte, size)
	if err := view.readRaw(0, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: integrity header truncated", ErrIntegrity)
		}
		return nil, fmt.Errorf("reading integrity header: %w", err)
	}
	h := alg.Size()
	s := ctx.signatureSize()
	e := &Envelope{
		view:     view,
		ctx:      ctx,
		state:    envelopeVerifying,
		hash:     buf[:h],
		sig:      buf[h : h+s],
		declared: int64(binary.LittleEndian.Uint64(buf[h+s:])),
		log:      log,
	}
	view.setOrigin(size)
	if err := e.verify(mode); err != nil {
		e.log.Warn().Err(err).Int64("start", view.Start()).Str("mode", mode.String()).Msg("segment failed verification")
		return nil, err
	}
	return e, nil
}

func (e *Envelope) verify(mode VerifyMode) error {
	if mode == VerifyNone {
		return nil
	}
	if e.ctx.Key != nil && !e.ctx.Key.Verify(e.hash, e.sig) {
		return fmt.Errorf("%w: signature does not match digest", ErrIntegrity)
	}
	if mode == VerifyHash {
		return nil
	}

	actual := e.view.Len()
	sum, err := e.digest(actual)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: content truncated", ErrIntegrity)
	}
	if err != nil {
		return err
	}
	if !bytes.Equal(sum, e.hash) {
		return fmt.Errorf("%w: digest mismatch", ErrIntegrity)
	}
	if e.declared != actual {
		return fmt.Errorf("%w: declared length %d, stored %d", ErrIntegrity, e.declared, actual)
	}
	e.log.Debug().Int64("start", e.view.Start()).Int64("length", actual).Msg("segment verified")
	return nil
}

// digest hashes LE64(length) then length bytes of content, leaving the
// view rewound to the first content byte.
func (e *Envelope) digest(length int64) ([]byte, error) {
	h, err := e.ctx.algorithm().New()
	if err != nil {
		return nil, err
	}
	var prefix [8]byte
	binary.LittleEndian.PutUint64(prefix[:], uint64(length))
	h.Write(prefix[:])

	if _, err := e.view.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, hashChunk)
	n, err := io.CopyBuffer(h, io.LimitReader(e.view, length), buf)
	if err != nil {
		return nil, err
	}
	if n != length {
		return nil, io.ErrUnexpectedEOF
	}
	if _, err := e.view.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// Read reads content bytes.
func (e *Envelope) Read(p []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	return e.view.Read(p)
}

// Write appends or overwrites content. Only envelopes being created accept
// writes.
func (e *Envelope) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if e.state != envelopeCreating {
		return 0, fmt.Errorf("%w: envelope opened for verification is read-only", ErrInvalidOperation)
	}
	return e.view.Write(p)
}

// Seek moves within the content; position 0 is the first byte after the
// header.
func (e *Envelope) Seek(offset int64, whence int) (int64, error) {
	if e.closed {
		return 0, ErrClosed
	}
	return e.view.Seek(offset, whence)
}

// Len returns the content length.
func (e *Envelope) Len() int64 { return e.view.Len() }

// Hash returns the stored digest, or nil before finalization.
func (e *Envelope) Hash() []byte { return e.hash }

// DeclaredLength returns the length recorded in the header.
func (e *Envelope) DeclaredLength() int64 { return e.declared }

// Close finalizes an envelope being created and closes the view below it.
// Finalizing is unconditional: a created envelope gets its digest, signature
// and declared length written on Close whether or not content was written,
// so every assured segment in a container passes full verification,
// including empty ones. Closing twice is a no-op.
func (e *Envelope) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	var err error
	if e.state == envelopeCreating {
		err = e.finalize()
	}
	return errors.Join(err, e.view.Close())
}

func (e *Envelope) finalize() error {
	length := e.view.Len()
	sum, err := e.digest(length)
	if err != nil {
		return fmt.Errorf("hashing segment: %w", err)
	}

	var sig []byte
	if key := e.ctx.Key; key != nil {
		if !key.CanSign() {
			// Leave the cursor where the next segment expects it.
			e.view.seekEnd()
			return fmt.Errorf("%w: cannot sign with a verify-only key", ErrInvalidOperation)
		}
		sig, err = key.Sign(sum)
		if err != nil {
			return fmt.Errorf("signing segment: %w", err)
		}
		if len(sig) != key.SignatureSize() {
			return fmt.Errorf("%w: signature is %d bytes, header reserves %d", ErrInvalidOperation, len(sig), key.SignatureSize())
		}
	}

	hdr := make([]byte, 0, e.ctx.headerSize())
	hdr = append(hdr, sum...)
	hdr = append(hdr, sig...)
	hdr = binary.LittleEndian.AppendUint64(hdr, uint64(length))
	if err := e.view.writeRaw(0, hdr); err != nil {
		return fmt.Errorf("patching integrity header: %w", err)
	}
	if err := e.view.seekEnd(); err != nil {
		return err
	}

	e.hash, e.sig, e.declared = sum, sig, length
	e.state = envelopeFinalized
	e.log.Debug().Int64("start", e.view.Start()).Int64("length", length).Bool("signed", sig != nil).Msg("segment finalized")
	return nil
}
