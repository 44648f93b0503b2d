package segfile

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Options configures a Writer or Reader. Zero values select the defaults.
type Options struct {
	Slots            int            // First header block reservation (default 16)
	Signing          SigningContext // Digest algorithm and optional key for assured segments
	Codec            Codec          // Codec for new compressed segments (default deflate)
	CompressionLevel int            // 1=fastest, 2=default, 3=best; 0 picks the codec default
	Verify           VerifyMode     // Reader check for assured segments (default full)
	WaitLock         bool           // Block on a held file lock instead of failing with ErrLocked
	Logger           *zerolog.Logger
}

func (o Options) withDefaults() (Options, error) {
	if o.Slots == 0 {
		o.Slots = DefaultSlots
	}
	if o.Slots < 1 || o.Slots > MaxSlots {
		return o, fmt.Errorf("%w: slot reservation %d not in [1, %d]", ErrInvalidArgument, o.Slots, MaxSlots)
	}
	if o.Signing.Algorithm == 0 {
		o.Signing.Algorithm = HashSHA1
	}
	if o.Signing.Algorithm.Size() == 0 {
		return o, fmt.Errorf("%w: hash algorithm %d", ErrUnsupported, int(o.Signing.Algorithm))
	}
	if o.Codec > CodecLZ4 {
		return o, fmt.Errorf("%w: codec %d", ErrUnsupported, uint8(o.Codec))
	}
	if o.CompressionLevel < 0 || o.CompressionLevel > 3 {
		return o, fmt.Errorf("%w: compression level %d", ErrInvalidArgument, o.CompressionLevel)
	}
	if o.Verify < VerifyFull || o.Verify > VerifyNone {
		return o, fmt.Errorf("%w: verify mode %d", ErrInvalidArgument, int(o.Verify))
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o, nil
}
