// Digest algorithms for integrity envelopes.
//
// The algorithm is not recorded in the container: writer and reader must be
// configured with the same one, exactly as they must agree on the signing
// key. Its digest size fixes the width of every envelope header.
package segfile

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm selects the digest used by integrity envelopes.
type HashAlgorithm int

// Hash algorithm constants.
const (
	HashSHA1       HashAlgorithm = 1 // Default, 20-byte digest
	HashSHA256     HashAlgorithm = 2
	HashBlake2b256 HashAlgorithm = 3
	HashBLAKE3     HashAlgorithm = 4
	HashXXH3       HashAlgorithm = 5 // Checksum only, not tamper resistant
)

// String returns the algorithm's configuration name.
func (a HashAlgorithm) String() string {
	switch a {
	case HashSHA1:
		return "sha1"
	case HashSHA256:
		return "sha256"
	case HashBlake2b256:
		return "blake2b-256"
	case HashBLAKE3:
		return "blake3"
	case HashXXH3:
		return "xxh3"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// ParseHashAlgorithm parses the name produced by HashAlgorithm.String.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	for _, a := range []HashAlgorithm{HashSHA1, HashSHA256, HashBlake2b256, HashBLAKE3, HashXXH3} {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: hash algorithm %q", ErrUnsupported, name)
}

// New returns a fresh hasher for the algorithm.
func (a HashAlgorithm) New() (hash.Hash, error) {
	switch a {
	case HashSHA1:
		return sha1.New(), nil
	case HashSHA256:
		return sha256.New(), nil
	case HashBlake2b256:
		// Only fails for an oversized key; we pass none.
		h, err := blake2b.New256(nil)
		if err != nil {
			return nil, err
		}
		return h, nil
	case HashBLAKE3:
		return blake3.New(), nil
	case HashXXH3:
		return xxh3.New(), nil
	default:
		return nil, fmt.Errorf("%w: hash algorithm %d", ErrUnsupported, int(a))
	}
}

// Size returns the digest length in bytes, or 0 for an unknown algorithm.
func (a HashAlgorithm) Size() int {
	switch a {
	case HashSHA1:
		return sha1.Size
	case HashSHA256, HashBlake2b256, HashBLAKE3:
		return 32
	case HashXXH3:
		return 8
	default:
		return 0
	}
}
