// Signing keys and the signing context handed to integrity envelopes.
//
// A key signs or verifies the envelope digest directly. Keys loaded from a
// public key only verify; finalizing an envelope with one fails with
// ErrInvalidOperation. Signature sizes are fixed per key so the envelope
// header never changes width.
package segfile

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Key signs and verifies envelope digests.
type Key interface {
	// SignatureSize is the fixed length of every signature this key emits.
	SignatureSize() int
	// CanSign reports whether the private half is available.
	CanSign() bool
	// Sign returns a signature over digest.
	Sign(digest []byte) ([]byte, error)
	// Verify reports whether sig is a valid signature over digest.
	Verify(digest, sig []byte) bool
}

// SigningContext is the digest algorithm plus an optional key. The zero
// value means SHA-1 digests without signatures.
type SigningContext struct {
	Algorithm HashAlgorithm
	Key       Key
}

func (c SigningContext) algorithm() HashAlgorithm {
	if c.Algorithm == 0 {
		return HashSHA1
	}
	return c.Algorithm
}

// headerSize is hash + signature + declared length.
func (c SigningContext) headerSize() int64 {
	return int64(c.algorithm().Size() + c.signatureSize() + 8)
}

func (c SigningContext) signatureSize() int {
	if c.Key == nil {
		return 0
	}
	return c.Key.SignatureSize()
}

// Ed25519Key is an Ed25519 key pair or public key.
type Ed25519Key struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey // nil for verify-only keys
}

// NewEd25519Key wraps a private key; its public half is derived.
func NewEd25519Key(priv ed25519.PrivateKey) *Ed25519Key {
	return &Ed25519Key{Public: priv.Public().(ed25519.PublicKey), Private: priv}
}

// PublicOnly returns a verify-only copy of the key.
func (k *Ed25519Key) PublicOnly() *Ed25519Key {
	return &Ed25519Key{Public: k.Public}
}

func (k *Ed25519Key) SignatureSize() int { return ed25519.SignatureSize }

func (k *Ed25519Key) CanSign() bool { return len(k.Private) == ed25519.PrivateKeySize }

func (k *Ed25519Key) Sign(digest []byte) ([]byte, error) {
	if !k.CanSign() {
		return nil, fmt.Errorf("%w: ed25519 key has no private half", ErrInvalidOperation)
	}
	return ed25519.Sign(k.Private, digest), nil
}

func (k *Ed25519Key) Verify(digest, sig []byte) bool {
	if len(k.Public) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(k.Public, digest, sig)
}

// RSAKey signs the raw digest with PKCS #1 v1.5. The signature size is the
// modulus size.
type RSAKey struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey // nil for verify-only keys
}

// NewRSAKey wraps a private key; its public half is derived.
func NewRSAKey(priv *rsa.PrivateKey) *RSAKey {
	return &RSAKey{Public: &priv.PublicKey, Private: priv}
}

// PublicOnly returns a verify-only copy of the key.
func (k *RSAKey) PublicOnly() *RSAKey {
	return &RSAKey{Public: k.Public}
}

func (k *RSAKey) SignatureSize() int { return k.Public.Size() }

func (k *RSAKey) CanSign() bool { return k.Private != nil }

func (k *RSAKey) Sign(digest []byte) ([]byte, error) {
	if !k.CanSign() {
		return nil, fmt.Errorf("%w: rsa key has no private half", ErrInvalidOperation)
	}
	// crypto.Hash(0) signs the digest bytes as given; the envelope chooses
	// the digest algorithm, not the key.
	return rsa.SignPKCS1v15(rand.Reader, k.Private, crypto.Hash(0), digest)
}

func (k *RSAKey) Verify(digest, sig []byte) bool {
	return rsa.VerifyPKCS1v15(k.Public, crypto.Hash(0), digest, sig) == nil
}

// ParsePrivateKey loads a PKCS #8 "PRIVATE KEY" or PKCS #1 "RSA PRIVATE
// KEY" PEM block.
func ParsePrivateKey(data []byte) (Key, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in private key", ErrInvalidArgument)
	}
	if block.Type == "RSA PRIVATE KEY" {
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return NewRSAKey(priv), nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	switch priv := parsed.(type) {
	case ed25519.PrivateKey:
		return NewEd25519Key(priv), nil
	case *rsa.PrivateKey:
		return NewRSAKey(priv), nil
	default:
		return nil, fmt.Errorf("%w: private key type %T", ErrUnsupported, parsed)
	}
}

// ParsePublicKey loads a PKIX "PUBLIC KEY" PEM block as a verify-only key.
func ParsePublicKey(data []byte) (Key, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in public key", ErrInvalidArgument)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	switch pub := parsed.(type) {
	case ed25519.PublicKey:
		return &Ed25519Key{Public: pub}, nil
	case *rsa.PublicKey:
		return &RSAKey{Public: pub}, nil
	default:
		return nil, fmt.Errorf("%w: public key type %T", ErrUnsupported, parsed)
	}
}
