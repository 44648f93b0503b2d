package segfile

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
)

func TestEd25519SignVerify(t *testing.T) {
	key := newEd25519(t)
	digest := sha1.Sum([]byte("content"))

	sig, err := key.Sign(digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != key.SignatureSize() {
		t.Errorf("signature is %d bytes, want %d", len(sig), key.SignatureSize())
	}
	pub := key.PublicOnly()
	if !pub.Verify(digest[:], sig) {
		t.Error("public half rejected a valid signature")
	}
	if pub.CanSign() {
		t.Error("public-only key claims it can sign")
	}
	if _, err := pub.Sign(digest[:]); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Sign with public key = %v, want ErrInvalidOperation", err)
	}
	if newEd25519(t).Verify(digest[:], sig) {
		t.Error("unrelated key accepted the signature")
	}
}

func TestRSASignVerify(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	key := NewRSAKey(priv)
	digest := sha1.Sum([]byte("content"))

	sig, err := key.Sign(digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != 256 || key.SignatureSize() != 256 {
		t.Errorf("signature is %d bytes, size %d; want 256", len(sig), key.SignatureSize())
	}
	if !key.PublicOnly().Verify(digest[:], sig) {
		t.Error("public half rejected a valid signature")
	}
	digest[0] ^= 1
	if key.Verify(digest[:], sig) {
		t.Error("signature verified over a different digest")
	}
}

func TestParseKeys(t *testing.T) {
	key := newEd25519(t)
	privDER, err := x509.MarshalPKCS8PrivateKey(key.Private)
	if err != nil {
		t.Fatalf("marshal private: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(key.Public)
	if err != nil {
		t.Fatalf("marshal public: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	priv, err := ParsePrivateKey(privPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(pubPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if !priv.CanSign() || pub.CanSign() {
		t.Errorf("CanSign: private %v, public %v", priv.CanSign(), pub.CanSign())
	}
	sig, _ := priv.Sign([]byte("digest"))
	if !pub.Verify([]byte("digest"), sig) {
		t.Error("parsed public key rejected parsed private key's signature")
	}
}

func TestParseKeysRejectsGarbage(t *testing.T) {
	if _, err := ParsePrivateKey([]byte("not pem")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParsePrivateKey = %v, want ErrInvalidArgument", err)
	}
	bad := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{1, 2, 3}})
	if _, err := ParsePublicKey(bad); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParsePublicKey = %v, want ErrInvalidArgument", err)
	}
}
