package segfile

import (
	"bytes"
	"crypto/ed25519"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// tempFile returns an empty read/write file that is closed at cleanup.
func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "view.bin"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.seg")
}

// segSpec describes one segment for writeContainer.
type segSpec struct {
	typ   uint32
	flags Flags
	data  []byte
}

func writeContainer(t *testing.T, path string, opts Options, specs []segSpec) {
	t.Helper()
	w, err := Create(path, opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i, s := range specs {
		seg, err := w.BeginSegment(s.typ, s.flags)
		if err != nil {
			t.Fatalf("BeginSegment %d: %v", i, err)
		}
		if _, err := seg.Write(s.data); err != nil {
			t.Fatalf("write segment %d: %v", i, err)
		}
		if err := seg.Close(); err != nil {
			t.Fatalf("close segment %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
}

func openContainer(t *testing.T, path string, opts Options) *Reader {
	t.Helper()
	r, err := Open(path, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// drain reads a segment to the end and closes it.
func drain(t *testing.T, seg *Segment) []byte {
	t.Helper()
	data, err := io.ReadAll(seg)
	if err != nil {
		t.Fatalf("read segment: %v", err)
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("close segment: %v", err)
	}
	return data
}

// flipByte inverts the byte at off.
func flipByte(t *testing.T, path string, off int64) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	b := make([]byte, 1)
	if _, err := f.ReadAt(b, off); err != nil {
		t.Fatalf("read byte: %v", err)
	}
	b[0] ^= 0xff
	if _, err := f.WriteAt(b, off); err != nil {
		t.Fatalf("write byte: %v", err)
	}
}

func newEd25519(t *testing.T) *Ed25519Key {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewEd25519Key(priv)
}

// pattern returns n bytes that compress well but are not all equal.
func pattern(n int) []byte {
	return bytes.Repeat([]byte("segment payload 0123456789\n"), n/27+1)[:n]
}
