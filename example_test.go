package segfile_test

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jpl-au/segfile"
)

func Example() {
	dir, _ := os.MkdirTemp("", "segfile-example")
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "bundle.seg")

	w, err := segfile.Create(path, segfile.Options{})
	if err != nil {
		log.Fatal(err)
	}
	for i, body := range []string{"first", "second"} {
		seg, err := w.BeginSegment(uint32(i+1), segfile.Assured|segfile.Compressed)
		if err != nil {
			log.Fatal(err)
		}
		io.WriteString(seg, body)
		if err := seg.Close(); err != nil {
			log.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		log.Fatal(err)
	}

	r, err := segfile.Open(path, segfile.Options{})
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()
	for {
		seg, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatal(err)
		}
		data, _ := io.ReadAll(seg)
		seg.Close()
		fmt.Printf("%d: %s\n", seg.Type(), data)
	}
	// Output:
	// 1: first
	// 2: second
}

func ExampleReader_NextOfType() {
	dir, _ := os.MkdirTemp("", "segfile-example")
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "typed.seg")

	w, _ := segfile.Create(path, segfile.Options{})
	for _, s := range []struct {
		typ  uint32
		body string
	}{{1, "meta"}, {2, "data"}, {1, "more meta"}} {
		seg, _ := w.BeginSegment(s.typ, 0)
		io.WriteString(seg, s.body)
		seg.Close()
	}
	w.Close()

	r, _ := segfile.Open(path, segfile.Options{})
	defer r.Close()

	// Jump straight to the data segment.
	seg, _ := r.NextOfType(2)
	data, _ := io.ReadAll(seg)
	seg.Close()
	fmt.Println(string(data))
	// Output: data
}

func ExampleEd25519Key() {
	dir, _ := os.MkdirTemp("", "segfile-example")
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "signed.seg")

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		log.Fatal(err)
	}
	key := segfile.NewEd25519Key(priv)
	signing := segfile.SigningContext{Algorithm: segfile.HashSHA256, Key: key}

	w, _ := segfile.Create(path, segfile.Options{Signing: signing})
	seg, _ := w.BeginSegment(1, segfile.Assured)
	io.WriteString(seg, "release notes")
	seg.Close()
	w.Close()

	// Readers only need the public half.
	verify := segfile.SigningContext{Algorithm: segfile.HashSHA256, Key: key.PublicOnly()}
	r, _ := segfile.Open(path, segfile.Options{Signing: verify})
	defer r.Close()
	seg, err = r.Next()
	if err != nil {
		log.Fatal(err)
	}
	data, _ := io.ReadAll(seg)
	seg.Close()
	fmt.Println(string(data))
	// Output: release notes
}
