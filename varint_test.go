package segfile

import (
	"bytes"
	"errors"
	"io"
	"math/bits"
	"testing"
)

// minimalLen is ceil(bits/7) with a floor of one byte for zero.
func minimalLen(v int) int {
	n := bits.Len(uint(v))
	if n == 0 {
		return 1
	}
	return (n + 6) / 7
}

func TestIntEncoding300(t *testing.T) {
	got, err := AppendInt(nil, 300)
	if err != nil {
		t.Fatalf("AppendInt: %v", err)
	}
	if !bytes.Equal(got, []byte{0xAC, 0x02}) {
		t.Errorf("encode(300) = % x, want ac 02", got)
	}
}

func TestIntRoundTrip(t *testing.T) {
	var values []int
	for v := 0; v < 1<<16; v++ {
		values = append(values, v)
	}
	for shift := 16; shift < 31; shift++ {
		values = append(values, 1<<shift-1, 1<<shift, 1<<shift+1)
	}
	values = append(values, MaxInt-1, MaxInt)

	var buf bytes.Buffer
	for _, v := range values {
		buf.Reset()
		if err := WriteInt(&buf, v); err != nil {
			t.Fatalf("WriteInt(%d): %v", v, err)
		}
		if buf.Len() != minimalLen(v) || buf.Len() != IntSize(v) {
			t.Fatalf("encode(%d) is %d bytes, want %d", v, buf.Len(), minimalLen(v))
		}
		got, err := ReadInt(&buf)
		if err != nil {
			t.Fatalf("ReadInt(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d = %d", v, got)
		}
	}
}

func TestIntContinuationBits(t *testing.T) {
	enc, _ := AppendInt(nil, MaxInt)
	if len(enc) != 5 {
		t.Fatalf("encode(MaxInt) is %d bytes, want 5", len(enc))
	}
	for i, b := range enc[:len(enc)-1] {
		if b&0x80 == 0 {
			t.Errorf("byte %d = %#x lacks continuation bit", i, b)
		}
	}
	if enc[len(enc)-1]&0x80 != 0 {
		t.Errorf("last byte %#x has continuation bit", enc[len(enc)-1])
	}
}

func TestAppendIntOutOfRange(t *testing.T) {
	for _, v := range []int{-1, MaxInt + 1} {
		if _, err := AppendInt(nil, v); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("AppendInt(%d) = %v, want ErrInvalidArgument", v, err)
		}
		if n := IntSize(v); n != 0 {
			t.Errorf("IntSize(%d) = %d, want 0", v, n)
		}
	}
}

func TestReadIntMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"overlong", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
		{"non-minimal", []byte{0x80, 0x00}},
		{"above MaxInt", []byte{0x80, 0x80, 0x80, 0x80, 0x08}},
		{"truncated", []byte{0x80, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadInt(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("ReadInt(% x) = %v, want ErrCorrupt", tt.data, err)
			}
		})
	}
}

func TestReadIntEmpty(t *testing.T) {
	if _, err := ReadInt(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("ReadInt(empty) = %v, want io.EOF", err)
	}
}

func TestByteArrayRoundTrip(t *testing.T) {
	tests := [][]byte{
		{},
		{0x42},
		bytes.Repeat([]byte("x"), 300),
	}
	for _, want := range tests {
		var buf bytes.Buffer
		if err := WriteByteArray(&buf, want); err != nil {
			t.Fatalf("WriteByteArray: %v", err)
		}
		if buf.Len() != IntSize(len(want))+len(want) {
			t.Errorf("encoded %d bytes as %d", len(want), buf.Len())
		}
		got, err := ReadByteArray(&buf, 1024)
		if err != nil {
			t.Fatalf("ReadByteArray: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("round trip of %d bytes differs", len(want))
		}
	}
}

func TestReadByteArrayLimits(t *testing.T) {
	var buf bytes.Buffer
	WriteByteArray(&buf, make([]byte, 100))
	if _, err := ReadByteArray(bytes.NewReader(buf.Bytes()), 99); !errors.Is(err, ErrCorrupt) {
		t.Errorf("over limit: got %v, want ErrCorrupt", err)
	}
	short := buf.Bytes()[:50]
	if _, err := ReadByteArray(bytes.NewReader(short), 100); !errors.Is(err, ErrCorrupt) {
		t.Errorf("short body: got %v, want ErrCorrupt", err)
	}
}

// A plain io.Reader must not be read past the array.
func TestReadByteArrayUnbuffered(t *testing.T) {
	var buf bytes.Buffer
	WriteByteArray(&buf, []byte("abc"))
	buf.WriteString("rest")
	r := io.MultiReader(&buf)
	got, err := ReadByteArray(r, 10)
	if err != nil || string(got) != "abc" {
		t.Fatalf("ReadByteArray = %q, %v", got, err)
	}
	rest, _ := io.ReadAll(r)
	if string(rest) != "rest" {
		t.Errorf("remaining = %q, want rest", rest)
	}
}
