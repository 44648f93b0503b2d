package segfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestBlockSize(t *testing.T) {
	if blockSize(16) != 16+16*20 {
		t.Errorf("blockSize(16) = %d, want 336", blockSize(16))
	}
	b := &headerBlock{offset: 100, reserved: 4}
	if b.slotOffset(2) != 100+16+40 {
		t.Errorf("slotOffset(2) = %d", b.slotOffset(2))
	}
	if b.end() != 100+blockSize(4) {
		t.Errorf("end = %d", b.end())
	}
}

func TestRecordEncode(t *testing.T) {
	rec := Record{Type: 300, Assured: true, Compressed: true, Codec: CodecLZ4, Start: 1 << 33, Length: 77}
	buf := make([]byte, recordSize)
	rec.encode(buf)

	tf := binary.LittleEndian.Uint32(buf)
	if want := uint32(300<<4 | 2<<2 | 2 | 1); tf != want {
		t.Errorf("typeAndFlags = %#x, want %#x", tf, want)
	}
	got, err := decodeRecord(buf)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if got != rec {
		t.Errorf("decoded %+v, want %+v", got, rec)
	}
}

// Codec bits only mean something on compressed records.
func TestRecordCodecIgnoredWhenUncompressed(t *testing.T) {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint32(buf, 5<<4|1<<2)
	got, err := decodeRecord(buf)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if got.Codec != CodecDeflate || got.Compressed || got.Type != 5 {
		t.Errorf("decoded %+v", got)
	}
}

func TestDecodeRecordRejectsNegativeRange(t *testing.T) {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint64(buf[4:], 1<<63)
	if _, err := decodeRecord(buf); !errors.Is(err, ErrCorrupt) {
		t.Errorf("negative start = %v, want ErrCorrupt", err)
	}
}

func TestReadBlock(t *testing.T) {
	b := &headerBlock{reserved: 3, count: 2, next: 500}
	buf := b.encode()
	for i, rec := range []Record{{Type: 1, Start: 76, Length: 10}, {Type: 2, Assured: true, Start: 86, Length: 40}} {
		rec.encode(buf[b.slotOffset(i):])
	}

	got, records, err := readBlock(bytes.NewReader(buf), 0)
	if err != nil {
		t.Fatalf("readBlock: %v", err)
	}
	if got.reserved != 3 || got.count != 2 || got.next != 500 {
		t.Errorf("block = %+v", got)
	}
	if len(records) != 2 || records[1].Type != 2 || !records[1].Assured || records[1].Length != 40 {
		t.Errorf("records = %+v", records)
	}
}

func TestReadBlockSelfLink(t *testing.T) {
	// A block at offset 8 whose next link points back at itself.
	b := &headerBlock{offset: 8, reserved: 1, next: 8}
	padded := append(make([]byte, 8), b.encode()...)
	if _, _, err := readBlock(bytes.NewReader(padded), 8); !errors.Is(err, ErrCorrupt) {
		t.Errorf("self link = %v, want ErrCorrupt", err)
	}
}
