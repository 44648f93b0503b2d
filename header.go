// Header table: the directory of segments at the start of the container.
//
// The table is a chain of fixed-layout blocks (little-endian):
//
//	int32 reserved slot count
//	int32 used slot count
//	int64 offset of the next block (0 = last block)
//	reserved × 20-byte slot:
//	    int32 type and flags   bit0 assured, bit1 compressed,
//	                           bits2-3 codec, bits4+ type tag
//	    int64 physical start
//	    int64 stored length
//
// The first block is written when the container is created and patched in
// place as segments are added. When it fills up a continuation block is
// written at the end of data with twice the capacity of the previous one
// (capped at MaxSlots), and the previous block's next offset is patched to
// point at it.
package segfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Header table constants.
const (
	blockHeaderSize = 16
	recordSize      = 20

	// MaxType is the largest type tag a record can carry.
	MaxType = 1<<27 - 1

	// MaxSlots caps a single block's reservation. Continuation blocks
	// double until they reach it.
	MaxSlots = 4096

	// DefaultSlots is the first block's reservation when Options.Slots is 0.
	DefaultSlots = 16
)

// Flag bits inside typeAndFlags.
const (
	bitAssured    = 1 << 0
	bitCompressed = 1 << 1
	codecShift    = 2
	codecMask     = 0x3
	typeShift     = 4
)

// Flags select the layers stacked on a new segment.
type Flags uint8

const (
	Assured    Flags = 1 << iota // Wrap in an integrity envelope
	Compressed                   // Wrap in a compression decorator
)

// Record describes one segment in the header table.
type Record struct {
	Type       uint32 `json:"type"`
	Assured    bool   `json:"assured"`
	Compressed bool   `json:"compressed"`
	Codec      Codec  `json:"codec"`
	Start      int64  `json:"start"`  // Physical offset of the segment
	Length     int64  `json:"length"` // Stored bytes, integrity header included
}

func (r Record) typeAndFlags() uint32 {
	v := r.Type << typeShift
	if r.Assured {
		v |= bitAssured
	}
	if r.Compressed {
		v |= bitCompressed
		v |= uint32(r.Codec&codecMask) << codecShift
	}
	return v
}

func (r Record) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], r.typeAndFlags())
	binary.LittleEndian.PutUint64(b[4:], uint64(r.Start))
	binary.LittleEndian.PutUint64(b[12:], uint64(r.Length))
}

func decodeRecord(b []byte) (Record, error) {
	tf := binary.LittleEndian.Uint32(b[0:])
	r := Record{
		Type:       tf >> typeShift,
		Assured:    tf&bitAssured != 0,
		Compressed: tf&bitCompressed != 0,
		Start:      int64(binary.LittleEndian.Uint64(b[4:])),
		Length:     int64(binary.LittleEndian.Uint64(b[12:])),
	}
	if r.Compressed {
		r.Codec = Codec(tf>>codecShift) & codecMask
	}
	if r.Type > MaxType {
		return r, fmt.Errorf("%w: record type %d", ErrCorrupt, r.Type)
	}
	if r.Start < 0 || r.Length < 0 {
		return r, fmt.Errorf("%w: record range [%d, +%d)", ErrCorrupt, r.Start, r.Length)
	}
	return r, nil
}

// headerBlock is one link of the header table chain.
type headerBlock struct {
	offset   int64 // Physical offset of the block
	reserved int
	count    int
	next     int64
}

// blockSize returns the bytes a block with the given reservation occupies.
func blockSize(slots int) int64 {
	return blockHeaderSize + int64(slots)*recordSize
}

// slotOffset returns the physical offset of slot i.
func (b *headerBlock) slotOffset(i int) int64 {
	return b.offset + blockHeaderSize + int64(i)*recordSize
}

// end returns the first byte after the block's slots.
func (b *headerBlock) end() int64 {
	return b.offset + blockSize(b.reserved)
}

func (b *headerBlock) encodeHeader() []byte {
	buf := make([]byte, blockHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(b.reserved))
	binary.LittleEndian.PutUint32(buf[4:], uint32(b.count))
	binary.LittleEndian.PutUint64(buf[8:], uint64(b.next))
	return buf
}

// encode returns the block header followed by zeroed slots.
func (b *headerBlock) encode() []byte {
	buf := make([]byte, blockSize(b.reserved))
	copy(buf, b.encodeHeader())
	return buf
}

// readBlock parses the block at offset and its used records.
func readBlock(f io.ReadSeeker, offset int64) (*headerBlock, []Record, error) {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, nil, err
	}
	hdr := make([]byte, blockHeaderSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return nil, nil, fmt.Errorf("%w: header block at %d: %w", ErrCorrupt, offset, err)
	}
	reserved := int32(binary.LittleEndian.Uint32(hdr[0:]))
	count := int32(binary.LittleEndian.Uint32(hdr[4:]))
	next := int64(binary.LittleEndian.Uint64(hdr[8:]))
	if reserved < 0 || reserved > MaxSlots || count < 0 || count > reserved {
		return nil, nil, fmt.Errorf("%w: header block at %d has %d of %d slots", ErrCorrupt, offset, count, reserved)
	}
	b := &headerBlock{offset: offset, reserved: int(reserved), count: int(count), next: next}
	if next != 0 && next < b.end() {
		return nil, nil, fmt.Errorf("%w: header block at %d links backwards to %d", ErrCorrupt, offset, next)
	}

	slots := make([]byte, int(count)*recordSize)
	if _, err := io.ReadFull(f, slots); err != nil {
		return nil, nil, fmt.Errorf("%w: header block at %d: %w", ErrCorrupt, offset, err)
	}
	records := make([]Record, count)
	for i := range records {
		r, err := decodeRecord(slots[i*recordSize:])
		if err != nil {
			return nil, nil, fmt.Errorf("record %d of block at %d: %w", i, offset, err)
		}
		records[i] = r
	}
	return b, records, nil
}
