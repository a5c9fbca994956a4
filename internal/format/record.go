package format

import (
	"bytes"
	"fmt"

	"github.com/tyekrgk/libevtx/internal/buf"
)

// Record captures an event record header. Records are laid out back to back
// within a chunk's data area.
//
//	Offset  Size  Field
//	0x00    4     0x2A 0x2A 0x00 0x00
//	0x04    4     Record size (header, data, and trailing size copy)
//	0x08    8     Record identifier
//	0x10    8     Written time (FILETIME)
//	0x18    n     Binary XML data
//	size-4  4     Copy of the record size
type Record struct {
	Size       uint32
	Identifier uint64
	WrittenRaw uint64
	Data       []byte // binary XML payload, aliases the chunk buffer
}

// ParseRecord decodes the event record at the start of b. The returned Data
// slice aliases b.
func ParseRecord(b []byte) (Record, error) {
	if !buf.Has(b, 0, RecordMinSize) {
		return Record{}, fmt.Errorf("record: %w", ErrTruncated)
	}
	if !bytes.Equal(b[:SignatureSize], RecordSignature) {
		return Record{}, fmt.Errorf("record: %w", ErrSignatureMismatch)
	}
	size := ReadU32(b, RecordSizeOffset)
	if size < RecordMinSize || size > MaxRecordSize {
		return Record{}, fmt.Errorf("record: size %d: %w", size, ErrSanityLimit)
	}
	if !buf.Has(b, 0, int(size)) {
		return Record{}, fmt.Errorf("record: size %d exceeds remaining %d: %w",
			size, len(b), ErrTruncated)
	}
	echo := ReadU32(b, int(size)-RecordTrailerSize)
	if echo != size {
		return Record{}, fmt.Errorf("record: size echo %d != size %d: %w",
			echo, size, ErrSignatureMismatch)
	}
	data, ok := buf.Slice(b, RecordHeaderSize, int(size)-RecordMinSize)
	if !ok {
		return Record{}, fmt.Errorf("record: %w", ErrTruncated)
	}
	return Record{
		Size:       size,
		Identifier: ReadU64(b, RecordIdentOffset),
		WrittenRaw: ReadU64(b, RecordWrittenOffset),
		Data:       data,
	}, nil
}
