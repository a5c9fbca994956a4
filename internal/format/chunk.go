package format

import (
	"bytes"
	"fmt"
	"hash/crc32"

	"github.com/tyekrgk/libevtx/internal/buf"
)

// ChunkHeader describes one 64 KiB chunk. Each chunk begins with a 128-byte
// header followed by the common string offset table and the template pointer
// table; event records start at offset 512.
//
//	Offset  Size  Field
//	0x00    8     'E' 'l' 'f' 'C' 'h' 'n' 'k' 0x00
//	0x08    8     First event record number
//	0x10    8     Last event record number
//	0x18    8     First event record identifier
//	0x20    8     Last event record identifier
//	0x28    4     Header size (always 128)
//	0x2C    4     Offset of the last event record (chunk-relative)
//	0x30    4     Free space offset (chunk-relative)
//	0x34    4     CRC-32 of the event record data
//	0x7C    4     CRC-32 of bytes [0, 120) + [128, 512)
type ChunkHeader struct {
	FirstRecordNumber uint64
	LastRecordNumber  uint64
	FirstRecordID     uint64
	LastRecordID      uint64
	HeaderSize        uint32
	LastRecordOffset  uint32
	FreeSpaceOffset   uint32
	RecordsChecksum   uint32
	Checksum          uint32
}

// ParseChunkHeader validates and extracts the chunk header located at the
// start of b. b must hold at least ChunkDataOffset bytes.
func ParseChunkHeader(b []byte) (ChunkHeader, error) {
	if !buf.Has(b, 0, ChunkDataOffset) {
		return ChunkHeader{}, fmt.Errorf("chunk header: %w", ErrTruncated)
	}
	if !bytes.Equal(b[:len(ChunkSignature)], ChunkSignature) {
		return ChunkHeader{}, fmt.Errorf("chunk header: %w", ErrSignatureMismatch)
	}
	h := ChunkHeader{
		FirstRecordNumber: ReadU64(b, ChunkFirstRecordNumOffset),
		LastRecordNumber:  ReadU64(b, ChunkLastRecordNumOffset),
		FirstRecordID:     ReadU64(b, ChunkFirstRecordIDOffset),
		LastRecordID:      ReadU64(b, ChunkLastRecordIDOffset),
		HeaderSize:        ReadU32(b, ChunkHeaderSizeOffset),
		LastRecordOffset:  ReadU32(b, ChunkLastRecordOffset),
		FreeSpaceOffset:   ReadU32(b, ChunkFreeSpaceOffset),
		RecordsChecksum:   ReadU32(b, ChunkRecordsCRCOffset),
		Checksum:          ReadU32(b, ChunkChecksumOffset),
	}
	if h.HeaderSize != ChunkHeaderSize {
		return ChunkHeader{}, fmt.Errorf("chunk header: size %d: %w", h.HeaderSize, ErrUnsupported)
	}
	if h.FreeSpaceOffset < ChunkDataOffset || h.FreeSpaceOffset > ChunkSize {
		return ChunkHeader{}, fmt.Errorf("chunk header: free space offset 0x%X: %w",
			h.FreeSpaceOffset, ErrSanityLimit)
	}
	return h, nil
}

// VerifyChunkChecksum recomputes the chunk header CRC-32. The checksum covers
// the first 120 header bytes and the string/template tables, skipping the
// checksum field itself.
func VerifyChunkChecksum(b []byte) error {
	if !buf.Has(b, 0, ChunkDataOffset) {
		return fmt.Errorf("chunk header: %w", ErrTruncated)
	}
	stored := ReadU32(b, ChunkChecksumOffset)
	crc := crc32.Update(0, crc32.IEEETable, b[:ChunkChecksumedSize])
	crc = crc32.Update(crc, crc32.IEEETable, b[ChunkStringTableOffset:ChunkDataOffset])
	if stored != crc {
		return fmt.Errorf("chunk header: stored 0x%08X computed 0x%08X: %w",
			stored, crc, ErrChecksumMismatch)
	}
	return nil
}

// VerifyChunkRecordsChecksum recomputes the CRC-32 over the event record data
// [512, free space offset) and compares it to the stored value.
func VerifyChunkRecordsChecksum(b []byte, h ChunkHeader) error {
	records, ok := buf.Slice(b, ChunkDataOffset, int(h.FreeSpaceOffset)-ChunkDataOffset)
	if !ok {
		return fmt.Errorf("chunk records: %w", ErrTruncated)
	}
	computed := crc32.ChecksumIEEE(records)
	if h.RecordsChecksum != computed {
		return fmt.Errorf("chunk records: stored 0x%08X computed 0x%08X: %w",
			h.RecordsChecksum, computed, ErrChecksumMismatch)
	}
	return nil
}
