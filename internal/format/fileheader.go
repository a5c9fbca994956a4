package format

import (
	"bytes"
	"fmt"
	"hash/crc32"

	"github.com/tyekrgk/libevtx/internal/buf"
)

// FileHeader captures the fields of the EVTX file header required to iterate
// over chunks. The diagram below highlights the offsets we care about.
//
//	Offset  Size  Description
//	------  ----  ----------------------------------------------------------
//	 0x000   8    'E' 'l' 'f' 'F' 'i' 'l' 'e' 0x00
//	 0x008   8    Number of the oldest chunk
//	 0x010   8    Number of the current chunk
//	 0x018   8    Next record identifier
//	 0x020   4    Header size (always 128)
//	 0x024   2    Minor format version
//	 0x026   2    Major format version
//	 0x028   2    Header block size (always 4096)
//	 0x02A   2    Number of chunks
//	 0x078   4    File flags (0x1 dirty, 0x2 full)
//	 0x07C   4    CRC-32 of bytes [0, 120)
//
// Windows stores the header in little-endian form.
type FileHeader struct {
	FirstChunkNumber uint64
	LastChunkNumber  uint64
	NextRecordID     uint64
	HeaderSize       uint32
	MinorVersion     uint16
	MajorVersion     uint16
	HeaderBlockSize  uint16
	ChunkCount       uint16
	Flags            uint32
	Checksum         uint32
}

// IsDirty reports whether the file was not cleanly closed. Dirty files may
// carry more chunks than ChunkCount claims.
func (h FileHeader) IsDirty() bool {
	return h.Flags&FileFlagDirty != 0
}

// IsFull reports whether the log reached its maximum size.
func (h FileHeader) IsFull() bool {
	return h.Flags&FileFlagFull != 0
}

// ParseFileHeader validates and extracts key fields from an EVTX file header.
// The stored checksum is read but not verified; callers decide how strict to
// be and check it with VerifyFileChecksum.
func ParseFileHeader(b []byte) (FileHeader, error) {
	if !buf.Has(b, 0, FileHeaderSize) {
		return FileHeader{}, fmt.Errorf("file header: %w", ErrTruncated)
	}
	if !bytes.Equal(b[:len(FileSignature)], FileSignature) {
		return FileHeader{}, fmt.Errorf("file header: %w", ErrSignatureMismatch)
	}
	h := FileHeader{
		FirstChunkNumber: ReadU64(b, FileFirstChunkOffset),
		LastChunkNumber:  ReadU64(b, FileLastChunkOffset),
		NextRecordID:     ReadU64(b, FileNextRecordIDOffset),
		HeaderSize:       ReadU32(b, FileHeaderSizeOffset),
		MinorVersion:     ReadU16(b, FileMinorOffset),
		MajorVersion:     ReadU16(b, FileMajorOffset),
		HeaderBlockSize:  ReadU16(b, FileBlockSizeOffset),
		ChunkCount:       ReadU16(b, FileChunkCountOffset),
		Flags:            ReadU32(b, FileFlagsOffset),
		Checksum:         ReadU32(b, FileChecksumOffset),
	}
	if h.HeaderSize != FileHeaderSize {
		return FileHeader{}, fmt.Errorf("file header: size %d: %w", h.HeaderSize, ErrUnsupported)
	}
	if h.HeaderBlockSize != FileHeaderBlockSize {
		return FileHeader{}, fmt.Errorf("file header: block size %d: %w", h.HeaderBlockSize, ErrUnsupported)
	}
	return h, nil
}

// VerifyFileChecksum recomputes the file header CRC-32 and compares it to the
// stored value.
func VerifyFileChecksum(b []byte) error {
	covered, ok := buf.Slice(b, 0, FileChecksumedSize)
	if !ok || len(b) < FileHeaderSize {
		return fmt.Errorf("file header: %w", ErrTruncated)
	}
	stored := ReadU32(b, FileChecksumOffset)
	computed := crc32.ChecksumIEEE(covered)
	if stored != computed {
		return fmt.Errorf("file header: stored 0x%08X computed 0x%08X: %w",
			stored, computed, ErrChecksumMismatch)
	}
	return nil
}
