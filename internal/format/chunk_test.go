package format

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"
)

// buildChunk assembles a minimal chunk holding one record with the given
// binary XML payload.
func buildChunk(t *testing.T, payload []byte) []byte {
	t.Helper()

	b := make([]byte, ChunkSize)
	copy(b, ChunkSignature)
	binary.LittleEndian.PutUint64(b[ChunkFirstRecordNumOffset:], 1)
	binary.LittleEndian.PutUint64(b[ChunkLastRecordNumOffset:], 1)
	binary.LittleEndian.PutUint64(b[ChunkFirstRecordIDOffset:], 1)
	binary.LittleEndian.PutUint64(b[ChunkLastRecordIDOffset:], 1)
	binary.LittleEndian.PutUint32(b[ChunkHeaderSizeOffset:], ChunkHeaderSize)

	size := uint32(RecordMinSize + len(payload))
	rec := b[ChunkDataOffset:]
	copy(rec, RecordSignature)
	binary.LittleEndian.PutUint32(rec[RecordSizeOffset:], size)
	binary.LittleEndian.PutUint64(rec[RecordIdentOffset:], 1)
	binary.LittleEndian.PutUint64(rec[RecordWrittenOffset:], 132224078450000000)
	copy(rec[RecordHeaderSize:], payload)
	binary.LittleEndian.PutUint32(rec[size-RecordTrailerSize:], size)

	free := uint32(ChunkDataOffset) + size
	binary.LittleEndian.PutUint32(b[ChunkLastRecordOffset:], ChunkDataOffset)
	binary.LittleEndian.PutUint32(b[ChunkFreeSpaceOffset:], free)
	binary.LittleEndian.PutUint32(b[ChunkRecordsCRCOffset:],
		crc32.ChecksumIEEE(b[ChunkDataOffset:free]))

	crc := crc32.Update(0, crc32.IEEETable, b[:ChunkChecksumedSize])
	crc = crc32.Update(crc, crc32.IEEETable, b[ChunkStringTableOffset:ChunkDataOffset])
	binary.LittleEndian.PutUint32(b[ChunkChecksumOffset:], crc)
	return b
}

func TestParseChunkHeader(t *testing.T) {
	b := buildChunk(t, []byte{TokenEOF})

	h, err := ParseChunkHeader(b)
	if err != nil {
		t.Fatalf("ParseChunkHeader: %v", err)
	}
	if h.FirstRecordID != 1 || h.LastRecordID != 1 {
		t.Fatalf("unexpected header: %+v", h)
	}
	if err := VerifyChunkChecksum(b); err != nil {
		t.Fatalf("VerifyChunkChecksum: %v", err)
	}
	if err := VerifyChunkRecordsChecksum(b, h); err != nil {
		t.Fatalf("VerifyChunkRecordsChecksum: %v", err)
	}
}

func TestParseChunkHeaderRejectsBadInput(t *testing.T) {
	b := buildChunk(t, []byte{TokenEOF})

	t.Run("bad signature", func(t *testing.T) {
		bad := append([]byte(nil), b...)
		bad[3] = 'X'
		if _, err := ParseChunkHeader(bad); !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("want ErrSignatureMismatch, got %v", err)
		}
	})

	t.Run("free space out of range", func(t *testing.T) {
		bad := append([]byte(nil), b...)
		binary.LittleEndian.PutUint32(bad[ChunkFreeSpaceOffset:], ChunkSize+1)
		if _, err := ParseChunkHeader(bad); !errors.Is(err, ErrSanityLimit) {
			t.Fatalf("want ErrSanityLimit, got %v", err)
		}
	})

	t.Run("corrupt record data", func(t *testing.T) {
		bad := append([]byte(nil), b...)
		bad[ChunkDataOffset+RecordHeaderSize]++
		h, err := ParseChunkHeader(bad)
		if err != nil {
			t.Fatalf("ParseChunkHeader: %v", err)
		}
		if err := VerifyChunkRecordsChecksum(bad, h); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("want ErrChecksumMismatch, got %v", err)
		}
	})
}

func TestParseRecord(t *testing.T) {
	payload := []byte{TokenFragmentHeader, FragmentMajor, FragmentMinor, 0, TokenEOF}
	b := buildChunk(t, payload)

	rec, err := ParseRecord(b[ChunkDataOffset:])
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if rec.Identifier != 1 {
		t.Fatalf("identifier = %d, want 1", rec.Identifier)
	}
	if len(rec.Data) != len(payload) {
		t.Fatalf("data length = %d, want %d", len(rec.Data), len(payload))
	}
	if FiletimeToTime(rec.WrittenRaw).Format(TimeLayout) != "2020-01-02 03:04:05.000000000" {
		t.Fatalf("written time = %s", FiletimeToTime(rec.WrittenRaw).Format(TimeLayout))
	}
}

func TestParseRecordRejectsBadInput(t *testing.T) {
	payload := []byte{TokenEOF}
	b := buildChunk(t, payload)
	rec := b[ChunkDataOffset:]

	t.Run("bad signature", func(t *testing.T) {
		bad := append([]byte(nil), rec...)
		bad[0] = 0
		if _, err := ParseRecord(bad); !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("want ErrSignatureMismatch, got %v", err)
		}
	})

	t.Run("size echo mismatch", func(t *testing.T) {
		bad := append([]byte(nil), rec...)
		size := binary.LittleEndian.Uint32(bad[RecordSizeOffset:])
		binary.LittleEndian.PutUint32(bad[size-RecordTrailerSize:], size+8)
		if _, err := ParseRecord(bad); !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("want ErrSignatureMismatch, got %v", err)
		}
	})

	t.Run("oversized", func(t *testing.T) {
		bad := append([]byte(nil), rec...)
		binary.LittleEndian.PutUint32(bad[RecordSizeOffset:], MaxRecordSize+1)
		if _, err := ParseRecord(bad); !errors.Is(err, ErrSanityLimit) {
			t.Fatalf("want ErrSanityLimit, got %v", err)
		}
	})
}
