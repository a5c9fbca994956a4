package evtx

import (
	"fmt"

	"github.com/tyekrgk/libevtx/bxml"
	"github.com/tyekrgk/libevtx/internal/format"
)

// Chunk is one 64 KiB unit of an event log file. Records within a chunk
// share its string and template tables, so the binary XML decoder is scoped
// to the chunk.
type Chunk struct {
	data    []byte
	header  format.ChunkHeader
	decoder *bxml.Decoder
	records []*Record
}

func newChunk(data []byte, opts OpenOptions) (*Chunk, error) {
	header, err := format.ParseChunkHeader(data)
	if err != nil {
		return nil, err
	}
	if err := format.VerifyChunkChecksum(data); err != nil && !opts.Tolerant {
		return nil, err
	}
	if !opts.SkipRecordChecksums {
		if err := format.VerifyChunkRecordsChecksum(data, header); err != nil && !opts.Tolerant {
			return nil, err
		}
	}
	return &Chunk{
		data:    data,
		header:  header,
		decoder: bxml.NewDecoder(data),
	}, nil
}

// Header returns the decoded chunk header.
func (c *Chunk) Header() format.ChunkHeader {
	return c.header
}

// Records parses the chunk's event records. Parsing stops at the free space
// offset; the result is cached.
func (c *Chunk) Records() ([]*Record, error) {
	if c.records != nil {
		return c.records, nil
	}
	end := int(c.header.FreeSpaceOffset)
	records := make([]*Record, 0, 16)

	for off := format.ChunkDataOffset; off < end; {
		rec, err := format.ParseRecord(c.data[off:end])
		if err != nil {
			return nil, fmt.Errorf("record at 0x%X: %w", off, err)
		}
		records = append(records, &Record{
			ID:      rec.Identifier,
			Written: format.FiletimeToTime(rec.WrittenRaw),
			chunk:   c,
			dataOff: off + format.RecordHeaderSize,
			dataLen: len(rec.Data),
		})
		off += int(rec.Size)
	}
	c.records = records
	return records, nil
}
