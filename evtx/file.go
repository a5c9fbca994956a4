package evtx

import (
	"fmt"

	"github.com/tyekrgk/libevtx/internal/format"
	"github.com/tyekrgk/libevtx/internal/mmfile"
)

// OpenOptions controls validation strictness when opening a file.
type OpenOptions struct {
	// Tolerant continues past checksum mismatches and unreadable chunks
	// instead of failing the open. Damaged chunks are skipped.
	// Default: false
	Tolerant bool

	// SkipRecordChecksums disables CRC verification of chunk record data.
	// Header checksums are still verified (subject to Tolerant).
	// Default: false
	SkipRecordChecksums bool
}

// DefaultOptions returns the strict defaults.
func DefaultOptions() OpenOptions {
	return OpenOptions{}
}

// File is an open event log file.
type File struct {
	data   []byte
	unmap  func() error
	opts   OpenOptions
	header format.FileHeader
	chunks []*Chunk
	closed bool
}

// Info summarizes file-level metadata.
type Info struct {
	MajorVersion uint16
	MinorVersion uint16
	ChunkCount   int
	NextRecordID uint64
	Dirty        bool
	Full         bool
}

// Open maps the file at path and parses its header and chunks.
func Open(path string) (*File, error) {
	return OpenWithOptions(path, DefaultOptions())
}

// OpenWithOptions maps the file at path with explicit validation options.
func OpenWithOptions(path string, opts OpenOptions) (*File, error) {
	data, unmap, err := mmfile.Map(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	f, err := newFile(data, unmap, opts)
	if err != nil {
		if unmap != nil {
			_ = unmap()
		}
		return nil, err
	}
	return f, nil
}

// OpenBytes creates a File backed by the provided buffer.
func OpenBytes(buf []byte, opts OpenOptions) (*File, error) {
	return newFile(buf, nil, opts)
}

func newFile(data []byte, unmap func() error, opts OpenOptions) (*File, error) {
	header, err := format.ParseFileHeader(data)
	if err != nil {
		return nil, err
	}
	if err := format.VerifyFileChecksum(data); err != nil && !opts.Tolerant {
		return nil, err
	}

	f := &File{
		data:   data,
		unmap:  unmap,
		opts:   opts,
		header: header,
	}
	if err := f.loadChunks(); err != nil {
		return nil, err
	}
	return f, nil
}

// loadChunks walks the chunk array following the file header block. Dirty
// files may hold more chunks than the header claims, so the walk is bounded
// by the file size, not ChunkCount.
func (f *File) loadChunks() error {
	for off := format.FileHeaderBlockSize; off+format.ChunkSize <= len(f.data); off += format.ChunkSize {
		chunk, err := newChunk(f.data[off:off+format.ChunkSize], f.opts)
		if err != nil {
			if f.opts.Tolerant {
				continue
			}
			return fmt.Errorf("chunk at 0x%X: %w", off, err)
		}
		f.chunks = append(f.chunks, chunk)
	}
	if len(f.chunks) == 0 {
		return ErrNoChunks
	}
	return nil
}

// Close releases the underlying mapping. Further reads through previously
// returned records are invalid.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.chunks = nil
	f.data = nil
	if f.unmap != nil {
		return f.unmap()
	}
	return nil
}

// Info returns file-level metadata.
func (f *File) Info() Info {
	return Info{
		MajorVersion: f.header.MajorVersion,
		MinorVersion: f.header.MinorVersion,
		ChunkCount:   len(f.chunks),
		NextRecordID: f.header.NextRecordID,
		Dirty:        f.header.IsDirty(),
		Full:         f.header.IsFull(),
	}
}

// Chunks returns the readable chunks in file order.
func (f *File) Chunks() []*Chunk {
	return f.chunks
}

// Records collects every record of every readable chunk, in file order.
func (f *File) Records() ([]*Record, error) {
	if f.closed {
		return nil, ErrClosed
	}
	var records []*Record
	for i, chunk := range f.chunks {
		recs, err := chunk.Records()
		if err != nil {
			if f.opts.Tolerant {
				continue
			}
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}
