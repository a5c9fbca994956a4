package evtx

import (
	"fmt"
	"io"
	"time"

	"github.com/tyekrgk/libevtx/bxml"
)

// Record is one event record. The binary XML body is decoded lazily on the
// first Tree or XML call and the resulting tag tree is cached; trees are
// read-only after decoding.
type Record struct {
	// ID is the 64-bit record identifier, unique within the file.
	ID uint64

	// Written is the time the record was written, in UTC.
	Written time.Time

	chunk   *Chunk
	dataOff int
	dataLen int
	tree    *bxml.Tag
}

// Tree decodes the record body and returns the root tag.
func (r *Record) Tree() (*bxml.Tag, error) {
	if r.tree != nil {
		return r.tree, nil
	}
	root, err := r.chunk.decoder.DecodeAt(r.dataOff, r.dataLen)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", r.ID, err)
	}
	r.tree = root
	return root, nil
}

// XML renders the record body as UTF-8 XML text.
func (r *Record) XML() (string, error) {
	root, err := r.Tree()
	if err != nil {
		return "", err
	}
	return root.XML()
}

// XMLUTF16 renders the record body as UTF-16 code units.
func (r *Record) XMLUTF16() ([]uint16, error) {
	root, err := r.Tree()
	if err != nil {
		return nil, err
	}
	return root.XMLUTF16()
}

// DebugPrint writes the decoded structure to w.
func (r *Record) DebugPrint(w io.Writer) error {
	root, err := r.Tree()
	if err != nil {
		return err
	}
	return root.DebugPrint(w, 0)
}
