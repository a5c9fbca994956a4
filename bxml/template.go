package bxml

import (
	"fmt"

	"github.com/tyekrgk/libevtx/internal/buf"
	"github.com/tyekrgk/libevtx/internal/format"
)

// maxTemplateValues bounds the substitution array of a template instance.
// Real records carry a few dozen values at most; anything larger is corrupt.
const maxTemplateValues = 4096

// templateValue carries one substitution value of a template instance: its
// declared type, its raw data, and the chunk-relative offset of that data
// (needed to expand embedded binary XML fragments).
type templateValue struct {
	typ  ValueType
	data []byte
	off  int
}

// decodeTemplateInstance consumes a template instance token, its value
// array, and instantiates the referenced template definition with those
// values.
func (d *Decoder) decodeTemplateInstance(c *cursor) (*Tag, error) {
	if _, err := c.u8(); err != nil { // token
		return nil, err
	}
	if _, err := c.u8(); err != nil { // unknown, observed as 1
		return nil, err
	}
	if _, err := c.u32(); err != nil { // template identifier echo
		return nil, err
	}
	defOff32, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("template definition offset: %w", err)
	}
	defOff := int(defOff32)

	dataSize, err := d.templateDataSize(defOff)
	if err != nil {
		return nil, err
	}

	// A resident definition sits right behind the offset field and must be
	// skipped to reach the instance values.
	if defOff == c.pos {
		if err := c.skip(format.TemplateHeaderSize + dataSize); err != nil {
			return nil, fmt.Errorf("resident template definition: %w", err)
		}
	}

	values, err := d.decodeInstanceValues(c)
	if err != nil {
		return nil, err
	}

	tc := &cursor{
		d:          d,
		pos:        defOff + format.TemplateHeaderSize,
		end:        defOff + format.TemplateHeaderSize + dataSize,
		inTemplate: true,
	}
	return d.decodeFragment(tc, values)
}

// templateDataSize validates the template definition header at the
// chunk-relative offset and returns its fragment data size.
func (d *Decoder) templateDataSize(off int) (int, error) {
	if !buf.Has(d.chunk, off, format.TemplateHeaderSize) {
		return 0, fmt.Errorf("template definition at 0x%X: %w", off, ErrTruncated)
	}
	size := int(format.ReadU32(d.chunk, off+format.TemplateDataSizeOffset))
	if !buf.Has(d.chunk, off+format.TemplateHeaderSize, size) {
		return 0, fmt.Errorf("template definition at 0x%X (+%d): %w", off, size, ErrTruncated)
	}
	return size, nil
}

// decodeInstanceValues consumes the substitution value array: a count, the
// value descriptors, then the packed value data.
func (d *Decoder) decodeInstanceValues(c *cursor) ([]templateValue, error) {
	count32, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("template value count: %w", err)
	}
	count := int(count32)
	if count > maxTemplateValues {
		return nil, fmt.Errorf("template value count %d: %w", count, ErrInvalidToken)
	}

	type descriptor struct {
		size int
		typ  ValueType
	}
	descriptors := make([]descriptor, count)
	for i := range descriptors {
		size, err := c.u16()
		if err != nil {
			return nil, fmt.Errorf("value descriptor %d: %w", i, err)
		}
		typ, err := c.u8()
		if err != nil {
			return nil, fmt.Errorf("value descriptor %d: %w", i, err)
		}
		if _, err := c.u8(); err != nil { // padding
			return nil, fmt.Errorf("value descriptor %d: %w", i, err)
		}
		descriptors[i] = descriptor{size: int(size), typ: ValueType(typ)}
	}

	values := make([]templateValue, count)
	for i, desc := range descriptors {
		off := c.pos
		data, err := c.bytes(desc.size)
		if err != nil {
			return nil, fmt.Errorf("value %d data (%d bytes): %w", i, desc.size, err)
		}
		values[i] = templateValue{typ: desc.typ, data: data, off: off}
	}
	return values, nil
}
