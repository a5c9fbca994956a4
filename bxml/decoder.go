package bxml

import (
	"fmt"

	"github.com/tyekrgk/libevtx/internal/buf"
	"github.com/tyekrgk/libevtx/internal/format"
)

// Decoder turns the binary XML payload of an event record into a Tag tree.
// Name records and template definitions are addressed by chunk-relative
// offsets, so a Decoder is created per chunk and shared by its records; the
// decoded names are cached across records.
type Decoder struct {
	chunk []byte
	names map[int]*BinaryValue
}

// NewDecoder creates a decoder over a full chunk buffer.
func NewDecoder(chunk []byte) *Decoder {
	return &Decoder{
		chunk: chunk,
		names: make(map[int]*BinaryValue),
	}
}

// DecodeAt decodes the binary XML fragment stored at [off, off+size) within
// the chunk and returns the root tag.
func (d *Decoder) DecodeAt(off, size int) (*Tag, error) {
	if off < 0 || size < 0 || off+size > len(d.chunk) {
		return nil, fmt.Errorf("fragment at 0x%X (+%d): %w", off, size, ErrTruncated)
	}
	c := &cursor{d: d, pos: off, end: off + size}
	root, err := d.decodeFragment(c, nil)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("fragment at 0x%X: empty document: %w", off, ErrInvalidToken)
	}
	return root, nil
}

// cursor tracks a decoding position. Positions are chunk-relative so that
// name and template offsets embedded in the stream can be compared against
// the current position to detect inline definitions.
type cursor struct {
	d          *Decoder
	pos        int
	end        int
	inTemplate bool // element starts carry a dependency identifier
	values     []templateValue
}

func (c *cursor) u8() (byte, error) {
	if !buf.Has(c.d.chunk[:c.end], c.pos, 1) {
		return 0, ErrTruncated
	}
	v := c.d.chunk[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) peek() (byte, error) {
	if !buf.Has(c.d.chunk[:c.end], c.pos, 1) {
		return 0, ErrTruncated
	}
	return c.d.chunk[c.pos], nil
}

func (c *cursor) u16() (uint16, error) {
	if !buf.Has(c.d.chunk[:c.end], c.pos, 2) {
		return 0, ErrTruncated
	}
	v := format.ReadU16(c.d.chunk, c.pos)
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if !buf.Has(c.d.chunk[:c.end], c.pos, 4) {
		return 0, ErrTruncated
	}
	v := format.ReadU32(c.d.chunk, c.pos)
	c.pos += 4
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	b, ok := buf.Slice(c.d.chunk[:c.end], c.pos, n)
	if !ok {
		return nil, ErrTruncated
	}
	c.pos += n
	return b, nil
}

// skip advances without reading.
func (c *cursor) skip(n int) error {
	if !buf.Has(c.d.chunk[:c.end], c.pos, n) {
		return ErrTruncated
	}
	c.pos += n
	return nil
}

// decodeFragment consumes a fragment header followed by either a template
// instance or an element, returning the resulting root tag.
func (d *Decoder) decodeFragment(c *cursor, values []templateValue) (*Tag, error) {
	token, err := c.peek()
	if err != nil {
		return nil, err
	}
	if token == format.TokenFragmentHeader {
		if err := c.skip(format.FragmentHeaderSize); err != nil {
			return nil, fmt.Errorf("fragment header: %w", err)
		}
		token, err = c.peek()
		if err != nil {
			return nil, err
		}
	}

	switch token & format.TokenBaseMask {
	case format.TokenTemplateInstance:
		return d.decodeTemplateInstance(c)
	case format.TokenOpenStartElement:
		c.values = values
		return d.decodeElement(c)
	case format.TokenEOF:
		_, _ = c.u8()
		return nil, nil
	default:
		return nil, fmt.Errorf("fragment token 0x%02X at 0x%X: %w", token, c.pos, ErrInvalidToken)
	}
}

// decodeElement consumes an element start token and everything up to and
// including its end.
func (d *Decoder) decodeElement(c *cursor) (*Tag, error) {
	token, err := c.u8()
	if err != nil {
		return nil, err
	}
	if token&format.TokenBaseMask != format.TokenOpenStartElement {
		return nil, fmt.Errorf("element token 0x%02X: %w", token, ErrInvalidToken)
	}
	hasAttrs := token&format.TokenMoreBit != 0

	if c.inTemplate {
		// Dependency identifier: ties the element to an optional
		// substitution; 0xFFFF when the element is unconditional.
		if _, err := c.u16(); err != nil {
			return nil, fmt.Errorf("dependency identifier: %w", err)
		}
	}
	if _, err := c.u32(); err != nil { // element data size, used only as a hint
		return nil, fmt.Errorf("element data size: %w", err)
	}

	name, err := d.readName(c)
	if err != nil {
		return nil, fmt.Errorf("element name: %w", err)
	}

	tag := New()
	tag.Name = name

	if hasAttrs {
		if err := d.decodeAttributeList(c, tag); err != nil {
			return nil, err
		}
	}

	token, err = c.u8()
	if err != nil {
		return nil, err
	}
	switch token {
	case format.TokenCloseEmptyElement:
		return tag, nil
	case format.TokenCloseStartElement:
		if err := d.decodeContent(c, tag); err != nil {
			return nil, err
		}
		return tag, nil
	default:
		return nil, fmt.Errorf("element close token 0x%02X: %w", token, ErrInvalidToken)
	}
}

// decodeAttributeList consumes the attribute list of an element.
func (d *Decoder) decodeAttributeList(c *cursor, tag *Tag) error {
	listSize, err := c.u32()
	if err != nil {
		return fmt.Errorf("attribute list size: %w", err)
	}
	listEnd := c.pos + int(listSize)
	if listEnd > c.end {
		return fmt.Errorf("attribute list: %w", ErrTruncated)
	}

	for c.pos < listEnd {
		token, err := c.u8()
		if err != nil {
			return err
		}
		if token&format.TokenBaseMask != format.TokenAttribute {
			return fmt.Errorf("attribute token 0x%02X: %w", token, ErrInvalidToken)
		}
		more := token&format.TokenMoreBit != 0

		name, err := d.readName(c)
		if err != nil {
			return fmt.Errorf("attribute name: %w", err)
		}
		value, present, err := d.decodeValueToken(c)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name.String(), err)
		}
		if present {
			attr := New()
			attr.Name = name
			attr.Value = value
			tag.AppendAttribute(attr)
		}
		if !more {
			break
		}
	}
	if c.pos > listEnd {
		return fmt.Errorf("attribute list overrun: %w", ErrTruncated)
	}
	c.pos = listEnd
	return nil
}

// decodeValueToken consumes one value-producing token (text, character or
// entity reference, or substitution). present is false when an optional
// substitution resolved to NULL and the surrounding construct should be
// dropped.
func (d *Decoder) decodeValueToken(c *cursor) (Value, bool, error) {
	token, err := c.u8()
	if err != nil {
		return nil, false, err
	}
	switch token & format.TokenBaseMask {
	case format.TokenValue:
		v, err := d.decodeValueText(c)
		return v, true, err

	case format.TokenCharRef:
		ref, err := c.u16()
		if err != nil {
			return nil, false, err
		}
		return NewStringValue(fmt.Sprintf("&#%d;", ref)), true, nil

	case format.TokenEntityRef:
		name, err := d.readName(c)
		if err != nil {
			return nil, false, err
		}
		return NewStringValue("&" + name.String() + ";"), true, nil

	case format.TokenNormalSubst:
		return d.decodeSubstitution(c, false)

	case format.TokenOptionalSubst:
		return d.decodeSubstitution(c, true)

	default:
		return nil, false, fmt.Errorf("value token 0x%02X: %w", token, ErrInvalidToken)
	}
}

// decodeValueText consumes the payload of a value token: a value type
// (in practice always a UTF-16 string) and its data.
func (d *Decoder) decodeValueText(c *cursor) (Value, error) {
	valType, err := c.u8()
	if err != nil {
		return nil, err
	}
	if ValueType(valType) != ValueTypeString {
		return nil, fmt.Errorf("value text type 0x%02X: %w", valType, ErrInvalidToken)
	}
	count, err := c.u16()
	if err != nil {
		return nil, err
	}
	raw, err := c.bytes(2 * int(count))
	if err != nil {
		return nil, err
	}
	return NewValue(ValueTypeString, raw)
}

// decodeContent consumes element content up to the end-element token,
// populating tag's children and value.
func (d *Decoder) decodeContent(c *cursor, tag *Tag) error {
	var parts []Value

	for {
		token, err := c.peek()
		if err != nil {
			return err
		}
		switch token & format.TokenBaseMask {
		case format.TokenEndElement:
			_, _ = c.u8()
			tag.Value = mergeContent(parts)
			return nil

		case format.TokenOpenStartElement:
			child, err := d.decodeElement(c)
			if err != nil {
				return err
			}
			tag.AppendChild(child)

		case format.TokenCDATASection:
			_, _ = c.u8()
			count, err := c.u16()
			if err != nil {
				return err
			}
			raw, err := c.bytes(2 * int(count))
			if err != nil {
				return err
			}
			v, err := NewValue(ValueTypeString, raw)
			if err != nil {
				return err
			}
			cdata := &Tag{Kind: KindCData, Value: v}
			tag.AppendChild(cdata)

		case format.TokenPITarget:
			pi, err := d.decodePI(c)
			if err != nil {
				return err
			}
			tag.AppendChild(pi)

		case format.TokenValue, format.TokenCharRef, format.TokenEntityRef,
			format.TokenNormalSubst, format.TokenOptionalSubst:
			v, present, err := d.decodeValueContent(c, tag)
			if err != nil {
				return err
			}
			if present && v != nil {
				parts = append(parts, v)
			}

		case format.TokenEOF:
			return fmt.Errorf("EOF inside element: %w", ErrInvalidToken)

		default:
			return fmt.Errorf("content token 0x%02X at 0x%X: %w", token, c.pos, ErrInvalidToken)
		}
	}
}

// decodeValueContent handles a value-producing token in element content. A
// binary XML substitution expands into child elements instead of text.
func (d *Decoder) decodeValueContent(c *cursor, tag *Tag) (Value, bool, error) {
	token, err := c.peek()
	if err != nil {
		return nil, false, err
	}
	base := token & format.TokenBaseMask
	if base == format.TokenNormalSubst || base == format.TokenOptionalSubst {
		_, _ = c.u8()
		id, err := c.u16()
		if err != nil {
			return nil, false, err
		}
		declared, err := c.u8()
		if err != nil {
			return nil, false, err
		}
		tv, err := c.substitution(int(id), ValueType(declared))
		if err != nil {
			return nil, false, err
		}
		if tv.typ.Base() == ValueTypeBinXML {
			// Embedded fragment: expand in place as element children.
			if len(tv.data) == 0 {
				return nil, false, nil
			}
			child, err := d.DecodeAt(tv.off, len(tv.data))
			if err != nil {
				return nil, false, fmt.Errorf("embedded fragment: %w", err)
			}
			tag.AppendChild(child)
			return nil, false, nil
		}
		if tv.typ == ValueTypeNull {
			return nil, false, nil
		}
		v, err := NewValue(tv.typ, tv.data)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
	return d.decodeValueToken(c)
}

// decodePI consumes a processing instruction target and data pair.
func (d *Decoder) decodePI(c *cursor) (*Tag, error) {
	if _, err := c.u8(); err != nil { // PI target token
		return nil, err
	}
	name, err := d.readName(c)
	if err != nil {
		return nil, fmt.Errorf("pi target: %w", err)
	}
	token, err := c.u8()
	if err != nil {
		return nil, err
	}
	if token != format.TokenPIData {
		return nil, fmt.Errorf("pi data token 0x%02X: %w", token, ErrInvalidToken)
	}
	count, err := c.u16()
	if err != nil {
		return nil, err
	}
	raw, err := c.bytes(2 * int(count))
	if err != nil {
		return nil, err
	}
	body, err := NewValue(ValueTypeString, raw)
	if err != nil {
		return nil, err
	}
	return &Tag{Kind: KindPI, Name: name, Value: body}, nil
}

// decodeSubstitution resolves a substitution token against the template
// instance values. Optional substitutions of NULL values report present =
// false so the caller can drop the construct.
func (d *Decoder) decodeSubstitution(c *cursor, optional bool) (Value, bool, error) {
	id, err := c.u16()
	if err != nil {
		return nil, false, err
	}
	declared, err := c.u8()
	if err != nil {
		return nil, false, err
	}
	tv, err := c.substitution(int(id), ValueType(declared))
	if err != nil {
		return nil, false, err
	}
	if tv.typ == ValueTypeNull {
		if optional {
			return nil, false, nil
		}
		v, err := NewValue(ValueTypeNull, nil)
		return v, true, err
	}
	if tv.typ.Base() == ValueTypeBinXML {
		// An embedded fragment cannot be rendered as attribute text.
		return nil, false, fmt.Errorf("binary xml substitution in text position: %w", ErrInvalidToken)
	}
	v, err := NewValue(tv.typ, tv.data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// substitution fetches template value id, preferring the type recorded in
// the instance descriptor over the declared one.
func (c *cursor) substitution(id int, declared ValueType) (templateValue, error) {
	if id < 0 || id >= len(c.values) {
		return templateValue{}, fmt.Errorf("substitution %d of %d: %w", id, len(c.values), ErrEntryOutOfRange)
	}
	tv := c.values[id]
	if tv.typ == ValueTypeNull && declared != ValueTypeNull && len(tv.data) > 0 {
		tv.typ = declared
	}
	return tv, nil
}

// mergeContent folds the collected content parts into the element value. A
// single part keeps its type and entry structure; multiple parts collapse to
// one concatenated string.
func mergeContent(parts []Value) Value {
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	text := ""
	for _, p := range parts {
		for i := 0; i < p.EntryCount(); i++ {
			s, err := valueText(p, i)
			if err != nil {
				continue
			}
			text += s
		}
	}
	return NewStringValue(text)
}

// readName reads the name offset at the cursor and resolves the name record,
// consuming the inline definition when the offset points at the byte right
// after the offset field.
func (d *Decoder) readName(c *cursor) (*BinaryValue, error) {
	off, err := c.u32()
	if err != nil {
		return nil, err
	}
	name, size, err := d.nameAt(int(off))
	if err != nil {
		return nil, err
	}
	if int(off) == c.pos {
		if err := c.skip(size); err != nil {
			return nil, err
		}
	}
	return name, nil
}

// nameAt decodes (and caches) the name record at the chunk-relative offset.
// It returns the record's total size so inline definitions can be skipped.
func (d *Decoder) nameAt(off int) (*BinaryValue, int, error) {
	if cached, ok := d.names[off]; ok {
		return cached, nameRecordSize(cached), nil
	}
	if !buf.Has(d.chunk, off, format.NameFixedSize) {
		return nil, 0, fmt.Errorf("name at 0x%X: %w", off, ErrTruncated)
	}
	count := int(format.ReadU16(d.chunk, off+format.NameCharCountOffset))
	// The raw bytes keep the end-of-string character.
	raw, ok := buf.Slice(d.chunk, off+format.NameStringOffset, 2*count+2)
	if !ok {
		return nil, 0, fmt.Errorf("name at 0x%X: %w", off, ErrTruncated)
	}
	name, err := NewValue(ValueTypeString, raw)
	if err != nil {
		return nil, 0, fmt.Errorf("name at 0x%X: %w", off, err)
	}
	d.names[off] = name
	return name, nameRecordSize(name), nil
}

// nameRecordSize computes the on-disk size of a decoded name record.
func nameRecordSize(name *BinaryValue) int {
	raw, err := name.EntryBytes(0)
	if err != nil {
		return format.NameFixedSize
	}
	return format.NameFixedSize + len(raw)
}
