package bxml

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/tyekrgk/libevtx/internal/buf"
	"github.com/tyekrgk/libevtx/internal/format"
)

// Value exposes a tag's name or value as one or more typed entries with a
// known textual rendering. Sizes are expressed in code units of the target
// encoding and include a single trailing end-of-string character, matching
// the arithmetic of the XML serializer; the copy primitives write the
// rendering WITHOUT that terminator and advance the index by the written
// length.
type Value interface {
	// Type identifies the value's logical type.
	Type() ValueType

	// EntryCount returns the number of sub-entries packed into the value.
	// It is at least 1 for any decoded value.
	EntryCount() int

	// EntryBytes returns the raw stored bytes of entry i.
	EntryBytes(i int) ([]byte, error)

	// UTF8Size returns the size in bytes required to render entry i as a
	// UTF-8 string, including one trailing end-of-string byte.
	UTF8Size(i int) (int, error)

	// UTF16Size returns the size in code units required to render entry i as
	// a UTF-16 string, including one trailing end-of-string unit.
	UTF16Size(i int) (int, error)

	// CopyUTF8 writes the UTF-8 rendering of entry i into dst starting at
	// *idx and advances *idx past it. No terminator is written.
	CopyUTF8(i int, dst []byte, idx *int) error

	// CopyUTF16 writes the UTF-16 rendering of entry i into dst starting at
	// *idx and advances *idx past it. No terminator is written.
	CopyUTF16(i int, dst []uint16, idx *int) error
}

// BinaryValue is a Value decoded from on-disk bytes. Renderings are computed
// once at construction; a BinaryValue is immutable afterwards.
type BinaryValue struct {
	typ     ValueType
	entries [][]byte
	text    []string
	units   [][]uint16
}

// NewValue decodes data as a value of the given type. Array types are split
// into entries; scalar types yield exactly one entry.
func NewValue(typ ValueType, data []byte) (*BinaryValue, error) {
	entries, err := splitEntries(typ, data)
	if err != nil {
		return nil, err
	}
	v := &BinaryValue{
		typ:     typ,
		entries: entries,
		text:    make([]string, len(entries)),
		units:   make([][]uint16, len(entries)),
	}
	for i, e := range entries {
		s, err := renderEntry(typ.Base(), e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		v.text[i] = s
		v.units[i] = encodeUTF16(s)
	}
	return v, nil
}

// NewStringValue builds a UTF-16 string value from a Go string. Mostly a
// convenience for callers assembling trees by hand.
func NewStringValue(s string) *BinaryValue {
	units := encodeUTF16(s)
	data := make([]byte, 2*len(units))
	for i, u := range units {
		data[2*i] = byte(u)
		data[2*i+1] = byte(u >> 8)
	}
	return &BinaryValue{
		typ:     ValueTypeString,
		entries: [][]byte{data},
		text:    []string{s},
		units:   [][]uint16{units},
	}
}

// Type identifies the value's logical type.
func (v *BinaryValue) Type() ValueType {
	return v.typ
}

// EntryCount returns the number of sub-entries packed into the value.
func (v *BinaryValue) EntryCount() int {
	return len(v.entries)
}

// EntryBytes returns the raw stored bytes of entry i.
func (v *BinaryValue) EntryBytes(i int) ([]byte, error) {
	if i < 0 || i >= len(v.entries) {
		return nil, ErrEntryOutOfRange
	}
	return v.entries[i], nil
}

// Text returns the textual rendering of entry i.
func (v *BinaryValue) Text(i int) (string, error) {
	if i < 0 || i >= len(v.text) {
		return "", ErrEntryOutOfRange
	}
	return v.text[i], nil
}

// String concatenates the renderings of all entries, in order.
func (v *BinaryValue) String() string {
	if len(v.text) == 1 {
		return v.text[0]
	}
	return strings.Join(v.text, "")
}

// UTF8Size returns the UTF-8 size of entry i including the terminator slot.
func (v *BinaryValue) UTF8Size(i int) (int, error) {
	if i < 0 || i >= len(v.text) {
		return 0, ErrEntryOutOfRange
	}
	return len(v.text[i]) + 1, nil
}

// UTF16Size returns the UTF-16 size of entry i including the terminator slot.
func (v *BinaryValue) UTF16Size(i int) (int, error) {
	if i < 0 || i >= len(v.units) {
		return 0, ErrEntryOutOfRange
	}
	return len(v.units[i]) + 1, nil
}

// CopyUTF8 writes the UTF-8 rendering of entry i into dst at *idx.
func (v *BinaryValue) CopyUTF8(i int, dst []byte, idx *int) error {
	if i < 0 || i >= len(v.text) {
		return ErrEntryOutOfRange
	}
	s := v.text[i]
	if *idx < 0 || *idx+len(s) > len(dst) {
		return ErrBufferTooSmall
	}
	copy(dst[*idx:], s)
	*idx += len(s)
	return nil
}

// CopyUTF16 writes the UTF-16 rendering of entry i into dst at *idx.
func (v *BinaryValue) CopyUTF16(i int, dst []uint16, idx *int) error {
	if i < 0 || i >= len(v.units) {
		return ErrEntryOutOfRange
	}
	u := v.units[i]
	if *idx < 0 || *idx+len(u) > len(dst) {
		return ErrBufferTooSmall
	}
	copy(dst[*idx:], u)
	*idx += len(u)
	return nil
}

// splitEntries carves data into per-entry slices according to the value type.
func splitEntries(typ ValueType, data []byte) ([][]byte, error) {
	if !typ.IsArray() {
		return [][]byte{data}, nil
	}
	base := typ.Base()
	switch base {
	case ValueTypeString:
		return splitUTF16Strings(data), nil
	case ValueTypeAnsiString:
		return splitAnsiStrings(data), nil
	}
	size := typ.elementSize()
	if size == 0 {
		// Variable-length types without an in-band separator stay whole.
		return [][]byte{data}, nil
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%w: array data %d not a multiple of element size %d",
			ErrTruncated, len(data), size)
	}
	entries := make([][]byte, 0, len(data)/size)
	for off := 0; off < len(data); off += size {
		entries = append(entries, data[off:off+size])
	}
	if len(entries) == 0 {
		entries = append(entries, data)
	}
	return entries, nil
}

// splitUTF16Strings splits on U+0000 terminators. The terminator is excluded
// from each entry.
func splitUTF16Strings(data []byte) [][]byte {
	var entries [][]byte
	start := 0
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			entries = append(entries, data[start:i])
			start = i + 2
		}
	}
	if start < len(data) {
		entries = append(entries, data[start:])
	}
	if len(entries) == 0 {
		entries = append(entries, data)
	}
	return entries
}

func splitAnsiStrings(data []byte) [][]byte {
	var entries [][]byte
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == 0 {
			entries = append(entries, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		entries = append(entries, data[start:])
	}
	if len(entries) == 0 {
		entries = append(entries, data)
	}
	return entries
}

const hexUpper = "0123456789ABCDEF"

// renderEntry produces the textual form of one entry of the given base type.
func renderEntry(base ValueType, data []byte) (string, error) {
	switch base {
	case ValueTypeNull, ValueTypeBinXML:
		// Null renders empty; binary XML values are expanded by the decoder
		// and never reach the text path.
		return "", nil

	case ValueTypeString:
		if len(data) >= 2 && data[len(data)-2] == 0 && data[len(data)-1] == 0 {
			data = data[:len(data)-2]
		}
		return decodeUTF16LE(data), nil

	case ValueTypeAnsiString:
		if len(data) >= 1 && data[len(data)-1] == 0 {
			data = data[:len(data)-1]
		}
		if isASCII(data) {
			return string(data), nil
		}
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode ansi string: %w", err)
		}
		return string(decoded), nil

	case ValueTypeInt8:
		if len(data) < 1 {
			return "", ErrTruncated
		}
		return strconv.FormatInt(int64(int8(data[0])), 10), nil
	case ValueTypeUint8:
		if len(data) < 1 {
			return "", ErrTruncated
		}
		return strconv.FormatUint(uint64(data[0]), 10), nil
	case ValueTypeInt16:
		if len(data) < 2 {
			return "", ErrTruncated
		}
		return strconv.FormatInt(int64(int16(buf.U16LE(data))), 10), nil
	case ValueTypeUint16:
		if len(data) < 2 {
			return "", ErrTruncated
		}
		return strconv.FormatUint(uint64(buf.U16LE(data)), 10), nil
	case ValueTypeInt32:
		if len(data) < 4 {
			return "", ErrTruncated
		}
		return strconv.FormatInt(int64(buf.I32LE(data)), 10), nil
	case ValueTypeUint32:
		if len(data) < 4 {
			return "", ErrTruncated
		}
		return strconv.FormatUint(uint64(buf.U32LE(data)), 10), nil
	case ValueTypeInt64:
		if len(data) < 8 {
			return "", ErrTruncated
		}
		return strconv.FormatInt(int64(buf.U64LE(data)), 10), nil
	case ValueTypeUint64:
		if len(data) < 8 {
			return "", ErrTruncated
		}
		return strconv.FormatUint(buf.U64LE(data), 10), nil

	case ValueTypeReal32:
		if len(data) < 4 {
			return "", ErrTruncated
		}
		return strconv.FormatFloat(float64(math.Float32frombits(buf.U32LE(data))), 'f', -1, 32), nil
	case ValueTypeReal64:
		if len(data) < 8 {
			return "", ErrTruncated
		}
		return strconv.FormatFloat(math.Float64frombits(buf.U64LE(data)), 'f', -1, 64), nil

	case ValueTypeBool:
		if len(data) < 4 {
			return "", ErrTruncated
		}
		if buf.U32LE(data) != 0 {
			return "true", nil
		}
		return "false", nil

	case ValueTypeBinary:
		var b strings.Builder
		b.Grow(2 * len(data))
		for _, c := range data {
			b.WriteByte(hexUpper[c>>4])
			b.WriteByte(hexUpper[c&0x0F])
		}
		return b.String(), nil

	case ValueTypeGUID:
		return renderGUID(data)

	case ValueTypeSizeT:
		switch len(data) {
		case 4:
			return strconv.FormatUint(uint64(buf.U32LE(data)), 10), nil
		case 8:
			return strconv.FormatUint(buf.U64LE(data), 10), nil
		default:
			return "", ErrTruncated
		}

	case ValueTypeFiletime:
		if len(data) < 8 {
			return "", ErrTruncated
		}
		return format.FiletimeToTime(buf.U64LE(data)).Format(format.TimeLayout), nil

	case ValueTypeSystemtime:
		if len(data) < 16 {
			return "", ErrTruncated
		}
		t, err := format.SystemtimeToTime(data)
		if err != nil {
			return "", err
		}
		return t.Format(format.TimeLayout), nil

	case ValueTypeSID:
		return renderSID(data)

	case ValueTypeHexInt32:
		if len(data) < 4 {
			return "", ErrTruncated
		}
		return "0x" + strconv.FormatUint(uint64(buf.U32LE(data)), 16), nil
	case ValueTypeHexInt64:
		if len(data) < 8 {
			return "", ErrTruncated
		}
		return "0x" + strconv.FormatUint(buf.U64LE(data), 16), nil

	default:
		return "", fmt.Errorf("%w: value type 0x%02X", ErrInvalidToken, uint8(base))
	}
}

// renderGUID formats 16 bytes as {xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx}.
// The first three groups are little-endian.
func renderGUID(data []byte) (string, error) {
	if len(data) < 16 {
		return "", ErrTruncated
	}
	var b strings.Builder
	b.Grow(38)
	b.WriteByte('{')
	order := []int{3, 2, 1, 0, -1, 5, 4, -1, 7, 6, -1, 8, 9, -1, 10, 11, 12, 13, 14, 15}
	for _, i := range order {
		if i < 0 {
			b.WriteByte('-')
			continue
		}
		b.WriteByte(hexUpper[data[i]>>4])
		b.WriteByte(hexUpper[data[i]&0x0F])
	}
	b.WriteByte('}')
	return b.String(), nil
}

// renderSID formats a Windows security identifier as S-R-I-S-S...
func renderSID(data []byte) (string, error) {
	if len(data) < 8 {
		return "", ErrTruncated
	}
	revision := data[0]
	count := int(data[1])
	if len(data) < 8+4*count {
		return "", ErrTruncated
	}
	// The identifier authority is a 48-bit big-endian value.
	var authority uint64
	for _, c := range data[2:8] {
		authority = authority<<8 | uint64(c)
	}
	var b strings.Builder
	b.WriteString("S-")
	b.WriteString(strconv.FormatUint(uint64(revision), 10))
	b.WriteByte('-')
	b.WriteString(strconv.FormatUint(authority, 10))
	for i := 0; i < count; i++ {
		b.WriteByte('-')
		b.WriteString(strconv.FormatUint(uint64(buf.U32LE(data[8+4*i:])), 10))
	}
	return b.String(), nil
}

func isASCII(data []byte) bool {
	for _, c := range data {
		if c >= utf16ASCIIThreshold {
			return false
		}
	}
	return true
}
