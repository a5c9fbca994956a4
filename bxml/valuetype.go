package bxml

// ValueType identifies the logical type of a typed value. The numbering
// follows the binary XML value descriptors found on disk; ValueTypeArrayBit
// marks a multi-entry value of the base type.
type ValueType uint8

const (
	ValueTypeNull        ValueType = 0x00
	ValueTypeString      ValueType = 0x01 // UTF-16LE string
	ValueTypeAnsiString  ValueType = 0x02 // Windows-1252 string
	ValueTypeInt8        ValueType = 0x03
	ValueTypeUint8       ValueType = 0x04
	ValueTypeInt16       ValueType = 0x05
	ValueTypeUint16      ValueType = 0x06
	ValueTypeInt32       ValueType = 0x07
	ValueTypeUint32      ValueType = 0x08
	ValueTypeInt64       ValueType = 0x09
	ValueTypeUint64      ValueType = 0x0A
	ValueTypeReal32      ValueType = 0x0B
	ValueTypeReal64      ValueType = 0x0C
	ValueTypeBool        ValueType = 0x0D
	ValueTypeBinary      ValueType = 0x0E
	ValueTypeGUID        ValueType = 0x0F
	ValueTypeSizeT       ValueType = 0x10
	ValueTypeFiletime    ValueType = 0x11
	ValueTypeSystemtime  ValueType = 0x12
	ValueTypeSID         ValueType = 0x13
	ValueTypeHexInt32    ValueType = 0x14
	ValueTypeHexInt64    ValueType = 0x15
	ValueTypeBinXML      ValueType = 0x21

	// ValueTypeArrayBit marks an array of the base type.
	ValueTypeArrayBit ValueType = 0x80
)

// Base strips the array bit.
func (t ValueType) Base() ValueType {
	return t &^ ValueTypeArrayBit
}

// IsArray reports whether the value packs multiple entries.
func (t ValueType) IsArray() bool {
	return t&ValueTypeArrayBit != 0
}

// IsTime reports whether values of this type carry a trailing 'Z' marker in
// XML output to denote UTC.
func (t ValueType) IsTime() bool {
	base := t.Base()
	return base == ValueTypeFiletime || base == ValueTypeSystemtime
}

// elementSize returns the fixed on-disk size of one array element, or 0 for
// variable-length types (strings, binary, SID).
func (t ValueType) elementSize() int {
	switch t.Base() {
	case ValueTypeInt8, ValueTypeUint8:
		return 1
	case ValueTypeInt16, ValueTypeUint16:
		return 2
	case ValueTypeInt32, ValueTypeUint32, ValueTypeReal32, ValueTypeHexInt32, ValueTypeBool:
		return 4
	case ValueTypeInt64, ValueTypeUint64, ValueTypeReal64, ValueTypeHexInt64,
		ValueTypeFiletime, ValueTypeSizeT:
		return 8
	case ValueTypeGUID, ValueTypeSystemtime:
		return 16
	default:
		return 0
	}
}

func (t ValueType) String() string {
	if t.IsArray() {
		return t.Base().String() + " array"
	}
	switch t {
	case ValueTypeNull:
		return "null"
	case ValueTypeString:
		return "string"
	case ValueTypeAnsiString:
		return "ansi string"
	case ValueTypeInt8:
		return "int8"
	case ValueTypeUint8:
		return "uint8"
	case ValueTypeInt16:
		return "int16"
	case ValueTypeUint16:
		return "uint16"
	case ValueTypeInt32:
		return "int32"
	case ValueTypeUint32:
		return "uint32"
	case ValueTypeInt64:
		return "int64"
	case ValueTypeUint64:
		return "uint64"
	case ValueTypeReal32:
		return "real32"
	case ValueTypeReal64:
		return "real64"
	case ValueTypeBool:
		return "bool"
	case ValueTypeBinary:
		return "binary"
	case ValueTypeGUID:
		return "guid"
	case ValueTypeSizeT:
		return "size_t"
	case ValueTypeFiletime:
		return "filetime"
	case ValueTypeSystemtime:
		return "systemtime"
	case ValueTypeSID:
		return "sid"
	case ValueTypeHexInt32:
		return "hex32"
	case ValueTypeHexInt64:
		return "hex64"
	case ValueTypeBinXML:
		return "binary xml"
	default:
		return "unknown"
	}
}
