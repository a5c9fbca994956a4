package bxml

import "errors"

var (
	// ErrBufferTooSmall indicates emission would exceed the caller's buffer
	// capacity. The write index is left at the last completed position.
	ErrBufferTooSmall = errors.New("bxml: buffer too small")

	// ErrUnsupportedName indicates a lookup touched a tag whose name is not
	// stored as a UTF-16 string value.
	ErrUnsupportedName = errors.New("bxml: name is not a UTF-16 string value")

	// ErrMissingName indicates a node or processing instruction without a name
	// reached the serializer.
	ErrMissingName = errors.New("bxml: missing name")

	// ErrMissingValue indicates a CDATA section, processing instruction, or
	// attribute without a value reached the serializer.
	ErrMissingValue = errors.New("bxml: missing value")

	// ErrEntryOutOfRange indicates a value entry index outside [0, EntryCount).
	ErrEntryOutOfRange = errors.New("bxml: value entry out of range")

	// ErrInvalidToken indicates the decoder hit an opcode it does not know or
	// an opcode that is invalid in its position.
	ErrInvalidToken = errors.New("bxml: invalid token")

	// ErrTruncated indicates the binary XML data ended inside a structure.
	ErrTruncated = errors.New("bxml: truncated data")
)
