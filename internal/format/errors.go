package format

import "errors"

var (
	// ErrSignatureMismatch indicates a structure had an unexpected magic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrChecksumMismatch indicates a CRC-32 verification failed.
	ErrChecksumMismatch = errors.New("format: checksum mismatch")
	// ErrUnsupported indicates the structure or feature is not supported.
	ErrUnsupported = errors.New("format: unsupported feature")

	// ErrSanityLimit indicates a parsed value exceeded sanity limits.
	// This prevents integer overflow attacks and excessive allocations
	// from malformed event log files.
	ErrSanityLimit = errors.New("format: value exceeds sanity limit")
)
