package serialization

import "errors"

// Sentinel errors returned by the reader. I/O errors and format violations
// wrap these so callers can branch with errors.Is.
var (
	// ErrInvalidMagic indicates the file does not start with "STRA".
	ErrInvalidMagic = errors.New("serialization: invalid magic bytes")

	// ErrUnsupportedVersion indicates a format version this library
	// cannot read.
	ErrUnsupportedVersion = errors.New("serialization: unsupported format version")

	// ErrCorruptHeader indicates the JSON header failed to parse or
	// describes tensors inconsistent with the data section.
	ErrCorruptHeader = errors.New("serialization: corrupt header")

	// ErrChecksumMismatch indicates the data section does not match the
	// stored SHA-256 checksum.
	ErrChecksumMismatch = errors.New("serialization: checksum mismatch")

	// ErrTensorNotFound indicates a requested tensor name is absent.
	ErrTensorNotFound = errors.New("serialization: tensor not found")
)
