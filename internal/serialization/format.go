// Package serialization implements the .strata checkpoint format.
//
// A .strata file is a fixed binary header, a JSON metadata header, and a
// 64-byte-aligned tensor data section protected by a SHA-256 checksum:
//
//	0x00  magic "STRA"
//	0x04  format version (uint32, little endian)
//	0x08  JSON header length in bytes (uint64)
//	0x10  data section length in bytes (uint64)
//	0x18  SHA-256 checksum of the data section (32 bytes)
//	0x38  reserved (8 bytes, zero)
//	0x40  JSON header
//	...   zero padding to the next 64-byte boundary
//	...   tensor data section
package serialization

import (
	"time"

	"github.com/strata-ml/strata/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "STRA"
	FormatVersion   = 1
	FixedHeaderSize = 64 // bytes before the JSON header
	DataAlignment   = 64 // tensor data aligned for direct slicing
	ChecksumOffset  = 0x18
)

// Data type string constants used in the JSON header.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
)

// Header is the JSON metadata header of a .strata file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	LibraryVersion string            `json:"library_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // parameter path, e.g. "stages.0.1.norm.weight"
	DType  string `json:"dtype"`  // "float32" or "float64"
	Shape  []int  `json:"shape"`  // tensor dimensions
	Offset int64  `json:"offset"` // bytes from start of the data section
	Size   int64  `json:"size"`   // bytes
}

// dtypeToString converts tensor.DataType to its header representation.
func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	default:
		return "unknown"
	}
}

// stringToDtype converts a header dtype string to tensor.DataType.
func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	default:
		return 0, false
	}
}

// alignUp rounds n up to the next multiple of align.
func alignUp(n, align int64) int64 {
	return (n + align - 1) / align * align
}
