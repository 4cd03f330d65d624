package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/strata-ml/strata/internal/tensor"
)

// WriteOptions carries optional header fields for WriteStateDict.
type WriteOptions struct {
	LibraryVersion string
	ModelType      string
	Metadata       map[string]string
}

// WriteStateDict writes a state dict to path in the .strata format.
// Tensors are laid out in sorted name order, each aligned to 64 bytes,
// so the output is deterministic for a given state dict.
func WriteStateDict(path string, stateDict map[string]*tensor.RawTensor, opts WriteOptions) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	metas := make([]TensorMeta, 0, len(names))
	var offset int64
	for _, name := range names {
		t := stateDict[name]
		size := int64(len(t.Data()))
		offset = alignUp(offset, DataAlignment)
		metas = append(metas, TensorMeta{
			Name:   name,
			DType:  dtypeToString(t.DType()),
			Shape:  t.Shape().Clone(),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}
	dataSize := offset

	header := Header{
		FormatVersion:  FormatVersion,
		LibraryVersion: opts.LibraryVersion,
		ModelType:      opts.ModelType,
		CreatedAt:      time.Now().UTC(),
		Tensors:        metas,
		Metadata:       opts.Metadata,
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	checksum := sha256.New()
	var written int64
	for _, meta := range metas {
		pad := alignUp(written, DataAlignment) - written
		checksum.Write(make([]byte, pad))
		checksum.Write(stateDict[meta.Name].Data())
		written += pad + meta.Size
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(fixed[8:16], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(dataSize))
	copy(fixed[ChecksumOffset:ChecksumOffset+sha256.Size], checksum.Sum(nil))
	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	// Pad so the data section starts 64-byte aligned.
	pos := int64(FixedHeaderSize + len(headerJSON))
	if pad := alignUp(pos, DataAlignment) - pos; pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("write padding: %w", err)
		}
	}

	written = 0
	for _, meta := range metas {
		if pad := alignUp(written, DataAlignment) - written; pad > 0 {
			if _, err := w.Write(make([]byte, pad)); err != nil {
				return fmt.Errorf("write padding: %w", err)
			}
			written += pad
		}
		if _, err := w.Write(stateDict[meta.Name].Data()); err != nil {
			return fmt.Errorf("write tensor %s: %w", meta.Name, err)
		}
		written += meta.Size
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Sync()
}
