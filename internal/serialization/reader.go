package serialization

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/strata-ml/strata/internal/tensor"
)

// Reader provides access to a parsed .strata file. The whole file is held
// in memory; tensor reads copy out of the data section.
type Reader struct {
	header Header
	byName map[string]TensorMeta
	data   []byte
}

// Open reads and validates a .strata file. The fixed header, JSON header,
// tensor layout and data checksum are all verified before Open returns.
func Open(path string) (*Reader, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parse(buf)
}

func parse(buf []byte) (*Reader, error) {
	if len(buf) < FixedHeaderSize {
		return nil, fmt.Errorf("%w: file shorter than fixed header", ErrCorruptHeader)
	}
	if string(buf[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: got version %d, want %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	headerLen := int64(binary.LittleEndian.Uint64(buf[8:16]))
	dataLen := int64(binary.LittleEndian.Uint64(buf[16:24]))
	var storedSum [sha256.Size]byte
	copy(storedSum[:], buf[ChecksumOffset:ChecksumOffset+sha256.Size])

	headerEnd := int64(FixedHeaderSize) + headerLen
	dataStart := alignUp(headerEnd, DataAlignment)
	if headerLen < 0 || headerEnd > int64(len(buf)) || dataStart+dataLen > int64(len(buf)) {
		return nil, fmt.Errorf("%w: section lengths exceed file size", ErrCorruptHeader)
	}

	var header Header
	if err := json.Unmarshal(buf[FixedHeaderSize:headerEnd], &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}

	data := buf[dataStart : dataStart+dataLen]
	sum := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(sum[:], storedSum[:]) != 1 {
		return nil, ErrChecksumMismatch
	}

	byName := make(map[string]TensorMeta, len(header.Tensors))
	for _, meta := range header.Tensors {
		if err := validateMeta(meta, dataLen); err != nil {
			return nil, err
		}
		byName[meta.Name] = meta
	}

	return &Reader{header: header, byName: byName, data: data}, nil
}

// Header returns the parsed JSON header.
func (r *Reader) Header() Header {
	return r.header
}

// TensorNames returns the names of all tensors in file order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// ReadTensor reads one tensor by name into a fresh RawTensor on device.
func (r *Reader) ReadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	meta, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
	}
	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, fmt.Errorf("%w: tensor %q has dtype %q", ErrCorruptHeader, name, meta.DType)
	}
	out, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, device)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}
	if int64(out.ByteSize()) != meta.Size {
		return nil, fmt.Errorf("%w: tensor %q shape %v does not match size %d",
			ErrCorruptHeader, name, meta.Shape, meta.Size)
	}
	copy(out.Data(), r.data[meta.Offset:meta.Offset+meta.Size])
	return out, nil
}

// ReadStateDict reads every tensor in the file into a state dict.
func (r *Reader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	out := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		t, err := r.ReadTensor(meta.Name, device)
		if err != nil {
			return nil, err
		}
		out[meta.Name] = t
	}
	return out, nil
}
