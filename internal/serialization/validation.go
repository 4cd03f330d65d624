package serialization

import "fmt"

// validateMeta checks a tensor's declared layout against the data section.
func validateMeta(meta TensorMeta, dataSize int64) error {
	if meta.Name == "" {
		return fmt.Errorf("%w: tensor with empty name", ErrCorruptHeader)
	}
	if meta.Offset < 0 || meta.Size < 0 {
		return fmt.Errorf("%w: tensor %q has negative offset or size", ErrCorruptHeader, meta.Name)
	}
	if meta.Offset%DataAlignment != 0 {
		return fmt.Errorf("%w: tensor %q offset %d not %d-byte aligned",
			ErrCorruptHeader, meta.Name, meta.Offset, DataAlignment)
	}
	if meta.Offset+meta.Size > dataSize {
		return fmt.Errorf("%w: tensor %q extends past data section (offset %d, size %d, data %d)",
			ErrCorruptHeader, meta.Name, meta.Offset, meta.Size, dataSize)
	}
	elems := int64(1)
	for _, d := range meta.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: tensor %q has non-positive dimension %d",
				ErrCorruptHeader, meta.Name, d)
		}
		elems *= int64(d)
	}
	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return fmt.Errorf("%w: tensor %q has dtype %q", ErrCorruptHeader, meta.Name, meta.DType)
	}
	if want := elems * int64(dtype.Size()); want != meta.Size {
		return fmt.Errorf("%w: tensor %q shape %v needs %d bytes but header declares %d",
			ErrCorruptHeader, meta.Name, meta.Shape, want, meta.Size)
	}
	return nil
}
