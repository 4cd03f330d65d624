package cpu

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// Permute rearranges the tensor's dimensions according to axes.
// The result is a freshly laid-out contiguous tensor.
func (cpu *CPUBackend) Permute(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if len(axes) != ndim {
		panic(fmt.Sprintf("permute: got %d axes for %dD tensor", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("permute: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("permute: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result := tensor.MustNewRaw(newShape, x.DType(), cpu.device)

	srcStrides := shape.ComputeStrides()
	dstStrides := newShape.ComputeStrides()

	switch x.DType() {
	case tensor.Float32:
		permuteData(x.AsFloat32(), result.AsFloat32(), newShape, dstStrides, srcStrides, axes)
	case tensor.Float64:
		permuteData(x.AsFloat64(), result.AsFloat64(), newShape, dstStrides, srcStrides, axes)
	}
	return result
}

func permuteData[T float32 | float64](src, dst []T, outShape tensor.Shape, dstStrides, srcStrides []int, axes []int) {
	// Strides of the source axis that lands at output position d.
	mapped := make([]int, len(axes))
	for d, ax := range axes {
		mapped[d] = srcStrides[ax]
	}

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		srcIdx := 0
		rem := i
		for d := 0; d < len(outShape); d++ {
			coord := rem / dstStrides[d]
			rem %= dstStrides[d]
			srcIdx += coord * mapped[d]
		}
		dst[i] = src[srcIdx]
	}
}

// Cat concatenates tensors along the specified dimension.
// All tensors must agree on every other dimension and on dtype.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	shape := tensors[0].Shape()
	dtype := tensors[0].DType()
	dim = shape.Normalize(dim)

	totalDim := 0
	for i, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != len(shape) {
			panic(fmt.Sprintf("cat: tensor %d has %d dimensions, expected %d", i, len(tShape), len(shape)))
		}
		if t.DType() != dtype {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), dtype))
		}
		for d := range tShape {
			if d == dim {
				totalDim += tShape[d]
			} else if tShape[d] != shape[d] {
				panic(fmt.Sprintf("cat: tensor %d dimension %d is %d, expected %d", i, d, tShape[d], shape[d]))
			}
		}
	}

	outShape := shape.Clone()
	outShape[dim] = totalDim
	result := tensor.MustNewRaw(outShape, dtype, cpu.device)

	// Copy row blocks: every tensor contributes a contiguous
	// chunk of (dimSize * inner) elements per outer index.
	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	elemSize := dtype.Size()
	dstRow := totalDim * inner * elemSize
	dst := result.Data()

	rowOffset := 0
	for _, t := range tensors {
		src := t.Data()
		block := t.Shape()[dim] * inner * elemSize
		for o := 0; o < outer; o++ {
			copy(dst[o*dstRow+rowOffset:], src[o*block:(o+1)*block])
		}
		rowOffset += block
	}

	return result
}

// Chunk splits the tensor into n equal parts along the specified dimension.
// The dimension size must be divisible by n.
func (cpu *CPUBackend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	shape := x.Shape()
	dim = shape.Normalize(dim)

	if n <= 0 {
		panic(fmt.Sprintf("chunk: invalid part count %d", n))
	}
	if shape[dim]%n != 0 {
		panic(fmt.Sprintf("chunk: dimension %d size %d not divisible by %d", dim, shape[dim], n))
	}

	size := shape[dim] / n
	parts := make([]*tensor.RawTensor, n)
	for i := range parts {
		parts[i] = cpu.Narrow(x, dim, i*size, size)
	}
	return parts
}

// Narrow copies the [start, start+length) range of the given dimension into a
// fresh tensor.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.Normalize(dim)

	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dimension %d of size %d",
			start, start+length, dim, shape[dim]))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	result := tensor.MustNewRaw(outShape, x.DType(), cpu.device)

	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	elemSize := x.DType().Size()
	srcRow := shape[dim] * inner * elemSize
	dstRow := length * inner * elemSize
	srcOffset := start * inner * elemSize

	src, dst := x.Data(), result.Data()
	for o := 0; o < outer; o++ {
		copy(dst[o*dstRow:(o+1)*dstRow], src[o*srcRow+srcOffset:])
	}
	return result
}
