package cpu

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// SumDim sums along a dimension. Negative dims index from the end;
// keepDim retains the reduced axis with size 1.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.Normalize(dim)

	outShape := shape.Clone()
	outShape[dim] = 1

	result := tensor.MustNewRaw(outShape, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		sumDim(x.AsFloat32(), result.AsFloat32(), shape, dim)
	case tensor.Float64:
		sumDim(x.AsFloat64(), result.AsFloat64(), shape, dim)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s", x.DType()))
	}

	if !keepDim {
		squeezed := append(tensor.Shape{}, outShape[:dim]...)
		squeezed = append(squeezed, outShape[dim+1:]...)
		result = result.WithShape(squeezed)
	}
	return result
}

// MeanDim computes the mean along a dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	n := shape[shape.Normalize(dim)]

	result := cpu.SumDim(x, dim, keepDim)
	switch result.DType() {
	case tensor.Float32:
		data := result.AsFloat32()
		inv := 1.0 / float32(n)
		for i := range data {
			data[i] *= inv
		}
	case tensor.Float64:
		data := result.AsFloat64()
		inv := 1.0 / float64(n)
		for i := range data {
			data[i] *= inv
		}
	}
	return result
}

// sumDim reduces one axis. The iteration splits the index space into
// outer (dims before the axis), the axis itself, and inner (dims after),
// so the inner loop is a contiguous accumulate.
func sumDim[T float32 | float64](src, dst []T, shape tensor.Shape, dim int) {
	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	n := shape[dim]

	for o := 0; o < outer; o++ {
		dstBase := o * inner
		srcBase := o * n * inner
		for k := 0; k < n; k++ {
			row := src[srcBase+k*inner : srcBase+(k+1)*inner]
			acc := dst[dstBase : dstBase+inner]
			for i := range row {
				acc[i] += row[i]
			}
		}
	}
}
