package cpu

import (
	"fmt"
	"math"

	"github.com/strata-ml/strata/internal/tensor"
)

// broadcastStrides returns element strides for src aligned to a broadcast
// output shape. Broadcast dimensions (size 1 against a larger output dim)
// get stride 0 so the same element is reused.
func broadcastStrides(src, out tensor.Shape) []int {
	srcStrides := src.ComputeStrides()
	aligned := make([]int, len(out))
	offset := len(out) - len(src)
	for i := range out {
		si := i - offset
		if si < 0 || src[si] == 1 && out[i] != 1 {
			aligned[i] = 0
		} else {
			aligned[i] = srcStrides[si]
		}
	}
	return aligned
}

func binopFloat[T float32 | float64](dst, a, b []T, out tensor.Shape, aStrides, bStrides []int, f func(T, T) T) {
	outStrides := out.ComputeStrides()
	n := out.NumElements()
	for i := 0; i < n; i++ {
		ai, bi := 0, 0
		rem := i
		for d := 0; d < len(out); d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			ai += coord * aStrides[d]
			bi += coord * bStrides[d]
		}
		dst[i] = f(a[ai], b[bi])
	}
}

// binop dispatches an element-wise binary operation with broadcasting.
func (cpu *CPUBackend) binop(name string, a, b *tensor.RawTensor,
	f32 func(x, y float32) float32, f64 func(x, y float64) float64) *tensor.RawTensor {

	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := tensor.MustNewRaw(outShape, a.DType(), cpu.device)

	if !needsBroadcast {
		// Fast path: identical shapes, flat loop.
		switch a.DType() {
		case tensor.Float32:
			av, bv, dv := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
			for i := range dv {
				dv[i] = f32(av[i], bv[i])
			}
		case tensor.Float64:
			av, bv, dv := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
			for i := range dv {
				dv[i] = f64(av[i], bv[i])
			}
		}
		return result
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)

	switch a.DType() {
	case tensor.Float32:
		binopFloat(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), outShape, aStrides, bStrides, f32)
	case tensor.Float64:
		binopFloat(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), outShape, aStrides, bStrides, f64)
	}
	return result
}

// unary dispatches an element-wise unary operation.
func (cpu *CPUBackend) unary(x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i := range dst {
			dst[i] = float32(f(float64(src[i])))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i := range dst {
			dst[i] = f(src[i])
		}
	}
	return result
}

// Add performs element-wise addition with broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binop("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binop("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binop("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binop("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.unary(x, func(v float64) float64 { return v + s })
}

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.unary(x, func(v float64) float64 { return v * s })
}

// Sqrt computes the element-wise square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, math.Sqrt)
}

// Rsqrt computes the element-wise reciprocal square root.
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float64) float64 { return 1.0 / math.Sqrt(v) })
}

// Sigmoid computes the element-wise logistic function 1 / (1 + exp(-x)).
// Output is saturating: values always lie in [0, 1].
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float64) float64 { return 1.0 / (1.0 + math.Exp(-v)) })
}

// GELU computes the exact Gaussian error linear unit 0.5*x*(1+erf(x/sqrt(2))).
func (cpu *CPUBackend) GELU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float64) float64 {
		return 0.5 * v * (1.0 + math.Erf(v/math.Sqrt2))
	})
}
