package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ml/strata/internal/parallel"
	"github.com/strata-ml/strata/internal/tensor"
)

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor[float32, *CPUBackend] {
	t.Helper()
	out, err := tensor.FromSlice(data, shape, New())
	require.NoError(t, err)
	return out
}

func TestBackendMetadata(t *testing.T) {
	b := New()
	assert.Equal(t, "CPU", b.Name())
	assert.Equal(t, tensor.CPU, b.Device())
}

func TestAddSameShape(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromSlice(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})
	assert.Equal(t, []float32{11, 22, 33, 44}, a.Add(b).Data())
}

func TestAddBroadcast(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	bias := fromSlice(t, []float32{10, 20, 30}, tensor.Shape{3})
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, a.Add(bias).Data())
}

func TestAddBroadcastChannelAxis(t *testing.T) {
	// [1, C, 1, 1] against [N, C, H, W], the bias pattern of conv layers.
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 2, 2, 2})
	bias := fromSlice(t, []float32{10, 100}, tensor.Shape{1, 2, 1, 1})
	assert.Equal(t, []float32{11, 12, 13, 14, 105, 106, 107, 108}, x.Add(bias).Data())
}

func TestSubMulDiv(t *testing.T) {
	a := fromSlice(t, []float32{8, 6, 4, 2}, tensor.Shape{4})
	b := fromSlice(t, []float32{2, 2, 4, 4}, tensor.Shape{4})
	assert.Equal(t, []float32{6, 4, 0, -2}, a.Sub(b).Data())
	assert.Equal(t, []float32{16, 12, 16, 8}, a.Mul(b).Data())
	assert.Equal(t, []float32{4, 3, 1, 0.5}, a.Div(b).Data())
}

func TestScalarOps(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})
	assert.Equal(t, []float32{2.5, 3.5, 4.5}, a.AddScalar(1.5).Data())
	assert.Equal(t, []float32{2, 4, 6}, a.MulScalar(2).Data())
}

func TestRsqrt(t *testing.T) {
	a := fromSlice(t, []float32{1, 4, 16}, tensor.Shape{3})
	got := a.Rsqrt().Data()
	assert.InDelta(t, 1.0, float64(got[0]), 1e-6)
	assert.InDelta(t, 0.5, float64(got[1]), 1e-6)
	assert.InDelta(t, 0.25, float64(got[2]), 1e-6)
}

func TestSigmoid(t *testing.T) {
	a := fromSlice(t, []float32{0, 100, -100}, tensor.Shape{3})
	got := a.Sigmoid().Data()
	assert.InDelta(t, 0.5, float64(got[0]), 1e-6)
	assert.InDelta(t, 1.0, float64(got[1]), 1e-6)
	assert.InDelta(t, 0.0, float64(got[2]), 1e-6)
}

func TestGELU(t *testing.T) {
	a := fromSlice(t, []float32{0, 1, -1}, tensor.Shape{3})
	got := a.GELU().Data()
	assert.InDelta(t, 0.0, float64(got[0]), 1e-6)
	assert.InDelta(t, 0.8413447, float64(got[1]), 1e-5)
	assert.InDelta(t, -0.1586553, float64(got[2]), 1e-5)
}

func TestMatMul(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromSlice(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})
	out := a.MatMul(b)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{58, 64, 139, 154}, out.Data())
}

func TestMatMulRejectsMismatch(t *testing.T) {
	a := fromSlice(t, make([]float32, 6), tensor.Shape{2, 3})
	b := fromSlice(t, make([]float32, 8), tensor.Shape{4, 2})
	assert.Panics(t, func() { a.MatMul(b) })
}

func TestConv2DKnownValues(t *testing.T) {
	b := New()
	input := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 1, 3, 3})
	kernel := fromSlice(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	out := b.Conv2D(input.Raw(), kernel.Raw(), 1, 0, 0, 1)
	assert.True(t, out.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, []float32{12, 16, 24, 28}, out.AsFloat32())
}

func TestConv2DStride(t *testing.T) {
	b := New()
	input := fromSlice(t, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, tensor.Shape{1, 1, 4, 4})
	kernel := fromSlice(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	out := b.Conv2D(input.Raw(), kernel.Raw(), 2, 0, 0, 1)
	assert.True(t, out.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, []float32{14, 22, 46, 54}, out.AsFloat32())
}

func TestConv2DPaddingPreservesSize(t *testing.T) {
	b := New()
	input := fromSlice(t, []float32{5}, tensor.Shape{1, 1, 1, 1})
	kernel := fromSlice(t, []float32{0, 0, 0, 0, 1, 0, 0, 0, 0}, tensor.Shape{1, 1, 3, 3})

	out := b.Conv2D(input.Raw(), kernel.Raw(), 1, 1, 1, 1)
	assert.True(t, out.Shape().Equal(tensor.Shape{1, 1, 1, 1}))
	assert.Equal(t, []float32{5}, out.AsFloat32())
}

func TestConv2DAsymmetricKernel(t *testing.T) {
	b := New()
	input := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 1, 4})
	kernel := fromSlice(t, []float32{1, 1, 1}, tensor.Shape{1, 1, 1, 3})

	// 1x3 kernel with pad (0, 1) keeps the row length.
	out := b.Conv2D(input.Raw(), kernel.Raw(), 1, 0, 1, 1)
	assert.True(t, out.Shape().Equal(tensor.Shape{1, 1, 1, 4}))
	assert.Equal(t, []float32{3, 6, 9, 7}, out.AsFloat32())
}

func TestConv2DDepthwise(t *testing.T) {
	b := New()
	input := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 2, 2, 2})
	kernel := fromSlice(t, []float32{2, 3}, tensor.Shape{2, 1, 1, 1})

	out := b.Conv2D(input.Raw(), kernel.Raw(), 1, 0, 0, 2)
	assert.Equal(t, []float32{2, 4, 6, 8, 15, 18, 21, 24}, out.AsFloat32())
}

func TestConv2DRejectsBadShapes(t *testing.T) {
	b := New()
	input := fromSlice(t, make([]float32, 8), tensor.Shape{1, 2, 2, 2})
	kernel := fromSlice(t, make([]float32, 4), tensor.Shape{4, 1, 1, 1})

	// groups 1 needs kernel C_in == input channels.
	assert.Panics(t, func() { b.Conv2D(input.Raw(), kernel.Raw(), 1, 0, 0, 1) })
	// groups must divide channels.
	assert.Panics(t, func() { b.Conv2D(input.Raw(), kernel.Raw(), 1, 0, 0, 3) })
}

func TestSumDim(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	rows := a.SumDim(1, false)
	assert.True(t, rows.Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{6, 15}, rows.Data())

	cols := a.SumDim(0, false)
	assert.True(t, cols.Shape().Equal(tensor.Shape{3}))
	assert.Equal(t, []float32{5, 7, 9}, cols.Data())
}

func TestMeanDimKeepDim(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 2, 2, 2})

	mean := a.MeanDim(1, true)
	assert.True(t, mean.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, []float32{3, 4, 5, 6}, mean.Data())
}

func TestMeanDimNegativeAxis(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	mean := a.MeanDim(-1, false)
	assert.True(t, mean.Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{2, 5}, mean.Data())
}

func TestPermuteNCHWToNHWC(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 2, 2, 2})
	p := a.Permute(0, 2, 3, 1)
	assert.True(t, p.Shape().Equal(tensor.Shape{1, 2, 2, 2}))
	assert.Equal(t, []float32{1, 5, 2, 6, 3, 7, 4, 8}, p.Data())

	back := p.Permute(0, 3, 1, 2)
	assert.Equal(t, a.Data(), back.Data())
}

func TestPermuteRejectsBadAxes(t *testing.T) {
	a := fromSlice(t, make([]float32, 4), tensor.Shape{2, 2})
	assert.Panics(t, func() { a.Permute(0) })
	assert.Panics(t, func() { a.Permute(0, 0) })
}

func TestCat(t *testing.T) {
	a := fromSlice(t, []float32{1, 2}, tensor.Shape{1, 2})
	b := fromSlice(t, []float32{3, 4, 5, 6}, tensor.Shape{1, 4})
	out := tensor.Cat([]*tensor.Tensor[float32, *CPUBackend]{a, b}, 1)
	assert.True(t, out.Shape().Equal(tensor.Shape{1, 6}))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, out.Data())
}

func TestCatChannelAxis(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 1, 1, 2})
	b := fromSlice(t, []float32{5, 6, 7, 8}, tensor.Shape{2, 1, 1, 2})
	out := tensor.Cat([]*tensor.Tensor[float32, *CPUBackend]{a, b}, 1)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 2, 1, 2}))
	assert.Equal(t, []float32{1, 2, 5, 6, 3, 4, 7, 8}, out.Data())
}

func TestChunkInvertsCat(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 4, 1, 2})
	parts := x.Chunk(2, 1)
	require.Len(t, parts, 2)
	assert.Equal(t, []float32{1, 2, 3, 4}, parts[0].Data())
	assert.Equal(t, []float32{5, 6, 7, 8}, parts[1].Data())

	joined := tensor.Cat(parts, 1)
	assert.Equal(t, x.Data(), joined.Data())
}

func TestChunkRejectsIndivisible(t *testing.T) {
	x := fromSlice(t, make([]float32, 6), tensor.Shape{1, 3, 1, 2})
	assert.Panics(t, func() { x.Chunk(2, 1) })
}

func TestNarrow(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 4, 1, 2})
	mid := x.Narrow(1, 1, 2)
	assert.True(t, mid.Shape().Equal(tensor.Shape{1, 2, 1, 2}))
	assert.Equal(t, []float32{3, 4, 5, 6}, mid.Data())

	assert.Panics(t, func() { x.Narrow(1, 3, 2) })
}

func TestReshapeIsView(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	r := x.Reshape(3, 2)
	assert.True(t, r.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, x.Data(), r.Data())
}

func TestParallelConfigMatchesSequential(t *testing.T) {
	data := make([]float32, 64*64)
	for i := range data {
		data[i] = float32(i%13) - 6
	}
	seq, err := tensor.FromSlice(data, tensor.Shape{64, 64}, NewWithConfig(parallel.Sequential()))
	require.NoError(t, err)
	par, err := tensor.FromSlice(data, tensor.Shape{64, 64}, New())
	require.NoError(t, err)

	assert.Equal(t, seq.MatMul(seq).Data(), par.MatMul(par).Data())
	assert.Equal(t, seq.GELU().Data(), par.GELU().Data())
}
