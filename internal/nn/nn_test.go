package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ml/strata/internal/backend/cpu"
	"github.com/strata-ml/strata/internal/tensor"
)

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	out, err := tensor.FromSlice(data, shape, cpu.New())
	require.NoError(t, err)
	return out
}

func TestTruncNormalStaysBounded(t *testing.T) {
	w := TruncNormal(tensor.Shape{64, 64}, DefaultInitStd, cpu.New())
	bound := float32(2 * DefaultInitStd)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, float32(math.Abs(float64(v))), bound)
	}
}

func TestLinearKnownValues(t *testing.T) {
	b := cpu.New()
	l := NewLinear(3, 2, b)

	// y = x @ W.T + b with W = [[1,0,0],[0,1,1]], b = [10, 20].
	copy(l.weight.Tensor().Data(), []float32{1, 0, 0, 0, 1, 1})
	copy(l.bias.Tensor().Data(), []float32{10, 20})

	x := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{1, 3})
	assert.Equal(t, []float32{11, 25}, l.Forward(x).Data())
}

func TestLinearLeadingDims(t *testing.T) {
	b := cpu.New()
	l := NewLinear(4, 2, b)

	x := tensor.Randn[float32](tensor.Shape{2, 3, 3, 4}, b)
	out := l.Forward(x)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 3, 3, 2}), "got %v", out.Shape())
}

func TestLinearRejectsWrongLastAxis(t *testing.T) {
	b := cpu.New()
	l := NewLinear(4, 2, b)
	x := tensor.Randn[float32](tensor.Shape{2, 3}, b)
	assert.Panics(t, func() { l.Forward(x) })
}

func TestLinearBiasStartsZero(t *testing.T) {
	l := NewLinear(4, 3, cpu.New())
	for _, v := range l.bias.Tensor().Data() {
		assert.Zero(t, v)
	}
}

func TestConv2DOutputSize(t *testing.T) {
	b := cpu.New()
	tests := []struct {
		cfg          Conv2DConfig
		inH, inW     int
		wantH, wantW int
	}{
		{Conv2DConfig{In: 3, Out: 8, KernelH: 4, KernelW: 4, Stride: 4}, 224, 224, 56, 56},
		{Conv2DConfig{In: 8, Out: 16, KernelH: 2, KernelW: 2, Stride: 2}, 56, 56, 28, 28},
		{Conv2DConfig{In: 8, Out: 8, KernelH: 7, KernelW: 7, PadH: 3, PadW: 3, Groups: 8}, 28, 28, 28, 28},
		{Conv2DConfig{In: 8, Out: 8, KernelH: 1, KernelW: 11, PadH: 0, PadW: 5, Groups: 8}, 14, 14, 14, 14},
	}
	for _, tc := range tests {
		conv := NewConv2D(tc.cfg, b)
		gotH, gotW := conv.OutputSize(tc.inH, tc.inW)
		assert.Equal(t, tc.wantH, gotH)
		assert.Equal(t, tc.wantW, gotW)
	}
}

func TestConv2DForwardShape(t *testing.T) {
	b := cpu.New()
	conv := NewConv2D(Conv2DConfig{In: 3, Out: 8, KernelH: 4, KernelW: 4, Stride: 4}, b)

	x := tensor.Randn[float32](tensor.Shape{2, 3, 16, 16}, b)
	out := conv.Forward(x)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 8, 4, 4}))
}

func TestConv2DRejectsBadConfig(t *testing.T) {
	b := cpu.New()
	assert.Panics(t, func() { NewConv2D(Conv2DConfig{In: 0, Out: 8, KernelH: 3, KernelW: 3}, b) })
	assert.Panics(t, func() { NewConv2D(Conv2DConfig{In: 8, Out: 8, KernelH: 0, KernelW: 3}, b) })
	assert.Panics(t, func() { NewConv2D(Conv2DConfig{In: 8, Out: 8, KernelH: 3, KernelW: 3, Groups: 3}, b) })
	assert.Panics(t, func() { NewConv2D(Conv2DConfig{In: 8, Out: 8, KernelH: 3, KernelW: 3, PadH: -1}, b) })
}

func TestConv2DNoBias(t *testing.T) {
	b := cpu.New()
	conv := NewConv2D(Conv2DConfig{In: 2, Out: 2, KernelH: 1, KernelW: 1, NoBias: true}, b)
	assert.Nil(t, conv.Bias())

	sd := conv.StateDict()
	_, ok := sd["bias"]
	assert.False(t, ok)
	require.NoError(t, conv.LoadStateDict(sd))
}

func TestPartialConv2DChannelSplit(t *testing.T) {
	b := cpu.New()
	p := NewPartialConv2D(Conv2DConfig{In: 8, Out: 8, KernelH: 3, KernelW: 3, PadH: 1, PadW: 1, Groups: 8}, 0.25, b)

	assert.Equal(t, 6, p.IdentityChannels())
	assert.Equal(t, 2, p.Conv().Config().In)
	assert.Equal(t, 2, p.Conv().Config().Out)
	assert.Equal(t, 2, p.Conv().Config().Groups)
}

func TestPartialConv2DIdentityChannelsUntouched(t *testing.T) {
	b := cpu.New()
	p := NewPartialConv2D(Conv2DConfig{In: 8, Out: 8, KernelH: 3, KernelW: 3, PadH: 1, PadW: 1, Groups: 8}, 0.25, b)

	x := tensor.Randn[float32](tensor.Shape{2, 8, 5, 5}, b)
	out := p.Forward(x)
	require.True(t, out.Shape().Equal(x.Shape()))

	// The leading 6 channels must be bit-exact copies of the input.
	wantHead := x.Narrow(1, 0, 6).Data()
	gotHead := out.Narrow(1, 0, 6).Data()
	assert.Equal(t, wantHead, gotHead)
}

func TestPartialConv2DFullRatio(t *testing.T) {
	b := cpu.New()
	p := NewPartialConv2D(Conv2DConfig{In: 4, Out: 4, KernelH: 3, KernelW: 3, PadH: 1, PadW: 1, Groups: 4}, 1.0, b)
	assert.Zero(t, p.IdentityChannels())

	x := tensor.Randn[float32](tensor.Shape{1, 4, 4, 4}, b)
	out := p.Forward(x)
	assert.True(t, out.Shape().Equal(x.Shape()))
}

func TestPartialConv2DRejectsBadRatio(t *testing.T) {
	b := cpu.New()
	cfg := Conv2DConfig{In: 8, Out: 8, KernelH: 3, KernelW: 3, Groups: 8}
	assert.Panics(t, func() { NewPartialConv2D(cfg, 0, b) })
	assert.Panics(t, func() { NewPartialConv2D(cfg, -0.5, b) })
	assert.Panics(t, func() { NewPartialConv2D(cfg, 1.5, b) })
	// A ratio so small that no channel remains to convolve.
	assert.Panics(t, func() { NewPartialConv2D(cfg, 0.01, b) })
}

func TestLayerNormChannelsLast(t *testing.T) {
	b := cpu.New()
	ln := NewLayerNorm(2, DefaultEps, ChannelsLast, b)

	x := fromSlice(t, []float32{1, 3}, tensor.Shape{1, 2})
	got := ln.Forward(x).Data()
	assert.InDelta(t, -1.0, float64(got[0]), 1e-3)
	assert.InDelta(t, 1.0, float64(got[1]), 1e-3)
}

func TestLayerNormChannelsFirst(t *testing.T) {
	b := cpu.New()
	ln := NewLayerNorm(2, DefaultEps, ChannelsFirst, b)

	// Two spatial positions with channel values (1,3) and (5,9).
	x := fromSlice(t, []float32{1, 5, 3, 9}, tensor.Shape{1, 2, 1, 2})
	got := ln.Forward(x).Data()
	assert.InDelta(t, -1.0, float64(got[0]), 1e-3)
	assert.InDelta(t, -1.0, float64(got[1]), 1e-3)
	assert.InDelta(t, 1.0, float64(got[2]), 1e-3)
	assert.InDelta(t, 1.0, float64(got[3]), 1e-3)
}

func TestLayerNormAffine(t *testing.T) {
	b := cpu.New()
	ln := NewLayerNorm(2, DefaultEps, ChannelsLast, b)
	copy(ln.Weight.Tensor().Data(), []float32{2, 2})
	copy(ln.Bias.Tensor().Data(), []float32{10, 10})

	x := fromSlice(t, []float32{1, 3}, tensor.Shape{1, 2})
	got := ln.Forward(x).Data()
	assert.InDelta(t, 8.0, float64(got[0]), 1e-2)
	assert.InDelta(t, 12.0, float64(got[1]), 1e-2)
}

func TestLayerNormChannelsFirstRejectsNon4D(t *testing.T) {
	b := cpu.New()
	ln := NewLayerNorm(2, DefaultEps, ChannelsFirst, b)
	x := fromSlice(t, []float32{1, 3}, tensor.Shape{1, 2})
	assert.Panics(t, func() { ln.Forward(x) })
}

func TestLayerNormRejectsBadConstruction(t *testing.T) {
	b := cpu.New()
	assert.Panics(t, func() { NewLayerNorm(0, DefaultEps, ChannelsLast, b) })
	assert.Panics(t, func() { NewLayerNorm(4, DefaultEps, DataFormat(9), b) })
}

func TestActivations(t *testing.T) {
	x := fromSlice(t, []float32{0, 100, -100}, tensor.Shape{3})

	sig := NewSigmoid[*cpu.CPUBackend]().Forward(x).Data()
	assert.InDelta(t, 0.5, float64(sig[0]), 1e-6)
	assert.InDelta(t, 1.0, float64(sig[1]), 1e-6)

	gelu := NewGELU[*cpu.CPUBackend]().Forward(x).Data()
	assert.InDelta(t, 0.0, float64(gelu[0]), 1e-6)
	assert.InDelta(t, 100.0, float64(gelu[1]), 1e-4)
	assert.InDelta(t, 0.0, float64(gelu[2]), 1e-4)
}

func TestDropPathInferenceIsIdentity(t *testing.T) {
	d := NewDropPath[*cpu.CPUBackend](0.7)
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	assert.Equal(t, x.Data(), d.Forward(x).Data())
}

func TestDropPathTrainingDropsWholeSamples(t *testing.T) {
	d := NewDropPath[*cpu.CPUBackend](0.5)
	d.SetTraining(true)

	x := fromSlice(t, []float32{1, 1, 1, 1, 1, 1, 1, 1}, tensor.Shape{4, 2})
	out := d.Forward(x).Data()

	// Each sample's row is either zeroed entirely or rescaled by 1/(1-p).
	scale := float32(1.0 / 0.5)
	for row := 0; row < 4; row++ {
		a, b := out[row*2], out[row*2+1]
		assert.Equal(t, a, b, "row %d mixed drop state", row)
		assert.True(t, a == 0 || a == scale, "row %d value %v", row, a)
	}
}

func TestDropPathZeroRateInTraining(t *testing.T) {
	d := NewDropPath[*cpu.CPUBackend](0)
	d.SetTraining(true)
	x := fromSlice(t, []float32{1, 2}, tensor.Shape{1, 2})
	assert.Equal(t, x.Data(), d.Forward(x).Data())
}

func TestDropPathRejectsBadRate(t *testing.T) {
	assert.Panics(t, func() { NewDropPath[*cpu.CPUBackend](-0.1) })
	assert.Panics(t, func() { NewDropPath[*cpu.CPUBackend](1.0) })
}

func TestSequentialStateDictPrefixes(t *testing.T) {
	b := cpu.New()
	seq := NewSequential[*cpu.CPUBackend](
		NewLinear(4, 4, b),
		NewGELU[*cpu.CPUBackend](),
		NewLinear(4, 2, b),
	)

	sd := seq.StateDict()
	for _, key := range []string{"0.weight", "0.bias", "2.weight", "2.bias"} {
		_, ok := sd[key]
		assert.True(t, ok, "missing %s", key)
	}
	assert.Len(t, sd, 4)
}

func TestSequentialLoadSkipsStateless(t *testing.T) {
	b := cpu.New()
	src := NewSequential[*cpu.CPUBackend](NewLinear(4, 4, b), NewGELU[*cpu.CPUBackend]())
	dst := NewSequential[*cpu.CPUBackend](NewLinear(4, 4, b), NewGELU[*cpu.CPUBackend]())

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	x := tensor.Randn[float32](tensor.Shape{2, 4}, b)
	assert.Equal(t, src.Forward(x).Data(), dst.Forward(x).Data())
}

func TestSequentialSetTrainingPropagates(t *testing.T) {
	d := NewDropPath[*cpu.CPUBackend](0.5)
	seq := NewSequential[*cpu.CPUBackend](d)

	seq.SetTraining(true)
	x := fromSlice(t, []float32{1, 1, 1, 1}, tensor.Shape{4, 1})
	changed := false
	for i := 0; i < 64 && !changed; i++ {
		out := seq.Forward(x).Data()
		for _, v := range out {
			if v != 1 {
				changed = true
				break
			}
		}
	}
	assert.True(t, changed, "training mode never altered the input")

	seq.SetTraining(false)
	assert.Equal(t, x.Data(), seq.Forward(x).Data())
}

func TestSubStateDict(t *testing.T) {
	raw := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	sd := map[string]*tensor.RawTensor{
		"stem.weight":  raw,
		"stem.bias":    raw,
		"other.weight": raw,
	}
	sub := SubStateDict(sd, "stem")
	assert.Len(t, sub, 2)
	_, ok := sub["weight"]
	assert.True(t, ok)
}

func TestMergeStateDict(t *testing.T) {
	raw := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	dst := map[string]*tensor.RawTensor{}
	MergeStateDict(dst, "blocks.3", map[string]*tensor.RawTensor{"weight": raw})
	_, ok := dst["blocks.3.weight"]
	assert.True(t, ok)
}
