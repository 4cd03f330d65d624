package nn

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// DataFormat selects which axis LayerNorm treats as the channel axis.
type DataFormat int

// Supported data formats.
const (
	// ChannelsLast normalizes over the last axis of [..., C] inputs.
	ChannelsLast DataFormat = iota
	// ChannelsFirst normalizes over axis 1 of [N, C, H, W] inputs,
	// independently per spatial location.
	ChannelsFirst
)

// String returns the format name.
func (f DataFormat) String() string {
	switch f {
	case ChannelsLast:
		return "channels_last"
	case ChannelsFirst:
		return "channels_first"
	default:
		return fmt.Sprintf("DataFormat(%d)", int(f))
	}
}

// LayerNorm normalizes features to zero mean and unit variance along the
// channel axis, then applies a learned per-channel scale and shift:
//
//	y = weight * (x - mean) / sqrt(var + eps) + bias
//
// The two data formats cover the two tensor layouts the backbone uses:
// channels-last inside the inverted MLP, channels-first between convolutions.
type LayerNorm[B tensor.Backend] struct {
	Weight *Parameter[B] // scale, initialized to ones [dim]
	Bias   *Parameter[B] // shift, initialized to zeros [dim]
	Eps    float32
	Format DataFormat

	dim     int
	backend B
}

// DefaultEps is the variance epsilon used throughout the backbone.
const DefaultEps = 1e-6

// NewLayerNorm creates a LayerNorm over dim channels. An unrecognized data
// format panics at construction.
func NewLayerNorm[B tensor.Backend](dim int, eps float32, format DataFormat, backend B) *LayerNorm[B] {
	if dim <= 0 {
		panic(fmt.Sprintf("layernorm: invalid dim %d", dim))
	}
	if format != ChannelsLast && format != ChannelsFirst {
		panic(fmt.Sprintf("layernorm: unsupported data format %s", format))
	}

	return &LayerNorm[B]{
		Weight:  NewParameter("weight", Ones(tensor.Shape{dim}, backend)),
		Bias:    NewParameter("bias", Zeros(tensor.Shape{dim}, backend)),
		Eps:     eps,
		Format:  format,
		dim:     dim,
		backend: backend,
	}
}

// Forward applies the normalization. Output shape equals input shape.
func (l *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()

	axis := len(shape) - 1
	if l.Format == ChannelsFirst {
		if len(shape) != 4 {
			panic(fmt.Sprintf("layernorm: channels_first expects 4D [N,C,H,W] input, got shape %v", shape))
		}
		axis = 1
	}
	if shape[axis] != l.dim {
		panic(fmt.Sprintf("layernorm: expected %d channels on axis %d, got shape %v", l.dim, axis, shape))
	}

	mean := x.MeanDim(axis, true)
	centered := x.Sub(mean)
	variance := centered.Mul(centered).MeanDim(axis, true)
	norm := centered.Mul(variance.AddScalar(float64(l.Eps)).Rsqrt())

	weight := l.Weight.Tensor()
	bias := l.Bias.Tensor()
	if l.Format == ChannelsFirst {
		weight = weight.Reshape(1, l.dim, 1, 1)
		bias = bias.Reshape(1, l.dim, 1, 1)
	}
	return norm.Mul(weight).Add(bias)
}

// Parameters returns the scale and shift.
func (l *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.Weight, l.Bias}
}

// Dim returns the normalized channel count.
func (l *LayerNorm[B]) Dim() int {
	return l.dim
}

// StateDict returns the layer's parameters keyed by name.
func (l *LayerNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.Weight.Tensor().Raw(),
		"bias":   l.Bias.Tensor().Raw(),
	}
}

// LoadStateDict loads scale and shift from a state dictionary.
func (l *LayerNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := l.Weight.Load(stateDict, "weight"); err != nil {
		return err
	}
	return l.Bias.Load(stateDict, "bias")
}
