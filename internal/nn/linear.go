package nn

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// Linear implements a fully connected layer: y = x @ W.T + b.
//
//   - W has shape [out_features, in_features]
//   - b has shape [out_features]
//
// The input may have any number of leading dimensions; the transformation is
// applied over the last axis. This is what lets the inverted-MLP blocks run
// pointwise projections directly on channels-last [N, H, W, C] tensors.
//
// Weights are initialized with a truncated normal (std 0.02), biases to zero.
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B]
	backend     B
}

// NewLinear creates a new Linear layer.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weight := TruncNormal(tensor.Shape{outFeatures, inFeatures}, DefaultInitStd, backend)
	bias := Zeros(tensor.Shape{outFeatures}, backend)

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
		backend:     backend,
	}
}

// Forward computes y = x @ W.T + b over the last axis.
//
// Input shape: [..., in_features]; output shape: [..., out_features].
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) == 0 || shape[len(shape)-1] != l.inFeatures {
		panic(fmt.Sprintf("linear: expected input [..., %d], got shape %v", l.inFeatures, shape))
	}

	rows := input.NumElements() / l.inFeatures
	flat := input.Reshape(rows, l.inFeatures)

	wT := l.weight.Tensor().Permute(1, 0) // [in, out]
	out := flat.MatMul(wT).Add(l.bias.Tensor())

	outShape := append(shape[:len(shape)-1].Clone(), l.outFeatures)
	return out.Reshape(outShape...)
}

// Parameters returns the weight and bias.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns the layer's parameters keyed by name.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
		"bias":   l.bias.Tensor().Raw(),
	}
}

// LoadStateDict loads weight and bias from a state dictionary.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := l.weight.Load(stateDict, "weight"); err != nil {
		return err
	}
	return l.bias.Load(stateDict, "bias")
}
