// Package nn implements the neural-network building blocks for Strata.
//
// The package provides:
//   - Module interface: base interface for all network components
//   - Parameter: named learnable tensors
//   - Linear, Conv2D, PartialConv2D: weight-bearing layers
//   - LayerNorm: dual-layout feature normalization
//   - GELU, Sigmoid, DropPath, Sequential: composition pieces
//
// Design follows PyTorch's nn.Module, adapted for Go generics.
package nn

import (
	"strings"

	"github.com/strata-ml/strata/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all learnable parameters of this module,
	// including nested module parameters. Empty for stateless modules.
	Parameters() []*Parameter[B]

	// StateDict returns a flat mapping from parameter path to raw tensor.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict loads parameters from a state dictionary.
	// Shape or dtype mismatches are load failures; no partial loading.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// TrainingMode is implemented by modules whose forward pass differs between
// training and inference (stochastic depth being the one case in this
// library). Containers propagate the flag to children.
type TrainingMode interface {
	SetTraining(training bool)
}

// SetTraining switches a module into training or inference mode if it cares.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	if tm, ok := m.(TrainingMode); ok {
		tm.SetTraining(training)
	}
}

// MergeStateDict copies src entries into dst under the given prefix.
func MergeStateDict(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

// SubStateDict extracts the entries under prefix, with the prefix stripped.
func SubStateDict(sd map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	sub := make(map[string]*tensor.RawTensor)
	for name, raw := range sd {
		if rest, ok := strings.CutPrefix(name, prefix+"."); ok {
			sub[rest] = raw
		}
	}
	return sub
}

// stateless provides the no-parameter half of the Module interface.
// Activation modules embed it.
type stateless[B tensor.Backend] struct{}

func (stateless[B]) Parameters() []*Parameter[B] { return nil }

func (stateless[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

func (stateless[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
