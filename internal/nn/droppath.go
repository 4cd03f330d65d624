package nn

import (
	"fmt"
	"math/rand"

	"github.com/strata-ml/strata/internal/tensor"
)

// DropPath implements stochastic depth (Huang et al., 2016): during training
// the whole residual branch of a sample is dropped with probability rate and
// surviving branches are rescaled by 1/(1-rate). In inference mode the module
// is the identity, so repeated forward passes are bit-identical.
//
// The drop decision is made once per sample over the leading batch axis, not
// per element.
type DropPath[B tensor.Backend] struct {
	stateless[B]
	rate     float32
	training bool
	rng      *rand.Rand
}

// NewDropPath creates a stochastic-depth module. A rate outside [0, 1) panics.
func NewDropPath[B tensor.Backend](rate float32) *DropPath[B] {
	if rate < 0 || rate >= 1 {
		panic(fmt.Sprintf("droppath: rate %v outside [0, 1)", rate))
	}
	return &DropPath[B]{
		rate: rate,
		//nolint:gosec // G404: regularization noise is not security-critical
		rng: rand.New(rand.NewSource(rand.Int63())),
	}
}

// SetTraining switches between training (random drops) and inference
// (identity) behavior.
func (d *DropPath[B]) SetTraining(training bool) {
	d.training = training
}

// Rate returns the configured drop probability.
func (d *DropPath[B]) Rate() float32 {
	return d.rate
}

// Forward applies stochastic depth.
func (d *DropPath[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.rate == 0 {
		return input
	}

	shape := input.Shape()
	maskShape := make(tensor.Shape, len(shape))
	maskShape[0] = shape[0]
	for i := 1; i < len(maskShape); i++ {
		maskShape[i] = 1
	}

	mask := tensor.Zeros[float32](maskShape, input.Backend())
	keepScale := 1.0 / (1.0 - d.rate)
	data := mask.Data()
	for i := range data {
		if d.rng.Float32() >= d.rate {
			data[i] = keepScale
		}
	}

	return input.Mul(mask)
}
