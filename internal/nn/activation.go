package nn

import (
	"github.com/strata-ml/strata/internal/tensor"
)

// GELU applies the Gaussian error linear unit element-wise:
// f(x) = 0.5 * x * (1 + erf(x / sqrt(2))).
type GELU[B tensor.Backend] struct {
	stateless[B]
}

// NewGELU creates a GELU activation module.
func NewGELU[B tensor.Backend]() *GELU[B] {
	return &GELU[B]{}
}

// Forward applies the activation.
func (GELU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.GELU()
}

// Sigmoid applies the logistic function element-wise. Outputs saturate to
// [0, 1], which is what makes it usable as a gate.
type Sigmoid[B tensor.Backend] struct {
	stateless[B]
}

// NewSigmoid creates a Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies the activation.
func (Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Sigmoid()
}
