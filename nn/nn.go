// Copyright 2025 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and building blocks.
//
// The package contains:
//   - Layers: Linear, Conv2D, PartialConv2D, LayerNorm
//   - Activations: GELU, Sigmoid
//   - Regularization: DropPath (stochastic depth)
//   - Composition: Sequential, Module interface, Parameter
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewSequential(
//	    nn.NewConv2D(nn.Conv2DConfig{In: 3, Out: 16, KernelH: 3, KernelW: 3, PadH: 1, PadW: 1}, backend),
//	    nn.NewGELU[*cpu.Backend](),
//	)
//	output := model.Forward(input)
package nn

import (
	"github.com/strata-ml/strata/internal/nn"
	"github.com/strata-ml/strata/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] = nn.Module[B]

// TrainingMode is implemented by modules whose behavior differs between
// training and inference.
type TrainingMode = nn.TrainingMode

// Parameter is a named learnable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter from an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Linear is a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with truncated-normal initialization.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// Conv2DConfig configures a 2D convolution.
type Conv2DConfig = nn.Conv2DConfig

// Conv2D is a grouped 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a convolution layer. Invalid configurations panic.
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, backend B) *Conv2D[B] {
	return nn.NewConv2D(cfg, backend)
}

// PartialConv2D convolves a trailing fraction of channels and passes the
// rest through unchanged.
type PartialConv2D[B tensor.Backend] = nn.PartialConv2D[B]

// NewPartialConv2D creates a partial convolution with the given convolved
// ratio in (0, 1].
func NewPartialConv2D[B tensor.Backend](cfg Conv2DConfig, ratio float64, backend B) *PartialConv2D[B] {
	return nn.NewPartialConv2D(cfg, ratio, backend)
}

// DataFormat selects the channel axis layout for LayerNorm.
type DataFormat = nn.DataFormat

// Supported data formats.
const (
	ChannelsLast  = nn.ChannelsLast
	ChannelsFirst = nn.ChannelsFirst
)

// DefaultEps is the variance epsilon used throughout the library.
const DefaultEps = nn.DefaultEps

// LayerNorm normalizes features along the channel axis.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// NewLayerNorm creates a layer normalization layer.
func NewLayerNorm[B tensor.Backend](dim int, eps float32, format DataFormat, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm(dim, eps, format, backend)
}

// GELU is the Gaussian error linear unit activation.
type GELU[B tensor.Backend] = nn.GELU[B]

// NewGELU creates a GELU activation module.
func NewGELU[B tensor.Backend]() *GELU[B] {
	return nn.NewGELU[B]()
}

// Sigmoid is the logistic activation.
type Sigmoid[B tensor.Backend] = nn.Sigmoid[B]

// NewSigmoid creates a sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return nn.NewSigmoid[B]()
}

// DropPath implements stochastic depth: during training it zeroes a
// residual branch per sample with the configured probability.
type DropPath[B tensor.Backend] = nn.DropPath[B]

// NewDropPath creates a stochastic depth module. Rate must be in [0, 1).
func NewDropPath[B tensor.Backend](rate float32) *DropPath[B] {
	return nn.NewDropPath[B](rate)
}

// Sequential chains modules, feeding each output to the next module.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// SetTraining switches a module into training or inference mode if it
// implements TrainingMode.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	nn.SetTraining(m, training)
}
