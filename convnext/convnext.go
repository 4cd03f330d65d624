// Copyright 2025 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package convnext provides the hierarchical convolutional image backbone.
//
// The network is a four-stage pyramid built from residual blocks, with a
// patchify stem, downsampling transitions, global average pooling, and a
// linear classification head. Two block families are available: plain
// depthwise blocks and MSCA blocks with a multi-scale spatial gate.
//
// Example:
//
//	backend := cpu.New()
//	model, err := convnext.Build("tiny", 0, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logits := model.Forward(images) // [N, 3, 224, 224] -> [N, 1000]
package convnext

import (
	"context"

	"github.com/strata-ml/strata/datasets"
	"github.com/strata-ml/strata/internal/convnext"
	"github.com/strata-ml/strata/internal/tensor"
)

// BlockKind selects the residual block used in every stage.
type BlockKind = convnext.BlockKind

// Supported block kinds.
const (
	MSCA  = convnext.MSCA
	Plain = convnext.Plain
)

// PrimitiveKind selects the convolution implementation inside blocks.
type PrimitiveKind = convnext.PrimitiveKind

// Primitive is a tagged choice of convolution implementation.
type Primitive = convnext.Primitive

// Standard returns the regular convolution primitive.
func Standard() Primitive {
	return convnext.Standard()
}

// Partial returns a partial convolution primitive with the given
// convolved-channel ratio in (0, 1].
func Partial(ratio float64) Primitive {
	return convnext.Partial(ratio)
}

// Options configures a Backbone.
type Options = convnext.Options

// Backbone is the full classification network.
type Backbone[B tensor.Backend] = convnext.Backbone[B]

// New constructs a backbone from explicit options. Invalid options panic.
func New[B tensor.Backend](opts Options, backend B) *Backbone[B] {
	return convnext.New(opts, backend)
}

// Config is a named backbone variant.
type Config = convnext.Config

// Variants returns all registered variant names in sorted order.
func Variants() []string {
	return convnext.Variants()
}

// GetConfig looks up a variant by name.
func GetConfig(name string) (Config, error) {
	return convnext.GetConfig(name)
}

// Build constructs a randomly initialized backbone for a named variant.
// numClasses of 0 keeps the default of 1000.
func Build[B tensor.Backend](name string, numClasses int, backend B) (*Backbone[B], error) {
	return convnext.Build(name, numClasses, backend)
}

// ErrNoPretrained indicates the requested variant has no published
// checkpoint for the requested pretraining corpus.
var ErrNoPretrained = convnext.ErrNoPretrained

// BuildPretrained constructs a named variant and loads its published
// checkpoint, downloading into cacheDir if absent.
func BuildPretrained[B tensor.Backend](ctx context.Context, name string, numClasses int, in22k bool, cacheDir string, fetcher *datasets.Fetcher, backend B) (*Backbone[B], error) {
	return convnext.BuildPretrained(ctx, name, numClasses, in22k, cacheDir, fetcher, backend)
}

// LoadCheckpoint loads a .strata checkpoint file into the model.
func LoadCheckpoint[B tensor.Backend](m *Backbone[B], path string) error {
	return convnext.LoadCheckpoint(m, path)
}
