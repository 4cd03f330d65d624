// Package convnext implements a hierarchical convolutional image backbone.
//
// The network is a four-stage pyramid: a patchify stem, three downsampling
// transitions, and a stack of residual blocks per stage, followed by global
// average pooling and a linear classification head. Stages can be built from
// plain depthwise blocks or from MSCA blocks that add a multi-scale spatial
// gate, and the spatial convolutions inside blocks can be swapped for
// partial convolutions that process only a fraction of channels.
package convnext

import (
	"fmt"

	"github.com/strata-ml/strata/internal/nn"
	"github.com/strata-ml/strata/internal/tensor"
)

// BlockKind selects the residual block used in every stage.
type BlockKind int

// Supported block kinds.
const (
	// MSCA uses the attention-augmented multi-scale block.
	MSCA BlockKind = iota
	// Plain uses the depthwise-convolution block.
	Plain
)

// Options configures a Backbone. Zero values select the usual defaults:
// 3 input channels, 1000 classes, standard convolutions, kernel size 7 for
// plain blocks, layer scale 1e-6, head scale 1. Set LayerScaleInit negative
// to disable layer scale. KernelSizes and Primitives accept a single entry
// applied to every stage or one entry per stage.
type Options struct {
	InChans    int
	NumClasses int
	Depths     []int
	Dims       []int

	BlockKind   BlockKind
	KernelSizes []int // plain blocks only; MSCA kernels are fixed
	Primitives  []Primitive

	DropPathRate   float32
	LayerScaleInit float32
	HeadInitScale  float32
}

// Backbone is the full classification network.
type Backbone[B tensor.Backend] struct {
	opts       Options
	downsample []*nn.Sequential[B] // stem plus three transitions
	stages     []*nn.Sequential[B]
	norm       *nn.LayerNorm[B] // final channels-last norm after pooling
	head       *nn.Linear[B]
	backend    B
}

// New constructs a Backbone. Invalid options panic; option validation is a
// construction-time contract, not a runtime condition.
func New[B tensor.Backend](opts Options, backend B) *Backbone[B] {
	opts = normalizeOptions(opts)
	numStages := len(opts.Depths)

	m := &Backbone[B]{opts: opts, backend: backend}

	stem := nn.NewSequential[B](
		nn.NewConv2D(nn.Conv2DConfig{
			In: opts.InChans, Out: opts.Dims[0], KernelH: 4, KernelW: 4, Stride: 4,
		}, backend),
		nn.NewLayerNorm(opts.Dims[0], nn.DefaultEps, nn.ChannelsFirst, backend),
	)
	m.downsample = append(m.downsample, stem)
	for i := 0; i < numStages-1; i++ {
		m.downsample = append(m.downsample, nn.NewSequential[B](
			nn.NewLayerNorm(opts.Dims[i], nn.DefaultEps, nn.ChannelsFirst, backend),
			nn.NewConv2D(nn.Conv2DConfig{
				In: opts.Dims[i], Out: opts.Dims[i+1], KernelH: 2, KernelW: 2, Stride: 2,
			}, backend),
		))
	}

	total := 0
	for _, d := range opts.Depths {
		total += d
	}
	rates := dropPathSchedule(opts.DropPathRate, total)

	cur := 0
	for i := 0; i < numStages; i++ {
		stage := nn.NewSequential[B]()
		for j := 0; j < opts.Depths[i]; j++ {
			switch opts.BlockKind {
			case MSCA:
				stage.Add(NewMSCABlock(opts.Dims[i], mscaKernels,
					rates[cur+j], opts.LayerScaleInit, opts.Primitives[i], backend))
			case Plain:
				stage.Add(NewBlock(opts.Dims[i], opts.KernelSizes[i],
					rates[cur+j], opts.LayerScaleInit, opts.Primitives[i], backend))
			default:
				panic(fmt.Sprintf("convnext: unknown block kind %d", opts.BlockKind))
			}
		}
		m.stages = append(m.stages, stage)
		cur += opts.Depths[i]
	}

	lastDim := opts.Dims[numStages-1]
	m.norm = nn.NewLayerNorm(lastDim, nn.DefaultEps, nn.ChannelsLast, backend)
	m.head = nn.NewLinear(lastDim, opts.NumClasses, backend)
	if s := opts.HeadInitScale; s != 1 {
		scaleInPlace(m.head.Weight().Tensor(), s)
		scaleInPlace(m.head.Bias().Tensor(), s)
	}
	return m
}

// normalizeOptions applies defaults, broadcasts per-stage lists, and
// validates the result.
func normalizeOptions(opts Options) Options {
	if len(opts.Depths) == 0 {
		panic("convnext: no stage depths")
	}
	if len(opts.Dims) != len(opts.Depths) {
		panic(fmt.Sprintf("convnext: %d dims for %d depths", len(opts.Dims), len(opts.Depths)))
	}
	numStages := len(opts.Depths)
	for i := 0; i < numStages; i++ {
		if opts.Depths[i] <= 0 {
			panic(fmt.Sprintf("convnext: stage %d depth %d", i, opts.Depths[i]))
		}
		if opts.Dims[i] <= 0 {
			panic(fmt.Sprintf("convnext: stage %d dim %d", i, opts.Dims[i]))
		}
		if opts.BlockKind == MSCA && (opts.Dims[i]%4 != 0 || opts.Dims[i]%8 != 0) {
			panic(fmt.Sprintf("convnext: stage %d dim %d not divisible by 4 and 8", i, opts.Dims[i]))
		}
	}
	if opts.InChans == 0 {
		opts.InChans = 3
	}
	if opts.NumClasses == 0 {
		opts.NumClasses = 1000
	}
	if opts.DropPathRate < 0 || opts.DropPathRate >= 1 {
		panic(fmt.Sprintf("convnext: drop path rate %v outside [0, 1)", opts.DropPathRate))
	}
	if opts.LayerScaleInit == 0 {
		opts.LayerScaleInit = 1e-6
	}
	if opts.HeadInitScale == 0 {
		opts.HeadInitScale = 1
	}
	opts.KernelSizes = broadcastStage(opts.KernelSizes, 7, numStages, "kernel sizes")
	opts.Primitives = broadcastStage(opts.Primitives, Standard(), numStages, "primitives")
	return opts
}

// broadcastStage expands a per-stage list: nil uses the default everywhere,
// a single entry applies to every stage, otherwise one entry per stage.
func broadcastStage[T any](values []T, def T, numStages int, what string) []T {
	switch len(values) {
	case 0:
		values = []T{def}
		fallthrough
	case 1:
		out := make([]T, numStages)
		for i := range out {
			out[i] = values[0]
		}
		return out
	case numStages:
		return values
	default:
		panic(fmt.Sprintf("convnext: %d %s for %d stages", len(values), what, numStages))
	}
}

// dropPathSchedule interpolates per-block drop rates linearly from 0 at the
// first block to rate at the last.
func dropPathSchedule(rate float32, total int) []float32 {
	rates := make([]float32, total)
	if total <= 1 {
		return rates
	}
	for i := range rates {
		rates[i] = rate * float32(i) / float32(total-1)
	}
	return rates
}

func scaleInPlace[B tensor.Backend](t *tensor.Tensor[float32, B], s float32) {
	data := t.Data()
	for i := range data {
		data[i] *= s
	}
}

// ForwardFeatures runs the convolutional trunk on an [N, InChans, H, W]
// input and returns the pooled, normalized [N, Dims[last]] feature vector.
// H and W must be at least 4 and survive each downsampling step.
func (m *Backbone[B]) ForwardFeatures(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := input
	for i := range m.stages {
		x = m.downsample[i].Forward(x)
		x = m.stages[i].Forward(x)
	}
	x = x.MeanDim(-1, false).MeanDim(-1, false) // global average pool
	return m.norm.Forward(x)
}

// Forward returns classification logits of shape [N, NumClasses].
func (m *Backbone[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.head.Forward(m.ForwardFeatures(input))
}

// Train enables stochastic depth.
func (m *Backbone[B]) Train() {
	m.setTraining(true)
}

// Eval disables stochastic depth. Backbones start in eval mode.
func (m *Backbone[B]) Eval() {
	m.setTraining(false)
}

func (m *Backbone[B]) setTraining(training bool) {
	for _, stage := range m.stages {
		stage.SetTraining(training)
	}
}

// SetTraining implements nn.TrainingMode.
func (m *Backbone[B]) SetTraining(training bool) {
	m.setTraining(training)
}

// Options returns the normalized options the backbone was built with.
func (m *Backbone[B]) Options() Options {
	return m.opts
}

// NumClasses returns the classifier width.
func (m *Backbone[B]) NumClasses() int {
	return m.opts.NumClasses
}

// Parameters returns every learnable parameter in the network.
func (m *Backbone[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, d := range m.downsample {
		params = append(params, d.Parameters()...)
	}
	for _, s := range m.stages {
		params = append(params, s.Parameters()...)
	}
	params = append(params, m.norm.Parameters()...)
	params = append(params, m.head.Parameters()...)
	return params
}

// NumParameters returns the total learnable element count.
func (m *Backbone[B]) NumParameters() int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.NumElements()
	}
	return total
}

// StateDict returns all parameters keyed by path, e.g.
// "stages.0.1.norm.weight" or "downsample.0.0.bias".
func (m *Backbone[B]) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	for i, d := range m.downsample {
		nn.MergeStateDict(out, fmt.Sprintf("downsample.%d", i), d.StateDict())
	}
	for i, s := range m.stages {
		nn.MergeStateDict(out, fmt.Sprintf("stages.%d", i), s.StateDict())
	}
	nn.MergeStateDict(out, "norm", m.norm.StateDict())
	nn.MergeStateDict(out, "head", m.head.StateDict())
	return out
}

// LoadStateDict loads all parameters. Any missing tensor or shape mismatch
// fails the whole load.
func (m *Backbone[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, d := range m.downsample {
		prefix := fmt.Sprintf("downsample.%d", i)
		if err := d.LoadStateDict(nn.SubStateDict(stateDict, prefix)); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
	}
	for i, s := range m.stages {
		prefix := fmt.Sprintf("stages.%d", i)
		if err := s.LoadStateDict(nn.SubStateDict(stateDict, prefix)); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
	}
	if err := m.norm.LoadStateDict(nn.SubStateDict(stateDict, "norm")); err != nil {
		return fmt.Errorf("norm: %w", err)
	}
	if err := m.head.LoadStateDict(nn.SubStateDict(stateDict, "head")); err != nil {
		return fmt.Errorf("head: %w", err)
	}
	return nil
}
