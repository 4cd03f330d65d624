package convnext

import (
	"fmt"

	"github.com/strata-ml/strata/internal/nn"
	"github.com/strata-ml/strata/internal/tensor"
)

// mscaKernels is the fixed per-branch kernel contract of the MSCA block:
// a 3x3 square branch, a 1x11 horizontal strip, and an 11x1 vertical strip.
var mscaKernels = [3]int{3, 11, 11}

// MSCABlock is the attention-augmented residual block.
//
// The input is split into four channel groups. Three pass through depthwise
// convolutions at different receptive fields, the fourth is an identity
// shortcut. The concatenated branches form a first residual. A spatial gate
// built from the channel-mean map reweights that residual, the gated result
// is fused with the block input through a 1x1 convolution, and an inverted
// MLP with layer scale and stochastic depth forms the second residual.
type MSCABlock[B tensor.Backend] struct {
	dim int

	branches [3]nn.Module[B] // depthwise 3x3, 1x11, 11x1

	gateDown *nn.Conv2D[B]    // 1 -> dim/8, 1x1
	gateNorm *nn.LayerNorm[B] // channels-first over dim/8
	gateUp   *nn.Conv2D[B]    // dim/8 -> dim, 1x1

	fusion *nn.Conv2D[B] // 2*dim -> dim, 1x1

	norm    *nn.LayerNorm[B] // channels-last
	pwconv1 *nn.Linear[B]    // dim -> 4*dim
	pwconv2 *nn.Linear[B]    // 4*dim -> dim
	gamma   *nn.Parameter[B] // layer scale, nil when disabled
	drop    *nn.DropPath[B]

	backend B
}

// NewMSCABlock constructs an MSCA block. dim must be divisible by 4 (the
// channel split) and by 8 (the gate bottleneck). kernelSizes must be exactly
// {3, 11, 11}; the parameter exists so callers state the contract explicitly.
// layerScaleInit <= 0 disables the gamma parameter.
func NewMSCABlock[B tensor.Backend](dim int, kernelSizes [3]int, dropPath, layerScaleInit float32, primitive Primitive, backend B) *MSCABlock[B] {
	if kernelSizes != mscaKernels {
		panic(fmt.Sprintf("msca block: kernel sizes must be %v, got %v", mscaKernels, kernelSizes))
	}
	if dim%4 != 0 || dim%8 != 0 {
		panic(fmt.Sprintf("msca block: dim %d must be divisible by 4 and 8", dim))
	}

	quarter := dim / 4
	b := &MSCABlock[B]{dim: dim, backend: backend}

	b.branches[0] = newConv(primitive, nn.Conv2DConfig{
		In: quarter, Out: quarter, KernelH: 3, KernelW: 3, PadH: 1, PadW: 1, Groups: quarter,
	}, backend)
	b.branches[1] = newConv(primitive, nn.Conv2DConfig{
		In: quarter, Out: quarter, KernelH: 1, KernelW: 11, PadH: 0, PadW: 5, Groups: quarter,
	}, backend)
	b.branches[2] = newConv(primitive, nn.Conv2DConfig{
		In: quarter, Out: quarter, KernelH: 11, KernelW: 1, PadH: 5, PadW: 0, Groups: quarter,
	}, backend)

	b.gateDown = nn.NewConv2D(nn.Conv2DConfig{In: 1, Out: dim / 8, KernelH: 1, KernelW: 1}, backend)
	b.gateNorm = nn.NewLayerNorm(dim/8, nn.DefaultEps, nn.ChannelsFirst, backend)
	b.gateUp = nn.NewConv2D(nn.Conv2DConfig{In: dim / 8, Out: dim, KernelH: 1, KernelW: 1}, backend)

	b.fusion = nn.NewConv2D(nn.Conv2DConfig{In: 2 * dim, Out: dim, KernelH: 1, KernelW: 1}, backend)

	b.norm = nn.NewLayerNorm(dim, nn.DefaultEps, nn.ChannelsLast, backend)
	b.pwconv1 = nn.NewLinear(dim, 4*dim, backend)
	b.pwconv2 = nn.NewLinear(4*dim, dim, backend)
	if layerScaleInit > 0 {
		b.gamma = nn.NewParameter("gamma",
			tensor.Full(tensor.Shape{dim}, layerScaleInit, backend))
	}
	b.drop = nn.NewDropPath[B](dropPath)
	return b
}

// Forward runs the block on an [N, dim, H, W] input.
func (b *MSCABlock[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	parts := input.Chunk(4, 1)
	branched := []*tensor.Tensor[float32, B]{
		b.branches[0].Forward(parts[0]),
		b.branches[1].Forward(parts[1]),
		b.branches[2].Forward(parts[2]),
		parts[3],
	}
	fused := tensor.Cat(branched, 1).Add(input)

	// Spatial gate from the per-position channel mean.
	pooled := fused.MeanDim(1, true)
	gate := b.gateUp.Forward(b.gateNorm.Forward(b.gateDown.Forward(pooled)).GELU()).Sigmoid()
	gated := fused.Mul(gate)

	merged := b.fusion.Forward(tensor.Cat([]*tensor.Tensor[float32, B]{input, gated}, 1))

	x := merged.Permute(0, 2, 3, 1)
	x = b.norm.Forward(x)
	x = b.pwconv2.Forward(b.pwconv1.Forward(x).GELU())
	if b.gamma != nil {
		x = x.Mul(b.gamma.Tensor())
	}
	x = x.Permute(0, 3, 1, 2)

	return merged.Add(b.drop.Forward(x))
}

// SetTraining toggles stochastic depth.
func (b *MSCABlock[B]) SetTraining(training bool) {
	b.drop.SetTraining(training)
}

// Dim returns the block's channel width.
func (b *MSCABlock[B]) Dim() int {
	return b.dim
}

// Parameters returns all learnable parameters of the block.
func (b *MSCABlock[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, br := range b.branches {
		params = append(params, br.Parameters()...)
	}
	params = append(params, b.gateDown.Parameters()...)
	params = append(params, b.gateNorm.Parameters()...)
	params = append(params, b.gateUp.Parameters()...)
	params = append(params, b.fusion.Parameters()...)
	params = append(params, b.norm.Parameters()...)
	params = append(params, b.pwconv1.Parameters()...)
	params = append(params, b.pwconv2.Parameters()...)
	if b.gamma != nil {
		params = append(params, b.gamma)
	}
	return params
}

func (b *MSCABlock[B]) namedChildren() map[string]nn.Module[B] {
	return map[string]nn.Module[B]{
		"branch0":   b.branches[0],
		"branch1":   b.branches[1],
		"branch2":   b.branches[2],
		"gate_down": b.gateDown,
		"gate_norm": b.gateNorm,
		"gate_up":   b.gateUp,
		"fusion":    b.fusion,
		"norm":      b.norm,
		"pwconv1":   b.pwconv1,
		"pwconv2":   b.pwconv2,
	}
}

// StateDict returns the block's parameters keyed by path.
func (b *MSCABlock[B]) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	for name, child := range b.namedChildren() {
		nn.MergeStateDict(out, name, child.StateDict())
	}
	if b.gamma != nil {
		out["gamma"] = b.gamma.Tensor().Raw()
	}
	return out
}

// LoadStateDict loads the block's parameters.
func (b *MSCABlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for name, child := range b.namedChildren() {
		if err := child.LoadStateDict(nn.SubStateDict(stateDict, name)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if b.gamma != nil {
		return b.gamma.Load(stateDict, "gamma")
	}
	return nil
}

// Block is the plain residual block: a depthwise convolution at a
// configurable square kernel followed by the inverted MLP.
type Block[B tensor.Backend] struct {
	dim int

	dwconv  nn.Module[B]
	norm    *nn.LayerNorm[B]
	pwconv1 *nn.Linear[B]
	pwconv2 *nn.Linear[B]
	gamma   *nn.Parameter[B]
	drop    *nn.DropPath[B]
}

// NewBlock constructs a plain block with a kernelSize x kernelSize depthwise
// convolution. kernelSize must be odd so padding preserves spatial size.
// layerScaleInit <= 0 disables the gamma parameter.
func NewBlock[B tensor.Backend](dim, kernelSize int, dropPath, layerScaleInit float32, primitive Primitive, backend B) *Block[B] {
	if kernelSize <= 0 || kernelSize%2 == 0 {
		panic(fmt.Sprintf("block: kernel size must be positive odd, got %d", kernelSize))
	}

	b := &Block[B]{dim: dim}
	pad := kernelSize / 2
	b.dwconv = newConv(primitive, nn.Conv2DConfig{
		In: dim, Out: dim, KernelH: kernelSize, KernelW: kernelSize, PadH: pad, PadW: pad, Groups: dim,
	}, backend)
	b.norm = nn.NewLayerNorm(dim, nn.DefaultEps, nn.ChannelsLast, backend)
	b.pwconv1 = nn.NewLinear(dim, 4*dim, backend)
	b.pwconv2 = nn.NewLinear(4*dim, dim, backend)
	if layerScaleInit > 0 {
		b.gamma = nn.NewParameter("gamma",
			tensor.Full(tensor.Shape{dim}, layerScaleInit, backend))
	}
	b.drop = nn.NewDropPath[B](dropPath)
	return b
}

// Forward runs the block on an [N, dim, H, W] input.
func (b *Block[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := b.dwconv.Forward(input)
	x = x.Permute(0, 2, 3, 1)
	x = b.norm.Forward(x)
	x = b.pwconv2.Forward(b.pwconv1.Forward(x).GELU())
	if b.gamma != nil {
		x = x.Mul(b.gamma.Tensor())
	}
	x = x.Permute(0, 3, 1, 2)
	return input.Add(b.drop.Forward(x))
}

// SetTraining toggles stochastic depth.
func (b *Block[B]) SetTraining(training bool) {
	b.drop.SetTraining(training)
}

// Dim returns the block's channel width.
func (b *Block[B]) Dim() int {
	return b.dim
}

// Parameters returns all learnable parameters of the block.
func (b *Block[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, b.dwconv.Parameters()...)
	params = append(params, b.norm.Parameters()...)
	params = append(params, b.pwconv1.Parameters()...)
	params = append(params, b.pwconv2.Parameters()...)
	if b.gamma != nil {
		params = append(params, b.gamma)
	}
	return params
}

func (b *Block[B]) namedChildren() map[string]nn.Module[B] {
	return map[string]nn.Module[B]{
		"dwconv":  b.dwconv,
		"norm":    b.norm,
		"pwconv1": b.pwconv1,
		"pwconv2": b.pwconv2,
	}
}

// StateDict returns the block's parameters keyed by path.
func (b *Block[B]) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	for name, child := range b.namedChildren() {
		nn.MergeStateDict(out, name, child.StateDict())
	}
	if b.gamma != nil {
		out["gamma"] = b.gamma.Tensor().Raw()
	}
	return out
}

// LoadStateDict loads the block's parameters.
func (b *Block[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for name, child := range b.namedChildren() {
		if err := child.LoadStateDict(nn.SubStateDict(stateDict, name)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if b.gamma != nil {
		return b.gamma.Load(stateDict, "gamma")
	}
	return nil
}
