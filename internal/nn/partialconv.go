package nn

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// PartialConv2D convolves only a trailing fraction of the input channels.
//
// For a ratio r in (0, 1], the leading in - int(in*r) channels pass through
// untouched and the trailing int(in*r) channels go through a standard grouped
// convolution; the two are concatenated identity-first. With matching in/out
// counts the layer is a drop-in replacement for Conv2D that touches only a
// channel subset, trading receptive field for compute.
//
// The group count of the inner convolution is int(groups*r), floored to 1.
type PartialConv2D[B tensor.Backend] struct {
	identityChannels int
	conv             *Conv2D[B]
}

// NewPartialConv2D creates a partial-channel convolution. A ratio outside
// (0, 1] panics. ratio == 1 degenerates to a full standard convolution.
func NewPartialConv2D[B tensor.Backend](cfg Conv2DConfig, ratio float64, backend B) *PartialConv2D[B] {
	if ratio <= 0 || ratio > 1 {
		panic(fmt.Sprintf("partialconv: ratio %v outside (0, 1]", ratio))
	}
	cfg.normalize()
	cfg.validate()

	convIn := int(float64(cfg.In) * ratio)
	convOut := int(float64(cfg.Out) * ratio)
	groups := int(float64(cfg.Groups) * ratio)
	if groups < 1 {
		groups = 1
	}
	if convIn < 1 || convOut < 1 {
		panic(fmt.Sprintf("partialconv: ratio %v leaves no channels to convolve (in=%d, out=%d)", ratio, cfg.In, cfg.Out))
	}

	inner := cfg
	inner.In = convIn
	inner.Out = convOut
	inner.Groups = groups

	return &PartialConv2D[B]{
		identityChannels: cfg.In - convIn,
		conv:             NewConv2D(inner, backend),
	}
}

// Forward splits channels, convolves the trailing slice, and concatenates.
// The identity slice is bit-exact equal to the corresponding input channels.
func (p *PartialConv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if p.identityChannels == 0 {
		return p.conv.Forward(input)
	}

	identity := input.Narrow(1, 0, p.identityChannels)
	convolved := p.conv.Forward(input.Narrow(1, p.identityChannels, p.conv.Config().In))
	return tensor.Cat([]*tensor.Tensor[float32, B]{identity, convolved}, 1)
}

// Parameters returns the inner convolution's parameters.
func (p *PartialConv2D[B]) Parameters() []*Parameter[B] {
	return p.conv.Parameters()
}

// IdentityChannels returns the number of untouched leading channels.
func (p *PartialConv2D[B]) IdentityChannels() int {
	return p.identityChannels
}

// Conv returns the inner convolution layer.
func (p *PartialConv2D[B]) Conv() *Conv2D[B] {
	return p.conv
}

// StateDict returns the inner convolution's parameters under a "conv" prefix.
func (p *PartialConv2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	MergeStateDict(sd, "conv", p.conv.StateDict())
	return sd
}

// LoadStateDict loads the inner convolution's parameters.
func (p *PartialConv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return p.conv.LoadStateDict(SubStateDict(stateDict, "conv"))
}
