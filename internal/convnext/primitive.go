package convnext

import (
	"fmt"

	"github.com/strata-ml/strata/internal/nn"
	"github.com/strata-ml/strata/internal/tensor"
)

// PrimitiveKind selects the convolution implementation used inside blocks.
type PrimitiveKind int

// Supported convolution primitives.
const (
	// StandardKind is a regular grouped convolution.
	StandardKind PrimitiveKind = iota
	// PartialKind convolves only a trailing fraction of channels and
	// passes the rest through unchanged.
	PartialKind
)

// Primitive is a tagged choice of convolution implementation. The Ratio
// field is meaningful only for PartialKind.
type Primitive struct {
	Kind  PrimitiveKind
	Ratio float64
}

// Standard returns the regular convolution primitive.
func Standard() Primitive {
	return Primitive{Kind: StandardKind}
}

// Partial returns a partial convolution primitive with the given
// convolved-channel ratio in (0, 1].
func Partial(ratio float64) Primitive {
	return Primitive{Kind: PartialKind, Ratio: ratio}
}

// String returns a short description, e.g. "standard" or "partial(1/4)".
func (p Primitive) String() string {
	switch p.Kind {
	case StandardKind:
		return "standard"
	case PartialKind:
		return fmt.Sprintf("partial(%g)", p.Ratio)
	default:
		return fmt.Sprintf("Primitive(%d)", int(p.Kind))
	}
}

// newConv builds the layer a block uses for its spatial convolutions.
// Partial construction validates the ratio and panics outside (0, 1].
func newConv[B tensor.Backend](p Primitive, cfg nn.Conv2DConfig, backend B) nn.Module[B] {
	switch p.Kind {
	case StandardKind:
		return nn.NewConv2D(cfg, backend)
	case PartialKind:
		return nn.NewPartialConv2D(cfg, p.Ratio, backend)
	default:
		panic(fmt.Sprintf("convnext: unknown primitive kind %d", p.Kind))
	}
}
