package nn

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// Conv2DConfig describes a 2D convolution layer.
//
// KernelH/KernelW allow asymmetric kernels (1x11, 11x1); PadH/PadW are the
// matching symmetric per-axis paddings. Groups of 0 means 1; Groups == In is
// a depthwise convolution.
type Conv2DConfig struct {
	In, Out          int
	KernelH, KernelW int
	Stride           int // 0 means 1
	PadH, PadW       int
	Groups           int  // 0 means 1
	NoBias           bool // bias is on by default
}

func (c *Conv2DConfig) normalize() {
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.Groups == 0 {
		c.Groups = 1
	}
}

func (c Conv2DConfig) validate() {
	if c.In <= 0 || c.Out <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", c.In, c.Out))
	}
	if c.KernelH <= 0 || c.KernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %dx%d", c.KernelH, c.KernelW))
	}
	if c.Stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", c.Stride))
	}
	if c.PadH < 0 || c.PadW < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding (%d, %d)", c.PadH, c.PadW))
	}
	if c.Groups <= 0 || c.In%c.Groups != 0 || c.Out%c.Groups != 0 {
		panic(fmt.Sprintf("conv2d: groups %d must divide in=%d and out=%d", c.Groups, c.In, c.Out))
	}
}

// Conv2D is a grouped 2D convolutional layer.
//
// Input shape:  [N, in, H, W]
// Weight shape: [out, in/groups, kernel_h, kernel_w]
// Output shape: [N, out, H_out, W_out]
//
// Weights are initialized with a truncated normal (std 0.02), biases to zero.
type Conv2D[B tensor.Backend] struct {
	cfg     Conv2DConfig
	weight  *Parameter[B]
	bias    *Parameter[B] // nil when NoBias
	backend B
}

// NewConv2D creates a new convolution layer. Invalid configurations panic:
// these are programmer errors, not runtime conditions.
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, backend B) *Conv2D[B] {
	cfg.normalize()
	cfg.validate()

	weightShape := tensor.Shape{cfg.Out, cfg.In / cfg.Groups, cfg.KernelH, cfg.KernelW}
	weight := NewParameter("weight", TruncNormal(weightShape, DefaultInitStd, backend))

	var bias *Parameter[B]
	if !cfg.NoBias {
		bias = NewParameter("bias", Zeros(tensor.Shape{cfg.Out}, backend))
	}

	return &Conv2D[B]{cfg: cfg, weight: weight, bias: bias, backend: backend}
}

// Forward performs the convolution.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.cfg.In {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", shape[1], c.cfg.In))
	}

	raw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(),
		c.cfg.Stride, c.cfg.PadH, c.cfg.PadW, c.cfg.Groups)
	out := tensor.New[float32, B](raw, c.backend)

	if c.bias != nil {
		out = out.Add(c.bias.Tensor().Reshape(1, c.cfg.Out, 1, 1))
	}
	return out
}

// Parameters returns the learnable parameters.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// Weight returns the weight parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil for a bias-free layer.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// Config returns the layer configuration.
func (c *Conv2D[B]) Config() Conv2DConfig {
	return c.cfg
}

// OutputSize computes the spatial output dimensions for a given input size.
func (c *Conv2D[B]) OutputSize(inputH, inputW int) (int, int) {
	outH := (inputH+2*c.cfg.PadH-c.cfg.KernelH)/c.cfg.Stride + 1
	outW := (inputW+2*c.cfg.PadW-c.cfg.KernelW)/c.cfg.Stride + 1
	return outH, outW
}

// String returns a short description of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in=%d, out=%d, kernel=%dx%d, stride=%d, pad=(%d,%d), groups=%d)",
		c.cfg.In, c.cfg.Out, c.cfg.KernelH, c.cfg.KernelW, c.cfg.Stride, c.cfg.PadH, c.cfg.PadW, c.cfg.Groups)
}

// StateDict returns the layer's parameters keyed by name.
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{"weight": c.weight.Tensor().Raw()}
	if c.bias != nil {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict loads the parameters from a state dictionary.
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := c.weight.Load(stateDict, "weight"); err != nil {
		return err
	}
	if c.bias != nil {
		return c.bias.Load(stateDict, "bias")
	}
	return nil
}
