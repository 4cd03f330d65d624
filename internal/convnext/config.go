package convnext

import (
	"fmt"
	"sort"

	"github.com/strata-ml/strata/internal/tensor"
)

// Config is a named backbone variant: its architecture plus the published
// pretrained checkpoint URLs, if any. An empty URL means no checkpoint
// exists for that pretraining corpus.
type Config struct {
	Name       string
	Depths     []int
	Dims       []int
	BlockKind  BlockKind
	KernelSize int // plain blocks only
	Primitive  Primitive

	URL1K  string // ImageNet-1k checkpoint
	URL22K string // ImageNet-22k checkpoint
}

// Options expands the config into backbone options. numClasses of 0 keeps
// the default of 1000.
func (c Config) Options(numClasses int) Options {
	opts := Options{
		NumClasses: numClasses,
		Depths:     append([]int(nil), c.Depths...),
		Dims:       append([]int(nil), c.Dims...),
		BlockKind:  c.BlockKind,
		Primitives: []Primitive{c.Primitive},
	}
	if c.KernelSize > 0 {
		opts.KernelSizes = []int{c.KernelSize}
	}
	return opts
}

const checkpointBase = "https://models.strata-ml.dev/convnext/"

var (
	tinyDepths  = []int{3, 3, 9, 3}
	smallDepths = []int{3, 3, 27, 3}
	tinyDims    = []int{96, 192, 384, 768}
	baseDims    = []int{128, 256, 512, 1024}
	largeDims   = []int{192, 384, 768, 1536}
	xlargeDims  = []int{256, 512, 1024, 2048}
)

// registry holds every named variant. The tiny_k* family trades the MSCA
// kernels for smaller plain-block kernels; the tiny_k3_par* family further
// replaces standard convolutions with partial ones at decreasing ratios.
var registry = map[string]Config{
	"tiny": {
		Name: "tiny", Depths: tinyDepths, Dims: tinyDims, BlockKind: MSCA, Primitive: Standard(),
		URL1K:  checkpointBase + "strata_tiny_1k_224.strata",
		URL22K: checkpointBase + "strata_tiny_22k_224.strata",
	},
	"small": {
		Name: "small", Depths: smallDepths, Dims: tinyDims, BlockKind: MSCA, Primitive: Standard(),
		URL1K:  checkpointBase + "strata_small_1k_224.strata",
		URL22K: checkpointBase + "strata_small_22k_224.strata",
	},
	"base": {
		Name: "base", Depths: smallDepths, Dims: baseDims, BlockKind: MSCA, Primitive: Standard(),
		URL1K:  checkpointBase + "strata_base_1k_224.strata",
		URL22K: checkpointBase + "strata_base_22k_224.strata",
	},
	"large": {
		Name: "large", Depths: smallDepths, Dims: largeDims, BlockKind: MSCA, Primitive: Standard(),
		URL1K:  checkpointBase + "strata_large_1k_224.strata",
		URL22K: checkpointBase + "strata_large_22k_224.strata",
	},
	"xlarge": {
		Name: "xlarge", Depths: smallDepths, Dims: xlargeDims, BlockKind: MSCA, Primitive: Standard(),
		URL22K: checkpointBase + "strata_xlarge_22k_224.strata",
	},
	"tiny_k5": {
		Name: "tiny_k5", Depths: tinyDepths, Dims: tinyDims,
		BlockKind: Plain, KernelSize: 5, Primitive: Standard(),
		URL1K: checkpointBase + "strata_tiny_k5_1k_224.strata",
	},
	"tiny_k3": {
		Name: "tiny_k3", Depths: tinyDepths, Dims: tinyDims,
		BlockKind: Plain, KernelSize: 3, Primitive: Standard(),
		URL1K: checkpointBase + "strata_tiny_k3_1k_224.strata",
	},
	"tiny_k3_par1_2": {
		Name: "tiny_k3_par1_2", Depths: tinyDepths, Dims: tinyDims,
		BlockKind: Plain, KernelSize: 3, Primitive: Partial(1.0 / 2),
		URL1K: checkpointBase + "strata_tiny_k3_par1_2_1k_224.strata",
	},
	"tiny_k3_par3_8": {
		Name: "tiny_k3_par3_8", Depths: tinyDepths, Dims: tinyDims,
		BlockKind: Plain, KernelSize: 3, Primitive: Partial(3.0 / 8),
		URL1K: checkpointBase + "strata_tiny_k3_par3_8_1k_224.strata",
	},
	"tiny_k3_par1_4": {
		Name: "tiny_k3_par1_4", Depths: tinyDepths, Dims: tinyDims,
		BlockKind: Plain, KernelSize: 3, Primitive: Partial(1.0 / 4),
		URL1K: checkpointBase + "strata_tiny_k3_par1_4_1k_224.strata",
	},
	"tiny_k3_par1_8": {
		Name: "tiny_k3_par1_8", Depths: tinyDepths, Dims: tinyDims,
		BlockKind: Plain, KernelSize: 3, Primitive: Partial(1.0 / 8),
		URL1K: checkpointBase + "strata_tiny_k3_par1_8_1k_224.strata",
	},
	"tiny_k3_par1_16": {
		Name: "tiny_k3_par1_16", Depths: tinyDepths, Dims: tinyDims,
		BlockKind: Plain, KernelSize: 3, Primitive: Partial(1.0 / 16),
		URL1K: checkpointBase + "strata_tiny_k3_par1_16_1k_224.strata",
	},
}

// Variants returns all registered variant names in sorted order.
func Variants() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetConfig looks up a variant by name.
func GetConfig(name string) (Config, error) {
	c, ok := registry[name]
	if !ok {
		return Config{}, fmt.Errorf("convnext: unknown variant %q (known: %v)", name, Variants())
	}
	return c, nil
}

// Build constructs a randomly initialized backbone for a named variant.
// numClasses of 0 keeps the default of 1000.
func Build[B tensor.Backend](name string, numClasses int, backend B) (*Backbone[B], error) {
	c, err := GetConfig(name)
	if err != nil {
		return nil, err
	}
	return New(c.Options(numClasses), backend), nil
}
