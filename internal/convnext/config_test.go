package convnext

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ml/strata/internal/backend/cpu"
	"github.com/strata-ml/strata/internal/serialization"
	"github.com/strata-ml/strata/internal/tensor"
)

func TestVariantsSorted(t *testing.T) {
	names := Variants()
	assert.Contains(t, names, "tiny")
	assert.Contains(t, names, "xlarge")
	assert.Contains(t, names, "tiny_k3_par1_16")
	assert.IsIncreasing(t, names)
}

func TestGetConfigUnknown(t *testing.T) {
	_, err := GetConfig("gigantic")
	assert.Error(t, err)
}

func TestConfigArchitectures(t *testing.T) {
	tests := []struct {
		name   string
		depths []int
		dims   []int
		kind   BlockKind
	}{
		{"tiny", []int{3, 3, 9, 3}, []int{96, 192, 384, 768}, MSCA},
		{"small", []int{3, 3, 27, 3}, []int{96, 192, 384, 768}, MSCA},
		{"base", []int{3, 3, 27, 3}, []int{128, 256, 512, 1024}, MSCA},
		{"large", []int{3, 3, 27, 3}, []int{192, 384, 768, 1536}, MSCA},
		{"xlarge", []int{3, 3, 27, 3}, []int{256, 512, 1024, 2048}, MSCA},
		{"tiny_k5", []int{3, 3, 9, 3}, []int{96, 192, 384, 768}, Plain},
	}
	for _, tc := range tests {
		c, err := GetConfig(tc.name)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.depths, c.Depths, tc.name)
		assert.Equal(t, tc.dims, c.Dims, tc.name)
		assert.Equal(t, tc.kind, c.BlockKind, tc.name)
	}
}

func TestPartialVariantRatios(t *testing.T) {
	tests := map[string]float64{
		"tiny_k3_par1_2":  1.0 / 2,
		"tiny_k3_par3_8":  3.0 / 8,
		"tiny_k3_par1_4":  1.0 / 4,
		"tiny_k3_par1_8":  1.0 / 8,
		"tiny_k3_par1_16": 1.0 / 16,
	}
	for name, ratio := range tests {
		c, err := GetConfig(name)
		require.NoError(t, err, name)
		assert.Equal(t, PartialKind, c.Primitive.Kind, name)
		assert.InDelta(t, ratio, c.Primitive.Ratio, 1e-12, name)
		assert.Equal(t, 3, c.KernelSize, name)
	}
}

func TestPretrainedURLAvailability(t *testing.T) {
	tiny, err := GetConfig("tiny")
	require.NoError(t, err)
	for _, in22k := range []bool{false, true} {
		url, err := tiny.PretrainedURL(in22k)
		require.NoError(t, err)
		assert.NotEmpty(t, url)
	}

	// xlarge was only pretrained on the 22k corpus.
	xlarge, err := GetConfig("xlarge")
	require.NoError(t, err)
	_, err = xlarge.PretrainedURL(false)
	assert.ErrorIs(t, err, ErrNoPretrained)

	// The reduced-kernel family has 1k checkpoints only.
	k3, err := GetConfig("tiny_k3")
	require.NoError(t, err)
	_, err = k3.PretrainedURL(true)
	assert.ErrorIs(t, err, ErrNoPretrained)
}

func TestBuildUnknownVariant(t *testing.T) {
	_, err := Build("nope", 0, cpu.New())
	assert.Error(t, err)
}

func TestLoadCheckpointRoundTrip(t *testing.T) {
	b := cpu.New()
	src := New(testOptions(), b)

	path := filepath.Join(t.TempDir(), "ckpt.strata")
	require.NoError(t, serialization.WriteStateDict(path, src.StateDict(), serialization.WriteOptions{
		ModelType: "convnext",
	}))

	dst := New(testOptions(), b)
	require.NoError(t, LoadCheckpoint(dst, path))

	input := tensor.Randn[float32](tensor.Shape{1, 3, 32, 32}, b)
	assert.Equal(t, src.Forward(input).Data(), dst.Forward(input).Data())
}

func TestLoadCheckpointAcceptsModelPrefix(t *testing.T) {
	b := cpu.New()
	src := New(testOptions(), b)

	prefixed := make(map[string]*tensor.RawTensor)
	for name, raw := range src.StateDict() {
		prefixed["model."+name] = raw
	}
	path := filepath.Join(t.TempDir(), "ckpt.strata")
	require.NoError(t, serialization.WriteStateDict(path, prefixed, serialization.WriteOptions{}))

	dst := New(testOptions(), b)
	require.NoError(t, LoadCheckpoint(dst, path))
}

func TestLoadCheckpointRejectsWrongHead(t *testing.T) {
	b := cpu.New()
	src := New(testOptions(), b)

	path := filepath.Join(t.TempDir(), "ckpt.strata")
	require.NoError(t, serialization.WriteStateDict(path, src.StateDict(), serialization.WriteOptions{}))

	opts := testOptions()
	opts.NumClasses = 42
	dst := New(opts, b)
	assert.Error(t, LoadCheckpoint(dst, path))
}
