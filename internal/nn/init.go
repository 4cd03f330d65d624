package nn

import (
	"math"
	"math/rand"

	"github.com/strata-ml/strata/internal/tensor"
)

// DefaultInitStd is the standard deviation used for weight initialization
// across the library's convolution and linear layers.
const DefaultInitStd = 0.02

// TruncNormal returns a tensor initialized from a truncated normal
// distribution: values are drawn from N(0, std^2) and redrawn while they fall
// outside [-2*std, 2*std].
func TruncNormal[B tensor.Backend](shape tensor.Shape, std float64, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32, B](shape, backend)
	data := t.Data()
	bound := 2.0 * std
	for i := range data {
		for {
			v := rand.NormFloat64() * std //nolint:gosec // G404: weight init is not security-critical
			if math.Abs(v) <= bound {
				data[i] = float32(v)
				break
			}
		}
	}
	return t
}

// Zeros creates a tensor filled with zeros. Used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones. Used for normalization scales.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
