package nn

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// Parameter is a named learnable tensor. Parameters are created at module
// construction with a fixed shape and mutated only through external weight
// updates (an optimizer or a checkpoint load); the forward pass never writes
// them.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
}

// NewParameter creates a parameter from an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// NumElements returns the parameter's element count.
func (p *Parameter[B]) NumElements() int {
	return p.tensor.NumElements()
}

// Load copies a raw tensor from the state dict into the parameter after
// validating name presence, shape, and dtype. Modules that own bare
// parameters (layer-scale gammas) use it from their LoadStateDict.
func (p *Parameter[B]) Load(stateDict map[string]*tensor.RawTensor, key string) error {
	raw, ok := stateDict[key]
	if !ok {
		return fmt.Errorf("missing %q in state dict", key)
	}
	if !raw.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", key, p.tensor.Shape(), raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%s dtype mismatch: expected float32, got %v", key, raw.DType())
	}
	copy(p.tensor.Data(), raw.AsFloat32())
	return nil
}
