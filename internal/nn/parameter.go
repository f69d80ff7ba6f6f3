package nn

import (
	"github.com/born-ml/darts/internal/tensor"
)

// Parameter represents a named tensor owned by a module.
//
// Parameters are trainable weights; buffers (created with NewBuffer) carry
// state such as running statistics that optimizers must not touch.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	buffer bool
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// NewBuffer creates a non-trainable state tensor.
func NewBuffer[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
		buffer: true,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Raw returns the underlying RawTensor, the key used in gradient maps.
func (p *Parameter[B]) Raw() *tensor.RawTensor {
	return p.tensor.Raw()
}

// IsBuffer reports whether the parameter is non-trainable state.
func (p *Parameter[B]) IsBuffer() bool {
	return p.buffer
}

// CopyFrom overwrites the parameter values with those of src.
// Shapes must match; storage identity is preserved.
func (p *Parameter[B]) CopyFrom(src *Parameter[B]) {
	p.tensor.Raw().CopyFrom(src.tensor.Raw())
}
