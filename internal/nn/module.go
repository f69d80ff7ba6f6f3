// Package nn implements the neural network modules used by the search space.
//
// This package provides:
//   - Module interface: Forward + Parameters
//   - Parameter: trainable tensors and non-trainable buffers
//   - Conv2D (groups, dilation, rectangular kernels), Linear
//   - BatchNorm2D with running statistics and train/eval modes
//   - MaxPool2D, AvgPool2D, GlobalAvgPool2D, ReLU
//   - Sequential container and CrossEntropyLoss
//
// Composite modules expose their children through Container so that
// train/eval switching and buffer collection can walk the module tree.
package nn

import (
	"github.com/born-ml/darts/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including those of nested modules.
	Parameters() []*Parameter[B]
}

// Container is implemented by anything that owns child modules.
// The owner does not have to be a Module itself.
type Container[B tensor.Backend] interface {
	Children() []Module[B]
}

// Trainable is implemented by modules whose behaviour differs between
// training and evaluation.
type Trainable interface {
	SetTraining(training bool)
}

// Buffered is implemented by modules holding non-trainable state that must
// be checkpointed (e.g. batch-norm running statistics).
type Buffered[B tensor.Backend] interface {
	Buffers() []*Parameter[B]
}

// Walk visits root and every module reachable through Container, depth first.
func Walk[B tensor.Backend](root any, fn func(m Module[B])) {
	if m, ok := root.(Module[B]); ok {
		fn(m)
	}
	if c, ok := root.(Container[B]); ok {
		for _, child := range c.Children() {
			Walk(child, fn)
		}
	}
}

// SetTraining switches every Trainable module under root.
func SetTraining[B tensor.Backend](root any, training bool) {
	Walk[B](root, func(m Module[B]) {
		if t, ok := m.(Trainable); ok {
			t.SetTraining(training)
		}
	})
}

// CollectBuffers returns the buffers of every module under root in walk order.
func CollectBuffers[B tensor.Backend](root any) []*Parameter[B] {
	var out []*Parameter[B]
	Walk[B](root, func(m Module[B]) {
		if b, ok := m.(Buffered[B]); ok {
			out = append(out, b.Buffers()...)
		}
	})
	return out
}

// CollectParameters concatenates the parameters of several modules.
func CollectParameters[B tensor.Backend](modules ...Module[B]) []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range modules {
		params = append(params, m.Parameters()...)
	}
	return params
}
