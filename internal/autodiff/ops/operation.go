// Package ops defines the differentiable operations recorded on the gradient tape.
//
// Each operation captures its inputs and output during the forward pass and
// turns an output gradient into input gradients during the backward pass.
// Operations only orchestrate: every numeric kernel lives in the backend.
//
// Supported operations:
//   - Element-wise: Add, Sub, Mul, MulScalar, AddScalar (broadcast-aware)
//   - Linear algebra: MatMul, Transpose
//   - Structure: Reshape, Cat, Narrow, Sum
//   - Activations: ReLU, Softmax
//   - Spatial: Conv2D, MaxPool2D, AvgPool2D, GlobalAvgPool2D, Subsample2D, Shift2D
//   - Normalization and loss: BatchNorm2D, CrossEntropy
package ops

import "github.com/born-ml/darts/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The result is aligned with Inputs(); a nil entry means no gradient
	// flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// recorded stores the inputs and output shared by every operation.
type recorded struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func record(output *tensor.RawTensor, inputs ...*tensor.RawTensor) recorded {
	return recorded{inputs: inputs, output: output}
}

// Inputs returns the input tensors.
func (r recorded) Inputs() []*tensor.RawTensor {
	return r.inputs
}

// Output returns the output tensor.
func (r recorded) Output() *tensor.RawTensor {
	return r.output
}

// reduceBroadcast sums a gradient back to the shape of an operand that was
// broadcast in the forward pass.
//
//	Forward:  a[C,1,1] * x[N,C,H,W] -> y[N,C,H,W]
//	Backward: grad_y[N,C,H,W] -> grad_a[C,1,1]
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	return backend.SumToShape(grad, target)
}
