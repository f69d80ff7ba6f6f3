package ops

import "github.com/born-ml/darts/internal/tensor"

// ReLUOp represents output = max(0, x).
//
// Backward: grad_x = outputGrad where x > 0, else 0.
type ReLUOp struct{ recorded }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(x, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{record(output, x)}
}

// Backward computes the ReLU gradient.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.ReLUBackward(op.inputs[0], outputGrad)}
}

// SoftmaxOp represents output = softmax(x) along dim.
//
// Backward: grad_x = y * (outputGrad - Σ outputGrad*y), summed along dim.
type SoftmaxOp struct {
	recorded
	dim int
}

// NewSoftmaxOp creates a new SoftmaxOp.
func NewSoftmaxOp(x, output *tensor.RawTensor, dim int) *SoftmaxOp {
	return &SoftmaxOp{recorded: record(output, x), dim: dim}
}

// Backward computes the softmax Jacobian-vector product.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.SoftmaxBackward(op.output, outputGrad, op.dim)}
}
