package ops

import "github.com/born-ml/darts/internal/tensor"

// Conv2DOp records a grouped, dilated 2D convolution.
//
// Backward (gradients):
//   - d_input:  transposed convolution of d_output with kernel
//   - d_kernel: correlation of input with d_output
//
// References:
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
type Conv2DOp struct {
	recorded
	params tensor.Conv2DParams
}

// NewConv2DOp creates a new Conv2DOp.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, p tensor.Conv2DParams) *Conv2DOp {
	return &Conv2DOp{recorded: record(output, input, kernel), params: p}
}

// Backward delegates both gradients to the backend.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	input, kernel := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.Conv2DInputBackward(input, kernel, outputGrad, op.params),
		backend.Conv2DKernelBackward(input, kernel, outputGrad, op.params),
	}
}
