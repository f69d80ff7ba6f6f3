package ops

import "github.com/born-ml/darts/internal/tensor"

// BatchNorm2DOp records per-channel normalization with batch statistics.
// Scale and shift are separate Mul/Add operations.
type BatchNorm2DOp struct {
	recorded
	eps float32
}

// NewBatchNorm2DOp creates a new BatchNorm2DOp.
func NewBatchNorm2DOp(input, output *tensor.RawTensor, eps float32) *BatchNorm2DOp {
	return &BatchNorm2DOp{recorded: record(output, input), eps: eps}
}

// Backward differentiates through the batch mean and variance.
func (op *BatchNorm2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.BatchNorm2DBackward(op.inputs[0], outputGrad, op.eps)}
}
