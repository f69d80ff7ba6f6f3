package ops

import "github.com/born-ml/darts/internal/tensor"

// CrossEntropyOp records the batch-mean cross-entropy of logits against
// integer targets.
//
// Backward: grad_logits = outputGrad * (softmax(logits) - one_hot) / N.
// Targets receive no gradient.
type CrossEntropyOp struct{ recorded }

// NewCrossEntropyOp creates a new CrossEntropyOp.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{record(output, logits, targets)}
}

// Backward computes the logits gradient.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	logits, targets := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{backend.CrossEntropyBackward(logits, targets, outputGrad), nil}
}
