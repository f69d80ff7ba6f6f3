package ops

import "github.com/born-ml/darts/internal/tensor"

// ReshapeOp represents a change of shape without moving data.
type ReshapeOp struct{ recorded }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{record(output, x)}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad.View(op.inputs[0].Shape())}
}

// CatOp represents concatenation along dim.
//
// Backward splits the output gradient into one slice per input.
type CatOp struct {
	recorded
	dim int
}

// NewCatOp creates a new CatOp.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	return &CatOp{recorded: record(output, inputs...), dim: dim}
}

// Backward narrows the gradient for each input.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dim := tensor.NormalizeDim(op.dim, len(outputGrad.Shape()))
	grads := make([]*tensor.RawTensor, len(op.inputs))
	start := 0
	for i, in := range op.inputs {
		n := in.Shape()[dim]
		grads[i] = backend.Narrow(outputGrad, dim, start, n)
		start += n
	}
	return grads
}

// NarrowOp represents x[..., start:start+length, ...] along dim.
type NarrowOp struct {
	recorded
	dim, start int
}

// NewNarrowOp creates a new NarrowOp.
func NewNarrowOp(x, output *tensor.RawTensor, dim, start int) *NarrowOp {
	return &NarrowOp{recorded: record(output, x), dim: dim, start: start}
}

// Backward scatters the gradient into zeros of the input shape.
func (op *NarrowOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.NarrowBackward(outputGrad, op.inputs[0].Shape(), op.dim, op.start)}
}

// SumOp represents the sum of all elements, output shape [1].
type SumOp struct{ recorded }

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{record(output, x)}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	zeros := tensor.MustNewRaw(x.Shape(), tensor.Float32, backend.Device())
	return []*tensor.RawTensor{backend.AddScalar(zeros, outputGrad.AsFloat32()[0])}
}
