package ops

import "github.com/born-ml/darts/internal/tensor"

// MaxPool2DOp records max pooling. The gradient goes to the first maximal
// position of each window.
type MaxPool2DOp struct {
	recorded
	params tensor.Pool2DParams
}

// NewMaxPool2DOp creates a new MaxPool2DOp.
func NewMaxPool2DOp(input, output *tensor.RawTensor, p tensor.Pool2DParams) *MaxPool2DOp {
	return &MaxPool2DOp{recorded: record(output, input), params: p}
}

// Backward computes the max pooling gradient.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPool2DBackward(op.inputs[0], outputGrad, op.params)}
}

// AvgPool2DOp records average pooling with padding excluded from the count.
type AvgPool2DOp struct {
	recorded
	params tensor.Pool2DParams
}

// NewAvgPool2DOp creates a new AvgPool2DOp.
func NewAvgPool2DOp(input, output *tensor.RawTensor, p tensor.Pool2DParams) *AvgPool2DOp {
	return &AvgPool2DOp{recorded: record(output, input), params: p}
}

// Backward computes the average pooling gradient.
func (op *AvgPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.AvgPool2DBackward(op.inputs[0], outputGrad, op.params)}
}

// GlobalAvgPool2DOp records [N,C,H,W] -> [N,C] spatial averaging.
type GlobalAvgPool2DOp struct{ recorded }

// NewGlobalAvgPool2DOp creates a new GlobalAvgPool2DOp.
func NewGlobalAvgPool2DOp(input, output *tensor.RawTensor) *GlobalAvgPool2DOp {
	return &GlobalAvgPool2DOp{record(output, input)}
}

// Backward spreads the gradient uniformly over each plane.
func (op *GlobalAvgPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.GlobalAvgPool2DBackward(op.inputs[0], outputGrad)}
}

// Subsample2DOp records x[:, :, ::stride, ::stride].
type Subsample2DOp struct {
	recorded
	stride int
}

// NewSubsample2DOp creates a new Subsample2DOp.
func NewSubsample2DOp(input, output *tensor.RawTensor, stride int) *Subsample2DOp {
	return &Subsample2DOp{recorded: record(output, input), stride: stride}
}

// Backward scatters the gradient to the sampled positions.
func (op *Subsample2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Subsample2DBackward(op.inputs[0], outputGrad, op.stride)}
}

// Shift2DOp records a zero-filled spatial shift by (dy, dx).
type Shift2DOp struct {
	recorded
	dy, dx int
}

// NewShift2DOp creates a new Shift2DOp.
func NewShift2DOp(input, output *tensor.RawTensor, dy, dx int) *Shift2DOp {
	return &Shift2DOp{recorded: record(output, input), dy: dy, dx: dx}
}

// Backward shifts the gradient the opposite way.
func (op *Shift2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Shift2D(outputGrad, -op.dy, -op.dx)}
}
