// Package autodiff implements reverse-mode automatic differentiation using
// the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and records every forward
// operation on a GradientTape. Gradient kernels pass straight through to the
// wrapped backend and are never recorded.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := model.Forward(x) ...
//	grads := autodiff.Backward(loss, backend)
//	backend.Tape().Clear()
package autodiff

import (
	"github.com/born-ml/darts/internal/autodiff/ops"
	"github.com/born-ml/darts/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddOp(a, c, result))
	}
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSubOp(a, c, result))
	}
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulOp(a, c, result))
	}
	return result
}

// MulScalar multiplies by a constant and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	result := b.inner.MulScalar(x, s)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulScalarOp(x, result, s))
	}
	return result
}

// AddScalar adds a constant and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	result := b.inner.AddScalar(x, s)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddScalarOp(x, result))
	}
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMatMulOp(a, c, result))
	}
	return result
}

// Transpose transposes a 2D tensor and records the operation.
func (b *AutodiffBackend[B]) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Transpose(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewTransposeOp(x, result))
	}
	return result
}

// Reshape changes the shape and records the operation.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(x, shape)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(x, result))
	}
	return result
}

// Cat concatenates along dim and records the operation.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.Cat(tensors, dim)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewCatOp(tensors, result, dim))
	}
	return result
}

// Narrow slices along dim and records the operation.
func (b *AutodiffBackend[B]) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	result := b.inner.Narrow(x, dim, start, length)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewNarrowOp(x, result, dim, start))
	}
	return result
}

// Sum reduces all elements and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sum(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSumOp(x, result))
	}
	return result
}

// ReLU applies the rectifier and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReLUOp(x, result))
	}
	return result
}

// Softmax normalizes along dim and records the operation.
func (b *AutodiffBackend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.Softmax(x, dim)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSoftmaxOp(x, result, dim))
	}
	return result
}

// Conv2D performs a 2D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, p tensor.Conv2DParams) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, p)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewConv2DOp(input, kernel, result, p))
	}
	return result
}

// MaxPool2D performs max pooling and records the operation.
func (b *AutodiffBackend[B]) MaxPool2D(input *tensor.RawTensor, p tensor.Pool2DParams) *tensor.RawTensor {
	result := b.inner.MaxPool2D(input, p)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMaxPool2DOp(input, result, p))
	}
	return result
}

// AvgPool2D performs average pooling and records the operation.
func (b *AutodiffBackend[B]) AvgPool2D(input *tensor.RawTensor, p tensor.Pool2DParams) *tensor.RawTensor {
	result := b.inner.AvgPool2D(input, p)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAvgPool2DOp(input, result, p))
	}
	return result
}

// GlobalAvgPool2D averages each plane and records the operation.
func (b *AutodiffBackend[B]) GlobalAvgPool2D(input *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.GlobalAvgPool2D(input)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewGlobalAvgPool2DOp(input, result))
	}
	return result
}

// Subsample2D strides over the spatial axes and records the operation.
func (b *AutodiffBackend[B]) Subsample2D(input *tensor.RawTensor, stride int) *tensor.RawTensor {
	result := b.inner.Subsample2D(input, stride)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSubsample2DOp(input, result, stride))
	}
	return result
}

// Shift2D shifts the spatial content and records the operation.
func (b *AutodiffBackend[B]) Shift2D(input *tensor.RawTensor, dy, dx int) *tensor.RawTensor {
	result := b.inner.Shift2D(input, dy, dx)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewShift2DOp(input, result, dy, dx))
	}
	return result
}

// BatchNorm2D normalizes with batch statistics and records the operation.
func (b *AutodiffBackend[B]) BatchNorm2D(input *tensor.RawTensor, eps float32) *tensor.RawTensor {
	result := b.inner.BatchNorm2D(input, eps)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewBatchNorm2DOp(input, result, eps))
	}
	return result
}

// CrossEntropy computes the mean loss and records the operation.
func (b *AutodiffBackend[B]) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.CrossEntropy(logits, targets)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewCrossEntropyOp(logits, targets, result))
	}
	return result
}

// SumToShape delegates to the wrapped backend.
func (b *AutodiffBackend[B]) SumToShape(grad *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return b.inner.SumToShape(grad, shape)
}

// NarrowBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) NarrowBackward(grad *tensor.RawTensor, inputShape tensor.Shape, dim, start int) *tensor.RawTensor {
	return b.inner.NarrowBackward(grad, inputShape, dim, start)
}

// ReLUBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) ReLUBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.ReLUBackward(input, grad)
}

// SoftmaxBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) SoftmaxBackward(output, grad *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.inner.SoftmaxBackward(output, grad, dim)
}

// Conv2DInputBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, p tensor.Conv2DParams) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, p)
}

// Conv2DKernelBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, p tensor.Conv2DParams) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, p)
}

// MaxPool2DBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) MaxPool2DBackward(input, grad *tensor.RawTensor, p tensor.Pool2DParams) *tensor.RawTensor {
	return b.inner.MaxPool2DBackward(input, grad, p)
}

// AvgPool2DBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) AvgPool2DBackward(input, grad *tensor.RawTensor, p tensor.Pool2DParams) *tensor.RawTensor {
	return b.inner.AvgPool2DBackward(input, grad, p)
}

// GlobalAvgPool2DBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) GlobalAvgPool2DBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.GlobalAvgPool2DBackward(input, grad)
}

// Subsample2DBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) Subsample2DBackward(input, grad *tensor.RawTensor, stride int) *tensor.RawTensor {
	return b.inner.Subsample2DBackward(input, grad, stride)
}

// BatchNorm2DBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) BatchNorm2DBackward(input, grad *tensor.RawTensor, eps float32) *tensor.RawTensor {
	return b.inner.BatchNorm2DBackward(input, grad, eps)
}

// CrossEntropyBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) CrossEntropyBackward(logits, targets, grad *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.CrossEntropyBackward(logits, targets, grad)
}
