package tensor

// Backend defines the interface that compute backends implement.
//
// Forward kernels always allocate their result. The gradient kernels at the
// end of the interface are called by autodiff operations during the backward
// pass; they never record anything themselves.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Scalar operations.
	MulScalar(x *RawTensor, s float32) *RawTensor
	AddScalar(x *RawTensor, s float32) *RawTensor

	// Matrix operations on 2D tensors.
	MatMul(a, b *RawTensor) *RawTensor
	Transpose(x *RawTensor) *RawTensor

	// Shape and manipulation.
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor

	// Activations.
	ReLU(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Convolution and pooling on NCHW tensors.
	Conv2D(input, kernel *RawTensor, p Conv2DParams) *RawTensor
	MaxPool2D(input *RawTensor, p Pool2DParams) *RawTensor
	AvgPool2D(input *RawTensor, p Pool2DParams) *RawTensor
	GlobalAvgPool2D(input *RawTensor) *RawTensor
	Subsample2D(input *RawTensor, stride int) *RawTensor
	Shift2D(input *RawTensor, dy, dx int) *RawTensor

	// Normalization with batch statistics over (N, H, W) per channel.
	BatchNorm2D(input *RawTensor, eps float32) *RawTensor

	// Loss: mean cross-entropy of logits [N, C] against int32 targets [N].
	CrossEntropy(logits, targets *RawTensor) *RawTensor

	// Gradient kernels.
	SumToShape(grad *RawTensor, shape Shape) *RawTensor
	NarrowBackward(grad *RawTensor, inputShape Shape, dim, start int) *RawTensor
	ReLUBackward(input, grad *RawTensor) *RawTensor
	SoftmaxBackward(output, grad *RawTensor, dim int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, p Conv2DParams) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, p Conv2DParams) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, p Pool2DParams) *RawTensor
	AvgPool2DBackward(input, grad *RawTensor, p Pool2DParams) *RawTensor
	GlobalAvgPool2DBackward(input, grad *RawTensor) *RawTensor
	Subsample2DBackward(input, grad *RawTensor, stride int) *RawTensor
	BatchNorm2DBackward(input, grad *RawTensor, eps float32) *RawTensor
	CrossEntropyBackward(logits, targets, grad *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
