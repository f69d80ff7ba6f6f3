package nn

import (
	"fmt"

	"github.com/born-ml/darts/internal/tensor"
)

// MaxPool2D applies max pooling over square windows.
type MaxPool2D[B tensor.Backend] struct {
	params  tensor.Pool2DParams
	backend B
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *MaxPool2D[B] {
	p := tensor.Pool2DParams{KernelSize: kernelSize, Stride: stride, Padding: padding}
	if err := p.Validate(); err != nil {
		panic(fmt.Sprintf("maxpool2d: %v", err))
	}
	return &MaxPool2D[B]{params: p, backend: backend}
}

// Forward applies max pooling.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32](m.backend.MaxPool2D(input.Raw(), m.params), m.backend)
}

// Parameters returns nil.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a short description.
func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel=%d, stride=%d, padding=%d)", m.params.KernelSize, m.params.Stride, m.params.Padding)
}

// AvgPool2D applies average pooling; padded positions are not counted.
type AvgPool2D[B tensor.Backend] struct {
	params  tensor.Pool2DParams
	backend B
}

// NewAvgPool2D creates an average pooling layer.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *AvgPool2D[B] {
	p := tensor.Pool2DParams{KernelSize: kernelSize, Stride: stride, Padding: padding}
	if err := p.Validate(); err != nil {
		panic(fmt.Sprintf("avgpool2d: %v", err))
	}
	return &AvgPool2D[B]{params: p, backend: backend}
}

// Forward applies average pooling.
func (a *AvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32](a.backend.AvgPool2D(input.Raw(), a.params), a.backend)
}

// Parameters returns nil.
func (a *AvgPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a short description.
func (a *AvgPool2D[B]) String() string {
	return fmt.Sprintf("AvgPool2D(kernel=%d, stride=%d, padding=%d)", a.params.KernelSize, a.params.Stride, a.params.Padding)
}

// GlobalAvgPool2D averages each channel plane: [N, C, H, W] -> [N, C].
type GlobalAvgPool2D[B tensor.Backend] struct {
	backend B
}

// NewGlobalAvgPool2D creates a global average pooling layer.
func NewGlobalAvgPool2D[B tensor.Backend](backend B) *GlobalAvgPool2D[B] {
	return &GlobalAvgPool2D[B]{backend: backend}
}

// Forward averages over height and width.
func (g *GlobalAvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32](g.backend.GlobalAvgPool2D(input.Raw()), g.backend)
}

// Parameters returns nil.
func (g *GlobalAvgPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}
