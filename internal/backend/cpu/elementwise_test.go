package cpu

import (
	"testing"

	"github.com/born-ml/darts/internal/tensor"
	"github.com/stretchr/testify/assert"
)

func TestBinary_Broadcast(t *testing.T) {
	backend := New()
	a := rawFrom(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := rawFrom(t, []float32{10, 20, 30}, tensor.Shape{3})

	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, backend.Add(a, b).AsFloat32())
	assert.Equal(t, []float32{-9, -18, -27, -6, -15, -24}, backend.Sub(a, b).AsFloat32())

	col := rawFrom(t, []float32{2, 3}, tensor.Shape{2, 1})
	assert.Equal(t, []float32{2, 4, 6, 12, 15, 18}, backend.Mul(a, col).AsFloat32())
}

func TestBinary_PerChannelBroadcast(t *testing.T) {
	backend := New()
	x := rawFrom(t, []float32{1, 1, 1, 1, 1, 1, 1, 1}, tensor.Shape{1, 2, 2, 2})
	scale := rawFrom(t, []float32{2, 3}, tensor.Shape{1, 2, 1, 1})

	assert.Equal(t, []float32{2, 2, 2, 2, 3, 3, 3, 3}, backend.Mul(x, scale).AsFloat32())
}

func TestSumToShape(t *testing.T) {
	backend := New()
	grad := rawFrom(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	assert.Equal(t, []float32{5, 7, 9}, backend.SumToShape(grad, tensor.Shape{3}).AsFloat32())
	assert.Equal(t, []float32{6, 15}, backend.SumToShape(grad, tensor.Shape{2, 1}).AsFloat32())
	assert.Same(t, grad, backend.SumToShape(grad, tensor.Shape{2, 3}))
}

func TestCatNarrow_RoundTrip(t *testing.T) {
	backend := New()
	a := randRaw(tensor.Shape{2, 3, 2, 2}, 1)
	b := randRaw(tensor.Shape{2, 5, 2, 2}, 2)

	joined := backend.Cat([]*tensor.RawTensor{a, b}, 1)
	assert.Equal(t, tensor.Shape{2, 8, 2, 2}, joined.Shape())
	assert.Equal(t, a.AsFloat32(), backend.Narrow(joined, 1, 0, 3).AsFloat32())
	assert.Equal(t, b.AsFloat32(), backend.Narrow(joined, 1, 3, 5).AsFloat32())

	back := backend.NarrowBackward(backend.Narrow(joined, 1, 3, 5), joined.Shape(), 1, 3)
	assert.Equal(t, float32(0), back.AsFloat32()[0])
	assert.Equal(t, backend.Narrow(back, 1, 3, 5).AsFloat32(), b.AsFloat32())
}

func TestReshape_InfersDimension(t *testing.T) {
	backend := New()
	x := randRaw(tensor.Shape{2, 3, 4}, 1)

	y := backend.Reshape(x, tensor.Shape{2, -1})
	assert.Equal(t, tensor.Shape{2, 12}, y.Shape())
	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{5, -1}) })
}

func TestMatMulTranspose(t *testing.T) {
	backend := New()
	a := rawFrom(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := rawFrom(t, []float32{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2})

	assert.Equal(t, []float32{4, 5, 10, 11}, backend.MatMul(a, b).AsFloat32())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, backend.Transpose(a).AsFloat32())
}

func TestSoftmax_RowsSumToOne(t *testing.T) {
	backend := New()
	x := randRaw(tensor.Shape{3, 8}, 4)

	out := backend.Softmax(x, -1).AsFloat32()
	for r := 0; r < 3; r++ {
		var s float32
		for _, v := range out[r*8 : (r+1)*8] {
			s += v
		}
		assert.InDelta(t, 1.0, s, 1e-5)
	}

	g := randRaw(x.Shape(), 5)
	checkGradient(t, x, g, func(x *tensor.RawTensor) *tensor.RawTensor {
		return backend.Softmax(x, -1)
	}, backend.SoftmaxBackward(backend.Softmax(x, -1), g, -1), 1e-2)
}

func TestReLU_Backward(t *testing.T) {
	backend := New()
	x := rawFrom(t, []float32{-1, 0.5, 2, -3}, tensor.Shape{4})
	g := rawFrom(t, []float32{1, 1, 1, 1}, tensor.Shape{4})

	assert.Equal(t, []float32{0, 0.5, 2, 0}, backend.ReLU(x).AsFloat32())
	assert.Equal(t, []float32{0, 1, 1, 0}, backend.ReLUBackward(x, g).AsFloat32())
}
