package cpu

import (
	"fmt"

	"github.com/born-ml/darts/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	requireFloat32("mul_scalar", x)
	out := cpu.newFloat32("mul_scalar", x.Shape())
	od := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		od[i] = v * s
	}
	return out
}

// AddScalar adds s to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	requireFloat32("add_scalar", x)
	out := cpu.newFloat32("add_scalar", x.Shape())
	od := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		od[i] = v + s
	}
	return out
}

// binary applies f element-wise over the broadcast of a and b.
func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(op, a, b)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	out := cpu.newFloat32(op, outShape)
	ad, bd, od := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	if !needsBroadcast {
		for i := range od {
			od[i] = f(ad[i], bd[i])
		}
		return out
	}

	as := broadcastStrides(a.Shape(), outShape)
	bs := broadcastStrides(b.Shape(), outShape)
	walkBroadcast(outShape, as, bs, func(i, aOff, bOff int) {
		od[i] = f(ad[aOff], bd[bOff])
	})
	return out
}

// SumToShape reduces a broadcast gradient back to shape.
//
// grad must have the broadcast shape of some tensor of the given shape;
// dimensions that were stretched are summed.
func (cpu *CPUBackend) SumToShape(grad *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if grad.Shape().Equal(shape) {
		return grad
	}
	requireFloat32("sum_to_shape", grad)

	out := cpu.newFloat32("sum_to_shape", shape)
	od, gd := out.AsFloat32(), grad.AsFloat32()
	ts := broadcastStrides(shape, grad.Shape())
	walkBroadcast(grad.Shape(), ts, ts, func(i, off, _ int) {
		od[off] += gd[i]
	})
	return out
}

// broadcastStrides returns strides of shape aligned to outShape, with zero
// stride on broadcast dimensions.
func broadcastStrides(shape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	own := shape.ComputeStrides()
	lead := len(outShape) - len(shape)
	for i := range shape {
		if shape[i] != 1 {
			strides[lead+i] = own[i]
		}
	}
	return strides
}

// walkBroadcast visits every flat index of outShape with matching offsets
// into two operands described by their broadcast strides.
func walkBroadcast(outShape tensor.Shape, as, bs []int, visit func(i, aOff, bOff int)) {
	rank := len(outShape)
	idx := make([]int, rank)
	aOff, bOff := 0, 0
	n := outShape.NumElements()

	for i := 0; i < n; i++ {
		visit(i, aOff, bOff)
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			aOff += as[d]
			bOff += bs[d]
			if idx[d] < outShape[d] {
				break
			}
			aOff -= as[d] * outShape[d]
			bOff -= bs[d] * outShape[d]
			idx[d] = 0
		}
	}
}
