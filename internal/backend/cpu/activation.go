package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/darts/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("relu", x)
	out := cpu.newFloat32("relu", x.Shape())
	od := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		if v > 0 {
			od[i] = v
		}
	}
	return out
}

// ReLUBackward passes grad where input was positive.
func (cpu *CPUBackend) ReLUBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("relu_backward", input, grad)
	out := cpu.newFloat32("relu_backward", input.Shape())
	od, gd := out.AsFloat32(), grad.AsFloat32()
	for i, v := range input.AsFloat32() {
		if v > 0 {
			od[i] = gd[i]
		}
	}
	return out
}

// Softmax normalizes x along dim using the max-shift for stability.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax", x)
	s := x.Shape()
	if len(s) == 0 {
		panic("softmax: scalar input")
	}
	dim = tensor.NormalizeDim(dim, len(s))

	out := cpu.newFloat32("softmax", s)
	xd, od := x.AsFloat32(), out.AsFloat32()
	outer, inner := splitAt(s, dim)
	n := s[dim]

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*n*inner + in
			maxVal := float32(math.Inf(-1))
			for k := 0; k < n; k++ {
				maxVal = max(maxVal, xd[base+k*inner])
			}
			var sum float64
			for k := 0; k < n; k++ {
				e := math.Exp(float64(xd[base+k*inner] - maxVal))
				od[base+k*inner] = float32(e)
				sum += e
			}
			for k := 0; k < n; k++ {
				od[base+k*inner] = float32(float64(od[base+k*inner]) / sum)
			}
		}
	}
	return out
}

// SoftmaxBackward computes dL/dx = y * (g - Σ g*y) along dim.
func (cpu *CPUBackend) SoftmaxBackward(output, grad *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax_backward", output, grad)
	s := output.Shape()
	if !s.Equal(grad.Shape()) {
		panic(fmt.Sprintf("softmax_backward: shape mismatch %v vs %v", s, grad.Shape()))
	}
	dim = tensor.NormalizeDim(dim, len(s))

	out := cpu.newFloat32("softmax_backward", s)
	yd, gd, od := output.AsFloat32(), grad.AsFloat32(), out.AsFloat32()
	outer, inner := splitAt(s, dim)
	n := s[dim]

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*n*inner + in
			var dot float32
			for k := 0; k < n; k++ {
				dot += gd[base+k*inner] * yd[base+k*inner]
			}
			for k := 0; k < n; k++ {
				i := base + k*inner
				od[i] = yd[i] * (gd[i] - dot)
			}
		}
	}
	return out
}
