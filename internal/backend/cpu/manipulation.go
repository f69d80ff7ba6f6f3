package cpu

import (
	"fmt"

	"github.com/born-ml/darts/internal/tensor"
)

// Reshape returns a view of x with a new shape. One dimension may be -1.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	resolved := shape.Clone()
	infer := -1
	known := 1
	for i, d := range resolved {
		if d == -1 {
			if infer >= 0 {
				panic(fmt.Sprintf("reshape: more than one -1 in %v", shape))
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || x.NumElements()%known != 0 {
			panic(fmt.Sprintf("reshape: cannot reshape %v to %v", x.Shape(), shape))
		}
		resolved[infer] = x.NumElements() / known
	}
	if resolved.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v", x.Shape(), x.NumElements(), shape))
	}
	return x.View(resolved)
}

// Cat concatenates tensors along dim. All other dimensions must match.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	requireFloat32("cat", tensors...)

	first := tensors[0].Shape()
	dim = tensor.NormalizeDim(dim, len(first))

	outShape := first.Clone()
	outShape[dim] = 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("cat: rank mismatch %v vs %v", first, s))
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				panic(fmt.Sprintf("cat: shape mismatch %v vs %v at dimension %d", first, s, d))
			}
		}
		outShape[dim] += s[dim]
	}

	out := cpu.newFloat32("cat", outShape)
	od := out.AsFloat32()
	outer, inner := splitAt(outShape, dim)
	outRow := outShape[dim] * inner

	pos := 0
	for _, t := range tensors {
		td := t.AsFloat32()
		span := t.Shape()[dim] * inner
		for o := 0; o < outer; o++ {
			copy(od[o*outRow+pos:o*outRow+pos+span], td[o*span:(o+1)*span])
		}
		pos += span
	}
	return out
}

// Narrow copies the slice [start, start+length) of x along dim.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	requireFloat32("narrow", x)
	s := x.Shape()
	dim = tensor.NormalizeDim(dim, len(s))
	if start < 0 || length <= 0 || start+length > s[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dimension %d of %v", start, start+length, dim, s))
	}

	outShape := s.Clone()
	outShape[dim] = length
	out := cpu.newFloat32("narrow", outShape)

	outer, inner := splitAt(s, dim)
	xd, od := x.AsFloat32(), out.AsFloat32()
	inRow, outRow := s[dim]*inner, length*inner
	for o := 0; o < outer; o++ {
		copy(od[o*outRow:(o+1)*outRow], xd[o*inRow+start*inner:o*inRow+start*inner+outRow])
	}
	return out
}

// NarrowBackward scatters grad into a zero tensor of inputShape at start along dim.
func (cpu *CPUBackend) NarrowBackward(grad *tensor.RawTensor, inputShape tensor.Shape, dim, start int) *tensor.RawTensor {
	requireFloat32("narrow_backward", grad)
	dim = tensor.NormalizeDim(dim, len(inputShape))
	length := grad.Shape()[dim]

	out := cpu.newFloat32("narrow_backward", inputShape)
	outer, inner := splitAt(inputShape, dim)
	gd, od := grad.AsFloat32(), out.AsFloat32()
	inRow, gRow := inputShape[dim]*inner, length*inner
	for o := 0; o < outer; o++ {
		copy(od[o*inRow+start*inner:o*inRow+start*inner+gRow], gd[o*gRow:(o+1)*gRow])
	}
	return out
}

// Sum reduces all elements to shape [1].
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("sum", x)
	out := cpu.newFloat32("sum", tensor.Shape{1})
	var acc float64
	for _, v := range x.AsFloat32() {
		acc += float64(v)
	}
	out.AsFloat32()[0] = float32(acc)
	return out
}

// splitAt returns the product of dimensions before dim and after dim.
func splitAt(s tensor.Shape, dim int) (outer, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= s[i]
	}
	for i := dim + 1; i < len(s); i++ {
		inner *= s[i]
	}
	return outer, inner
}
