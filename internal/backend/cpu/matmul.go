package cpu

import (
	"fmt"

	"github.com/born-ml/darts/internal/tensor"
)

// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("matmul", a, b)
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D operands, got %v and %v", as, bs))
	}
	if as[1] != bs[0] {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v @ %v", as, bs))
	}

	m, k, n := as[0], as[1], bs[1]
	out := cpu.newFloat32("matmul", tensor.Shape{m, n})
	ad, bd, od := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	for i := 0; i < m; i++ {
		row := od[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := ad[i*k+p]
			if av == 0 {
				continue
			}
			bRow := bd[p*n : (p+1)*n]
			for j := range row {
				row[j] += av * bRow[j]
			}
		}
	}
	return out
}

// Transpose swaps the axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("transpose", x)
	s := x.Shape()
	if len(s) != 2 {
		panic(fmt.Sprintf("transpose: expected 2D tensor, got %v", s))
	}

	rows, cols := s[0], s[1]
	out := cpu.newFloat32("transpose", tensor.Shape{cols, rows})
	xd, od := x.AsFloat32(), out.AsFloat32()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			od[j*rows+i] = xd[i*cols+j]
		}
	}
	return out
}
