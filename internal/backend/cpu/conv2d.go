package cpu

import (
	"fmt"

	"github.com/born-ml/darts/internal/tensor"
)

// convGeometry holds the resolved dimensions of one convolution call.
type convGeometry struct {
	n, cIn, h, w      int
	cOut, kh, kw      int
	outH, outW        int
	cInPerG, cOutPerG int
	p                 tensor.Conv2DParams
}

// resolveConv validates input/kernel shapes against p.
//
// Input:  [N, C_in, H, W]
// Kernel: [C_out, C_in/groups, K_h, K_w]
// Output: [N, C_out, H_out, W_out] where
//
//	H_out = (H + 2*pad_h - dilation*(K_h-1) - 1) / stride_h + 1
func resolveConv(op string, input, kernel *tensor.RawTensor, p tensor.Conv2DParams) convGeometry {
	requireFloat32(op, input, kernel)
	if err := p.Validate(); err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	n, cIn, h, w := require4D(op, input)
	ks := kernel.Shape()
	if len(ks) != 4 {
		panic(fmt.Sprintf("%s: expected 4D kernel [C_out,C_in/g,K_h,K_w], got %v", op, ks))
	}
	cOut, kh, kw := ks[0], ks[2], ks[3]

	if cIn%p.Groups != 0 || cOut%p.Groups != 0 {
		panic(fmt.Sprintf("%s: channels in=%d out=%d not divisible by groups=%d", op, cIn, cOut, p.Groups))
	}
	if ks[1] != cIn/p.Groups {
		panic(fmt.Sprintf("%s: input channels %d do not match kernel %v (groups=%d)", op, cIn, ks, p.Groups))
	}

	outH, outW := p.OutputSize(h, w, kh, kw)
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("%s: invalid output size %dx%d for input %dx%d and kernel %dx%d",
			op, outH, outW, h, w, kh, kw))
	}

	return convGeometry{
		n: n, cIn: cIn, h: h, w: w,
		cOut: cOut, kh: kh, kw: kw,
		outH: outH, outW: outW,
		cInPerG:  cIn / p.Groups,
		cOutPerG: cOut / p.Groups,
		p:        p,
	}
}

// Conv2D performs a grouped, dilated 2D convolution without bias.
//
// Depthwise convolution is expressed with groups == C_in == C_out.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, p tensor.Conv2DParams) *tensor.RawTensor {
	g := resolveConv("conv2d", input, kernel, p)
	out := cpu.newFloat32("conv2d", tensor.Shape{g.n, g.cOut, g.outH, g.outW})

	xd, kd, od := input.AsFloat32(), kernel.AsFloat32(), out.AsFloat32()
	plane := g.outH * g.outW

	forBatch(cpu, g.n, g.cOut, func(n, co int) {
		dst := od[(n*g.cOut+co)*plane : (n*g.cOut+co+1)*plane]
		ciStart := (co / g.cOutPerG) * g.cInPerG

		for cl := 0; cl < g.cInPerG; cl++ {
			src := xd[(n*g.cIn+ciStart+cl)*g.h*g.w : (n*g.cIn+ciStart+cl+1)*g.h*g.w]
			for ky := 0; ky < g.kh; ky++ {
				for kx := 0; kx < g.kw; kx++ {
					wv := kd[((co*g.cInPerG+cl)*g.kh+ky)*g.kw+kx]
					if wv == 0 {
						continue
					}
					for oy := 0; oy < g.outH; oy++ {
						iy := oy*p.StrideH - p.PadH + ky*p.Dilation
						if iy < 0 || iy >= g.h {
							continue
						}
						row := src[iy*g.w : (iy+1)*g.w]
						dRow := dst[oy*g.outW : (oy+1)*g.outW]
						for ox := 0; ox < g.outW; ox++ {
							ix := ox*p.StrideW - p.PadW + kx*p.Dilation
							if ix < 0 || ix >= g.w {
								continue
							}
							dRow[ox] += wv * row[ix]
						}
					}
				}
			}
		}
	})

	return out
}

// Conv2DInputBackward computes ∂L/∂input [N, C_in, H, W].
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, p tensor.Conv2DParams) *tensor.RawTensor {
	g := resolveConv("conv2d_input_backward", input, kernel, p)
	requireGradShape("conv2d_input_backward", grad, tensor.Shape{g.n, g.cOut, g.outH, g.outW})

	out := cpu.newFloat32("conv2d_input_backward", input.Shape())
	kd, gd, od := kernel.AsFloat32(), grad.AsFloat32(), out.AsFloat32()
	plane := g.outH * g.outW

	forBatch(cpu, g.n, g.cIn, func(n, ci int) {
		dst := od[(n*g.cIn+ci)*g.h*g.w : (n*g.cIn+ci+1)*g.h*g.w]
		group := ci / g.cInPerG
		cl := ci % g.cInPerG

		for co := group * g.cOutPerG; co < (group+1)*g.cOutPerG; co++ {
			src := gd[(n*g.cOut+co)*plane : (n*g.cOut+co+1)*plane]
			for ky := 0; ky < g.kh; ky++ {
				for kx := 0; kx < g.kw; kx++ {
					wv := kd[((co*g.cInPerG+cl)*g.kh+ky)*g.kw+kx]
					if wv == 0 {
						continue
					}
					for oy := 0; oy < g.outH; oy++ {
						iy := oy*p.StrideH - p.PadH + ky*p.Dilation
						if iy < 0 || iy >= g.h {
							continue
						}
						for ox := 0; ox < g.outW; ox++ {
							ix := ox*p.StrideW - p.PadW + kx*p.Dilation
							if ix < 0 || ix >= g.w {
								continue
							}
							dst[iy*g.w+ix] += wv * src[oy*g.outW+ox]
						}
					}
				}
			}
		}
	})

	return out
}

// Conv2DKernelBackward computes ∂L/∂kernel [C_out, C_in/groups, K_h, K_w].
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, p tensor.Conv2DParams) *tensor.RawTensor {
	g := resolveConv("conv2d_kernel_backward", input, kernel, p)
	requireGradShape("conv2d_kernel_backward", grad, tensor.Shape{g.n, g.cOut, g.outH, g.outW})

	out := cpu.newFloat32("conv2d_kernel_backward", kernel.Shape())
	xd, gd, od := input.AsFloat32(), grad.AsFloat32(), out.AsFloat32()
	plane := g.outH * g.outW

	forBatch(cpu, 1, g.cOut, func(_, co int) {
		ciStart := (co / g.cOutPerG) * g.cInPerG
		for n := 0; n < g.n; n++ {
			src := gd[(n*g.cOut+co)*plane : (n*g.cOut+co+1)*plane]
			for cl := 0; cl < g.cInPerG; cl++ {
				xs := xd[(n*g.cIn+ciStart+cl)*g.h*g.w : (n*g.cIn+ciStart+cl+1)*g.h*g.w]
				for ky := 0; ky < g.kh; ky++ {
					for kx := 0; kx < g.kw; kx++ {
						var acc float32
						for oy := 0; oy < g.outH; oy++ {
							iy := oy*p.StrideH - p.PadH + ky*p.Dilation
							if iy < 0 || iy >= g.h {
								continue
							}
							for ox := 0; ox < g.outW; ox++ {
								ix := ox*p.StrideW - p.PadW + kx*p.Dilation
								if ix < 0 || ix >= g.w {
									continue
								}
								acc += xs[iy*g.w+ix] * src[oy*g.outW+ox]
							}
						}
						od[((co*g.cInPerG+cl)*g.kh+ky)*g.kw+kx] += acc
					}
				}
			}
		}
	})

	return out
}

// requireGradShape panics when an incoming gradient has an unexpected shape.
func requireGradShape(op string, grad *tensor.RawTensor, want tensor.Shape) {
	requireFloat32(op, grad)
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("%s: gradient shape %v, expected %v", op, grad.Shape(), want))
	}
}
