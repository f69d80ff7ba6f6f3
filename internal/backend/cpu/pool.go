package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/darts/internal/tensor"
)

// resolvePool validates pooling parameters and returns output dimensions.
func resolvePool(op string, input *tensor.RawTensor, p tensor.Pool2DParams) (n, c, h, w, outH, outW int) {
	requireFloat32(op, input)
	if err := p.Validate(); err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	n, c, h, w = require4D(op, input)
	outH, outW = p.OutputSize(h, w)
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("%s: invalid output size %dx%d for input %dx%d (kernel=%d, stride=%d, padding=%d)",
			op, outH, outW, h, w, p.KernelSize, p.Stride, p.Padding))
	}
	return n, c, h, w, outH, outW
}

// window clips the pooling window for output position o to [0, size).
func window(o, size int, p tensor.Pool2DParams) (lo, hi int) {
	lo = o*p.Stride - p.Padding
	hi = min(lo+p.KernelSize, size)
	return max(lo, 0), hi
}

// MaxPool2D takes the maximum over each window. Padded positions never win.
//
// Input:  [N, C, H, W]
// Output: [N, C, (H+2p-k)/s+1, (W+2p-k)/s+1]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, p tensor.Pool2DParams) *tensor.RawTensor {
	n, c, h, w, outH, outW := resolvePool("maxpool2d", input, p)
	out := cpu.newFloat32("maxpool2d", tensor.Shape{n, c, outH, outW})
	xd, od := input.AsFloat32(), out.AsFloat32()

	forBatch(cpu, n, c, func(b, ch int) {
		src := xd[(b*c+ch)*h*w : (b*c+ch+1)*h*w]
		dst := od[(b*c+ch)*outH*outW : (b*c+ch+1)*outH*outW]
		for oy := 0; oy < outH; oy++ {
			y0, y1 := window(oy, h, p)
			for ox := 0; ox < outW; ox++ {
				x0, x1 := window(ox, w, p)
				best := float32(math.Inf(-1))
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						best = max(best, src[y*w+x])
					}
				}
				dst[oy*outW+ox] = best
			}
		}
	})
	return out
}

// MaxPool2DBackward routes each output gradient to the first maximal input
// position of its window.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, p tensor.Pool2DParams) *tensor.RawTensor {
	n, c, h, w, outH, outW := resolvePool("maxpool2d_backward", input, p)
	requireGradShape("maxpool2d_backward", grad, tensor.Shape{n, c, outH, outW})
	out := cpu.newFloat32("maxpool2d_backward", input.Shape())
	xd, gd, od := input.AsFloat32(), grad.AsFloat32(), out.AsFloat32()

	forBatch(cpu, n, c, func(b, ch int) {
		src := xd[(b*c+ch)*h*w : (b*c+ch+1)*h*w]
		dst := od[(b*c+ch)*h*w : (b*c+ch+1)*h*w]
		g := gd[(b*c+ch)*outH*outW : (b*c+ch+1)*outH*outW]
		for oy := 0; oy < outH; oy++ {
			y0, y1 := window(oy, h, p)
			for ox := 0; ox < outW; ox++ {
				x0, x1 := window(ox, w, p)
				bestIdx := -1
				best := float32(math.Inf(-1))
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						if v := src[y*w+x]; bestIdx < 0 || v > best {
							best, bestIdx = v, y*w+x
						}
					}
				}
				dst[bestIdx] += g[oy*outW+ox]
			}
		}
	})
	return out
}

// AvgPool2D averages each window over in-bounds positions only
// (padding is excluded from the divisor).
func (cpu *CPUBackend) AvgPool2D(input *tensor.RawTensor, p tensor.Pool2DParams) *tensor.RawTensor {
	n, c, h, w, outH, outW := resolvePool("avgpool2d", input, p)
	out := cpu.newFloat32("avgpool2d", tensor.Shape{n, c, outH, outW})
	xd, od := input.AsFloat32(), out.AsFloat32()

	forBatch(cpu, n, c, func(b, ch int) {
		src := xd[(b*c+ch)*h*w : (b*c+ch+1)*h*w]
		dst := od[(b*c+ch)*outH*outW : (b*c+ch+1)*outH*outW]
		for oy := 0; oy < outH; oy++ {
			y0, y1 := window(oy, h, p)
			for ox := 0; ox < outW; ox++ {
				x0, x1 := window(ox, w, p)
				var sum float32
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						sum += src[y*w+x]
					}
				}
				dst[oy*outW+ox] = sum / float32((y1-y0)*(x1-x0))
			}
		}
	})
	return out
}

// AvgPool2DBackward spreads each output gradient evenly over its window.
func (cpu *CPUBackend) AvgPool2DBackward(input, grad *tensor.RawTensor, p tensor.Pool2DParams) *tensor.RawTensor {
	n, c, h, w, outH, outW := resolvePool("avgpool2d_backward", input, p)
	requireGradShape("avgpool2d_backward", grad, tensor.Shape{n, c, outH, outW})
	out := cpu.newFloat32("avgpool2d_backward", input.Shape())
	gd, od := grad.AsFloat32(), out.AsFloat32()

	forBatch(cpu, n, c, func(b, ch int) {
		dst := od[(b*c+ch)*h*w : (b*c+ch+1)*h*w]
		g := gd[(b*c+ch)*outH*outW : (b*c+ch+1)*outH*outW]
		for oy := 0; oy < outH; oy++ {
			y0, y1 := window(oy, h, p)
			for ox := 0; ox < outW; ox++ {
				x0, x1 := window(ox, w, p)
				share := g[oy*outW+ox] / float32((y1-y0)*(x1-x0))
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						dst[y*w+x] += share
					}
				}
			}
		}
	})
	return out
}

// GlobalAvgPool2D averages each channel plane: [N, C, H, W] -> [N, C].
func (cpu *CPUBackend) GlobalAvgPool2D(input *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("global_avgpool2d", input)
	n, c, h, w := require4D("global_avgpool2d", input)
	out := cpu.newFloat32("global_avgpool2d", tensor.Shape{n, c})
	xd, od := input.AsFloat32(), out.AsFloat32()
	plane := h * w

	for i := 0; i < n*c; i++ {
		var sum float32
		for _, v := range xd[i*plane : (i+1)*plane] {
			sum += v
		}
		od[i] = sum / float32(plane)
	}
	return out
}

// GlobalAvgPool2DBackward spreads grad [N, C] uniformly over each plane.
func (cpu *CPUBackend) GlobalAvgPool2DBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	n, c, h, w := require4D("global_avgpool2d_backward", input)
	requireGradShape("global_avgpool2d_backward", grad, tensor.Shape{n, c})
	out := cpu.newFloat32("global_avgpool2d_backward", input.Shape())
	gd, od := grad.AsFloat32(), out.AsFloat32()
	plane := h * w

	for i := 0; i < n*c; i++ {
		share := gd[i] / float32(plane)
		dst := od[i*plane : (i+1)*plane]
		for j := range dst {
			dst[j] = share
		}
	}
	return out
}

// Subsample2D keeps every stride-th row and column starting at 0:
// x[:, :, ::stride, ::stride]. Output extent is ceil(H/stride) × ceil(W/stride).
func (cpu *CPUBackend) Subsample2D(input *tensor.RawTensor, stride int) *tensor.RawTensor {
	requireFloat32("subsample2d", input)
	if stride <= 0 {
		panic(fmt.Sprintf("subsample2d: invalid stride %d", stride))
	}
	n, c, h, w := require4D("subsample2d", input)
	outH, outW := (h-1)/stride+1, (w-1)/stride+1
	out := cpu.newFloat32("subsample2d", tensor.Shape{n, c, outH, outW})
	xd, od := input.AsFloat32(), out.AsFloat32()

	for i := 0; i < n*c; i++ {
		src := xd[i*h*w : (i+1)*h*w]
		dst := od[i*outH*outW : (i+1)*outH*outW]
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				dst[oy*outW+ox] = src[oy*stride*w+ox*stride]
			}
		}
	}
	return out
}

// Subsample2DBackward scatters grad back to the sampled positions.
func (cpu *CPUBackend) Subsample2DBackward(input, grad *tensor.RawTensor, stride int) *tensor.RawTensor {
	n, c, h, w := require4D("subsample2d_backward", input)
	outH, outW := (h-1)/stride+1, (w-1)/stride+1
	requireGradShape("subsample2d_backward", grad, tensor.Shape{n, c, outH, outW})
	out := cpu.newFloat32("subsample2d_backward", input.Shape())
	gd, od := grad.AsFloat32(), out.AsFloat32()

	for i := 0; i < n*c; i++ {
		src := gd[i*outH*outW : (i+1)*outH*outW]
		dst := od[i*h*w : (i+1)*h*w]
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				dst[oy*stride*w+ox*stride] = src[oy*outW+ox]
			}
		}
	}
	return out
}

// Shift2D moves content by (dy, dx): out[y][x] = in[y+dy][x+dx], zero where
// the source falls outside the plane. The shape is preserved.
//
// Shift2D(g, -dy, -dx) is the exact gradient of Shift2D(x, dy, dx).
func (cpu *CPUBackend) Shift2D(input *tensor.RawTensor, dy, dx int) *tensor.RawTensor {
	requireFloat32("shift2d", input)
	n, c, h, w := require4D("shift2d", input)
	out := cpu.newFloat32("shift2d", input.Shape())
	xd, od := input.AsFloat32(), out.AsFloat32()

	for i := 0; i < n*c; i++ {
		src := xd[i*h*w : (i+1)*h*w]
		dst := od[i*h*w : (i+1)*h*w]
		for y := 0; y < h; y++ {
			sy := y + dy
			if sy < 0 || sy >= h {
				continue
			}
			for x := 0; x < w; x++ {
				sx := x + dx
				if sx < 0 || sx >= w {
					continue
				}
				dst[y*w+x] = src[sy*w+sx]
			}
		}
	}
	return out
}
