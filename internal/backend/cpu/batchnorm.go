package cpu

import (
	"math"

	"github.com/born-ml/darts/internal/tensor"
)

// channelStats returns per-channel mean and biased variance over (N, H, W).
func channelStats(xd []float32, n, c, plane int) (mean, variance []float64) {
	mean = make([]float64, c)
	variance = make([]float64, c)
	count := float64(n * plane)

	for ch := 0; ch < c; ch++ {
		var sum float64
		for b := 0; b < n; b++ {
			for _, v := range xd[(b*c+ch)*plane : (b*c+ch+1)*plane] {
				sum += float64(v)
			}
		}
		mean[ch] = sum / count

		var sq float64
		for b := 0; b < n; b++ {
			for _, v := range xd[(b*c+ch)*plane : (b*c+ch+1)*plane] {
				d := float64(v) - mean[ch]
				sq += d * d
			}
		}
		variance[ch] = sq / count
	}
	return mean, variance
}

// BatchNorm2D normalizes each channel with batch statistics:
// y = (x - mean_c) / sqrt(var_c + eps). Scale and shift are applied by the
// caller.
func (cpu *CPUBackend) BatchNorm2D(input *tensor.RawTensor, eps float32) *tensor.RawTensor {
	requireFloat32("batchnorm2d", input)
	n, c, h, w := require4D("batchnorm2d", input)
	plane := h * w
	out := cpu.newFloat32("batchnorm2d", input.Shape())
	xd, od := input.AsFloat32(), out.AsFloat32()

	mean, variance := channelStats(xd, n, c, plane)
	forBatch(cpu, n, c, func(b, ch int) {
		inv := 1 / math.Sqrt(variance[ch]+float64(eps))
		src := xd[(b*c+ch)*plane : (b*c+ch+1)*plane]
		dst := od[(b*c+ch)*plane : (b*c+ch+1)*plane]
		for i, v := range src {
			dst[i] = float32((float64(v) - mean[ch]) * inv)
		}
	})
	return out
}

// BatchNorm2DBackward computes ∂L/∂x through batch statistics:
//
//	dx = inv_std/m * (m*g - Σg - x̂*Σ(g*x̂))
//
// where m = N*H*W and sums run over (N, H, W) per channel.
func (cpu *CPUBackend) BatchNorm2DBackward(input, grad *tensor.RawTensor, eps float32) *tensor.RawTensor {
	requireFloat32("batchnorm2d_backward", input)
	n, c, h, w := require4D("batchnorm2d_backward", input)
	requireGradShape("batchnorm2d_backward", grad, input.Shape())
	plane := h * w
	m := float64(n * plane)
	out := cpu.newFloat32("batchnorm2d_backward", input.Shape())
	xd, gd, od := input.AsFloat32(), grad.AsFloat32(), out.AsFloat32()

	mean, variance := channelStats(xd, n, c, plane)
	forBatch(cpu, 1, c, func(_, ch int) {
		inv := 1 / math.Sqrt(variance[ch]+float64(eps))
		var sumG, sumGX float64
		for b := 0; b < n; b++ {
			off := (b*c + ch) * plane
			for i := 0; i < plane; i++ {
				xhat := (float64(xd[off+i]) - mean[ch]) * inv
				sumG += float64(gd[off+i])
				sumGX += float64(gd[off+i]) * xhat
			}
		}
		for b := 0; b < n; b++ {
			off := (b*c + ch) * plane
			for i := 0; i < plane; i++ {
				xhat := (float64(xd[off+i]) - mean[ch]) * inv
				od[off+i] = float32(inv / m * (m*float64(gd[off+i]) - sumG - xhat*sumGX))
			}
		}
	})
	return out
}
