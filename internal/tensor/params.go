package tensor

import "fmt"

// Conv2DParams describes a 2D convolution.
//
// Kernel layout is [out_channels, in_channels/groups, kernel_h, kernel_w].
// Dilation applies to both spatial axes.
type Conv2DParams struct {
	StrideH, StrideW int
	PadH, PadW       int
	Dilation         int
	Groups           int
}

// ConvParams returns square-stride, square-padding params with no dilation and a single group.
func ConvParams(stride, padding int) Conv2DParams {
	return Conv2DParams{
		StrideH:  stride,
		StrideW:  stride,
		PadH:     padding,
		PadW:     padding,
		Dilation: 1,
		Groups:   1,
	}
}

// Validate checks the parameters for positive strides, dilation and groups.
func (p Conv2DParams) Validate() error {
	if p.StrideH <= 0 || p.StrideW <= 0 {
		return fmt.Errorf("invalid stride (%d, %d)", p.StrideH, p.StrideW)
	}
	if p.PadH < 0 || p.PadW < 0 {
		return fmt.Errorf("invalid padding (%d, %d)", p.PadH, p.PadW)
	}
	if p.Dilation <= 0 {
		return fmt.Errorf("invalid dilation %d", p.Dilation)
	}
	if p.Groups <= 0 {
		return fmt.Errorf("invalid groups %d", p.Groups)
	}
	return nil
}

// OutputSize computes [out_h, out_w] for an input of h×w and a kh×kw kernel.
func (p Conv2DParams) OutputSize(h, w, kh, kw int) (int, int) {
	effH := p.Dilation*(kh-1) + 1
	effW := p.Dilation*(kw-1) + 1
	outH := (h+2*p.PadH-effH)/p.StrideH + 1
	outW := (w+2*p.PadW-effW)/p.StrideW + 1
	return outH, outW
}

// Pool2DParams describes a square 2D pooling window.
//
// Padded positions never win a max and, for average pooling, are excluded
// from the divisor.
type Pool2DParams struct {
	KernelSize int
	Stride     int
	Padding    int
}

// Validate checks the pooling parameters.
func (p Pool2DParams) Validate() error {
	if p.KernelSize <= 0 {
		return fmt.Errorf("invalid kernel size %d", p.KernelSize)
	}
	if p.Stride <= 0 {
		return fmt.Errorf("invalid stride %d", p.Stride)
	}
	if p.Padding < 0 || 2*p.Padding > p.KernelSize {
		return fmt.Errorf("invalid padding %d for kernel %d", p.Padding, p.KernelSize)
	}
	return nil
}

// OutputSize computes [out_h, out_w] for an h×w input.
func (p Pool2DParams) OutputSize(h, w int) (int, int) {
	outH := (h+2*p.Padding-p.KernelSize)/p.Stride + 1
	outW := (w+2*p.Padding-p.KernelSize)/p.Stride + 1
	return outH, outW
}
