package nas

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// Zero outputs zeros with the spatial extent of a stride-s operation.
type Zero[B tensor.Backend] struct {
	stride  int
	backend B
}

// NewZero creates the zero operation.
func NewZero[B tensor.Backend](stride int, backend B) *Zero[B] {
	return &Zero[B]{stride: stride, backend: backend}
}

// Forward returns x*0, subsampled at the stride first when stride > 1.
func (z *Zero[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if z.stride == 1 {
		return input.MulScalar(0)
	}
	sub := tensor.New[float32](z.backend.Subsample2D(input.Raw(), z.stride), z.backend)
	return sub.MulScalar(0)
}

// Parameters returns nil.
func (z *Zero[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// Identity passes its input through.
type Identity[B tensor.Backend] struct{}

// NewIdentity creates the identity operation.
func NewIdentity[B tensor.Backend]() *Identity[B] {
	return &Identity[B]{}
}

// Forward returns input unchanged.
func (i *Identity[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input
}

// Parameters returns nil.
func (i *Identity[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// block runs a fixed layer stack and exposes it as a single child.
type block[B tensor.Backend] struct {
	body *nn.Sequential[B]
}

func (b *block[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return b.body.Forward(input)
}

func (b *block[B]) Parameters() []*nn.Parameter[B] {
	return b.body.Parameters()
}

func (b *block[B]) Children() []nn.Module[B] {
	return []nn.Module[B]{b.body}
}

// ReLUConvBN is relu → conv → batch norm.
type ReLUConvBN[B tensor.Backend] struct {
	block[B]
}

// NewReLUConvBN creates a ReLUConvBN with a square kernel.
func NewReLUConvBN[B tensor.Backend](cIn, cOut, kernel, stride, padding int, affine bool, rng *rand.Rand, backend B) *ReLUConvBN[B] {
	return &ReLUConvBN[B]{block[B]{nn.NewSequential[B](
		nn.NewReLU[B](),
		nn.NewConv2D(nn.Conv2DConfig{
			InChannels: cIn, OutChannels: cOut,
			KernelH: kernel, StrideH: stride, PadH: padding, PadW: padding,
			Rand: rng,
		}, backend),
		nn.NewBatchNorm2D(cOut, affine, backend),
	)}}
}

// SepConv is two depthwise-separable blocks; only the first is strided.
//
//	relu → depthwise(k, stride) → pointwise → bn → relu → depthwise(k) → pointwise → bn
type SepConv[B tensor.Backend] struct {
	block[B]
}

// NewSepConv creates a separable convolution.
func NewSepConv[B tensor.Backend](cIn, cOut, kernel, stride, padding int, affine bool, rng *rand.Rand, backend B) *SepConv[B] {
	return &SepConv[B]{block[B]{nn.NewSequential[B](
		nn.NewReLU[B](),
		depthwise(cIn, kernel, stride, padding, 1, rng, backend),
		pointwise(cIn, cIn, rng, backend),
		nn.NewBatchNorm2D(cIn, affine, backend),
		nn.NewReLU[B](),
		depthwise(cIn, kernel, 1, padding, 1, rng, backend),
		pointwise(cIn, cOut, rng, backend),
		nn.NewBatchNorm2D(cOut, affine, backend),
	)}}
}

// DilConv is relu → dilated depthwise → pointwise → bn.
type DilConv[B tensor.Backend] struct {
	block[B]
}

// NewDilConv creates a dilated separable convolution.
func NewDilConv[B tensor.Backend](cIn, cOut, kernel, stride, padding, dilation int, affine bool, rng *rand.Rand, backend B) *DilConv[B] {
	return &DilConv[B]{block[B]{nn.NewSequential[B](
		nn.NewReLU[B](),
		depthwise(cIn, kernel, stride, padding, dilation, rng, backend),
		pointwise(cIn, cOut, rng, backend),
		nn.NewBatchNorm2D(cOut, affine, backend),
	)}}
}

// Conv7x1x7 is relu → 1×7 conv → 7×1 conv → bn.
type Conv7x1x7[B tensor.Backend] struct {
	block[B]
}

// NewConv7x1x7 creates the factorized 7×7 convolution.
func NewConv7x1x7[B tensor.Backend](c, stride int, affine bool, rng *rand.Rand, backend B) *Conv7x1x7[B] {
	return &Conv7x1x7[B]{block[B]{nn.NewSequential[B](
		nn.NewReLU[B](),
		nn.NewConv2D(nn.Conv2DConfig{
			InChannels: c, OutChannels: c,
			KernelH: 1, KernelW: 7,
			StrideH: 1, StrideW: stride,
			PadH: 0, PadW: 3,
			Rand: rng,
		}, backend),
		nn.NewConv2D(nn.Conv2DConfig{
			InChannels: c, OutChannels: c,
			KernelH: 7, KernelW: 1,
			StrideH: stride, StrideW: 1,
			PadH: 3, PadW: 0,
			Rand: rng,
		}, backend),
		nn.NewBatchNorm2D(c, affine, backend),
	)}}
}

// FactorizedReduce halves the spatial extent and maps cIn to cOut channels.
//
// Two 1×1 stride-2 convolutions sample the even and the odd pixel grid
// (the second runs on the input shifted by one pixel in H and W); their
// outputs, cOut/2 and cOut-cOut/2 channels, are concatenated and normalized.
type FactorizedReduce[B tensor.Backend] struct {
	cIn, cOut int
	relu      *nn.ReLU[B]
	conv1     *nn.Conv2D[B]
	conv2     *nn.Conv2D[B]
	bn        *nn.BatchNorm2D[B]
	backend   B
}

// NewFactorizedReduce creates a factorized reduction.
func NewFactorizedReduce[B tensor.Backend](cIn, cOut int, affine bool, rng *rand.Rand, backend B) *FactorizedReduce[B] {
	if cOut < 2 {
		panic(fmt.Sprintf("factorized reduce: output channels %d < 2", cOut))
	}
	half := cOut / 2
	return &FactorizedReduce[B]{
		cIn:  cIn,
		cOut: cOut,
		relu: nn.NewReLU[B](),
		conv1: nn.NewConv2D(nn.Conv2DConfig{
			InChannels: cIn, OutChannels: half, KernelH: 1, StrideH: 2, Rand: rng,
		}, backend),
		conv2: nn.NewConv2D(nn.Conv2DConfig{
			InChannels: cIn, OutChannels: cOut - half, KernelH: 1, StrideH: 2, Rand: rng,
		}, backend),
		bn:      nn.NewBatchNorm2D(cOut, affine, backend),
		backend: backend,
	}
}

// Forward applies the reduction.
func (f *FactorizedReduce[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := f.relu.Forward(input)
	shifted := tensor.New[float32](f.backend.Shift2D(x.Raw(), 1, 1), f.backend)
	out := tensor.Cat([]*tensor.Tensor[float32, B]{f.conv1.Forward(x), f.conv2.Forward(shifted)}, 1)
	return f.bn.Forward(out)
}

// Parameters returns both convolution kernels and the batch-norm affine terms.
func (f *FactorizedReduce[B]) Parameters() []*nn.Parameter[B] {
	return nn.CollectParameters[B](f.conv1, f.conv2, f.bn)
}

// Children returns the sub-layers.
func (f *FactorizedReduce[B]) Children() []nn.Module[B] {
	return []nn.Module[B]{f.relu, f.conv1, f.conv2, f.bn}
}

func depthwise[B tensor.Backend](c, kernel, stride, padding, dilation int, rng *rand.Rand, backend B) *nn.Conv2D[B] {
	return nn.NewConv2D(nn.Conv2DConfig{
		InChannels: c, OutChannels: c,
		KernelH: kernel, StrideH: stride,
		PadH: padding, PadW: padding,
		Dilation: dilation,
		Groups:   c,
		Rand:     rng,
	}, backend)
}

func pointwise[B tensor.Backend](cIn, cOut int, rng *rand.Rand, backend B) *nn.Conv2D[B] {
	return nn.NewConv2D(nn.Conv2DConfig{
		InChannels: cIn, OutChannels: cOut, KernelH: 1, Rand: rng,
	}, backend)
}
