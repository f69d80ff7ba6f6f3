package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/darts/internal/tensor"
)

// Conv2DConfig describes a convolution layer.
//
// Zero values are filled in by NewConv2D: stride 1, dilation 1, groups 1,
// square kernels when KernelW is 0.
type Conv2DConfig struct {
	InChannels, OutChannels int
	KernelH, KernelW        int
	StrideH, StrideW        int
	PadH, PadW              int
	Dilation                int
	Groups                  int
	Bias                    bool

	// Rand seeds the weight initialization. Nil uses the global source.
	Rand *rand.Rand
}

// Conv2D is a 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Depthwise convolution is Groups == InChannels == OutChannels.
type Conv2D[B tensor.Backend] struct {
	cfg     Conv2DConfig
	params  tensor.Conv2DParams
	weight  *Parameter[B]
	bias    *Parameter[B]
	backend B
}

// NewConv2D creates a new convolution layer with Kaiming-uniform weights.
// It panics on an inconsistent configuration.
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, backend B) *Conv2D[B] {
	if cfg.KernelW == 0 {
		cfg.KernelW = cfg.KernelH
	}
	if cfg.StrideH == 0 {
		cfg.StrideH = 1
	}
	if cfg.StrideW == 0 {
		cfg.StrideW = cfg.StrideH
	}
	if cfg.Dilation == 0 {
		cfg.Dilation = 1
	}
	if cfg.Groups == 0 {
		cfg.Groups = 1
	}
	if cfg.InChannels <= 0 || cfg.OutChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", cfg.InChannels, cfg.OutChannels))
	}
	if cfg.KernelH <= 0 || cfg.KernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", cfg.KernelH, cfg.KernelW))
	}
	if cfg.InChannels%cfg.Groups != 0 || cfg.OutChannels%cfg.Groups != 0 {
		panic(fmt.Sprintf("conv2d: channels in=%d out=%d not divisible by groups=%d",
			cfg.InChannels, cfg.OutChannels, cfg.Groups))
	}

	params := tensor.Conv2DParams{
		StrideH: cfg.StrideH, StrideW: cfg.StrideW,
		PadH: cfg.PadH, PadW: cfg.PadW,
		Dilation: cfg.Dilation,
		Groups:   cfg.Groups,
	}
	if err := params.Validate(); err != nil {
		panic(fmt.Sprintf("conv2d: %v", err))
	}

	inPerGroup := cfg.InChannels / cfg.Groups
	fanIn := inPerGroup * cfg.KernelH * cfg.KernelW
	shape := tensor.Shape{cfg.OutChannels, inPerGroup, cfg.KernelH, cfg.KernelW}

	c := &Conv2D[B]{
		cfg:     cfg,
		params:  params,
		weight:  NewParameter("conv2d.weight", KaimingUniform(fanIn, shape, cfg.Rand, backend)),
		backend: backend,
	}
	if cfg.Bias {
		c.bias = NewParameter("conv2d.bias", KaimingUniform(fanIn, tensor.Shape{1, cfg.OutChannels, 1, 1}, cfg.Rand, backend))
	}
	return c
}

// Forward performs the convolution.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	s := input.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(s)))
	}
	if s[1] != c.cfg.InChannels {
		panic(fmt.Sprintf("conv2d: expected %d input channels, got %d", c.cfg.InChannels, s[1]))
	}

	out := tensor.New[float32](c.backend.Conv2D(input.Raw(), c.weight.Raw(), c.params), c.backend)
	if c.bias != nil {
		out = out.Add(c.bias.Tensor())
	}
	return out
}

// Parameters returns the weight and, if present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Config returns the resolved configuration.
func (c *Conv2D[B]) Config() Conv2DConfig {
	return c.cfg
}

// String returns a short description.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(%d, %d, kernel=%dx%d, stride=%dx%d, padding=%dx%d, dilation=%d, groups=%d)",
		c.cfg.InChannels, c.cfg.OutChannels, c.cfg.KernelH, c.cfg.KernelW,
		c.cfg.StrideH, c.cfg.StrideW, c.cfg.PadH, c.cfg.PadW, c.cfg.Dilation, c.cfg.Groups)
}
