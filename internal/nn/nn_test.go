package nn_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/darts/internal/autodiff"
	"github.com/born-ml/darts/internal/backend/cpu"
	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendT = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() backendT {
	return autodiff.New(cpu.New())
}

func TestParameter(t *testing.T) {
	backend := newBackend()
	data, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	param := nn.NewParameter("test_param", data)

	assert.Equal(t, "test_param", param.Name())
	assert.Same(t, data, param.Tensor())
	assert.Same(t, data.Raw(), param.Raw())
	assert.False(t, param.IsBuffer())

	other := nn.NewBuffer("buf", tensor.Full[float32](tensor.Shape{3}, 7, backend))
	assert.True(t, other.IsBuffer())
	param.CopyFrom(other)
	assert.Equal(t, []float32{7, 7, 7}, param.Tensor().Data())
	assert.Same(t, data.Raw(), param.Raw())
}

func TestKaimingUniform_BoundsAndDeterminism(t *testing.T) {
	backend := newBackend()
	a := nn.KaimingUniform(16, tensor.Shape{4, 16}, rand.New(rand.NewSource(1)), backend)
	b := nn.KaimingUniform(16, tensor.Shape{4, 16}, rand.New(rand.NewSource(1)), backend)

	assert.Equal(t, a.Data(), b.Data())
	for _, v := range a.Data() {
		assert.LessOrEqual(t, v, float32(0.25))
		assert.GreaterOrEqual(t, v, float32(-0.25))
	}
}

func TestConv2D_Shapes(t *testing.T) {
	backend := newBackend()
	tests := []struct {
		name  string
		cfg   nn.Conv2DConfig
		input tensor.Shape
		want  tensor.Shape
	}{
		{"stem 3x3", nn.Conv2DConfig{InChannels: 3, OutChannels: 12, KernelH: 3, PadH: 1, PadW: 1}, tensor.Shape{2, 3, 8, 8}, tensor.Shape{2, 12, 8, 8}},
		{"pointwise", nn.Conv2DConfig{InChannels: 4, OutChannels: 6, KernelH: 1}, tensor.Shape{1, 4, 5, 5}, tensor.Shape{1, 6, 5, 5}},
		{"depthwise strided", nn.Conv2DConfig{InChannels: 4, OutChannels: 4, KernelH: 3, StrideH: 2, PadH: 1, PadW: 1, Groups: 4}, tensor.Shape{1, 4, 8, 8}, tensor.Shape{1, 4, 4, 4}},
		{"dilated 5x5", nn.Conv2DConfig{InChannels: 4, OutChannels: 4, KernelH: 5, PadH: 4, PadW: 4, Dilation: 2, Groups: 4}, tensor.Shape{1, 4, 8, 8}, tensor.Shape{1, 4, 8, 8}},
		{"1x7", nn.Conv2DConfig{InChannels: 2, OutChannels: 2, KernelH: 1, KernelW: 7, PadW: 3}, tensor.Shape{1, 2, 6, 6}, tensor.Shape{1, 2, 6, 6}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conv := nn.NewConv2D(tc.cfg, backend)
			out := conv.Forward(tensor.Zeros[float32](tc.input, backend))
			assert.Equal(t, tc.want, out.Shape())
		})
	}
}

func TestConv2D_WeightShapeAndParameters(t *testing.T) {
	backend := newBackend()
	conv := nn.NewConv2D(nn.Conv2DConfig{InChannels: 8, OutChannels: 8, KernelH: 3, Groups: 8}, backend)
	assert.Equal(t, tensor.Shape{8, 1, 3, 3}, conv.Weight().Tensor().Shape())
	assert.Len(t, conv.Parameters(), 1)

	withBias := nn.NewConv2D(nn.Conv2DConfig{InChannels: 2, OutChannels: 3, KernelH: 1, Bias: true}, backend)
	assert.Len(t, withBias.Parameters(), 2)
}

func TestConv2D_InvalidConfigPanics(t *testing.T) {
	backend := newBackend()
	assert.Panics(t, func() {
		nn.NewConv2D(nn.Conv2DConfig{InChannels: 3, OutChannels: 4, KernelH: 3, Groups: 2}, backend)
	})
	assert.Panics(t, func() {
		nn.NewConv2D(nn.Conv2DConfig{InChannels: 0, OutChannels: 4, KernelH: 3}, backend)
	})
}

func TestLinear_Forward(t *testing.T) {
	backend := newBackend()
	layer := nn.NewLinear(3, 2, rand.New(rand.NewSource(0)), backend)
	copy(layer.Weight().Tensor().Data(), []float32{1, 0, 0, 0, 1, 1})
	copy(layer.Bias().Tensor().Data(), []float32{0.5, -0.5})

	x, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{1, 3}, backend)
	out := layer.Forward(x)

	assert.Equal(t, tensor.Shape{1, 2}, out.Shape())
	assert.Equal(t, []float32{1.5, 4.5}, out.Data())
}

func TestLinear_Gradients(t *testing.T) {
	backend := newBackend()
	layer := nn.NewLinear(3, 2, rand.New(rand.NewSource(0)), backend)
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)

	backend.Tape().StartRecording()
	loss := layer.Forward(x).Sum()
	grads := autodiff.Backward(loss, backend)

	assert.Equal(t, []float32{5, 7, 9, 5, 7, 9}, grads[layer.Weight().Raw()].AsFloat32())
	assert.Equal(t, []float32{2, 2}, grads[layer.Bias().Raw()].AsFloat32())
}

func TestBatchNorm2D_TrainingUpdatesRunningStats(t *testing.T) {
	backend := newBackend()
	bn := nn.NewBatchNorm2D(1, false, backend)
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)

	out := bn.Forward(x)

	var sum float32
	for _, v := range out.Data() {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-5)

	buffers := bn.Buffers()
	require.Len(t, buffers, 2)
	// mean 2.5, unbiased variance 5/3
	assert.InDelta(t, 0.25, buffers[0].Tensor().Data()[0], 1e-6)
	assert.InDelta(t, 0.9+0.1*5.0/3.0, buffers[1].Tensor().Data()[0], 1e-5)
	assert.Empty(t, bn.Parameters())
}

func TestBatchNorm2D_EvalUsesRunningStats(t *testing.T) {
	backend := newBackend()
	bn := nn.NewBatchNorm2D(2, true, backend)
	bn.SetTraining(false)
	assert.False(t, bn.Training())

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 2, 1, 2}, backend)
	out := bn.Forward(x)

	// running mean 0, var 1, scale 1, shift 0
	assert.InDeltaSlice(t, []float32{1, 2, 3, 4}, out.Data(), 1e-4)
	assert.Len(t, bn.Parameters(), 2)
}

func TestBatchNorm2D_AffineGradients(t *testing.T) {
	backend := newBackend()
	bn := nn.NewBatchNorm2D(2, true, backend)
	x := tensor.RandnFrom(tensor.Shape{2, 2, 3, 3}, rand.New(rand.NewSource(3)), backend)

	backend.Tape().StartRecording()
	loss := bn.Forward(x).Sum()
	grads := autodiff.Backward(loss, backend)

	params := bn.Parameters()
	// Σ x̂ per channel is zero; Σ 1 is the element count per channel.
	assert.InDeltaSlice(t, []float32{0, 0}, grads[params[0].Raw()].AsFloat32(), 1e-4)
	assert.Equal(t, []float32{18, 18}, grads[params[1].Raw()].AsFloat32())
}

func TestSequential_WalkSetTrainingAndBuffers(t *testing.T) {
	backend := newBackend()
	inner := nn.NewBatchNorm2D(2, false, backend)
	seq := nn.NewSequential[backendT](
		nn.NewReLU[backendT](),
		nn.NewConv2D(nn.Conv2DConfig{InChannels: 2, OutChannels: 2, KernelH: 1}, backend),
		nn.NewSequential[backendT](inner),
	)

	assert.Equal(t, 3, seq.Len())
	assert.Len(t, seq.Parameters(), 1)
	assert.Len(t, nn.CollectBuffers[backendT](seq), 2)

	nn.SetTraining[backendT](seq, false)
	assert.False(t, inner.Training())
	nn.SetTraining[backendT](seq, true)
	assert.True(t, inner.Training())

	visited := 0
	nn.Walk[backendT](seq, func(nn.Module[backendT]) { visited++ })
	assert.Equal(t, 5, visited)
}

func TestPools_Shapes(t *testing.T) {
	backend := newBackend()
	x := tensor.Zeros[float32](tensor.Shape{2, 3, 8, 8}, backend)

	assert.Equal(t, tensor.Shape{2, 3, 8, 8}, nn.NewMaxPool2D(3, 1, 1, backend).Forward(x).Shape())
	assert.Equal(t, tensor.Shape{2, 3, 4, 4}, nn.NewAvgPool2D(3, 2, 1, backend).Forward(x).Shape())
	assert.Equal(t, tensor.Shape{2, 3}, nn.NewGlobalAvgPool2D(backend).Forward(x).Shape())
	assert.Panics(t, func() { nn.NewMaxPool2D(3, 1, 2, backend) })
}

func TestCrossEntropyLoss_AndAccuracy(t *testing.T) {
	backend := newBackend()
	criterion := nn.NewCrossEntropyLoss(backend)
	logits, _ := tensor.FromSlice([]float32{5, 0, 0, 0, 5, 0}, tensor.Shape{2, 3}, backend)
	targets, _ := tensor.FromSlice([]int32{0, 2}, tensor.Shape{2}, backend)

	loss := criterion.Forward(logits, targets)
	assert.Equal(t, tensor.Shape{1}, loss.Shape())
	assert.Greater(t, loss.Item(), float32(0))
	assert.InDelta(t, 0.5, nn.Accuracy(logits, targets), 1e-9)

	bad, _ := tensor.FromSlice([]int32{0}, tensor.Shape{1}, backend)
	assert.Panics(t, func() { criterion.Forward(logits, bad) })
}
