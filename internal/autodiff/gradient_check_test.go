package autodiff_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/darts/internal/autodiff"
	"github.com/born-ml/darts/internal/backend/cpu"
	"github.com/born-ml/darts/internal/tensor"
	"github.com/stretchr/testify/require"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func randn(shape tensor.Shape, seed int64, b adBackend) *tensor.Tensor[float32, adBackend] {
	return tensor.RandnFrom(shape, rand.New(rand.NewSource(seed)), b)
}

// TestGradientCheck_SeparableBlock runs relu -> depthwise -> pointwise -> BN
// -> pool -> linear -> cross-entropy and compares the tape gradient of the
// depthwise kernel with central finite differences.
func TestGradientCheck_SeparableBlock(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	x := randn(tensor.Shape{2, 2, 5, 5}, 1, backend)
	dw := randn(tensor.Shape{2, 1, 3, 3}, 2, backend)
	pw := randn(tensor.Shape{3, 2, 1, 1}, 3, backend)
	fc := randn(tensor.Shape{3, 4}, 4, backend)
	targets, _ := tensor.FromSlice([]int32{1, 3}, tensor.Shape{2}, backend)

	loss := func() *tensor.Tensor[float32, adBackend] {
		h := backend.ReLU(x.Raw())
		h = backend.Conv2D(h, dw.Raw(), tensor.Conv2DParams{StrideH: 2, StrideW: 2, PadH: 1, PadW: 1, Dilation: 1, Groups: 2})
		h = backend.Conv2D(h, pw.Raw(), tensor.ConvParams(1, 0))
		h = backend.BatchNorm2D(h, 1e-5)
		h = backend.AvgPool2D(h, tensor.Pool2DParams{KernelSize: 3, Stride: 1, Padding: 1})
		h = backend.GlobalAvgPool2D(h)
		logits := backend.MatMul(h, fc.Raw())
		return tensor.New[float32](backend.CrossEntropy(logits, targets.Raw()), backend)
	}

	tape.StartRecording()
	grads := autodiff.Backward(loss(), backend)
	tape.StopRecording()
	tape.Clear()

	analytic := grads[dw.Raw()].AsFloat32()
	const eps = 1e-2
	data := dw.Data()
	for i := range data {
		orig := data[i]
		data[i] = orig + eps
		plus := loss().Item()
		data[i] = orig - eps
		minus := loss().Item()
		data[i] = orig

		numeric := (plus - minus) / (2 * eps)
		require.InDeltaf(t, numeric, analytic[i], 2e-2, "depthwise kernel gradient at %d", i)
	}
}

func TestGradientCheck_FactorizedShift(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	x := randn(tensor.Shape{1, 2, 4, 4}, 5, backend)
	k1 := randn(tensor.Shape{1, 2, 1, 1}, 6, backend)
	k2 := randn(tensor.Shape{1, 2, 1, 1}, 7, backend)
	weights := randn(tensor.Shape{1, 2, 2, 2}, 8, backend)

	loss := func() *tensor.Tensor[float32, adBackend] {
		a := backend.Conv2D(x.Raw(), k1.Raw(), tensor.ConvParams(2, 0))
		b := backend.Conv2D(backend.Shift2D(x.Raw(), 1, 1), k2.Raw(), tensor.ConvParams(2, 0))
		h := backend.Cat([]*tensor.RawTensor{a, b}, 1)
		return tensor.New[float32](backend.Sum(backend.Mul(h, weights.Raw())), backend)
	}

	tape.StartRecording()
	grads := autodiff.Backward(loss(), backend)
	tape.StopRecording()
	tape.Clear()

	analytic := grads[x.Raw()].AsFloat32()
	const eps = 1e-2
	data := x.Data()
	for i := range data {
		orig := data[i]
		data[i] = orig + eps
		plus := loss().Item()
		data[i] = orig - eps
		minus := loss().Item()
		data[i] = orig

		require.InDeltaf(t, (plus-minus)/(2*eps), analytic[i], 1e-2, "input gradient at %d", i)
	}
}
