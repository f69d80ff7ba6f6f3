package optim_test

import (
	"math"
	"testing"

	"github.com/born-ml/darts/internal/autodiff"
	"github.com/born-ml/darts/internal/backend/cpu"
	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/optim"
	"github.com/born-ml/darts/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendT = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func param(t *testing.T, backend backendT, values ...float32) *nn.Parameter[backendT] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	require.NoError(t, err)
	return nn.NewParameter("x", x)
}

func gradFor(p *nn.Parameter[backendT], values ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	g := tensor.MustNewRaw(tensor.Shape{len(values)}, tensor.Float32, tensor.CPU)
	copy(g.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Raw(): g}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 2)
	opt := optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 0.1})

	opt.Step(gradFor(p, 1))

	assert.InDelta(t, 1.9, p.Tensor().Data()[0], 1e-6)
	assert.Nil(t, opt.Velocity(p))
}

func TestSGD_MomentumAndWeightDecay(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1)
	opt := optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.9, WeightDecay: 0.5})

	// d = 1 + 0.5*1 = 1.5, v = 1.5, x = 1 - 0.15
	opt.Step(gradFor(p, 1))
	assert.InDelta(t, 0.85, p.Tensor().Data()[0], 1e-6)
	assert.InDelta(t, 1.5, opt.Velocity(p)[0], 1e-6)

	// d = 1 + 0.425 = 1.425, v = 1.35 + 1.425 = 2.775
	opt.Step(gradFor(p, 1))
	assert.InDelta(t, 2.775, opt.Velocity(p)[0], 1e-5)
	assert.InDelta(t, 0.85-0.2775, p.Tensor().Data()[0], 1e-5)
}

func TestSGD_SkipsMissingGradientsAndBuffers(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 3)
	buf := nn.NewBuffer("running", tensor.Full[float32](tensor.Shape{1}, 3, backend))
	opt := optim.NewSGD([]*nn.Parameter[backendT]{p, buf}, optim.SGDConfig{LR: 1})

	opt.Step(gradFor(buf, 1))
	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{})

	assert.Equal(t, float32(3), p.Tensor().Data()[0])
	assert.Equal(t, float32(3), buf.Tensor().Data()[0])
}

func TestSGD_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1, 2)
	opt := optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	opt.Step(gradFor(p, 1, 2))

	state := opt.StateDict()
	require.Contains(t, state, "velocity.0")

	restored := optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, opt.Velocity(p), restored.Velocity(p))
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1, 2)
	q := param(t, backend, 3)
	opt := optim.NewAdam([]*nn.Parameter[backendT]{p, q}, optim.AdamConfig{LR: 0.01})
	opt.Step(gradFor(p, 0.5, -0.5))
	opt.Step(gradFor(p, 1, 1))

	state := opt.StateDict()
	require.Contains(t, state, "m.0")
	require.Contains(t, state, "v.0")
	assert.NotContains(t, state, "m.1")
	assert.Equal(t, []int32{2}, state["step"].AsInt32())

	// Continuing from restored state must match continuing the original.
	pr := param(t, backend, p.Tensor().Data()...)
	restored := optim.NewAdam([]*nn.Parameter[backendT]{pr, q}, optim.AdamConfig{LR: 0.01})
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, 2, restored.Steps())

	opt.Step(gradFor(p, 0.25, 0.75))
	restored.Step(gradFor(pr, 0.25, 0.75))
	assert.Equal(t, p.Tensor().Data(), pr.Tensor().Data())
}

func TestAdam_LoadStateDictRejectsMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1, 2)
	opt := optim.NewAdam([]*nn.Parameter[backendT]{p}, optim.AdamConfig{})

	wrong := tensor.MustNewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	assert.Error(t, opt.LoadStateDict(map[string]*tensor.RawTensor{"m.0": wrong}))

	step := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	assert.Error(t, opt.LoadStateDict(map[string]*tensor.RawTensor{"step": step}))
}

func TestOptimizers_ReadGradientsFromMapOnly(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1, 2)
	params := []*nn.Parameter[backendT]{p}

	for _, opt := range []optim.Optimizer{
		optim.NewSGD(params, optim.SGDConfig{LR: 0.1, Momentum: 0.9}),
		optim.NewAdam(params, optim.AdamConfig{LR: 0.1}),
	} {
		grads := gradFor(p, 1, -1)
		g := grads[p.Raw()]
		before := append([]float32(nil), p.Tensor().Data()...)

		opt.Step(grads)

		assert.NotEqual(t, before, p.Tensor().Data())
		assert.Len(t, grads, 1)
		assert.Same(t, g, grads[p.Raw()])
		assert.Equal(t, []float32{1, -1}, g.AsFloat32())

		// An empty map leaves parameters alone.
		after := append([]float32(nil), p.Tensor().Data()...)
		opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{})
		assert.Equal(t, after, p.Tensor().Data())
	}
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1, -1)
	opt := optim.NewAdam([]*nn.Parameter[backendT]{p}, optim.AdamConfig{LR: 0.01, Betas: [2]float32{0.5, 0.999}})

	opt.Step(gradFor(p, 4, -0.001))

	// Bias-corrected first step is lr * sign(g).
	assert.InDelta(t, 0.99, p.Tensor().Data()[0], 1e-5)
	assert.InDelta(t, -0.99, p.Tensor().Data()[1], 1e-4)
	assert.Equal(t, 1, opt.Steps())
}

func TestAdam_WeightDecayPullsTowardZero(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 5)
	opt := optim.NewAdam([]*nn.Parameter[backendT]{p}, optim.AdamConfig{LR: 0.1, WeightDecay: 1})

	for i := 0; i < 10; i++ {
		opt.Step(gradFor(p, 0))
	}
	assert.Less(t, p.Tensor().Data()[0], float32(5))
}

func TestAdam_MinimizesQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 3, -2)
	params := []*nn.Parameter[backendT]{p}
	opt := optim.NewAdam(params, optim.AdamConfig{LR: 0.1})

	for i := 0; i < 300; i++ {
		backend.Tape().StartRecording()
		loss := p.Tensor().Mul(p.Tensor()).Sum()
		grads := autodiff.Backward(loss, backend)
		opt.Step(grads)
		backend.Tape().Clear()
	}
	for _, v := range p.Tensor().Data() {
		assert.InDelta(t, 0, v, 0.1)
	}
}

func TestClipGradNorm(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := param(t, backend, 0, 0)
	b := param(t, backend, 0)
	grads := gradFor(a, 3, 0)
	original := grads[a.Raw()]
	for k, v := range gradFor(b, 4) {
		grads[k] = v
	}

	norm := optim.ClipGradNorm([]*nn.Parameter[backendT]{a, b}, grads, 1)

	assert.InDelta(t, 5, norm, 1e-9)
	assert.InDelta(t, 0.6, grads[a.Raw()].AsFloat32()[0], 1e-5)
	assert.InDelta(t, 0.8, grads[b.Raw()].AsFloat32()[0], 1e-5)
	assert.Equal(t, float32(3), original.AsFloat32()[0])

	small := gradFor(a, 0.1, 0)
	assert.InDelta(t, 0.1, optim.ClipGradNorm([]*nn.Parameter[backendT]{a}, small, 1), 1e-6)
	assert.InDelta(t, 0.1, small[a.Raw()].AsFloat32()[0], 1e-7)
}

func TestCosineAnnealingLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 0)
	opt := optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 0.1})
	sched := optim.NewCosineAnnealingLR(opt, 4, 0.001)

	assert.InDelta(t, 0.1, sched.LR(0), 1e-7)
	assert.InDelta(t, 0.0505, sched.LR(2), 1e-6)
	assert.InDelta(t, 0.001, sched.LR(4), 1e-7)

	sched.Step()
	assert.Equal(t, 1, sched.Epoch())
	want := 0.001 + 0.099*(1+math.Cos(math.Pi/4))/2
	assert.InDelta(t, want, opt.GetLR(), 1e-6)
}

func TestCosineAnnealingLR_SetEpoch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 0)
	opt := optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 0.1})
	sched := optim.NewCosineAnnealingLR(opt, 4, 0.001)

	sched.SetEpoch(2)
	assert.Equal(t, 2, sched.Epoch())
	assert.InDelta(t, 0.0505, opt.GetLR(), 1e-6)

	sched.Step()
	assert.Equal(t, 3, sched.Epoch())
	assert.InDelta(t, sched.LR(3), opt.GetLR(), 1e-7)
}
