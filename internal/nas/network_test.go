package nas_test

import (
	"math"
	"testing"

	"github.com/born-ml/darts/internal/autodiff"
	"github.com/born-ml/darts/internal/nas"
	"github.com/born-ml/darts/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig(seed int64) nas.Config {
	return nas.Config{C: 4, NumClasses: 5, Layers: 3, Steps: 2, Multiplier: 2, Seed: seed}
}

func newSmallNetwork(t *testing.T, seed int64, backend backendT) *nas.Network[backendT] {
	t.Helper()
	net, err := nas.NewNetwork(smallConfig(seed), nil, backend)
	require.NoError(t, err)
	return net
}

func targets(t *testing.T, backend backendT, labels ...int32) *tensor.Tensor[int32, backendT] {
	t.Helper()
	y, err := tensor.FromSlice(labels, tensor.Shape{len(labels)}, backend)
	require.NoError(t, err)
	return y
}

func TestIsReduction(t *testing.T) {
	tests := []struct {
		layers int
		want   []int
	}{
		{1, []int{0}},
		{2, []int{0, 1}},
		{3, []int{1, 2}},
		{5, []int{1, 3}},
		{8, []int{2, 5}},
	}
	for _, tt := range tests {
		var got []int
		for i := 0; i < tt.layers; i++ {
			if nas.IsReduction(i, tt.layers) {
				got = append(got, i)
			}
		}
		assert.Equal(t, tt.want, got, "layers=%d", tt.layers)
	}
}

func TestNetwork_Forward(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)

	cells := net.Cells()
	require.Len(t, cells, 3)
	assert.False(t, cells[0].Reduction())
	assert.True(t, cells[1].Reduction())
	assert.True(t, cells[2].Reduction())
	assert.Equal(t, 8, cells[0].OutChannels())
	assert.Equal(t, 16, cells[1].OutChannels())
	assert.Equal(t, 32, cells[2].OutChannels())
	assert.True(t, cells[2].Config().ReductionPrev)

	logits := net.Forward(randInput(tensor.Shape{2, 3, 8, 8}, 2, backend))
	assert.Equal(t, tensor.Shape{2, 5}, logits.Shape())
}

func TestNetwork_SingleLayer(t *testing.T) {
	backend := newBackend()
	cfg := nas.Config{C: 4, NumClasses: 3, Layers: 1, Seed: 3}
	net, err := nas.NewNetwork(cfg, nil, backend)
	require.NoError(t, err)

	require.Len(t, net.Cells(), 1)
	assert.True(t, net.Cells()[0].Reduction())
	assert.Equal(t, 14, net.Cells()[0].NumEdges())
	assert.Equal(t, 32, net.Cells()[0].OutChannels())

	logits := net.Forward(randInput(tensor.Shape{2, 3, 6, 6}, 2, backend))
	assert.Equal(t, tensor.Shape{2, 3}, logits.Shape())
}

func TestNetwork_ArchParameters(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)

	arch := net.ArchParameters()
	require.Len(t, arch, 2)
	assert.Same(t, net.AlphaNormal(), arch[0])
	assert.Same(t, net.AlphaReduce(), arch[1])
	assert.Equal(t, "alpha_normal", arch[0].Name())
	assert.Equal(t, "alpha_reduce", arch[1].Name())

	for _, a := range arch {
		assert.Equal(t, tensor.Shape{5, len(nas.Primitives)}, a.Tensor().Shape())
		for _, v := range a.Tensor().Data() {
			assert.Less(t, math.Abs(float64(v)), 0.01)
		}
	}
	assert.NotEqual(t, arch[0].Tensor().Data(), arch[1].Tensor().Data())

	for _, p := range net.Parameters() {
		assert.NotSame(t, arch[0], p)
		assert.NotSame(t, arch[1], p)
		assert.False(t, p.IsBuffer())
	}
	assert.NotEmpty(t, net.Parameters())
}

func TestNetwork_ArchitectureGradients(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)
	backend.Tape().StartRecording()

	loss := net.Loss(randInput(tensor.Shape{2, 3, 8, 8}, 2, backend), targets(t, backend, 1, 4))
	require.Equal(t, tensor.Shape{1}, loss.Shape())
	grads := autodiff.Backward(loss, backend)

	for _, a := range net.ArchParameters() {
		g, ok := grads[a.Raw()]
		require.True(t, ok, a.Name())
		assert.Equal(t, a.Tensor().Shape(), g.Shape())

		nonZero := false
		for _, v := range g.AsFloat32() {
			if v != 0 {
				nonZero = true
			}
		}
		assert.True(t, nonZero, a.Name())
	}

	classifier := net.Parameters()[len(net.Parameters())-2]
	_, ok := grads[classifier.Raw()]
	assert.True(t, ok)
}

func TestNetwork_Deterministic(t *testing.T) {
	backend := newBackend()
	a := newSmallNetwork(t, 7, backend)
	b := newSmallNetwork(t, 7, backend)
	x := randInput(tensor.Shape{2, 3, 8, 8}, 2, backend)

	assert.Equal(t, a.AlphaNormal().Tensor().Data(), b.AlphaNormal().Tensor().Data())
	assert.Equal(t, a.Forward(x).Data(), b.Forward(x).Data())
}

func TestNetwork_CloneWithSharedArchitecture(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)
	net.AlphaNormal().Tensor().Set(0.5, 0, 4)

	clone := net.CloneWithSharedArchitecture()
	assert.Equal(t, net.Config(), clone.Config())

	for i, a := range net.ArchParameters() {
		c := clone.ArchParameters()[i]
		assert.Equal(t, a.Tensor().Data(), c.Tensor().Data())
		assert.NotSame(t, a.Raw(), c.Raw())
	}
	assert.NotSame(t, net.Parameters()[0].Raw(), clone.Parameters()[0].Raw())

	clone.AlphaNormal().Tensor().Set(2, 0, 0)
	assert.NotEqual(t, float32(2), net.AlphaNormal().Tensor().At(0, 0))

	net.AlphaReduce().Tensor().Set(-3, 1, 1)
	assert.NotEqual(t, float32(-3), clone.AlphaReduce().Tensor().At(1, 1))
}

func TestNetwork_LoadWeightsFrom(t *testing.T) {
	backend := newBackend()
	src := newSmallNetwork(t, 1, backend)
	dst := newSmallNetwork(t, 2, backend)
	require.NotEqual(t, src.Parameters()[0].Tensor().Data(), dst.Parameters()[0].Tensor().Data())

	require.NoError(t, dst.LoadWeightsFrom(src))
	for i, p := range src.Parameters() {
		assert.Equal(t, p.Tensor().Data(), dst.Parameters()[i].Tensor().Data())
	}
	assert.NotEqual(t, src.AlphaNormal().Tensor().Data(), dst.AlphaNormal().Tensor().Data())

	other, err := nas.NewNetwork(nas.Config{C: 4, NumClasses: 5, Layers: 2, Steps: 2, Multiplier: 2}, nil, backend)
	require.NoError(t, err)
	assert.ErrorIs(t, dst.LoadWeightsFrom(other), nas.ErrInvalidConfig)
}

func TestNetwork_StateDict(t *testing.T) {
	backend := newBackend()
	src := newSmallNetwork(t, 1, backend)
	dst := newSmallNetwork(t, 2, backend)

	state := src.StateDict()
	assert.Contains(t, state, nas.KeyAlphaNormal)
	assert.Contains(t, state, nas.KeyAlphaReduce)
	assert.Contains(t, state, "weights.0")
	assert.Contains(t, state, "buffers.0")
	assert.Len(t, state, 2+len(src.Parameters())+len(src.Buffers()))

	require.NoError(t, dst.LoadStateDict(state))
	assert.Equal(t, src.AlphaNormal().Tensor().Data(), dst.AlphaNormal().Tensor().Data())
	assert.Equal(t, src.AlphaReduce().Tensor().Data(), dst.AlphaReduce().Tensor().Data())
	assert.Equal(t, src.Genotype(), dst.Genotype())

	src.SetTraining(false)
	dst.SetTraining(false)
	x := randInput(tensor.Shape{2, 3, 8, 8}, 2, backend)
	assert.Equal(t, src.Forward(x).Data(), dst.Forward(x).Data())
}

func TestNetwork_LoadStateDictErrors(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)

	err := net.LoadStateDict(map[string]*tensor.RawTensor{nas.KeyAlphaNormal: net.AlphaNormal().Raw()})
	require.Error(t, err)

	wrong := tensor.MustNewRaw(tensor.Shape{3, 3}, tensor.Float32, tensor.CPU)
	err = net.LoadStateDict(map[string]*tensor.RawTensor{
		nas.KeyAlphaNormal: wrong,
		nas.KeyAlphaReduce: net.AlphaReduce().Raw(),
	})
	require.ErrorIs(t, err, nas.ErrWeightsShape)

	err = net.LoadStateDict(map[string]*tensor.RawTensor{
		nas.KeyAlphaNormal: net.AlphaNormal().Raw(),
		nas.KeyAlphaReduce: net.AlphaReduce().Raw(),
		"optimizer.0":      wrong,
	})
	require.Error(t, err)

	// architecture only
	alphas := map[string]*tensor.RawTensor{
		nas.KeyAlphaNormal: net.AlphaNormal().Raw().Clone(),
		nas.KeyAlphaReduce: net.AlphaReduce().Raw().Clone(),
	}
	require.NoError(t, newSmallNetwork(t, 5, backend).LoadStateDict(alphas))
}

func TestNetwork_SetTraining(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)
	x := randInput(tensor.Shape{2, 3, 8, 8}, 2, backend)

	snapshot := func() [][]float32 {
		var out [][]float32
		for _, b := range net.Buffers() {
			out = append(out, append([]float32(nil), b.Tensor().Data()...))
		}
		return out
	}
	require.NotEmpty(t, net.Buffers())

	net.SetTraining(false)
	before := snapshot()
	first := net.Forward(x).Data()
	assert.Equal(t, before, snapshot())
	assert.Equal(t, first, net.Forward(x).Data())

	net.SetTraining(true)
	net.Forward(x)
	assert.NotEqual(t, before, snapshot())
}

func TestNetwork_GenotypeTracksArchitecture(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)
	reduceBefore := net.Genotype().Reduce

	// strongly prefer sep_conv_5x5 on every normal edge
	alpha := net.AlphaNormal().Tensor()
	for row := 0; row < alpha.Shape()[0]; row++ {
		alpha.Set(5, row, 5)
	}

	g := net.Genotype()
	for _, node := range g.Normal {
		for _, e := range node {
			assert.Equal(t, "sep_conv_5x5", e.Op)
		}
	}
	assert.Equal(t, reduceBefore, g.Reduce)
	assert.Equal(t, []int{2, 3}, g.NormalConcat)
	assert.Equal(t, []int{2, 3}, g.ReduceConcat)
	require.NoError(t, g.Validate(nas.Primitives))
}

func TestNetwork_GenotypeDoesNotRecord(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)
	backend.Tape().StartRecording()

	net.Genotype()
	assert.Zero(t, backend.Tape().NumOps())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, nas.DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *nas.Config)
	}{
		{"channels", func(c *nas.Config) { c.C = -1 }},
		{"classes", func(c *nas.Config) { c.NumClasses = -1 }},
		{"layers", func(c *nas.Config) { c.Layers = -2 }},
		{"steps", func(c *nas.Config) { c.Steps = -1 }},
		{"multiplier", func(c *nas.Config) { c.Multiplier = 7 }},
		{"stem multiplier", func(c *nas.Config) { c.StemMultiplier = -3 }},
		{"input channels", func(c *nas.Config) { c.InputChannels = -1 }},
		{"duplicate primitive", func(c *nas.Config) { c.Primitives = []string{"none", "skip_connect", "none"} }},
		{"only none", func(c *nas.Config) { c.Primitives = []string{"none"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := nas.DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), nas.ErrInvalidConfig)

			_, err := nas.NewNetwork(cfg, nil, newBackend())
			assert.ErrorIs(t, err, nas.ErrInvalidConfig)
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := nas.Config{C: 8}.WithDefaults()
	want := nas.DefaultConfig()
	want.C = 8
	assert.Equal(t, want, cfg)
}

func TestNewNetwork_UnknownPrimitive(t *testing.T) {
	cfg := smallConfig(1)
	cfg.Primitives = []string{"none", "conv_3x3"}
	_, err := nas.NewNetwork(cfg, nil, newBackend())
	assert.ErrorIs(t, err, nas.ErrUnknownPrimitive)
}

func TestNewNetwork_CustomPrimitives(t *testing.T) {
	backend := newBackend()
	cfg := smallConfig(1)
	cfg.Primitives = []string{"none", "skip_connect", "conv_7x1_1x7"}
	net, err := nas.NewNetwork(cfg, nil, backend)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{5, 3}, net.AlphaNormal().Tensor().Shape())
	logits := net.Forward(randInput(tensor.Shape{1, 3, 8, 8}, 2, backend))
	assert.Equal(t, tensor.Shape{1, 5}, logits.Shape())
}
