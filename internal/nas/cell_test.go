package nas_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/darts/internal/nas"
	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func softmaxWeights(rows, cols int, seed int64, backend backendT) *tensor.Tensor[float32, backendT] {
	return randInput(tensor.Shape{rows, cols}, seed, backend).Softmax(-1)
}

func TestMixedEdge_OutputShapeMatchesOperations(t *testing.T) {
	backend := newBackend()
	lib := nas.DefaultLibrary[backendT]()

	for _, stride := range []int{1, 2} {
		edge, err := nas.NewMixedEdge(lib, nas.Primitives, 4, stride, rand.New(rand.NewSource(1)), backend)
		require.NoError(t, err)

		x := randInput(tensor.Shape{2, 4, 8, 8}, 2, backend)
		y := edge.Forward(x, softmaxWeights(1, len(nas.Primitives), 3, backend).Reshape(len(nas.Primitives)))
		for _, op := range edge.Children() {
			assert.Equal(t, op.Forward(x).Shape(), y.Shape())
		}
		assert.Equal(t, stride, edge.Stride())
	}
}

func TestMixedEdge_WeightedSum(t *testing.T) {
	backend := newBackend()
	edge, err := nas.NewMixedEdge(nas.DefaultLibrary[backendT](), nas.Primitives, 3, 1, rand.New(rand.NewSource(1)), backend)
	require.NoError(t, err)

	x := randInput(tensor.Shape{2, 3, 5, 5}, 4, backend)

	// all weight on skip_connect
	oneHot := tensor.Zeros[float32](tensor.Shape{len(nas.Primitives)}, backend)
	oneHot.Set(1, 3)
	y := edge.Forward(x, oneHot)
	assert.InDeltaSlice(t, x.Data(), y.Data(), 1e-6)

	// skip_connect counted twice
	oneHot.Set(2, 3)
	y = edge.Forward(x, oneHot)
	want := make([]float64, len(x.Data()))
	for i, v := range x.Data() {
		want[i] = 2 * float64(v)
	}
	got := make([]float64, len(y.Data()))
	for i, v := range y.Data() {
		got[i] = float64(v)
	}
	assert.InDeltaSlice(t, want, got, 1e-5)
}

func TestMixedEdge_PoolsFollowedByBatchNorm(t *testing.T) {
	backend := newBackend()
	edge, err := nas.NewMixedEdge(nas.DefaultLibrary[backendT](), nas.Primitives, 4, 1, nil, backend)
	require.NoError(t, err)

	ops := edge.Children()
	require.Len(t, ops, len(nas.Primitives))
	for i, name := range edge.Primitives() {
		seq, ok := ops[i].(*nn.Sequential[backendT])
		if name == "max_pool_3x3" || name == "avg_pool_3x3" {
			require.True(t, ok, name)
			require.Equal(t, 2, seq.Len())
			bn, ok := seq.Module(1).(*nn.BatchNorm2D[backendT])
			require.True(t, ok)
			assert.False(t, bn.Affine())
		} else {
			assert.False(t, ok, name)
		}
	}
}

func TestMixedEdge_Panics(t *testing.T) {
	backend := newBackend()
	edge, err := nas.NewMixedEdge(nas.DefaultLibrary[backendT](), nas.Primitives, 4, 1, nil, backend)
	require.NoError(t, err)

	x := randInput(tensor.Shape{1, 4, 4, 4}, 1, backend)
	assert.Panics(t, func() {
		edge.Forward(x, tensor.Ones[float32](tensor.Shape{len(nas.Primitives) - 1}, backend))
	})
	assert.Panics(t, func() {
		edge.Forward(randInput(tensor.Shape{1, 3, 4, 4}, 1, backend), tensor.Ones[float32](tensor.Shape{len(nas.Primitives)}, backend))
	})
}

func TestMixedEdge_UnknownPrimitive(t *testing.T) {
	backend := newBackend()
	_, err := nas.NewMixedEdge(nas.DefaultLibrary[backendT](), []string{"none", "bogus"}, 4, 1, nil, backend)
	require.ErrorIs(t, err, nas.ErrUnknownPrimitive)

	_, err = nas.NewMixedEdge(nas.DefaultLibrary[backendT](), nil, 4, 1, nil, backend)
	require.ErrorIs(t, err, nas.ErrInvalidConfig)
}

func TestNumEdges(t *testing.T) {
	tests := []struct {
		steps, want int
	}{
		{1, 2},
		{2, 5},
		{3, 9},
		{4, 14},
		{5, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nas.NumEdges(tt.steps), "steps=%d", tt.steps)
	}
}

func TestCell_Normal(t *testing.T) {
	backend := newBackend()
	cell, err := nas.NewCell(nas.CellConfig{
		Steps: 4, Multiplier: 4, CPrevPrev: 6, CPrev: 5, C: 4,
	}, nas.DefaultLibrary[backendT](), nas.Primitives, rand.New(rand.NewSource(1)), backend)
	require.NoError(t, err)

	assert.Equal(t, 14, cell.NumEdges())
	assert.Equal(t, 16, cell.OutChannels())
	assert.False(t, cell.Reduction())

	for node, want := range [][2]int{{0, 2}, {2, 5}, {5, 9}, {9, 14}} {
		start, end := cell.EdgeRange(node)
		assert.Equal(t, want, [2]int{start, end}, "node %d", node)
	}
	for i := 0; i < cell.NumEdges(); i++ {
		assert.Equal(t, 1, cell.Edge(i).Stride())
	}

	s0 := randInput(tensor.Shape{2, 6, 8, 8}, 2, backend)
	s1 := randInput(tensor.Shape{2, 5, 8, 8}, 3, backend)
	out := cell.Forward(s0, s1, softmaxWeights(14, len(nas.Primitives), 4, backend))
	assert.Equal(t, tensor.Shape{2, 16, 8, 8}, out.Shape())
}

func TestCell_ReductionAfterReduction(t *testing.T) {
	backend := newBackend()
	cell, err := nas.NewCell(nas.CellConfig{
		Steps: 4, Multiplier: 4, CPrevPrev: 6, CPrev: 8, C: 4,
		Reduction: true, ReductionPrev: true,
	}, nas.DefaultLibrary[backendT](), nas.Primitives, rand.New(rand.NewSource(1)), backend)
	require.NoError(t, err)

	for node := 0; node < 4; node++ {
		start, end := cell.EdgeRange(node)
		for i := start; i < end; i++ {
			want := 1
			if i-start < 2 {
				want = 2
			}
			assert.Equal(t, want, cell.Edge(i).Stride(), "node %d edge %d", node, i-start)
		}
	}

	// s0 comes from before the previous reduction: twice the resolution of s1
	s0 := randInput(tensor.Shape{2, 6, 8, 8}, 2, backend)
	s1 := randInput(tensor.Shape{2, 8, 4, 4}, 3, backend)
	out := cell.Forward(s0, s1, softmaxWeights(14, len(nas.Primitives), 4, backend))
	assert.Equal(t, tensor.Shape{2, 16, 2, 2}, out.Shape())
}

func TestCell_MultiplierSelectsTrailingStates(t *testing.T) {
	backend := newBackend()
	cell, err := nas.NewCell(nas.CellConfig{
		Steps: 3, Multiplier: 2, CPrevPrev: 4, CPrev: 4, C: 4,
	}, nas.DefaultLibrary[backendT](), nas.Primitives, rand.New(rand.NewSource(1)), backend)
	require.NoError(t, err)

	x := randInput(tensor.Shape{1, 4, 6, 6}, 2, backend)
	out := cell.Forward(x, x, softmaxWeights(9, len(nas.Primitives), 4, backend))
	assert.Equal(t, tensor.Shape{1, 8, 6, 6}, out.Shape())
	assert.Equal(t, 8, cell.OutChannels())
}

func TestCell_Panics(t *testing.T) {
	backend := newBackend()
	cell, err := nas.NewCell(nas.CellConfig{
		Steps: 2, Multiplier: 2, CPrevPrev: 4, CPrev: 4, C: 4,
	}, nas.DefaultLibrary[backendT](), nas.Primitives, nil, backend)
	require.NoError(t, err)

	x := randInput(tensor.Shape{1, 4, 4, 4}, 1, backend)
	assert.Panics(t, func() { cell.Forward(x, x, softmaxWeights(4, len(nas.Primitives), 1, backend)) })
	assert.Panics(t, func() { cell.Forward(x, x, softmaxWeights(5, 3, 1, backend)) })
	assert.Panics(t, func() { cell.EdgeRange(2) })
}

func TestCellConfig_Validate(t *testing.T) {
	valid := nas.CellConfig{Steps: 4, Multiplier: 4, CPrevPrev: 8, CPrev: 8, C: 4}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *nas.CellConfig)
	}{
		{"zero steps", func(c *nas.CellConfig) { c.Steps = 0 }},
		{"multiplier too large", func(c *nas.CellConfig) { c.Multiplier = 7 }},
		{"zero multiplier", func(c *nas.CellConfig) { c.Multiplier = 0 }},
		{"zero channels", func(c *nas.CellConfig) { c.C = 0 }},
		{"factorized reduce of one channel", func(c *nas.CellConfig) { c.C = 1; c.ReductionPrev = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), nas.ErrInvalidConfig)
		})
	}
}
