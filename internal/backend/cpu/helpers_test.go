package cpu

import (
	"math/rand"
	"testing"

	"github.com/born-ml/darts/internal/tensor"
	"github.com/stretchr/testify/require"
)

// randRaw returns a float32 tensor with N(0,1) entries from a fixed seed.
func randRaw(shape tensor.Shape, seed int64) *tensor.RawTensor {
	rng := rand.New(rand.NewSource(seed))
	r := tensor.MustNewRaw(shape, tensor.Float32, tensor.CPU)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = float32(rng.NormFloat64())
	}
	return r
}

// distinctRaw fills shape with a shuffled ramp whose neighbours differ by 0.1,
// so finite differences never flip a max.
func distinctRaw(shape tensor.Shape, seed int64) *tensor.RawTensor {
	rng := rand.New(rand.NewSource(seed))
	r := tensor.MustNewRaw(shape, tensor.Float32, tensor.CPU)
	for i, j := range rng.Perm(r.NumElements()) {
		r.AsFloat32()[i] = float32(j) * 0.1
	}
	return r
}

func rawFrom(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

// dot returns Σ a_i * b_i in float64.
func dot(a, b *tensor.RawTensor) float64 {
	var s float64
	bd := b.AsFloat32()
	for i, v := range a.AsFloat32() {
		s += float64(v) * float64(bd[i])
	}
	return s
}

// checkGradient compares an analytic gradient of L = Σ f(x)·g against
// central finite differences for every element of x.
func checkGradient(t *testing.T, x, g *tensor.RawTensor, f func(*tensor.RawTensor) *tensor.RawTensor, analytic *tensor.RawTensor, tol float64) {
	t.Helper()
	const eps = 1e-2
	xd := x.AsFloat32()
	ad := analytic.AsFloat32()
	require.Equal(t, x.Shape(), analytic.Shape())

	for i := range xd {
		orig := xd[i]
		xd[i] = orig + eps
		plus := dot(f(x), g)
		xd[i] = orig - eps
		minus := dot(f(x), g)
		xd[i] = orig

		numeric := (plus - minus) / (2 * eps)
		require.InDeltaf(t, numeric, float64(ad[i]), tol, "gradient mismatch at index %d", i)
	}
}
