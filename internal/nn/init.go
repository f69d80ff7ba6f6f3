package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/darts/internal/tensor"
)

// KaimingUniform draws weights from U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
//
// This matches the default initialization of convolution and linear layers
// in mainstream frameworks (kaiming_uniform with a = sqrt(5)).
// A nil rng uses the global source.
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := 1 / math.Sqrt(float64(fanIn))
	return Uniform(-bound, bound, shape, rng, backend)
}

// Uniform draws weights from U(lo, hi).
func Uniform[B tensor.Backend](lo, hi float64, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32(lo + (hi-lo)*float01(rng))
	}
	return t
}

// Xavier (Glorot) uniform initialization:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return Uniform(-bound, bound, shape, rng, backend)
}

// Zeros creates a tensor filled with zeros.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}

func float01(rng *rand.Rand) float64 {
	if rng == nil {
		//nolint:gosec // weight initialization, not security sensitive
		return rand.Float64()
	}
	return rng.Float64()
}
