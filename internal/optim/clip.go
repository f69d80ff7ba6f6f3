package optim

import (
	"math"

	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// ClipGradNorm rescales the gradients of params so that their global L2 norm
// is at most maxNorm, and returns the norm before clipping.
//
// Clipped gradients replace the entries in grads; the original tensors are
// left untouched because the tape may share one gradient between several
// inputs.
func ClipGradNorm[B tensor.Backend](params []*nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, maxNorm float64) float64 {
	seen := make(map[*tensor.RawTensor]bool, len(params))
	var sq float64
	for _, p := range params {
		g := getGradient(p, grads)
		if g == nil || seen[p.Raw()] {
			continue
		}
		seen[p.Raw()] = true
		for _, v := range g {
			sq += float64(v) * float64(v)
		}
	}
	total := math.Sqrt(sq)

	coef := maxNorm / (total + 1e-6)
	if coef >= 1 {
		return total
	}
	for raw := range seen {
		scaled := grads[raw].Clone()
		data := scaled.AsFloat32()
		for i := range data {
			data[i] *= float32(coef)
		}
		grads[raw] = scaled
	}
	return total
}
