package search

import (
	"math"

	"github.com/born-ml/darts/internal/autodiff"
	"github.com/born-ml/darts/internal/nas"
	"github.com/born-ml/darts/internal/optim"
	"github.com/born-ml/darts/internal/tensor"
)

// ArchitectConfig configures the architecture optimizer.
type ArchitectConfig struct {
	LR          float32    // Adam learning rate (default: 3e-4)
	Betas       [2]float32 // Adam betas (default: [0.5, 0.999])
	WeightDecay float32    // L2 penalty on α (default: 1e-3)
	Unrolled    bool       // second-order gradient

	// FiniteDiffScale is r in the finite-difference radius
	// R = r / ||∇w' L_val|| (default: 0.01).
	FiniteDiffScale float64
}

// DefaultArchitectConfig returns the standard DARTS settings.
func DefaultArchitectConfig() ArchitectConfig {
	return ArchitectConfig{
		LR:              3e-4,
		Betas:           [2]float32{0.5, 0.999},
		WeightDecay:     1e-3,
		FiniteDiffScale: 0.01,
	}
}

// Architect updates the architecture weights of a network.
type Architect[B autodiff.BackwardCapable] struct {
	cfg       ArchitectConfig
	net       *nas.Network[B]
	optimizer *optim.Adam[B]
	backend   B

	// unrolled holds w' for the second-order step. It is created once with
	// CloneWithSharedArchitecture and refreshed on every step.
	unrolled *nas.Network[B]
}

// NewArchitect creates an architect optimizing net.ArchParameters().
func NewArchitect[B autodiff.BackwardCapable](net *nas.Network[B], cfg ArchitectConfig, backend B) *Architect[B] {
	d := DefaultArchitectConfig()
	if cfg.LR == 0 {
		cfg.LR = d.LR
	}
	if cfg.Betas == [2]float32{} {
		cfg.Betas = d.Betas
	}
	if cfg.FiniteDiffScale == 0 {
		cfg.FiniteDiffScale = d.FiniteDiffScale
	}
	return &Architect[B]{
		cfg: cfg,
		net: net,
		optimizer: optim.NewAdam(net.ArchParameters(), optim.AdamConfig{
			LR:          cfg.LR,
			Betas:       cfg.Betas,
			WeightDecay: cfg.WeightDecay,
		}),
		backend: backend,
	}
}

// Optimizer returns the Adam optimizer of the architecture weights.
func (a *Architect[B]) Optimizer() *optim.Adam[B] {
	return a.optimizer
}

// Step performs one architecture update and returns the validation loss
// the gradient was taken from.
//
// eta is the current weight learning rate and weights is the optimizer of
// the ordinary weights; both only matter for the unrolled step, whose
// virtual update w' = w - eta*(momentum*velocity + ∇w L_train + wd*w)
// mirrors the next SGD step. The ordinary weights of the network are left
// unchanged.
func (a *Architect[B]) Step(
	trainX *tensor.Tensor[float32, B], trainY *tensor.Tensor[int32, B],
	validX *tensor.Tensor[float32, B], validY *tensor.Tensor[int32, B],
	eta float32, weights *optim.SGD[B],
) float32 {
	var (
		loss  float32
		grads Gradients
	)
	if a.cfg.Unrolled {
		loss, grads = a.unrolledGradients(trainX, trainY, validX, validY, eta, weights)
	} else {
		loss, grads = computeGradients(a.backend, func() *tensor.Tensor[float32, B] {
			return a.net.Loss(validX, validY)
		})
	}
	a.optimizer.Step(grads)
	return loss
}

// unrolledGradients computes the second-order architecture gradient, keyed
// by the architecture parameters of a.net.
func (a *Architect[B]) unrolledGradients(
	trainX *tensor.Tensor[float32, B], trainY *tensor.Tensor[int32, B],
	validX *tensor.Tensor[float32, B], validY *tensor.Tensor[int32, B],
	eta float32, weights *optim.SGD[B],
) (float32, Gradients) {
	unrolled := a.virtualStep(trainX, trainY, eta, weights)

	loss, grads := computeGradients(a.backend, func() *tensor.Tensor[float32, B] {
		return unrolled.Loss(validX, validY)
	})
	archParams := unrolled.ArchParameters()
	dalpha := make([][]float32, len(archParams))
	for i, p := range archParams {
		dalpha[i] = append([]float32(nil), gradientOf(p, grads)...)
	}
	params := unrolled.Parameters()
	vector := make([][]float32, len(params))
	for i, p := range params {
		vector[i] = gradientOf(p, grads)
	}

	implicit := a.hessianVectorProduct(vector, trainX, trainY)
	out := make(Gradients, len(dalpha))
	for i, p := range a.net.ArchParameters() {
		g := tensor.MustNewRaw(p.Tensor().Shape(), tensor.Float32, a.backend.Device())
		gd := g.AsFloat32()
		for j := range gd {
			gd[j] = dalpha[i][j]
			if implicit != nil {
				gd[j] -= eta * implicit[i][j]
			}
		}
		out[p.Raw()] = g
	}
	return loss, out
}

// virtualStep loads w' = w - eta*(momentum*v + ∇w L_train(w) + wd*w) into the
// unrolled network, together with the current architecture weights and
// batch-norm statistics. The statistics of a.net are left unchanged.
func (a *Architect[B]) virtualStep(
	trainX *tensor.Tensor[float32, B], trainY *tensor.Tensor[int32, B],
	eta float32, weights *optim.SGD[B],
) *nas.Network[B] {
	if a.unrolled == nil {
		a.unrolled = a.net.CloneWithSharedArchitecture()
	}
	for i, p := range a.net.ArchParameters() {
		a.unrolled.ArchParameters()[i].CopyFrom(p)
	}
	buffers := a.net.Buffers()
	for i, b := range a.unrolled.Buffers() {
		b.CopyFrom(buffers[i])
	}

	saved := snapshot(buffers)
	_, grads := computeGradients(a.backend, func() *tensor.Tensor[float32, B] {
		return a.net.Loss(trainX, trainY)
	})
	restore(buffers, saved)

	var momentum, wd float32
	if weights != nil {
		momentum, wd = weights.Momentum(), weights.WeightDecay()
	}
	dst := a.unrolled.Parameters()
	for i, p := range a.net.Parameters() {
		theta := p.Tensor().Data()
		g := gradientOf(p, grads)
		var velocity []float32
		if weights != nil {
			velocity = weights.Velocity(p)
		}
		out := dst[i].Tensor().Data()
		for j := range out {
			var moment float32
			if velocity != nil {
				moment = momentum * velocity[j]
			}
			out[j] = theta[j] - eta*(moment+g[j]+wd*theta[j])
		}
	}
	return a.unrolled
}

// hessianVectorProduct approximates ∇²α,w L_train(w, α) · v by
//
//	(∇α L_train(w + Rv, α) - ∇α L_train(w - Rv, α)) / 2R,  R = r / ||v||
//
// It returns nil when v is zero. The network's weights and batch-norm
// statistics are restored afterwards.
func (a *Architect[B]) hessianVectorProduct(vector [][]float32, trainX *tensor.Tensor[float32, B], trainY *tensor.Tensor[int32, B]) [][]float32 {
	var sq float64
	for _, v := range vector {
		for _, x := range v {
			sq += float64(x) * float64(x)
		}
	}
	norm := math.Sqrt(sq)
	if norm == 0 {
		return nil
	}
	r := float32(a.cfg.FiniteDiffScale / norm)

	params := a.net.Parameters()
	buffers := a.net.Buffers()
	savedParams, savedBuffers := snapshot(params), snapshot(buffers)
	defer func() {
		restore(params, savedParams)
		restore(buffers, savedBuffers)
	}()

	archGrads := func(scale float32) [][]float32 {
		for i, p := range params {
			data, sp := p.Tensor().Data(), savedParams[i].AsFloat32()
			for j := range data {
				data[j] = sp[j] + scale*vector[i][j]
			}
		}
		_, grads := computeGradients(a.backend, func() *tensor.Tensor[float32, B] {
			return a.net.Loss(trainX, trainY)
		})
		out := make([][]float32, 2)
		for i, p := range a.net.ArchParameters() {
			out[i] = append([]float32(nil), gradientOf(p, grads)...)
		}
		return out
	}

	plus := archGrads(r)
	minus := archGrads(-r)
	for i := range plus {
		for j := range plus[i] {
			plus[i][j] = (plus[i][j] - minus[i][j]) / (2 * r)
		}
	}
	return plus
}
