package search

import (
	"github.com/born-ml/darts/internal/autodiff"
	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// Gradients maps a parameter's RawTensor to its gradient.
type Gradients = map[*tensor.RawTensor]*tensor.RawTensor

// computeGradients records loss() on a fresh tape, runs the backward pass and
// leaves the tape cleared and stopped.
func computeGradients[B autodiff.BackwardCapable](backend B, loss func() *tensor.Tensor[float32, B]) (float32, Gradients) {
	tape := backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	l := loss()
	grads := autodiff.Backward(l, backend)
	return l.Item(), grads
}

// gradientOf returns the gradient values of p, or zeros when p did not take
// part in the computation.
func gradientOf[B tensor.Backend](p *nn.Parameter[B], grads Gradients) []float32 {
	if g, ok := grads[p.Raw()]; ok {
		return g.AsFloat32()
	}
	return make([]float32, p.Tensor().NumElements())
}

// snapshot copies the values of params.
func snapshot[B tensor.Backend](params []*nn.Parameter[B]) []*tensor.RawTensor {
	out := make([]*tensor.RawTensor, len(params))
	for i, p := range params {
		out[i] = p.Raw().Clone()
	}
	return out
}

// restore writes values saved by snapshot back into params.
func restore[B tensor.Backend](params []*nn.Parameter[B], saved []*tensor.RawTensor) {
	for i, p := range params {
		p.Raw().CopyFrom(saved[i])
	}
}
