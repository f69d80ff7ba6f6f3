// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum and weight decay
//   - Adam: Adaptive Moment Estimation with L2 weight decay
//   - ClipGradNorm: global gradient-norm clipping
//   - CosineAnnealingLR: cosine learning-rate schedule
//
// Updates are applied directly to parameter storage and are never recorded
// on a gradient tape.
//
// Example usage:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:          0.025,
//	    Momentum:    0.9,
//	    WeightDecay: 3e-4,
//	})
//
//	backend.Tape().StartRecording()
//	loss := model.Loss(input, targets)
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
//	backend.Tape().Clear()
package optim

import (
	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() and updates parameters in-place.
	// Parameters absent from the map and buffers are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate.
	SetLR(lr float32)
}

// getGradient retrieves the gradient for a parameter, or nil when the
// parameter did not take part in the computation.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) []float32 {
	if param == nil || param.IsBuffer() {
		return nil
	}
	g, ok := grads[param.Raw()]
	if !ok {
		return nil
	}
	return g.AsFloat32()
}
