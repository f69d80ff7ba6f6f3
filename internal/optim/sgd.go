package optim

import (
	"fmt"

	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum and
// L2 weight decay.
//
// Update rule:
//
//	d = gradient + weight_decay * param
//	velocity = momentum * velocity + d
//	param = param - lr * velocity
//
// The first step initializes velocity to d, as mainstream frameworks do.
type SGD[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	momentum    float32
	weightDecay float32
	velocities  map[*nn.Parameter[B]][]float32
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR          float32 // Learning rate (default: 0.01)
	Momentum    float32 // Momentum factor in [0, 1) (default: 0)
	WeightDecay float32 // L2 penalty (default: 0)
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter[B]][]float32),
	}
}

// Step performs a single optimization step.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		data := param.Tensor().Data()

		if s.momentum == 0 {
			for i := range data {
				data[i] -= s.lr * (grad[i] + s.weightDecay*data[i])
			}
			continue
		}

		velocity, exists := s.velocities[param]
		if !exists {
			velocity = make([]float32, len(data))
			s.velocities[param] = velocity
		}
		for i := range data {
			d := grad[i] + s.weightDecay*data[i]
			if exists {
				velocity[i] = s.momentum*velocity[i] + d
			} else {
				velocity[i] = d
			}
			data[i] -= s.lr * velocity[i]
		}
	}
}

// Velocity returns the momentum buffer of param, or nil before its first
// update. The slice aliases optimizer state.
func (s *SGD[B]) Velocity(param *nn.Parameter[B]) []float32 {
	return s.velocities[param]
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}

// Momentum returns the momentum factor.
func (s *SGD[B]) Momentum() float32 {
	return s.momentum
}

// WeightDecay returns the L2 penalty.
func (s *SGD[B]) WeightDecay() float32 {
	return s.weightDecay
}

// StateDict exports velocity buffers as "velocity.{param_index}".
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for i, param := range s.params {
		v, ok := s.velocities[param]
		if !ok {
			continue
		}
		raw := tensor.MustNewRaw(param.Tensor().Shape(), tensor.Float32, tensor.CPU)
		copy(raw.AsFloat32(), v)
		state[fmt.Sprintf("velocity.%d", i)] = raw
	}
	return state
}

// LoadStateDict restores velocity buffers written by StateDict.
func (s *SGD[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	for i, param := range s.params {
		raw, ok := state[fmt.Sprintf("velocity.%d", i)]
		if !ok {
			continue
		}
		if raw.NumElements() != param.Tensor().NumElements() {
			return fmt.Errorf("velocity.%d: shape %v does not match parameter %v", i, raw.Shape(), param.Tensor().Shape())
		}
		v := make([]float32, raw.NumElements())
		copy(v, raw.AsFloat32())
		s.velocities[param] = v
	}
	return nil
}
