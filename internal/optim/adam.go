package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	g = gradient + weight_decay * param
//	m_t = beta1 * m_{t-1} + (1-beta1) * g
//	v_t = beta2 * v_{t-1} + (1-beta2) * g²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	beta1       float32
	beta2       float32
	eps         float32
	weightDecay float32
	t           int
	m           map[*nn.Parameter[B]][]float32
	v           map[*nn.Parameter[B]][]float32
}

// AdamConfig holds configuration for the Adam optimizer.
type AdamConfig struct {
	LR          float32    // Learning rate (default: 0.001)
	Betas       [2]float32 // Running-average coefficients (default: [0.9, 0.999])
	Eps         float32    // Numerical stability term (default: 1e-8)
	WeightDecay float32    // L2 penalty (default: 0)
}

// NewAdam creates a new Adam optimizer, filling unset hyperparameters with
// the defaults listed on AdamConfig.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam[B]{
		params:      params,
		lr:          config.LR,
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		m:           make(map[*nn.Parameter[B]][]float32),
		v:           make(map[*nn.Parameter[B]][]float32),
	}
}

// Step performs a single optimization step.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	bc1 := 1 - math.Pow(float64(a.beta1), float64(a.t))
	bc2 := 1 - math.Pow(float64(a.beta2), float64(a.t))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		data := param.Tensor().Data()
		m, ok := a.m[param]
		if !ok {
			m = make([]float32, len(data))
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]float32, len(data))
			a.v[param] = v
		}

		for i := range data {
			g := grad[i] + a.weightDecay*data[i]
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			mHat := float64(m[i]) / bc1
			vHat := float64(v[i]) / bc2
			data[i] -= float32(float64(a.lr) * mHat / (math.Sqrt(vHat) + float64(a.eps)))
		}
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// Steps returns the number of updates applied so far.
func (a *Adam[B]) Steps() int {
	return a.t
}

// StateDict exports the moment estimates as "m.{param_index}" and
// "v.{param_index}" together with the step count as "step".
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	step := tensor.MustNewRaw(tensor.Shape{1}, tensor.Int32, tensor.CPU)
	step.AsInt32()[0] = int32(a.t)
	state["step"] = step
	for i, param := range a.params {
		for prefix, moments := range map[string]map[*nn.Parameter[B]][]float32{"m": a.m, "v": a.v} {
			buf, ok := moments[param]
			if !ok {
				continue
			}
			raw := tensor.MustNewRaw(param.Tensor().Shape(), tensor.Float32, tensor.CPU)
			copy(raw.AsFloat32(), buf)
			state[fmt.Sprintf("%s.%d", prefix, i)] = raw
		}
	}
	return state
}

// LoadStateDict restores moment estimates and the step count written by
// StateDict.
func (a *Adam[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if step, ok := state["step"]; ok {
		if step.DType() != tensor.Int32 || step.NumElements() != 1 {
			return fmt.Errorf("step: want a single int32, got %s %v", step.DType(), step.Shape())
		}
		a.t = int(step.AsInt32()[0])
	}
	for i, param := range a.params {
		for prefix, moments := range map[string]map[*nn.Parameter[B]][]float32{"m": a.m, "v": a.v} {
			key := fmt.Sprintf("%s.%d", prefix, i)
			raw, ok := state[key]
			if !ok {
				continue
			}
			if raw.NumElements() != param.Tensor().NumElements() {
				return fmt.Errorf("%s: shape %v does not match parameter %v", key, raw.Shape(), param.Tensor().Shape())
			}
			buf := make([]float32, raw.NumElements())
			copy(buf, raw.AsFloat32())
			moments[param] = buf
		}
	}
	return nil
}
