// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/optim"
	"github.com/born-ml/darts/internal/tensor"
)

// Optimizer is the common optimizer interface.
type Optimizer = optim.Optimizer

// SGD is stochastic gradient descent with momentum and weight decay.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer over params.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	return optim.NewSGD(params, config)
}

// Adam is the Adam optimizer with bias correction.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer over params.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	return optim.NewAdam(params, config)
}

// CosineAnnealingLR anneals an optimizer's learning rate once per epoch.
type CosineAnnealingLR = optim.CosineAnnealingLR

// NewCosineAnnealingLR anneals from the optimizer's current rate to minLR
// over tMax epochs.
func NewCosineAnnealingLR(opt Optimizer, tMax int, minLR float32) *CosineAnnealingLR {
	return optim.NewCosineAnnealingLR(opt, tMax, minLR)
}

// ClipGradNorm rescales the gradients of params so their global L2 norm is at
// most maxNorm and returns the norm before clipping.
func ClipGradNorm[B tensor.Backend](params []*nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, maxNorm float64) float64 {
	return optim.ClipGradNorm(params, grads, maxNorm)
}
