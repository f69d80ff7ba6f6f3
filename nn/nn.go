// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] = nn.Module[B]

// Container is implemented by anything that owns child modules.
type Container[B tensor.Backend] = nn.Container[B]

// Trainable is implemented by modules with distinct train and eval behavior.
type Trainable = nn.Trainable

// Buffered is implemented by modules with non-trainable state.
type Buffered[B tensor.Backend] = nn.Buffered[B]

// Parameter is a named trainable tensor or buffer.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Conv2D is a 2-D convolution with groups and dilation.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// Conv2DConfig configures a Conv2D.
type Conv2DConfig = nn.Conv2DConfig

// NewConv2D creates a convolution layer.
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, backend B) *Conv2D[B] {
	return nn.NewConv2D(cfg, backend)
}

// Linear is a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a fully connected layer initialized from rng.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// BatchNorm2D normalizes per channel.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch norm layer. Without affine it has no
// trainable parameters.
func NewBatchNorm2D[B tensor.Backend](channels int, affine bool, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(channels, affine, backend)
}

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Criterion maps logits and class targets to a scalar loss.
type Criterion[B tensor.Backend] = nn.Criterion[B]

// CrossEntropyLoss is the batch-mean softmax cross-entropy.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates a cross-entropy criterion.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss(backend)
}

// Accuracy returns the fraction of rows whose arg-max equals the target.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float64 {
	return nn.Accuracy(logits, targets)
}

// SetTraining switches every Trainable module reachable from root.
func SetTraining[B tensor.Backend](root any, training bool) {
	nn.SetTraining[B](root, training)
}
