package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/darts/internal/tensor"
)

// Batch normalization defaults.
const (
	DefaultBNEps      = 1e-5
	DefaultBNMomentum = 0.1
)

// BatchNorm2D normalizes each channel of an NCHW tensor.
//
// Training mode uses batch statistics and updates the running estimates:
//
//	running = (1 - momentum) * running + momentum * batch
//
// with the unbiased batch variance. Evaluation mode uses the running
// estimates. With affine=true a learnable per-channel scale (init 1) and
// shift (init 0) follow the normalization.
type BatchNorm2D[B tensor.Backend] struct {
	channels    int
	eps         float32
	momentum    float32
	affine      bool
	training    bool
	weight      *Parameter[B] // [1, C, 1, 1]
	bias        *Parameter[B] // [1, C, 1, 1]
	runningMean *Parameter[B] // [C]
	runningVar  *Parameter[B] // [C]
	backend     B
}

// NewBatchNorm2D creates a batch-norm layer in training mode.
func NewBatchNorm2D[B tensor.Backend](channels int, affine bool, backend B) *BatchNorm2D[B] {
	if channels <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid channels %d", channels))
	}
	bn := &BatchNorm2D[B]{
		channels:    channels,
		eps:         DefaultBNEps,
		momentum:    DefaultBNMomentum,
		affine:      affine,
		training:    true,
		runningMean: NewBuffer("running_mean", Zeros(tensor.Shape{channels}, backend)),
		runningVar:  NewBuffer("running_var", Ones(tensor.Shape{channels}, backend)),
		backend:     backend,
	}
	if affine {
		bn.weight = NewParameter("weight", Ones(tensor.Shape{1, channels, 1, 1}, backend))
		bn.bias = NewParameter("bias", Zeros(tensor.Shape{1, channels, 1, 1}, backend))
	}
	return bn
}

// Forward normalizes the input.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	s := input.Shape()
	if len(s) != 4 || s[1] != bn.channels {
		panic(fmt.Sprintf("batchnorm2d: expected input [N,%d,H,W], got %v", bn.channels, s))
	}

	var out *tensor.Tensor[float32, B]
	if bn.training {
		bn.updateRunningStats(input.Raw())
		out = tensor.New[float32](bn.backend.BatchNorm2D(input.Raw(), bn.eps), bn.backend)
	} else {
		out = bn.normalizeWithRunningStats(input)
	}

	if bn.affine {
		out = out.Mul(bn.weight.Tensor()).Add(bn.bias.Tensor())
	}
	return out
}

// updateRunningStats folds the batch statistics into the running estimates.
func (bn *BatchNorm2D[B]) updateRunningStats(x *tensor.RawTensor) {
	s := x.Shape()
	n, c, plane := s[0], s[1], s[2]*s[3]
	count := n * plane
	xd := x.AsFloat32()
	rm := bn.runningMean.Tensor().Data()
	rv := bn.runningVar.Tensor().Data()
	m := float64(bn.momentum)

	for ch := 0; ch < c; ch++ {
		var sum, sq float64
		for b := 0; b < n; b++ {
			for _, v := range xd[(b*c+ch)*plane : (b*c+ch+1)*plane] {
				sum += float64(v)
				sq += float64(v) * float64(v)
			}
		}
		mean := sum / float64(count)
		variance := sq/float64(count) - mean*mean
		if count > 1 {
			variance *= float64(count) / float64(count-1)
		}
		rm[ch] = float32((1-m)*float64(rm[ch]) + m*mean)
		rv[ch] = float32((1-m)*float64(rv[ch]) + m*math.Max(variance, 0))
	}
}

// normalizeWithRunningStats computes (x - running_mean) / sqrt(running_var + eps).
func (bn *BatchNorm2D[B]) normalizeWithRunningStats(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	mean := Zeros(tensor.Shape{1, bn.channels, 1, 1}, bn.backend)
	scale := Zeros(tensor.Shape{1, bn.channels, 1, 1}, bn.backend)
	rm := bn.runningMean.Tensor().Data()
	rv := bn.runningVar.Tensor().Data()
	for ch := 0; ch < bn.channels; ch++ {
		mean.Data()[ch] = rm[ch]
		scale.Data()[ch] = float32(1 / math.Sqrt(float64(rv[ch])+float64(bn.eps)))
	}
	return input.Sub(mean).Mul(scale)
}

// Parameters returns scale and shift when affine, otherwise nothing.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	if !bn.affine {
		return nil
	}
	return []*Parameter[B]{bn.weight, bn.bias}
}

// Buffers returns the running mean and variance.
func (bn *BatchNorm2D[B]) Buffers() []*Parameter[B] {
	return []*Parameter[B]{bn.runningMean, bn.runningVar}
}

// SetTraining switches between batch and running statistics.
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports the current mode.
func (bn *BatchNorm2D[B]) Training() bool {
	return bn.training
}

// Affine reports whether the layer has a learnable scale and shift.
func (bn *BatchNorm2D[B]) Affine() bool {
	return bn.affine
}
