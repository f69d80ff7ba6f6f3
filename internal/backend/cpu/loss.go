package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/darts/internal/tensor"
)

// resolveCrossEntropy validates logits [N, C] and int32 targets [N].
func resolveCrossEntropy(op string, logits, targets *tensor.RawTensor) (n, c int) {
	requireFloat32(op, logits)
	ls := logits.Shape()
	if len(ls) != 2 {
		panic(fmt.Sprintf("%s: logits must be 2D [batch, classes], got %v", op, ls))
	}
	if targets.DType() != tensor.Int32 {
		panic(fmt.Sprintf("%s: targets must be int32, got %s", op, targets.DType()))
	}
	n, c = ls[0], ls[1]
	if targets.NumElements() != n {
		panic(fmt.Sprintf("%s: %d targets for batch of %d", op, targets.NumElements(), n))
	}
	for i, t := range targets.AsInt32() {
		if t < 0 || int(t) >= c {
			panic(fmt.Sprintf("%s: target %d at index %d out of range [0, %d)", op, t, i, c))
		}
	}
	return n, c
}

// logSoftmaxRow computes log-softmax of one row with the log-sum-exp trick.
func logSoftmaxRow(row []float32, dst []float64) {
	maxVal := math.Inf(-1)
	for _, v := range row {
		maxVal = math.Max(maxVal, float64(v))
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v) - maxVal)
	}
	lse := maxVal + math.Log(sum)
	for i, v := range row {
		dst[i] = float64(v) - lse
	}
}

// CrossEntropy returns the batch-mean negative log-likelihood, shape [1].
func (cpu *CPUBackend) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	n, c := resolveCrossEntropy("cross_entropy", logits, targets)
	ld, td := logits.AsFloat32(), targets.AsInt32()
	logProbs := make([]float64, c)

	var total float64
	for b := 0; b < n; b++ {
		logSoftmaxRow(ld[b*c:(b+1)*c], logProbs)
		total -= logProbs[td[b]]
	}

	out := cpu.newFloat32("cross_entropy", tensor.Shape{1})
	out.AsFloat32()[0] = float32(total / float64(n))
	return out
}

// CrossEntropyBackward returns ∂L/∂logits = grad * (softmax - one_hot) / N.
func (cpu *CPUBackend) CrossEntropyBackward(logits, targets, grad *tensor.RawTensor) *tensor.RawTensor {
	n, c := resolveCrossEntropy("cross_entropy_backward", logits, targets)
	requireFloat32("cross_entropy_backward", grad)
	scale := float64(grad.AsFloat32()[0]) / float64(n)

	out := cpu.newFloat32("cross_entropy_backward", logits.Shape())
	ld, td, od := logits.AsFloat32(), targets.AsInt32(), out.AsFloat32()
	logProbs := make([]float64, c)

	for b := 0; b < n; b++ {
		logSoftmaxRow(ld[b*c:(b+1)*c], logProbs)
		for k := 0; k < c; k++ {
			p := math.Exp(logProbs[k])
			if int32(k) == td[b] {
				p--
			}
			od[b*c+k] = float32(p * scale)
		}
	}
	return out
}
