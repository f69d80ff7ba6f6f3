package nn

import (
	"fmt"

	"github.com/born-ml/darts/internal/tensor"
)

// Criterion maps logits and integer class targets to a scalar loss.
type Criterion[B tensor.Backend] interface {
	Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B]
}

// CrossEntropyLoss is the batch-mean softmax cross-entropy.
//
//	Loss = -mean_i log_softmax(logits_i)[target_i]
//
// Logits are unnormalized; the log-sum-exp trick keeps large values stable.
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a new cross-entropy criterion.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{backend: backend}
}

// Forward returns the loss as a [1] tensor.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	ls := logits.Shape()
	if len(ls) != 2 {
		panic(fmt.Sprintf("cross_entropy: logits must be [batch, classes], got %v", ls))
	}
	if targets.NumElements() != ls[0] {
		panic(fmt.Sprintf("cross_entropy: %d targets for batch of %d", targets.NumElements(), ls[0]))
	}
	return tensor.New[float32](c.backend.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
}

// Accuracy returns the fraction of rows whose arg-max equals the target.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float64 {
	s := logits.Shape()
	n, c := s[0], s[1]
	if n == 0 {
		return 0
	}
	ld, td := logits.Data(), targets.Data()
	correct := 0
	for i := 0; i < n; i++ {
		row := ld[i*c : (i+1)*c]
		best := 0
		for k := 1; k < c; k++ {
			if row[k] > row[best] {
				best = k
			}
		}
		if int32(best) == td[i] {
			correct++
		}
	}
	return float64(correct) / float64(n)
}
