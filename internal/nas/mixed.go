package nas

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// MixedEdge is one cell edge realized as a weighted sum over every
// catalogue operation:
//
//	y = Σ_i weights[i] * op_i(x)
//
// Operations are built without affine batch-norm terms; pooling operations
// are followed by a non-affine BatchNorm2D.
type MixedEdge[B tensor.Backend] struct {
	names    []string
	ops      []nn.Module[B]
	channels int
	stride   int
}

// NewMixedEdge instantiates every primitive for c channels at the given stride.
func NewMixedEdge[B tensor.Backend](lib *Library[B], primitives []string, c, stride int, rng *rand.Rand, backend B) (*MixedEdge[B], error) {
	if len(primitives) == 0 {
		return nil, fmt.Errorf("%w: empty primitive list", ErrInvalidConfig)
	}
	m := &MixedEdge[B]{
		names:    append([]string(nil), primitives...),
		ops:      make([]nn.Module[B], 0, len(primitives)),
		channels: c,
		stride:   stride,
	}
	for _, name := range primitives {
		op, err := lib.New(name, c, stride, false, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("mixed edge: %w", err)
		}
		if strings.Contains(name, "pool") {
			op = nn.NewSequential[B](op, nn.NewBatchNorm2D(c, false, backend))
		}
		m.ops = append(m.ops, op)
	}
	return m, nil
}

// Forward computes the weighted sum of all operation outputs.
//
// weights must have shape [numOps]; the operations are summed in catalogue
// order. Panics on a weight or channel mismatch.
func (m *MixedEdge[B]) Forward(input, weights *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if ws := weights.Shape(); len(ws) != 1 || ws[0] != len(m.ops) {
		panic(fmt.Sprintf("mixed edge: weights shape %v, want [%d]", ws, len(m.ops)))
	}
	if s := input.Shape(); len(s) != 4 || s[1] != m.channels {
		panic(fmt.Sprintf("mixed edge: expected input [N,%d,H,W], got %v", m.channels, s))
	}

	var out *tensor.Tensor[float32, B]
	for i, op := range m.ops {
		term := op.Forward(input).Mul(weights.Narrow(0, i, 1))
		if out == nil {
			out = term
		} else {
			out = out.Add(term)
		}
	}
	return out
}

// Parameters returns the weights of every operation.
func (m *MixedEdge[B]) Parameters() []*nn.Parameter[B] {
	return nn.CollectParameters(m.ops...)
}

// Children returns the operations in catalogue order.
func (m *MixedEdge[B]) Children() []nn.Module[B] {
	return m.ops
}

// Primitives returns the operation names in catalogue order.
func (m *MixedEdge[B]) Primitives() []string {
	return m.names
}

// Stride returns the edge stride.
func (m *MixedEdge[B]) Stride() int {
	return m.stride
}
