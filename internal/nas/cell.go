package nas

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// CellConfig describes one search cell.
type CellConfig struct {
	Steps      int // internal nodes
	Multiplier int // trailing states concatenated into the output

	CPrevPrev int // channels of s0
	CPrev     int // channels of s1
	C         int // working width of every edge

	Reduction     bool // edges leaving s0 and s1 use stride 2
	ReductionPrev bool // the cell producing s0 was followed by a reduction
}

// Validate checks the configuration.
func (c CellConfig) Validate() error {
	switch {
	case c.Steps <= 0:
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidConfig, c.Steps)
	case c.Multiplier <= 0 || c.Multiplier > c.Steps+2:
		return fmt.Errorf("%w: multiplier must be in [1, %d], got %d", ErrInvalidConfig, c.Steps+2, c.Multiplier)
	case c.CPrevPrev <= 0 || c.CPrev <= 0 || c.C <= 0:
		return fmt.Errorf("%w: channels must be positive, got cpp=%d cp=%d c=%d", ErrInvalidConfig, c.CPrevPrev, c.CPrev, c.C)
	case c.ReductionPrev && c.C < 2:
		return fmt.Errorf("%w: factorized reduce needs at least 2 channels, got %d", ErrInvalidConfig, c.C)
	}
	return nil
}

// NumEdges returns the number of mixed edges in a cell with the given number
// of internal nodes: Σ_{i<steps} (2+i).
func NumEdges(steps int) int {
	return edgeOffset(steps)
}

// edgeOffset is the index of the first edge entering node i.
func edgeOffset(node int) int {
	return 2*node + node*(node-1)/2
}

// Cell is a DAG of mixed edges.
//
// Node i receives one edge from each of the two preprocessed inputs and from
// every earlier node. All edges live in one flat slice; node i owns
// edges [edgeOffset(i), edgeOffset(i)+2+i), and edge offset+j reads state j.
type Cell[B tensor.Backend] struct {
	cfg         CellConfig
	preprocess0 nn.Module[B]
	preprocess1 nn.Module[B]
	edges       []*MixedEdge[B]
	numOps      int
}

// NewCell builds a cell whose edges mix the given primitives.
func NewCell[B tensor.Backend](cfg CellConfig, lib *Library[B], primitives []string, rng *rand.Rand, backend B) (*Cell[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Cell[B]{
		cfg:    cfg,
		edges:  make([]*MixedEdge[B], 0, NumEdges(cfg.Steps)),
		numOps: len(primitives),
	}
	if cfg.ReductionPrev {
		c.preprocess0 = NewFactorizedReduce(cfg.CPrevPrev, cfg.C, false, rng, backend)
	} else {
		c.preprocess0 = NewReLUConvBN(cfg.CPrevPrev, cfg.C, 1, 1, 0, false, rng, backend)
	}
	c.preprocess1 = NewReLUConvBN(cfg.CPrev, cfg.C, 1, 1, 0, false, rng, backend)

	for i := 0; i < cfg.Steps; i++ {
		for j := 0; j < 2+i; j++ {
			stride := 1
			if cfg.Reduction && j < 2 {
				stride = 2
			}
			edge, err := NewMixedEdge(lib, primitives, cfg.C, stride, rng, backend)
			if err != nil {
				return nil, fmt.Errorf("cell node %d edge %d: %w", i, j, err)
			}
			c.edges = append(c.edges, edge)
		}
	}
	return c, nil
}

// Forward runs the cell on the outputs of the two preceding cells.
//
// weights must have shape [NumEdges(), numOps]. The output concatenates the
// last Multiplier states along the channel axis.
func (c *Cell[B]) Forward(s0, s1, weights *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if ws := weights.Shape(); len(ws) != 2 || ws[0] != len(c.edges) || ws[1] != c.numOps {
		panic(fmt.Sprintf("cell: weights shape %v, want [%d %d]", ws, len(c.edges), c.numOps))
	}

	states := make([]*tensor.Tensor[float32, B], 0, 2+c.cfg.Steps)
	states = append(states, c.preprocess0.Forward(s0), c.preprocess1.Forward(s1))

	for i := 0; i < c.cfg.Steps; i++ {
		offset := edgeOffset(i)
		var node *tensor.Tensor[float32, B]
		for j, h := range states {
			row := weights.Narrow(0, offset+j, 1).Reshape(c.numOps)
			y := c.edges[offset+j].Forward(h, row)
			if node == nil {
				node = y
			} else {
				node = node.Add(y)
			}
		}
		states = append(states, node)
	}

	return tensor.Cat(states[len(states)-c.cfg.Multiplier:], 1)
}

// NumEdges returns the number of mixed edges in the cell.
func (c *Cell[B]) NumEdges() int {
	return len(c.edges)
}

// EdgeRange returns the half-open range of edge indices entering node.
func (c *Cell[B]) EdgeRange(node int) (start, end int) {
	if node < 0 || node >= c.cfg.Steps {
		panic(fmt.Sprintf("cell: node %d out of range [0, %d)", node, c.cfg.Steps))
	}
	start = edgeOffset(node)
	return start, start + 2 + node
}

// Edge returns the mixed edge at index i of the arena.
func (c *Cell[B]) Edge(i int) *MixedEdge[B] {
	return c.edges[i]
}

// OutChannels returns Multiplier * C.
func (c *Cell[B]) OutChannels() int {
	return c.cfg.Multiplier * c.cfg.C
}

// Reduction reports whether the cell halves the spatial extent.
func (c *Cell[B]) Reduction() bool {
	return c.cfg.Reduction
}

// Config returns the cell configuration.
func (c *Cell[B]) Config() CellConfig {
	return c.cfg
}

// Parameters returns the preprocessing and edge weights.
func (c *Cell[B]) Parameters() []*nn.Parameter[B] {
	params := nn.CollectParameters(c.preprocess0, c.preprocess1)
	for _, e := range c.edges {
		params = append(params, e.Parameters()...)
	}
	return params
}

// Children returns the preprocessing modules followed by every edge
// operation in arena order.
func (c *Cell[B]) Children() []nn.Module[B] {
	children := []nn.Module[B]{c.preprocess0, c.preprocess1}
	for _, e := range c.edges {
		children = append(children, e.Children()...)
	}
	return children
}
