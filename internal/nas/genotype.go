package nas

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Edge is one selected input of a genotype node.
type Edge struct {
	Op    string `json:"op"`
	Input int    `json:"input"` // 0, 1: cell inputs; 2+i: node i
}

// Genotype is a discrete cell architecture.
//
// Normal and Reduce hold, per internal node, the two selected inputs.
// The concat slices list the states whose outputs form the cell output.
type Genotype struct {
	Normal       [][2]Edge `json:"normal"`
	NormalConcat []int     `json:"normal_concat"`
	Reduce       [][2]Edge `json:"reduce"`
	ReduceConcat []int     `json:"reduce_concat"`
}

// ParseWeights discretizes the architecture weights of one cell kind.
//
// weights has one row per edge, NumEdges(steps) rows of len(primitives)
// values. For node i, the 2+i incoming edges are ranked by their strongest
// operation other than "none" (stable, so the lower input index wins ties)
// and the top two are kept. Each kept edge takes its strongest operation
// other than "none", the lower operation index winning ties.
func ParseWeights(weights [][]float32, steps int, primitives []string) ([][2]Edge, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidConfig, steps)
	}
	if len(weights) != NumEdges(steps) {
		return nil, fmt.Errorf("%w: %d rows, want %d for %d steps", ErrWeightsShape, len(weights), NumEdges(steps), steps)
	}
	for i, row := range weights {
		if len(row) != len(primitives) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrWeightsShape, i, len(row), len(primitives))
		}
	}
	if !slices.ContainsFunc(primitives, func(p string) bool { return p != NoneOp }) {
		return nil, fmt.Errorf("%w: no primitive besides %q", ErrInvalidConfig, NoneOp)
	}

	gene := make([][2]Edge, 0, steps)
	start := 0
	for i := 0; i < steps; i++ {
		n := 2 + i
		rows := weights[start : start+n]

		inputs := make([]int, n)
		strength := make([]float32, n)
		for j := range inputs {
			inputs[j] = j
			strength[j] = rows[j][bestOp(rows[j], primitives)]
		}
		slices.SortStableFunc(inputs, func(a, b int) int {
			return cmp.Compare(strength[b], strength[a])
		})

		var node [2]Edge
		for e, j := range inputs[:2] {
			node[e] = Edge{Op: primitives[bestOp(rows[j], primitives)], Input: j}
		}
		gene = append(gene, node)
		start += n
	}
	return gene, nil
}

// bestOp returns the index of the largest weight whose primitive is not
// "none". The first maximum wins.
func bestOp(row []float32, primitives []string) int {
	best := -1
	for k, w := range row {
		if primitives[k] == NoneOp {
			continue
		}
		if best < 0 || w > row[best] {
			best = k
		}
	}
	return best
}

// Concat returns the indices of the states concatenated into the cell
// output: [2+steps-multiplier, steps+2).
func Concat(steps, multiplier int) []int {
	out := make([]int, 0, multiplier)
	for i := 2 + steps - multiplier; i < steps+2; i++ {
		out = append(out, i)
	}
	return out
}

// String formats the genotype as
//
//	Genotype(normal=[('sep_conv_3x3', 0), ...], normal_concat=[2, 3, 4, 5], reduce=[...], reduce_concat=[...])
func (g Genotype) String() string {
	var sb strings.Builder
	sb.WriteString("Genotype(normal=")
	writeGene(&sb, g.Normal)
	sb.WriteString(", normal_concat=")
	writeInts(&sb, g.NormalConcat)
	sb.WriteString(", reduce=")
	writeGene(&sb, g.Reduce)
	sb.WriteString(", reduce_concat=")
	writeInts(&sb, g.ReduceConcat)
	sb.WriteString(")")
	return sb.String()
}

func writeGene(sb *strings.Builder, gene [][2]Edge) {
	sb.WriteByte('[')
	first := true
	for _, node := range gene {
		for _, e := range node {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			fmt.Fprintf(sb, "('%s', %d)", e.Op, e.Input)
		}
	}
	sb.WriteByte(']')
}

func writeInts(sb *strings.Builder, xs []int) {
	sb.WriteByte('[')
	for i, x := range xs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%d", x)
	}
	sb.WriteByte(']')
}

// Validate checks that every node selects two valid earlier states and
// registered operations other than "none".
func (g Genotype) Validate(primitives []string) error {
	kinds := []struct {
		name string
		gene [][2]Edge
	}{{"normal", g.Normal}, {"reduce", g.Reduce}}
	for _, kind := range kinds {
		for i, node := range kind.gene {
			for _, e := range node {
				if e.Op == NoneOp || !slices.Contains(primitives, e.Op) {
					return fmt.Errorf("%w: %s node %d uses %q", ErrUnknownPrimitive, kind.name, i, e.Op)
				}
				if e.Input < 0 || e.Input >= 2+i {
					return fmt.Errorf("%w: %s node %d reads state %d", ErrInvalidConfig, kind.name, i, e.Input)
				}
			}
		}
	}
	return nil
}

// MarshalIndent returns the indented JSON encoding of g.
func (g Genotype) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// ParseGenotype decodes a JSON genotype.
func ParseGenotype(data []byte) (Genotype, error) {
	var g Genotype
	if err := json.Unmarshal(data, &g); err != nil {
		return Genotype{}, fmt.Errorf("parse genotype: %w", err)
	}
	return g, nil
}

// LoadGenotype reads a JSON genotype from path and validates it against
// primitives.
func LoadGenotype(path string, primitives []string) (Genotype, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Genotype{}, fmt.Errorf("load genotype: %w", err)
	}
	g, err := ParseGenotype(data)
	if err != nil {
		return Genotype{}, err
	}
	if err := g.Validate(primitives); err != nil {
		return Genotype{}, fmt.Errorf("load genotype %s: %w", path, err)
	}
	return g, nil
}
