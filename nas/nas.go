// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nas

import (
	"io"
	"math/rand"

	"github.com/born-ml/darts/internal/nas"
	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/serialization"
	"github.com/born-ml/darts/internal/tensor"
)

// NoneOp is the name of the zero operation.
const NoneOp = nas.NoneOp

// State dictionary keys of the architecture weights.
const (
	KeyAlphaNormal = nas.KeyAlphaNormal
	KeyAlphaReduce = nas.KeyAlphaReduce
)

// Errors.
var (
	ErrInvalidConfig    = nas.ErrInvalidConfig
	ErrUnknownPrimitive = nas.ErrUnknownPrimitive
	ErrWeightsShape     = nas.ErrWeightsShape
)

// Primitives returns a copy of the default search catalogue.
func Primitives() []string {
	return append([]string(nil), nas.Primitives...)
}

// OpFactory builds one candidate operation.
type OpFactory[B tensor.Backend] = nas.OpFactory[B]

// Library maps primitive names to factories.
type Library[B tensor.Backend] = nas.Library[B]

// NewLibrary returns an empty library.
func NewLibrary[B tensor.Backend]() *Library[B] {
	return nas.NewLibrary[B]()
}

// DefaultLibrary returns a library holding every built-in operation.
func DefaultLibrary[B tensor.Backend]() *Library[B] {
	return nas.DefaultLibrary[B]()
}

// MixedEdge is the weighted sum of every catalogue operation.
type MixedEdge[B tensor.Backend] = nas.MixedEdge[B]

// NewMixedEdge builds a mixed edge over primitives.
func NewMixedEdge[B tensor.Backend](lib *Library[B], primitives []string, c, stride int, rng *rand.Rand, backend B) (*MixedEdge[B], error) {
	return nas.NewMixedEdge(lib, primitives, c, stride, rng, backend)
}

// CellConfig configures a Cell.
type CellConfig = nas.CellConfig

// Cell is a DAG of mixed edges.
type Cell[B tensor.Backend] = nas.Cell[B]

// NewCell builds a cell.
func NewCell[B tensor.Backend](cfg CellConfig, lib *Library[B], primitives []string, rng *rand.Rand, backend B) (*Cell[B], error) {
	return nas.NewCell(cfg, lib, primitives, rng, backend)
}

// NumEdges returns the number of mixed edges in a cell with steps nodes.
func NumEdges(steps int) int {
	return nas.NumEdges(steps)
}

// Config holds the network hyperparameters.
type Config = nas.Config

// DefaultConfig returns the CIFAR-10 search configuration.
func DefaultConfig() Config {
	return nas.DefaultConfig()
}

// IsReduction reports whether cell i of a layers-deep network reduces.
func IsReduction(i, layers int) bool {
	return nas.IsReduction(i, layers)
}

// Network is the search network.
type Network[B tensor.Backend] = nas.Network[B]

// NewNetwork builds a search network. A nil criterion means cross-entropy.
func NewNetwork[B tensor.Backend](cfg Config, criterion nn.Criterion[B], backend B) (*Network[B], error) {
	return nas.NewNetwork(cfg, criterion, backend)
}

// NewNetworkWithLibrary builds a search network over a custom library.
func NewNetworkWithLibrary[B tensor.Backend](cfg Config, lib *Library[B], criterion nn.Criterion[B], backend B) (*Network[B], error) {
	return nas.NewNetworkWithLibrary(cfg, lib, criterion, backend)
}

// Edge is one selected input of a genotype node.
type Edge = nas.Edge

// Genotype is a discrete cell design.
type Genotype = nas.Genotype

// ParseWeights selects the two strongest inputs of every node from softmaxed
// architecture weights.
func ParseWeights(weights [][]float32, steps int, primitives []string) ([][2]Edge, error) {
	return nas.ParseWeights(weights, steps, primitives)
}

// Concat returns the node indices a cell concatenates into its output.
func Concat(steps, multiplier int) []int {
	return nas.Concat(steps, multiplier)
}

// ParseGenotype decodes a genotype from JSON.
func ParseGenotype(data []byte) (Genotype, error) {
	return nas.ParseGenotype(data)
}

// CheckpointMeta records search progress in a checkpoint.
type CheckpointMeta = serialization.CheckpointMeta

// CheckpointHeader is the decoded header of a checkpoint.
type CheckpointHeader = serialization.Header

// SaveCheckpoint writes net to a .darts file.
func SaveCheckpoint[B tensor.Backend](path string, net *Network[B], meta *CheckpointMeta, metadata map[string]string) error {
	return nas.SaveCheckpoint(path, net, meta, metadata)
}

// WriteCheckpoint writes net to w in .darts format.
func WriteCheckpoint[B tensor.Backend](w io.Writer, net *Network[B], meta *CheckpointMeta, metadata map[string]string) error {
	return nas.WriteCheckpoint(w, net, meta, metadata)
}

// LoadCheckpoint rebuilds a network from a .darts file.
func LoadCheckpoint[B tensor.Backend](path string, criterion nn.Criterion[B], backend B) (*Network[B], CheckpointHeader, error) {
	return nas.LoadCheckpoint(path, criterion, backend)
}

// ReadCheckpoint rebuilds a network from a .darts stream.
func ReadCheckpoint[B tensor.Backend](r io.Reader, criterion nn.Criterion[B], backend B) (*Network[B], CheckpointHeader, error) {
	return nas.ReadCheckpoint(r, criterion, backend)
}

// SaveCheckpointWithState writes net and extra tensors, such as optimizer
// state, to a .darts file.
func SaveCheckpointWithState[B tensor.Backend](path string, net *Network[B], extra map[string]*tensor.RawTensor, meta *CheckpointMeta, metadata map[string]string) error {
	return nas.SaveCheckpointWithState(path, net, extra, meta, metadata)
}

// LoadCheckpointWithState rebuilds a network from a .darts file and returns
// the stored tensors that do not belong to it.
func LoadCheckpointWithState[B tensor.Backend](path string, criterion nn.Criterion[B], backend B) (*Network[B], map[string]*tensor.RawTensor, CheckpointHeader, error) {
	return nas.LoadCheckpointWithState(path, criterion, backend)
}

// LoadGenotype reads a JSON genotype file and validates it against
// primitives.
func LoadGenotype(path string, primitives []string) (Genotype, error) {
	return nas.LoadGenotype(path, primitives)
}
