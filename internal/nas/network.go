package nas

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/tensor"
)

// alphaScale scales the N(0, 1) initialization of the architecture weights so
// the initial mixture is near uniform.
const alphaScale = 1e-3

// Config holds the network hyperparameters.
type Config struct {
	C              int   `json:"c"`               // initial channels
	NumClasses     int   `json:"num_classes"`     // classifier outputs
	Layers         int   `json:"layers"`          // number of cells
	Steps          int   `json:"steps"`           // internal nodes per cell
	Multiplier     int   `json:"multiplier"`      // states concatenated into a cell output
	StemMultiplier int   `json:"stem_multiplier"` // stem width = StemMultiplier * C
	InputChannels  int   `json:"input_channels"`  // image channels
	Seed           int64 `json:"seed"`            // weight and alpha initialization

	// Primitives is the mixed-edge catalogue. Nil means Primitives.
	Primitives []string `json:"primitives"`
}

// DefaultConfig returns the CIFAR-10 search configuration.
func DefaultConfig() Config {
	return Config{
		C:              16,
		NumClasses:     10,
		Layers:         8,
		Steps:          4,
		Multiplier:     4,
		StemMultiplier: 3,
		InputChannels:  3,
		Primitives:     slices.Clone(Primitives),
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.C == 0 {
		c.C = d.C
	}
	if c.NumClasses == 0 {
		c.NumClasses = d.NumClasses
	}
	if c.Layers == 0 {
		c.Layers = d.Layers
	}
	if c.Steps == 0 {
		c.Steps = d.Steps
	}
	if c.Multiplier == 0 {
		c.Multiplier = d.Multiplier
	}
	if c.StemMultiplier == 0 {
		c.StemMultiplier = d.StemMultiplier
	}
	if c.InputChannels == 0 {
		c.InputChannels = d.InputChannels
	}
	if len(c.Primitives) == 0 {
		c.Primitives = d.Primitives
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.C <= 0:
		return fmt.Errorf("%w: channels must be positive, got %d", ErrInvalidConfig, c.C)
	case c.NumClasses <= 0:
		return fmt.Errorf("%w: num classes must be positive, got %d", ErrInvalidConfig, c.NumClasses)
	case c.Layers <= 0:
		return fmt.Errorf("%w: layers must be positive, got %d", ErrInvalidConfig, c.Layers)
	case c.Steps <= 0:
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidConfig, c.Steps)
	case c.Multiplier <= 0 || c.Multiplier > c.Steps+2:
		return fmt.Errorf("%w: multiplier must be in [1, %d], got %d", ErrInvalidConfig, c.Steps+2, c.Multiplier)
	case c.StemMultiplier <= 0:
		return fmt.Errorf("%w: stem multiplier must be positive, got %d", ErrInvalidConfig, c.StemMultiplier)
	case c.InputChannels <= 0:
		return fmt.Errorf("%w: input channels must be positive, got %d", ErrInvalidConfig, c.InputChannels)
	}

	seen := make(map[string]bool, len(c.Primitives))
	searchable := 0
	for _, name := range c.Primitives {
		if seen[name] {
			return fmt.Errorf("%w: duplicate primitive %q", ErrInvalidConfig, name)
		}
		seen[name] = true
		if name != NoneOp {
			searchable++
		}
	}
	if searchable == 0 {
		return fmt.Errorf("%w: primitives %v contain no operation besides %q", ErrInvalidConfig, c.Primitives, NoneOp)
	}
	return nil
}

// IsReduction reports whether cell i of a layers-deep network is a
// reduction cell. Reductions sit at layers/3 and 2*layers/3.
func IsReduction(i, layers int) bool {
	return i == layers/3 || i == 2*layers/3
}

// Network is the search network.
//
// Architecture:
//
//	stem: conv3x3(InputChannels → StemMultiplier*C) → bn
//	cells: Layers cells, reduction at Layers/3 and 2*Layers/3
//	head: global average pool → linear(→ NumClasses)
//
// The network owns two architecture-weight parameters of shape
// [NumEdges(Steps), len(Primitives)]: alpha_normal, shared by every normal
// cell, and alpha_reduce, shared by every reduction cell.
type Network[B tensor.Backend] struct {
	cfg        Config
	lib        *Library[B]
	criterion  nn.Criterion[B]
	stem       *nn.Sequential[B]
	cells      []*Cell[B]
	pool       *nn.GlobalAvgPool2D[B]
	classifier *nn.Linear[B]

	alphaNormal *nn.Parameter[B]
	alphaReduce *nn.Parameter[B]

	backend B
}

// NewNetwork builds a search network over the default library.
// A nil criterion means cross-entropy.
func NewNetwork[B tensor.Backend](cfg Config, criterion nn.Criterion[B], backend B) (*Network[B], error) {
	return NewNetworkWithLibrary(cfg, DefaultLibrary[B](), criterion, backend)
}

// NewNetworkWithLibrary builds a search network whose primitives are looked
// up in lib.
func NewNetworkWithLibrary[B tensor.Backend](cfg Config, lib *Library[B], criterion nn.Criterion[B], backend B) (*Network[B], error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, name := range cfg.Primitives {
		if !lib.Has(name) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPrimitive, name)
		}
	}
	if criterion == nil {
		criterion = nn.NewCrossEntropyLoss(backend)
	}

	//nolint:gosec // weight initialization, not security sensitive
	rng := rand.New(rand.NewSource(cfg.Seed))

	n := &Network[B]{
		cfg:       cfg,
		lib:       lib,
		criterion: criterion,
		backend:   backend,
	}

	cCurr := cfg.StemMultiplier * cfg.C
	n.stem = nn.NewSequential[B](
		nn.NewConv2D(nn.Conv2DConfig{
			InChannels: cfg.InputChannels, OutChannels: cCurr,
			KernelH: 3, PadH: 1, PadW: 1,
			Rand: rng,
		}, backend),
		nn.NewBatchNorm2D(cCurr, true, backend),
	)

	cpp, cp, cCurr := cCurr, cCurr, cfg.C
	reductionPrev := false
	for i := 0; i < cfg.Layers; i++ {
		reduction := IsReduction(i, cfg.Layers)
		if reduction {
			cCurr *= 2
		}
		cell, err := NewCell(CellConfig{
			Steps:         cfg.Steps,
			Multiplier:    cfg.Multiplier,
			CPrevPrev:     cpp,
			CPrev:         cp,
			C:             cCurr,
			Reduction:     reduction,
			ReductionPrev: reductionPrev,
		}, lib, cfg.Primitives, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		n.cells = append(n.cells, cell)
		reductionPrev = reduction
		cpp, cp = cp, cell.OutChannels()
	}

	n.pool = nn.NewGlobalAvgPool2D(backend)
	n.classifier = nn.NewLinear(cp, cfg.NumClasses, rng, backend)

	shape := tensor.Shape{NumEdges(cfg.Steps), len(cfg.Primitives)}
	n.alphaNormal = nn.NewParameter("alpha_normal", initAlpha(shape, rng, backend))
	n.alphaReduce = nn.NewParameter("alpha_reduce", initAlpha(shape, rng, backend))
	return n, nil
}

func initAlpha[B tensor.Backend](shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	t := tensor.RandnFrom(shape, rng, backend)
	data := t.Data()
	for i := range data {
		data[i] *= alphaScale
	}
	return t
}

// Forward computes class scores [batch, NumClasses] for images
// [batch, InputChannels, H, W].
func (n *Network[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	s0 := n.stem.Forward(input)
	s1 := s0

	var weightsNormal, weightsReduce *tensor.Tensor[float32, B]
	for _, cell := range n.cells {
		var weights *tensor.Tensor[float32, B]
		if cell.Reduction() {
			if weightsReduce == nil {
				weightsReduce = n.alphaReduce.Tensor().Softmax(-1)
			}
			weights = weightsReduce
		} else {
			if weightsNormal == nil {
				weightsNormal = n.alphaNormal.Tensor().Softmax(-1)
			}
			weights = weightsNormal
		}
		s0, s1 = s1, cell.Forward(s0, s1, weights)
	}

	return n.classifier.Forward(n.pool.Forward(s1))
}

// Loss runs Forward and applies the criterion.
func (n *Network[B]) Loss(input *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return n.criterion.Forward(n.Forward(input), targets)
}

// Criterion returns the loss used by Loss.
func (n *Network[B]) Criterion() nn.Criterion[B] {
	return n.criterion
}

// ArchParameters returns [alpha_normal, alpha_reduce].
func (n *Network[B]) ArchParameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{n.alphaNormal, n.alphaReduce}
}

// AlphaNormal returns the architecture weights shared by normal cells.
func (n *Network[B]) AlphaNormal() *nn.Parameter[B] {
	return n.alphaNormal
}

// AlphaReduce returns the architecture weights shared by reduction cells.
func (n *Network[B]) AlphaReduce() *nn.Parameter[B] {
	return n.alphaReduce
}

// Parameters returns the ordinary weights. The architecture weights are not
// included.
func (n *Network[B]) Parameters() []*nn.Parameter[B] {
	params := n.stem.Parameters()
	for _, cell := range n.cells {
		params = append(params, cell.Parameters()...)
	}
	return append(params, n.classifier.Parameters()...)
}

// Buffers returns the batch-norm running statistics in module order.
func (n *Network[B]) Buffers() []*nn.Parameter[B] {
	var buffers []*nn.Parameter[B]
	for _, m := range n.Children() {
		buffers = append(buffers, nn.CollectBuffers[B](m)...)
	}
	return buffers
}

// Children returns every module of the network in forward order.
func (n *Network[B]) Children() []nn.Module[B] {
	children := []nn.Module[B]{n.stem}
	for _, cell := range n.cells {
		children = append(children, cell.Children()...)
	}
	return append(children, n.pool, n.classifier)
}

// SetTraining switches every batch-norm layer between batch statistics and
// running statistics.
func (n *Network[B]) SetTraining(training bool) {
	for _, m := range n.Children() {
		nn.SetTraining[B](m, training)
	}
}

// Cells returns the cells in forward order.
func (n *Network[B]) Cells() []*Cell[B] {
	return n.cells
}

// Config returns the configuration with defaults applied.
func (n *Network[B]) Config() Config {
	return n.cfg
}

// Backend returns the backend the network was built on.
func (n *Network[B]) Backend() B {
	return n.backend
}

// CloneWithSharedArchitecture builds a network with the same configuration,
// library and criterion whose architecture weights are copies of this
// network's. The copies do not share storage with the original.
func (n *Network[B]) CloneWithSharedArchitecture() *Network[B] {
	clone, err := NewNetworkWithLibrary(n.cfg, n.lib, n.criterion, n.backend)
	if err != nil {
		panic(fmt.Sprintf("nas: clone of a valid network failed: %v", err))
	}
	clone.alphaNormal.CopyFrom(n.alphaNormal)
	clone.alphaReduce.CopyFrom(n.alphaReduce)
	return clone
}

// LoadWeightsFrom copies the ordinary weights and batch-norm buffers of other
// into n. Both networks must share the same configuration.
func (n *Network[B]) LoadWeightsFrom(other *Network[B]) error {
	if err := copyParameters(n.Parameters(), other.Parameters()); err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	if err := copyParameters(n.Buffers(), other.Buffers()); err != nil {
		return fmt.Errorf("load buffers: %w", err)
	}
	return nil
}

func copyParameters[B tensor.Backend](dst, src []*nn.Parameter[B]) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: %d tensors vs %d", ErrInvalidConfig, len(dst), len(src))
	}
	for i := range dst {
		if !dst[i].Tensor().Shape().Equal(src[i].Tensor().Shape()) {
			return fmt.Errorf("%w: tensor %d (%s) shape %v vs %v", ErrInvalidConfig,
				i, dst[i].Name(), dst[i].Tensor().Shape(), src[i].Tensor().Shape())
		}
	}
	for i := range dst {
		dst[i].CopyFrom(src[i])
	}
	return nil
}

// State dict keys.
const (
	KeyAlphaNormal = "alpha_normal"
	KeyAlphaReduce = "alpha_reduce"
)

// StateDict returns every tensor needed to restore the network: the
// architecture weights under KeyAlphaNormal and KeyAlphaReduce, ordinary
// weights as "weights.<i>", buffers as "buffers.<i>". Values are shared with
// the network.
func (n *Network[B]) StateDict() map[string]*tensor.RawTensor {
	state := map[string]*tensor.RawTensor{
		KeyAlphaNormal: n.alphaNormal.Raw(),
		KeyAlphaReduce: n.alphaReduce.Raw(),
	}
	for i, p := range n.Parameters() {
		state[fmt.Sprintf("weights.%d", i)] = p.Raw()
	}
	for i, b := range n.Buffers() {
		state[fmt.Sprintf("buffers.%d", i)] = b.Raw()
	}
	return state
}

// LoadStateDict restores tensors written by StateDict. Architecture weights
// are required; weights and buffers are restored when present, so a
// dictionary holding only the architecture is accepted.
func (n *Network[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	targets := map[string]*nn.Parameter[B]{
		KeyAlphaNormal: n.alphaNormal,
		KeyAlphaReduce: n.alphaReduce,
	}
	for i, p := range n.Parameters() {
		targets[fmt.Sprintf("weights.%d", i)] = p
	}
	for i, b := range n.Buffers() {
		targets[fmt.Sprintf("buffers.%d", i)] = b
	}

	for _, key := range []string{KeyAlphaNormal, KeyAlphaReduce} {
		if _, ok := state[key]; !ok {
			return fmt.Errorf("load state: missing %q", key)
		}
	}
	for key, raw := range state {
		p, ok := targets[key]
		if !ok {
			return fmt.Errorf("load state: unexpected tensor %q", key)
		}
		if !p.Tensor().Shape().Equal(raw.Shape()) {
			return fmt.Errorf("load state: %q: %w: shape %v, want %v", key, ErrWeightsShape, raw.Shape(), p.Tensor().Shape())
		}
	}
	for key, raw := range state {
		targets[key].Raw().CopyFrom(raw)
	}
	return nil
}

// Genotype derives the discrete architecture from the current architecture
// weights. The softmax is computed directly on the weight values and is not
// recorded on any gradient tape.
func (n *Network[B]) Genotype() Genotype {
	normal, err := ParseWeights(softmaxRows(n.alphaNormal.Tensor()), n.cfg.Steps, n.cfg.Primitives)
	if err != nil {
		panic(fmt.Sprintf("nas: genotype: %v", err))
	}
	reduce, err := ParseWeights(softmaxRows(n.alphaReduce.Tensor()), n.cfg.Steps, n.cfg.Primitives)
	if err != nil {
		panic(fmt.Sprintf("nas: genotype: %v", err))
	}
	concat := Concat(n.cfg.Steps, n.cfg.Multiplier)
	return Genotype{
		Normal:       normal,
		NormalConcat: concat,
		Reduce:       reduce,
		ReduceConcat: slices.Clone(concat),
	}
}

// softmaxRows returns the row-wise softmax of a 2-D tensor.
func softmaxRows[B tensor.Backend](t *tensor.Tensor[float32, B]) [][]float32 {
	s := t.Shape()
	rows, cols := s[0], s[1]
	data := t.Data()
	out := make([][]float32, rows)
	for r := range out {
		row := data[r*cols : (r+1)*cols]
		maxVal := math.Inf(-1)
		for _, v := range row {
			maxVal = math.Max(maxVal, float64(v))
		}
		var sum float64
		exp := make([]float64, cols)
		for i, v := range row {
			exp[i] = math.Exp(float64(v) - maxVal)
			sum += exp[i]
		}
		out[r] = make([]float32, cols)
		for i := range exp {
			out[r][i] = float32(exp[i] / sum)
		}
	}
	return out
}
