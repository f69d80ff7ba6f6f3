package search

import (
	"fmt"
	"strings"

	"github.com/born-ml/darts/internal/autodiff"
	"github.com/born-ml/darts/internal/dataset"
	"github.com/born-ml/darts/internal/nas"
	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/optim"
	"github.com/born-ml/darts/internal/tensor"
)

// Config holds the search hyperparameters.
type Config struct {
	Epochs      int     // default: 50
	LR          float32 // initial weight learning rate (default: 0.025)
	LRMin       float32 // cosine schedule floor (default: 0.001)
	Momentum    float32 // default: 0.9
	WeightDecay float32 // default: 3e-4
	GradClip    float64 // max gradient norm of the weights, 0 disables (default: 5)

	Architect ArchitectConfig
}

// DefaultConfig returns the standard DARTS search settings.
func DefaultConfig() Config {
	return Config{
		Epochs:      50,
		LR:          0.025,
		LRMin:       0.001,
		Momentum:    0.9,
		WeightDecay: 3e-4,
		GradClip:    5,
		Architect:   DefaultArchitectConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Epochs <= 0:
		return fmt.Errorf("search: epochs must be positive, got %d", c.Epochs)
	case c.LR <= 0 || c.LRMin < 0 || c.LRMin > c.LR:
		return fmt.Errorf("search: need 0 <= lr-min <= lr and lr > 0, got lr=%v lr-min=%v", c.LR, c.LRMin)
	case c.Momentum < 0 || c.Momentum >= 1:
		return fmt.Errorf("search: momentum must be in [0, 1), got %v", c.Momentum)
	case c.WeightDecay < 0 || c.Architect.WeightDecay < 0:
		return fmt.Errorf("search: weight decay must be non-negative")
	case c.GradClip < 0:
		return fmt.Errorf("search: grad clip must be non-negative, got %v", c.GradClip)
	}
	return nil
}

// StepStats reports one training step.
type StepStats struct {
	Epoch    int
	Step     int
	Steps    int
	Loss     float32 // training loss before the weight update
	Accuracy float64
	ArchLoss float32 // validation loss of the architecture step
	GradNorm float64 // weight gradient norm before clipping
}

// EpochStats reports one search epoch.
type EpochStats struct {
	Epoch         int
	LR            float32
	TrainLoss     float64
	TrainAccuracy float64
	ValidLoss     float64
	ValidAccuracy float64
	Genotype      nas.Genotype
}

// Observer receives progress reports. Either method may be a no-op.
type Observer interface {
	OnStep(StepStats)
	OnEpoch(EpochStats)
}

// Searcher alternates weight and architecture updates on a network.
type Searcher[B autodiff.BackwardCapable] struct {
	cfg       Config
	net       *nas.Network[B]
	backend   B
	optimizer *optim.SGD[B]
	scheduler *optim.CosineAnnealingLR
	architect *Architect[B]
	observer  Observer
}

// NewSearcher creates a searcher for net. observer may be nil.
func NewSearcher[B autodiff.BackwardCapable](net *nas.Network[B], cfg Config, backend B, observer Observer) (*Searcher[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	optimizer := optim.NewSGD(net.Parameters(), optim.SGDConfig{
		LR:          cfg.LR,
		Momentum:    cfg.Momentum,
		WeightDecay: cfg.WeightDecay,
	})
	return &Searcher[B]{
		cfg:       cfg,
		net:       net,
		backend:   backend,
		optimizer: optimizer,
		scheduler: optim.NewCosineAnnealingLR(optimizer, cfg.Epochs, cfg.LRMin),
		architect: NewArchitect(net, cfg.Architect, backend),
		observer:  observer,
	}, nil
}

// Optimizer returns the weight optimizer.
func (s *Searcher[B]) Optimizer() *optim.SGD[B] {
	return s.optimizer
}

// Architect returns the architecture optimizer.
func (s *Searcher[B]) Architect() *Architect[B] {
	return s.architect
}

// Prefixes of the optimizer tensors in StateDict.
const (
	WeightOptimizerPrefix = "optim."
	ArchOptimizerPrefix   = "arch_optim."
)

// Epoch returns the number of completed epochs.
func (s *Searcher[B]) Epoch() int {
	return s.scheduler.Epoch()
}

// SetEpoch resumes the learning-rate schedule after epoch completed epochs.
func (s *Searcher[B]) SetEpoch(epoch int) error {
	if epoch < 0 || epoch > s.cfg.Epochs {
		return fmt.Errorf("search: epoch %d outside [0, %d]", epoch, s.cfg.Epochs)
	}
	s.scheduler.SetEpoch(epoch)
	return nil
}

// StateDict exports the state of both optimizers: the SGD velocities under
// "optim." and the architecture Adam moments under "arch_optim.".
func (s *Searcher[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for k, v := range s.optimizer.StateDict() {
		state[WeightOptimizerPrefix+k] = v
	}
	for k, v := range s.architect.Optimizer().StateDict() {
		state[ArchOptimizerPrefix+k] = v
	}
	return state
}

// LoadStateDict restores optimizer state written by StateDict. Keys without
// either prefix are ignored.
func (s *Searcher[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	weights := make(map[string]*tensor.RawTensor)
	arch := make(map[string]*tensor.RawTensor)
	for k, v := range state {
		if rest, ok := strings.CutPrefix(k, WeightOptimizerPrefix); ok {
			weights[rest] = v
		} else if rest, ok := strings.CutPrefix(k, ArchOptimizerPrefix); ok {
			arch[rest] = v
		}
	}
	if err := s.optimizer.LoadStateDict(weights); err != nil {
		return fmt.Errorf("search: weight optimizer: %w", err)
	}
	if err := s.architect.Optimizer().LoadStateDict(arch); err != nil {
		return fmt.Errorf("search: architecture optimizer: %w", err)
	}
	return nil
}

// Run searches from the current epoch up to cfg.Epochs. Every epoch trains
// on train (with an architecture step per batch on the next batch of valid),
// evaluates on valid and derives the genotype.
func (s *Searcher[B]) Run(train, valid *dataset.Loader) []EpochStats {
	history := make([]EpochStats, 0, s.cfg.Epochs-s.Epoch())
	for epoch := s.Epoch(); epoch < s.cfg.Epochs; epoch++ {
		stats := s.RunEpoch(epoch, train, valid)
		history = append(history, stats)
		if s.observer != nil {
			s.observer.OnEpoch(stats)
		}
	}
	return history
}

// RunEpoch trains and evaluates one epoch and advances the learning-rate
// schedule.
func (s *Searcher[B]) RunEpoch(epoch int, train, valid *dataset.Loader) EpochStats {
	stats := EpochStats{Epoch: epoch, LR: s.optimizer.GetLR()}
	stats.TrainLoss, stats.TrainAccuracy = s.TrainEpoch(epoch, train, valid)
	stats.ValidLoss, stats.ValidAccuracy = s.Evaluate(valid)
	stats.Genotype = s.net.Genotype()
	s.scheduler.Step()
	return stats
}

// TrainEpoch runs one pass over train and returns the sample-weighted mean
// loss and accuracy.
func (s *Searcher[B]) TrainEpoch(epoch int, train, valid *dataset.Loader) (loss, accuracy float64) {
	s.net.SetTraining(true)
	train.Reset()

	var samples int
	steps := train.NumBatches()
	for step := 0; ; step++ {
		batch, ok := train.Next()
		if !ok {
			break
		}
		x, y := dataset.ToTensors(batch, s.backend)
		vx, vy := dataset.ToTensors(valid.Cycle(), s.backend)

		lr := s.optimizer.GetLR()
		archLoss := s.architect.Step(x, y, vx, vy, lr, s.optimizer)

		var logits *tensor.Tensor[float32, B]
		stepLoss, grads := computeGradients(s.backend, func() *tensor.Tensor[float32, B] {
			logits = s.net.Forward(x)
			return s.net.Criterion().Forward(logits, y)
		})
		params := s.net.Parameters()
		var norm float64
		if s.cfg.GradClip > 0 {
			norm = optim.ClipGradNorm(params, grads, s.cfg.GradClip)
		}
		s.optimizer.Step(grads)

		acc := nn.Accuracy(logits, y)
		loss += float64(stepLoss) * float64(batch.N)
		accuracy += acc * float64(batch.N)
		samples += batch.N

		if s.observer != nil {
			s.observer.OnStep(StepStats{
				Epoch:    epoch,
				Step:     step,
				Steps:    steps,
				Loss:     stepLoss,
				Accuracy: acc,
				ArchLoss: archLoss,
				GradNorm: norm,
			})
		}
	}
	if samples == 0 {
		return 0, 0
	}
	return loss / float64(samples), accuracy / float64(samples)
}

// Evaluate computes the mean loss and accuracy over one pass of loader with
// batch norm in evaluation mode. Nothing is recorded on the tape.
func (s *Searcher[B]) Evaluate(loader *dataset.Loader) (loss, accuracy float64) {
	s.net.SetTraining(false)
	defer s.net.SetTraining(true)

	tape := s.backend.GetTape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	loader.Reset()
	var samples int
	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
		x, y := dataset.ToTensors(batch, s.backend)
		logits := s.net.Forward(x)
		loss += float64(s.net.Criterion().Forward(logits, y).Item()) * float64(batch.N)
		accuracy += nn.Accuracy(logits, y) * float64(batch.N)
		samples += batch.N
	}
	loader.Reset()
	if samples == 0 {
		return 0, 0
	}
	return loss / float64(samples), accuracy / float64(samples)
}
