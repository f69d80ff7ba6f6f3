package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/born-ml/darts/internal/autodiff"
	"github.com/born-ml/darts/internal/backend/cpu"
	"github.com/born-ml/darts/internal/dataset"
	"github.com/born-ml/darts/internal/nas"
	"github.com/born-ml/darts/internal/search"
	"github.com/born-ml/darts/internal/serialization"
	"github.com/born-ml/darts/internal/tensor"
)

//nolint:gocyclo,cyclop // flag wiring
func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "Directory containing the CIFAR-10 binary files")
	maxSamples := fs.Int("samples", 0, "Max training samples to load (0 = all)")
	useSynthetic := fs.Bool("synthetic", false, "Use synthetic data instead of CIFAR-10")
	trainPortion := fs.Float64("train-portion", 0.5, "Fraction of the training set used for weights; the rest drives the architecture")
	batchSize := fs.Int("batch", 64, "Batch size")
	epochs := fs.Int("epochs", 50, "Number of search epochs")
	channels := fs.Int("channels", 16, "Initial channels")
	layers := fs.Int("layers", 8, "Number of cells")
	steps := fs.Int("steps", 4, "Intermediate nodes per cell")
	multiplier := fs.Int("multiplier", 4, "Nodes concatenated into a cell output")
	lr := fs.Float64("lr", 0.025, "Initial weight learning rate")
	lrMin := fs.Float64("lr-min", 0.001, "Minimum weight learning rate")
	momentum := fs.Float64("momentum", 0.9, "Weight momentum")
	wd := fs.Float64("wd", 3e-4, "Weight decay")
	archLR := fs.Float64("arch-lr", 3e-4, "Architecture learning rate")
	archWD := fs.Float64("arch-wd", 1e-3, "Architecture weight decay")
	unrolled := fs.Bool("unrolled", false, "Use the second-order architecture gradient")
	gradClip := fs.Float64("grad-clip", 5, "Max weight gradient norm (0 disables)")
	seed := fs.Int64("seed", 2, "Random seed")
	logEvery := fs.Int("log-every", 50, "Print training progress every N steps (0 disables)")
	out := fs.String("out", "genotype.json", "File for the final genotype (empty disables)")
	checkpoint := fs.String("checkpoint", "search.darts", "Checkpoint written after every epoch (empty disables)")
	resume := fs.String("resume", "", "Checkpoint to continue a search from; its network configuration replaces the architecture flags")
	_ = fs.Parse(args)

	fmt.Println("DARTS - Differentiable Architecture Search")
	fmt.Println("==========================================")

	var full *dataset.Dataset
	var err error
	if *useSynthetic {
		n := *maxSamples
		if n == 0 {
			n = 512
		}
		fmt.Printf("\nUsing %d synthetic samples\n", n)
		full = dataset.Synthetic(n, dataset.CIFARChannels, 16, 16, dataset.CIFARNumClasses, *seed)
	} else {
		fmt.Printf("\nLoading CIFAR-10 from: %s\n", *dataDir)
		full, err = dataset.LoadCIFAR10(*dataDir, true, *maxSamples)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Println("\nCIFAR-10 binary files not found.")
				fmt.Println("Download cifar-10-binary.tar.gz from https://www.cs.toronto.edu/~kriz/cifar.html")
				fmt.Println("and extract it into the data directory, or run with -synthetic.")
			}
			log.Fatalf("Failed to load data: %v", err)
		}
	}

	trainSet, validSet, err := full.Split(*trainPortion)
	if err != nil {
		log.Fatalf("Failed to split data: %v", err)
	}
	fmt.Printf("   Weights: %d samples, Architecture: %d samples\n", trainSet.Len(), validSet.Len())

	trainLoader, err := dataset.NewLoader(trainSet, dataset.LoaderConfig{
		BatchSize: *batchSize, Shuffle: true, Augment: !*useSynthetic, Seed: *seed,
	})
	if err != nil {
		log.Fatalf("Failed to create loader: %v", err)
	}
	validLoader, err := dataset.NewLoader(validSet, dataset.LoaderConfig{
		BatchSize: *batchSize, Shuffle: true, Seed: *seed + 1,
	})
	if err != nil {
		log.Fatalf("Failed to create loader: %v", err)
	}

	backend := autodiff.New(cpu.New())
	var (
		net       *nas.Network[backendT]
		saved     map[string]*tensor.RawTensor
		savedMeta *serialization.CheckpointMeta
	)
	if *resume != "" {
		var header serialization.Header
		net, saved, header, err = nas.LoadCheckpointWithState(*resume, nil, backend)
		if err != nil {
			log.Fatalf("Failed to load checkpoint: %v", err)
		}
		if header.CheckpointMeta == nil {
			log.Fatalf("Checkpoint %s holds no search progress", *resume)
		}
		savedMeta = header.CheckpointMeta
		if c := net.Config(); c.InputChannels != full.Channels || c.NumClasses != full.NumClasses {
			log.Fatalf("Checkpoint expects %d channels and %d classes, data has %d and %d",
				c.InputChannels, c.NumClasses, full.Channels, full.NumClasses)
		}
		fmt.Printf("\nResuming from %s after epoch %d\n", *resume, savedMeta.Epoch)
	} else {
		net, err = nas.NewNetwork(nas.Config{
			C:             *channels,
			NumClasses:    full.NumClasses,
			Layers:        *layers,
			Steps:         *steps,
			Multiplier:    *multiplier,
			InputChannels: full.Channels,
			Seed:          *seed,
		}, nil, backend)
		if err != nil {
			log.Fatalf("Failed to build network: %v", err)
		}
	}
	fmt.Printf("\nNetwork: %d cells, %d weight tensors, %d x %d architecture weights per kind\n",
		len(net.Cells()), len(net.Parameters()), nas.NumEdges(net.Config().Steps), len(net.Config().Primitives))

	cfg := search.DefaultConfig()
	cfg.Epochs = *epochs
	cfg.LR = float32(*lr)
	cfg.LRMin = float32(*lrMin)
	cfg.Momentum = float32(*momentum)
	cfg.WeightDecay = float32(*wd)
	cfg.GradClip = *gradClip
	cfg.Architect.LR = float32(*archLR)
	cfg.Architect.WeightDecay = float32(*archWD)
	cfg.Architect.Unrolled = *unrolled

	obs := &progress{
		net:        net,
		cfg:        cfg,
		checkpoint: *checkpoint,
		logEvery:   *logEvery,
		metadata: map[string]string{
			"dataset":  datasetName(*useSynthetic),
			"unrolled": fmt.Sprint(*unrolled),
		},
	}
	searcher, err := search.NewSearcher(net, cfg, backend, obs)
	if err != nil {
		log.Fatalf("Invalid search configuration: %v", err)
	}
	obs.searcher = searcher
	if savedMeta != nil {
		if err := searcher.LoadStateDict(saved); err != nil {
			log.Fatalf("Failed to restore optimizer state: %v", err)
		}
		if err := searcher.SetEpoch(savedMeta.Epoch); err != nil {
			log.Fatalf("Failed to resume: %v", err)
		}
		obs.steps = savedMeta.Step
	}

	fmt.Printf("\nSearching for %d epochs (batch %d, unrolled=%v)\n", cfg.Epochs-searcher.Epoch(), *batchSize, *unrolled)
	start := time.Now()
	history := searcher.Run(trainLoader, validLoader)
	fmt.Printf("\nSearch finished in %v\n", time.Since(start).Round(time.Second))

	final := net.Genotype()
	if len(history) > 0 {
		final = history[len(history)-1].Genotype
	}
	fmt.Printf("\nFinal genotype:\n%s\n", final)

	if *out != "" {
		data, err := final.MarshalIndent()
		if err != nil {
			log.Fatalf("Failed to encode genotype: %v", err)
		}
		if err := os.WriteFile(*out, append(data, '\n'), 0o600); err != nil {
			log.Fatalf("Failed to write genotype: %v", err)
		}
		fmt.Printf("Genotype saved to %s\n", *out)
	}
}

func datasetName(synthetic bool) string {
	if synthetic {
		return "synthetic"
	}
	return "cifar10"
}

type backendT = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// progress prints search progress and checkpoints after every epoch.
type progress struct {
	net        *nas.Network[backendT]
	searcher   *search.Searcher[backendT]
	cfg        search.Config
	checkpoint string
	logEvery   int
	metadata   map[string]string

	steps int64
}

func (p *progress) OnStep(s search.StepStats) {
	p.steps++
	if p.logEvery > 0 && (s.Step+1)%p.logEvery == 0 {
		fmt.Printf("  epoch %d step %d/%d  loss %.4f  acc %.2f%%  arch loss %.4f  |g| %.3f\n",
			s.Epoch+1, s.Step+1, s.Steps, s.Loss, s.Accuracy*100, s.ArchLoss, s.GradNorm)
	}
}

func (p *progress) OnEpoch(e search.EpochStats) {
	fmt.Printf("Epoch %d/%d  lr %.5f  train loss %.4f acc %.2f%%  valid loss %.4f acc %.2f%%\n",
		e.Epoch+1, p.cfg.Epochs, e.LR, e.TrainLoss, e.TrainAccuracy*100, e.ValidLoss, e.ValidAccuracy*100)
	fmt.Printf("  %s\n", e.Genotype)

	if p.checkpoint == "" {
		return
	}
	meta := &serialization.CheckpointMeta{
		Epoch:         p.searcher.Epoch(),
		Step:          p.steps,
		TrainLoss:     e.TrainLoss,
		ValidLoss:     e.ValidLoss,
		ValidAccuracy: e.ValidAccuracy,
		Genotype:      e.Genotype.String(),
		SearchConfig: map[string]any{
			"epochs":        p.cfg.Epochs,
			"lr":            p.cfg.LR,
			"lr_min":        p.cfg.LRMin,
			"momentum":      p.cfg.Momentum,
			"weight_decay":  p.cfg.WeightDecay,
			"grad_clip":     p.cfg.GradClip,
			"arch_lr":       p.cfg.Architect.LR,
			"arch_wd":       p.cfg.Architect.WeightDecay,
			"unrolled":      p.cfg.Architect.Unrolled,
			"finite_diff_r": p.cfg.Architect.FiniteDiffScale,
		},
	}
	if err := nas.SaveCheckpointWithState(p.checkpoint, p.net, p.searcher.StateDict(), meta, p.metadata); err != nil {
		log.Fatalf("Failed to save checkpoint: %v", err)
	}
}
