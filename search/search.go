// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package search runs differentiable architecture search.
//
// Each training step first updates the architecture weights on a validation
// batch (Architect) and then the ordinary weights on a training batch (SGD).
// The architecture gradient is either first order or the second-order
// approximation through one virtual SGD step.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	net, _ := nas.NewNetwork(nas.DefaultConfig(), nil, backend)
//	s, _ := search.NewSearcher(net, search.DefaultConfig(), backend, nil)
//	history := s.Run(trainLoader, validLoader)
//	fmt.Println(history[len(history)-1].Genotype)
package search

import (
	"github.com/born-ml/darts/internal/autodiff"
	"github.com/born-ml/darts/internal/nas"
	"github.com/born-ml/darts/internal/search"
)

// Config holds the search hyperparameters.
type Config = search.Config

// DefaultConfig returns the standard search settings.
func DefaultConfig() Config {
	return search.DefaultConfig()
}

// ArchitectConfig holds the architecture optimizer settings.
type ArchitectConfig = search.ArchitectConfig

// DefaultArchitectConfig returns the standard architecture optimizer settings.
func DefaultArchitectConfig() ArchitectConfig {
	return search.DefaultArchitectConfig()
}

// Architect updates the architecture weights.
type Architect[B autodiff.BackwardCapable] = search.Architect[B]

// NewArchitect creates an architect for net.
func NewArchitect[B autodiff.BackwardCapable](net *nas.Network[B], cfg ArchitectConfig, backend B) *Architect[B] {
	return search.NewArchitect(net, cfg, backend)
}

// StepStats reports one training step.
type StepStats = search.StepStats

// EpochStats reports one search epoch.
type EpochStats = search.EpochStats

// Observer receives progress reports.
type Observer = search.Observer

// Prefixes of the optimizer tensors in Searcher.StateDict.
const (
	WeightOptimizerPrefix = search.WeightOptimizerPrefix
	ArchOptimizerPrefix   = search.ArchOptimizerPrefix
)

// Searcher alternates weight and architecture updates.
type Searcher[B autodiff.BackwardCapable] = search.Searcher[B]

// NewSearcher creates a searcher for net. observer may be nil.
func NewSearcher[B autodiff.BackwardCapable](net *nas.Network[B], cfg Config, backend B, observer Observer) (*Searcher[B], error) {
	return search.NewSearcher(net, cfg, backend, observer)
}
