// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nas_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/born-ml/darts/autodiff"
	"github.com/born-ml/darts/backend/cpu"
	"github.com/born-ml/darts/dataset"
	"github.com/born-ml/darts/nas"
	"github.com/born-ml/darts/search"
	"github.com/born-ml/darts/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicAPI_SearchAndCheckpoint(t *testing.T) {
	backend := autodiff.New(cpu.New())
	net, err := nas.NewNetwork(nas.Config{C: 2, NumClasses: 3, Layers: 3, Steps: 1, Multiplier: 1, Seed: 1}, nil, backend)
	require.NoError(t, err)

	x := tensor.RandnFrom(tensor.Shape{2, 3, 8, 8}, rand.New(rand.NewSource(1)), backend)
	assert.Equal(t, tensor.Shape{2, 3}, net.Forward(x).Shape())

	ds := dataset.Synthetic(8, 3, 8, 8, 3, 1)
	train, valid, err := ds.Split(0.5)
	require.NoError(t, err)
	trainLoader, err := dataset.NewLoader(train, dataset.LoaderConfig{BatchSize: 2})
	require.NoError(t, err)
	validLoader, err := dataset.NewLoader(valid, dataset.LoaderConfig{BatchSize: 2})
	require.NoError(t, err)

	cfg := search.DefaultConfig()
	cfg.Epochs = 1
	s, err := search.NewSearcher(net, cfg, backend, nil)
	require.NoError(t, err)
	history := s.Run(trainLoader, validLoader)
	require.Len(t, history, 1)
	require.NoError(t, history[0].Genotype.Validate(nas.Primitives()))

	var buf bytes.Buffer
	require.NoError(t, nas.WriteCheckpoint(&buf, net, &nas.CheckpointMeta{Epoch: 1}, nil))
	loaded, header, err := nas.ReadCheckpoint(&buf, nil, backend)
	require.NoError(t, err)
	assert.Equal(t, 1, header.CheckpointMeta.Epoch)
	assert.Equal(t, history[0].Genotype, loaded.Genotype())
}

func TestPrimitivesIsACopy(t *testing.T) {
	p := nas.Primitives()
	p[0] = "changed"
	assert.Equal(t, nas.NoneOp, nas.Primitives()[0])
}
