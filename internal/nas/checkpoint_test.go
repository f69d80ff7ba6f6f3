package nas_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/born-ml/darts/internal/nas"
	"github.com/born-ml/darts/internal/serialization"
	"github.com/born-ml/darts/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 7, backend)
	net.AlphaNormal().Tensor().Set(4, 0, 3)
	net.AlphaReduce().Tensor().Set(-2, 1, 6)

	path := filepath.Join(t.TempDir(), "search.darts")
	meta := &serialization.CheckpointMeta{Epoch: 2, Step: 40, ValidAccuracy: 0.25}
	require.NoError(t, nas.SaveCheckpoint(path, net, meta, map[string]string{"dataset": "synthetic"}))

	loaded, header, err := nas.LoadCheckpoint(path, nil, backend)
	require.NoError(t, err)

	assert.Equal(t, net.Config(), loaded.Config())
	assert.Equal(t, "synthetic", header.Metadata["dataset"])
	require.NotNil(t, header.CheckpointMeta)
	assert.Equal(t, 2, header.CheckpointMeta.Epoch)
	assert.Equal(t, net.Genotype().String(), header.CheckpointMeta.Genotype)

	assert.Equal(t, net.AlphaNormal().Tensor().Data(), loaded.AlphaNormal().Tensor().Data())
	assert.Equal(t, net.AlphaReduce().Tensor().Data(), loaded.AlphaReduce().Tensor().Data())
	assert.Equal(t, net.Genotype(), loaded.Genotype())

	net.SetTraining(false)
	loaded.SetTraining(false)
	x := randInput(tensor.Shape{2, 3, 8, 8}, 3, backend)
	assert.Equal(t, net.Forward(x).Data(), loaded.Forward(x).Data())
}

func TestCheckpoint_Stream(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)

	var buf bytes.Buffer
	require.NoError(t, nas.WriteCheckpoint(&buf, net, nil, nil))

	loaded, header, err := nas.ReadCheckpoint(bytes.NewReader(buf.Bytes()), nil, backend)
	require.NoError(t, err)
	assert.Nil(t, header.CheckpointMeta)
	assert.Equal(t, net.Genotype(), loaded.Genotype())

	var cfg nas.Config
	require.NoError(t, json.Unmarshal(header.Config, &cfg))
	assert.Equal(t, 3, cfg.Layers)
}

func TestCheckpoint_Corrupted(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)

	var buf bytes.Buffer
	require.NoError(t, nas.WriteCheckpoint(&buf, net, nil, nil))
	data := buf.Bytes()
	data[len(data)-1] ^= 0x01

	_, _, err := nas.ReadCheckpoint(bytes.NewReader(data), nil, backend)
	assert.ErrorIs(t, err, serialization.ErrChecksumMismatch)
}

func TestCheckpoint_MissingConfig(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 1, backend)

	var buf bytes.Buffer
	require.NoError(t, serialization.NewWriter(&buf).WriteStateDict(net.StateDict(), serialization.Header{}))

	_, _, err := nas.ReadCheckpoint(&buf, nil, backend)
	assert.ErrorIs(t, err, nas.ErrInvalidConfig)
}

func TestCheckpoint_ExtraState(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 2, backend)

	velocity := tensor.MustNewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	copy(velocity.AsFloat32(), []float32{1, 2, 3})
	step := tensor.MustNewRaw(tensor.Shape{1}, tensor.Int32, tensor.CPU)
	step.AsInt32()[0] = 7
	extra := map[string]*tensor.RawTensor{"optim.velocity.0": velocity, "arch_optim.step": step}

	path := filepath.Join(t.TempDir(), "search.darts")
	require.NoError(t, nas.SaveCheckpointWithState(path, net, extra, &serialization.CheckpointMeta{Epoch: 3}, nil))

	loaded, state, header, err := nas.LoadCheckpointWithState(path, nil, backend)
	require.NoError(t, err)
	assert.Equal(t, 3, header.CheckpointMeta.Epoch)
	assert.Equal(t, net.Genotype(), loaded.Genotype())
	require.Len(t, state, 2)
	assert.Equal(t, []float32{1, 2, 3}, state["optim.velocity.0"].AsFloat32())
	assert.Equal(t, []int32{7}, state["arch_optim.step"].AsInt32())

	// The plain loader skips the extra tensors.
	plain, _, err := nas.LoadCheckpoint(path, nil, backend)
	require.NoError(t, err)
	assert.Equal(t, net.Genotype(), plain.Genotype())
}

func TestCheckpoint_ExtraStateClash(t *testing.T) {
	backend := newBackend()
	net := newSmallNetwork(t, 2, backend)

	var buf bytes.Buffer
	extra := map[string]*tensor.RawTensor{nas.KeyAlphaNormal: net.AlphaNormal().Raw().Clone()}
	assert.Error(t, nas.WriteCheckpointWithState(&buf, net, extra, nil, nil))
}
