package nas

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/born-ml/darts/internal/nn"
	"github.com/born-ml/darts/internal/serialization"
	"github.com/born-ml/darts/internal/tensor"
)

// WriteCheckpoint writes the network state, its configuration and optional
// search progress to w in .darts format.
func WriteCheckpoint[B tensor.Backend](w io.Writer, net *Network[B], meta *serialization.CheckpointMeta, metadata map[string]string) error {
	return WriteCheckpointWithState(w, net, nil, meta, metadata)
}

// SaveCheckpoint is WriteCheckpoint to a new file at path.
func SaveCheckpoint[B tensor.Backend](path string, net *Network[B], meta *serialization.CheckpointMeta, metadata map[string]string) error {
	return SaveCheckpointWithState(path, net, nil, meta, metadata)
}

// WriteCheckpointWithState is WriteCheckpoint with extra tensors, such as
// optimizer state, stored next to the network. Extra names must not clash
// with the network's own.
func WriteCheckpointWithState[B tensor.Backend](w io.Writer, net *Network[B], extra map[string]*tensor.RawTensor, meta *serialization.CheckpointMeta, metadata map[string]string) error {
	state, header, err := checkpointContents(net, extra, meta, metadata)
	if err != nil {
		return err
	}
	return serialization.NewWriter(w).WriteStateDict(state, header)
}

// SaveCheckpointWithState is WriteCheckpointWithState to a new file at path.
func SaveCheckpointWithState[B tensor.Backend](path string, net *Network[B], extra map[string]*tensor.RawTensor, meta *serialization.CheckpointMeta, metadata map[string]string) error {
	state, header, err := checkpointContents(net, extra, meta, metadata)
	if err != nil {
		return err
	}
	return serialization.WriteFile(path, state, header)
}

func checkpointContents[B tensor.Backend](net *Network[B], extra map[string]*tensor.RawTensor, meta *serialization.CheckpointMeta, metadata map[string]string) (map[string]*tensor.RawTensor, serialization.Header, error) {
	header, err := checkpointHeader(net, meta, metadata)
	if err != nil {
		return nil, header, err
	}
	state := net.StateDict()
	for name, raw := range extra {
		if _, ok := state[name]; ok {
			return nil, header, fmt.Errorf("checkpoint: extra tensor %q clashes with a network tensor", name)
		}
		state[name] = raw
	}
	return state, header, nil
}

func checkpointHeader[B tensor.Backend](net *Network[B], meta *serialization.CheckpointMeta, metadata map[string]string) (serialization.Header, error) {
	cfg, err := json.Marshal(net.Config())
	if err != nil {
		return serialization.Header{}, fmt.Errorf("checkpoint: encode config: %w", err)
	}
	if meta != nil && meta.Genotype == "" {
		m := *meta
		m.Genotype = net.Genotype().String()
		meta = &m
	}
	return serialization.Header{
		Metadata:       metadata,
		Config:         cfg,
		CheckpointMeta: meta,
	}, nil
}

// ReadCheckpoint rebuilds a network from a .darts stream: the stored
// configuration recreates the structure and the stored tensors overwrite
// its weights. A nil criterion means cross-entropy. Extra tensors are
// ignored.
func ReadCheckpoint[B tensor.Backend](r io.Reader, criterion nn.Criterion[B], backend B) (*Network[B], serialization.Header, error) {
	net, _, header, err := ReadCheckpointWithState(r, criterion, backend)
	return net, header, err
}

// LoadCheckpoint is ReadCheckpoint from the file at path.
func LoadCheckpoint[B tensor.Backend](path string, criterion nn.Criterion[B], backend B) (*Network[B], serialization.Header, error) {
	net, _, header, err := LoadCheckpointWithState(path, criterion, backend)
	return net, header, err
}

// ReadCheckpointWithState is ReadCheckpoint that also returns the stored
// tensors that do not belong to the network.
func ReadCheckpointWithState[B tensor.Backend](r io.Reader, criterion nn.Criterion[B], backend B) (*Network[B], map[string]*tensor.RawTensor, serialization.Header, error) {
	reader, err := serialization.NewReader(r, serialization.ReaderOptions{ValidationLevel: serialization.ValidationStrict})
	if err != nil {
		return nil, nil, serialization.Header{}, fmt.Errorf("checkpoint: %w", err)
	}
	return networkFromReader(reader, criterion, backend)
}

// LoadCheckpointWithState is ReadCheckpointWithState from the file at path.
func LoadCheckpointWithState[B tensor.Backend](path string, criterion nn.Criterion[B], backend B) (*Network[B], map[string]*tensor.RawTensor, serialization.Header, error) {
	reader, err := serialization.Open(path)
	if err != nil {
		return nil, nil, serialization.Header{}, fmt.Errorf("checkpoint: %w", err)
	}
	return networkFromReader(reader, criterion, backend)
}

func networkFromReader[B tensor.Backend](reader *serialization.Reader, criterion nn.Criterion[B], backend B) (*Network[B], map[string]*tensor.RawTensor, serialization.Header, error) {
	header := reader.Header()
	if len(header.Config) == 0 {
		return nil, nil, header, fmt.Errorf("checkpoint: %w: no network configuration stored", ErrInvalidConfig)
	}

	var cfg Config
	if err := json.Unmarshal(header.Config, &cfg); err != nil {
		return nil, nil, header, fmt.Errorf("checkpoint: decode config: %w", err)
	}
	net, err := NewNetwork(cfg, criterion, backend)
	if err != nil {
		return nil, nil, header, fmt.Errorf("checkpoint: %w", err)
	}

	state, err := reader.ReadStateDict()
	if err != nil {
		return nil, nil, header, fmt.Errorf("checkpoint: %w", err)
	}
	own := net.StateDict()
	extra := make(map[string]*tensor.RawTensor)
	for name, raw := range state {
		if _, ok := own[name]; !ok {
			extra[name] = raw
			delete(state, name)
		}
	}
	if err := net.LoadStateDict(state); err != nil {
		return nil, nil, header, fmt.Errorf("checkpoint: %w", err)
	}
	return net, extra, header, nil
}
