package serialization

import (
	"encoding/json"
	"time"

	"github.com/born-ml/darts/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "DNAS"
	FormatVersion   = 1
	HeaderAlignment = 64
	prefixSize      = 4 + 4 + 4 + 8 // magic + version + flags + header length
)

// Data type names used in the header.
const (
	DTypeFloat32 = "float32"
	DTypeInt32   = "int32"
)

// Flags.
const (
	FlagHasMetadata   uint32 = 1 << 0
	FlagHasConfig     uint32 = 1 << 1
	FlagHasCheckpoint uint32 = 1 << 2
)

// Header is the JSON header of a .darts file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Config         json.RawMessage   `json:"config,omitempty"` // network configuration
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
	Checksum       string            `json:"checksum"` // hex SHA-256 of the payload
}

// CheckpointMeta records search progress at the time of saving.
type CheckpointMeta struct {
	Epoch         int            `json:"epoch"`
	Step          int64          `json:"step"`
	TrainLoss     float64        `json:"train_loss"`
	ValidLoss     float64        `json:"valid_loss"`
	ValidAccuracy float64        `json:"valid_accuracy"`
	Genotype      string         `json:"genotype,omitempty"`
	SearchConfig  map[string]any `json:"search_config,omitempty"`
}

// TensorMeta describes one tensor in the payload.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the payload
	Size   int64  `json:"size"`   // bytes
}

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Int32:
		return DTypeInt32
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeInt32:
		return tensor.Int32, true
	default:
		return 0, false
	}
}

// padding returns the zero bytes needed after a header of headerLen bytes.
func padding(headerLen int64) int64 {
	pos := int64(prefixSize) + headerLen
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}
