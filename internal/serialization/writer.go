package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"time"

	"github.com/born-ml/darts/internal/tensor"
)

// Writer writes state dictionaries in .darts format.
type Writer struct {
	w      io.Writer
	closer io.Closer
	closed bool
}

// NewWriter returns a Writer that writes to w. Close does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Create creates (or truncates) the file at path and returns a Writer for it.
func Create(path string) (*Writer, error) {
	//nolint:gosec // G304: checkpoint path is user supplied
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &Writer{w: file, closer: file}, nil
}

// WriteStateDict writes stateDict with the given header. The tensor table,
// format version, creation time and checksum are filled in; any values the
// caller set for them are replaced. Tensors are stored in name order.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, header Header) error {
	if w.closed {
		return ErrClosed
	}

	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	slices.Sort(names)

	header.FormatVersion = FormatVersion
	header.CreatedAt = time.Now().UTC()
	header.Tensors = make([]TensorMeta, 0, len(names))

	var payload []byte
	for _, name := range names {
		raw := stateDict[name]
		data, err := encodeTensor(raw)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape().Clone()),
			Offset: int64(len(payload)),
			Size:   int64(len(data)),
		})
		payload = append(payload, data...)
	}
	header.Checksum = ComputeChecksum(payload)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	prefix := make([]byte, prefixSize)
	copy(prefix[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(prefix[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(prefix[8:12], headerFlags(&header))
	binary.LittleEndian.PutUint64(prefix[12:20], uint64(len(headerJSON)))

	if _, err := w.w.Write(prefix); err != nil {
		return fmt.Errorf("failed to write prefix: %w", err)
	}
	if _, err := w.w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if pad := padding(int64(len(headerJSON))); pad > 0 {
		if _, err := w.w.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// Close closes the underlying file when the Writer owns one.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// WriteFile writes stateDict and header to a new file at path.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, header Header) error {
	w, err := Create(path)
	if err != nil {
		return err
	}
	if err := w.WriteStateDict(stateDict, header); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func headerFlags(h *Header) uint32 {
	var flags uint32
	if len(h.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if len(h.Config) > 0 {
		flags |= FlagHasConfig
	}
	if h.CheckpointMeta != nil {
		flags |= FlagHasCheckpoint
	}
	return flags
}

func encodeTensor(raw *tensor.RawTensor) ([]byte, error) {
	buf := make([]byte, raw.ByteSize())
	switch raw.DType() {
	case tensor.Float32:
		for i, v := range raw.AsFloat32() {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
		}
	case tensor.Int32:
		for i, v := range raw.AsInt32() {
			binary.LittleEndian.PutUint32(buf[4*i:], uint32(v)) //nolint:gosec // bit pattern copy
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, raw.DType())
	}
	return buf, nil
}
