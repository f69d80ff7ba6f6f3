// Package cpu implements the pure Go CPU backend.
package cpu

import (
	"fmt"

	"github.com/born-ml/darts/internal/parallel"
	"github.com/born-ml/darts/internal/tensor"
)

// CPUBackend implements tensor.Backend on the CPU.
//
// Heavy kernels (convolution, pooling, normalization) fan out over the
// batch×channel grid according to the parallel configuration.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

var _ tensor.Backend = (*CPUBackend)(nil)

// New creates a CPU backend using all available cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// newFloat32 allocates a float32 result or panics with the kernel name.
func (cpu *CPUBackend) newFloat32(op string, shape tensor.Shape) *tensor.RawTensor {
	r, err := tensor.NewRaw(shape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return r
}

// requireFloat32 panics unless every tensor holds float32 data.
func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: unsupported dtype %s (float32 only)", op, t.DType()))
		}
	}
}

// require4D panics unless x is an NCHW tensor and returns its dimensions.
func require4D(op string, x *tensor.RawTensor) (n, c, h, w int) {
	s := x.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got shape %v", op, s))
	}
	return s[0], s[1], s[2], s[3]
}

// forBatch runs f over the n×c grid using the backend's parallel config.
func forBatch(cpu *CPUBackend, n, c int, f func(n, c int)) {
	parallel.ForBatch(n, c, f, cpu.parallel)
}
