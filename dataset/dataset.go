// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dataset provides image datasets and mini-batch loading for
// architecture search.
//
// Example:
//
//	train, err := dataset.LoadCIFAR10("data/cifar-10-batches-bin", true, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	searchSet, validSet, err := train.Split(0.5)
//	loader, _ := dataset.NewLoader(searchSet, dataset.LoaderConfig{BatchSize: 64, Shuffle: true})
package dataset

import (
	"io"

	"github.com/born-ml/darts/internal/dataset"
	"github.com/born-ml/darts/internal/tensor"
)

// ErrInvalidData is returned for malformed or inconsistent data.
var ErrInvalidData = dataset.ErrInvalidData

// Dataset is an in-memory set of CHW float32 images with integer labels.
type Dataset = dataset.Dataset

// ReadCIFAR10 reads CIFAR-10 binary records from r, keeping at most
// maxSamples (0 = all).
func ReadCIFAR10(r io.Reader, maxSamples int) (*Dataset, error) {
	return dataset.ReadCIFAR10(r, maxSamples)
}

// LoadCIFAR10 loads the training or test split of the binary release in dir.
func LoadCIFAR10(dir string, train bool, maxSamples int) (*Dataset, error) {
	return dataset.LoadCIFAR10(dir, train, maxSamples)
}

// Synthetic generates a deterministic learnable dataset.
func Synthetic(n, channels, height, width, numClasses int, seed int64) *Dataset {
	return dataset.Synthetic(n, channels, height, width, numClasses, seed)
}

// LoaderConfig configures a Loader.
type LoaderConfig = dataset.LoaderConfig

// Batch is one mini-batch.
type Batch = dataset.Batch

// Loader iterates a dataset in mini-batches.
type Loader = dataset.Loader

// NewLoader creates a loader over ds.
func NewLoader(ds *Dataset, cfg LoaderConfig) (*Loader, error) {
	return dataset.NewLoader(ds, cfg)
}

// ToTensors converts a batch to image and label tensors.
func ToTensors[B tensor.Backend](b Batch, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[int32, B]) {
	return dataset.ToTensors(b, backend)
}
