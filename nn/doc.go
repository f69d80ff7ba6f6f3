// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn exposes the module interfaces and building blocks the search
// space is assembled from.
//
// Every search-space operation is an nn.Module. Modules with running
// statistics (batch norm) implement Trainable and Buffered, and composite
// modules implement Container so that SetTraining and CollectBuffers can
// reach every nested module.
package nn
