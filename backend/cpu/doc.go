// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go compute backend.
//
// Convolutions are lowered to im2col plus matrix multiplication and support
// stride, padding, dilation and channel groups. Per-sample work fans out over
// goroutines for large batches.
package cpu
