// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API used by the search space.
//
// Tensors are generic over their element type and compute backend:
//
//	backend := autodiff.New(cpu.New())
//	x := tensor.Zeros[float32](tensor.Shape{2, 3, 32, 32}, backend)
//	y := x.Add(x)
//
// Only float32 and int32 elements are supported; int32 tensors carry class
// labels. Images use the NCHW layout throughout.
package tensor
