// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nas is the public API of the differentiable architecture search
// space.
//
// A Network stacks cells whose edges are mixed operations: every edge holds
// one instance of each candidate operation and outputs their weighted sum.
// The weights are the softmax of two shared architecture parameters,
// alpha_normal and alpha_reduce, which are trained by gradient descent
// alongside the ordinary weights. Genotype derives the discrete cell design
// at any point.
//
// Example:
//
//	import (
//	    "github.com/born-ml/darts/autodiff"
//	    "github.com/born-ml/darts/backend/cpu"
//	    "github.com/born-ml/darts/nas"
//	)
//
//	backend := autodiff.New(cpu.New())
//	net, err := nas.NewNetwork(nas.DefaultConfig(), nil, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(net.Genotype())
package nas
