// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers used by architecture search.
//
// SGD with momentum trains the ordinary weights under a cosine annealed
// learning rate; Adam trains the architecture weights. Both consume the
// gradient map returned by autodiff.Backward and never modify it.
package optim
