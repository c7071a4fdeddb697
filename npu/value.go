// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

// NeuralValue is the constraint for membrane-potential-like quantities.
// Stores and backends are generic over it so the same engine can run in
// float32 (required for GPU backends) or float64 precision.
type NeuralValue interface {
	~float32 | ~float64
}

// NoThresholdLimit is the sentinel threshold-limit value meaning the
// firing window has no upper bound.
const NoThresholdLimit = 0

// UnlimitedFires is the sentinel consecutive-fire limit meaning a neuron
// may fire on every burst without snoozing.
const UnlimitedFires = 0

// MemNeuronBase is the first neuron id reserved for memory neurons.
// Store-backed populations never reach this id, so ids at or above it
// passing through the burst pipeline are skipped by array-based dynamics
// and handled by the memneuron lifecycle instead.
const MemNeuronBase = 50_000_000
