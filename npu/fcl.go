// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import "sort"

// FCL is the fire candidate list: the set of neurons that received
// synaptic input this burst, with their accumulated candidate
// potentials. It lives for exactly one burst; the backend clears it at
// the end of ProcessBurst. External sensory input merges in through Add
// before or during the propagation phase.
type FCL[T NeuralValue] struct {
	pots map[uint32]T
}

// NewFCL returns an empty fire candidate list.
func NewFCL[T NeuralValue]() *FCL[T] {
	return &FCL[T]{pots: make(map[uint32]T)}
}

// Clear empties the list for the next burst.
func (f *FCL[T]) Clear() {
	for k := range f.pots {
		delete(f.pots, k)
	}
}

// Add accumulates a candidate potential for a neuron. Repeated adds for
// the same neuron sum.
func (f *FCL[T]) Add(idx uint32, pot T) {
	f.pots[idx] += pot
}

// Len returns the number of candidates.
func (f *FCL[T]) Len() int {
	return len(f.pots)
}

// IsEmpty reports whether there are no candidates.
func (f *FCL[T]) IsEmpty() bool {
	return len(f.pots) == 0
}

// Potential returns the accumulated candidate potential for a neuron.
func (f *FCL[T]) Potential(idx uint32) (T, bool) {
	p, ok := f.pots[idx]
	return p, ok
}

// Potentials exposes the underlying accumulator map.
func (f *FCL[T]) Potentials() map[uint32]T {
	return f.pots
}

// SortedIndexes returns candidate neuron ids in ascending order, which
// fixes the processing order and makes burst results deterministic.
func (f *FCL[T]) SortedIndexes() []uint32 {
	ids := make([]uint32, 0, len(f.pots))
	for k := range f.pots {
		ids = append(ids, k)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
