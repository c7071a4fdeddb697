// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memneuron manages pattern-indexed memory neurons: transient
// neurons living in a reserved id range above the array-backed stores,
// created on first sight of a pattern, strengthened by recurrence and
// promoted to permanence, or retired by aging when the pattern stops
// recurring.
package memneuron

import (
	"fmt"
	"sort"

	"github.com/c2h5oh/datasize"

	"github.com/neurokit/npu/npu"
)

// Base is the first memory neuron id, aliasing npu.MemNeuronBase so
// burst pipelines can tell memory neurons from store-backed ones by id
// alone.
const Base = npu.MemNeuronBase

// Params holds the memory neuron lifecycle parameters.
type Params struct {
	InitialLifespan uint32  `def:"20" desc:"lifespan in aging passes granted at creation"`
	Growth          float32 `def:"3" desc:"lifespan units added on each reactivation"`
	LongTermAt      uint32  `def:"100" desc:"lifespan at which a neuron becomes permanent"`
}

// Defaults sets default parameter values.
func (pr *Params) Defaults() {
	pr.InitialLifespan = 20
	pr.Growth = 3
	pr.LongTermAt = 100
}

// Array manages pattern-indexed memory neurons: transient neurons that
// appear when a pattern is first seen, persist while the pattern
// recurs, and become permanent once reactivation has grown their
// lifespan past the long-term threshold. Slots are reused through a
// free list; retired ids go invalid and their patterns can be learned
// afresh.
type Array struct {
	Params Params `desc:"lifecycle parameters"`

	patterns   map[uint64]uint32 // pattern hash to slot
	pattBySlot []uint64
	lifespans  []uint32
	areas      []uint32
	longterm   []bool
	valid      []bool
	free       []uint32
	fired      []uint32 // slots activated since the last Drain
}

// NewArray returns an empty memory neuron array with default params.
func NewArray() *Array {
	ar := &Array{patterns: make(map[uint64]uint32)}
	ar.Params.Defaults()
	return ar
}

// Len returns the number of slots, including retired ones.
func (ar *Array) Len() int {
	return len(ar.lifespans)
}

// NumLive returns the number of live memory neurons.
func (ar *Array) NumLive() int {
	n := 0
	for _, v := range ar.valid {
		if v {
			n++
		}
	}
	return n
}

func (ar *Array) id(slot uint32) uint32 {
	return Base + slot
}

func (ar *Array) slot(id uint32) (uint32, error) {
	if id < Base || int(id-Base) >= ar.Len() || !ar.valid[id-Base] {
		return 0, fmt.Errorf("memory neuron %d: %w", id, npu.ErrInvariant)
	}
	return id - Base, nil
}

// Create makes a memory neuron for a pattern, reusing a retired slot
// when one is free. Creating an already-known pattern reactivates the
// existing neuron instead.
func (ar *Array) Create(pattern uint64, area uint32) (uint32, error) {
	if slot, ok := ar.patterns[pattern]; ok {
		id := ar.id(slot)
		return id, ar.Reactivate(id)
	}
	var slot uint32
	if n := len(ar.free); n > 0 {
		slot = ar.free[n-1]
		ar.free = ar.free[:n-1]
		ar.pattBySlot[slot] = pattern
		ar.lifespans[slot] = ar.Params.InitialLifespan
		ar.areas[slot] = area
		ar.longterm[slot] = false
		ar.valid[slot] = true
	} else {
		slot = uint32(len(ar.lifespans))
		ar.pattBySlot = append(ar.pattBySlot, pattern)
		ar.lifespans = append(ar.lifespans, ar.Params.InitialLifespan)
		ar.areas = append(ar.areas, area)
		ar.longterm = append(ar.longterm, false)
		ar.valid = append(ar.valid, true)
	}
	ar.patterns[pattern] = slot
	ar.fired = append(ar.fired, slot)
	return ar.id(slot), nil
}

// Reactivate marks a pattern recurrence: the neuron fires this burst
// and its lifespan grows by the configured rate, promoting to long-term
// permanence at the threshold.
func (ar *Array) Reactivate(id uint32) error {
	slot, err := ar.slot(id)
	if err != nil {
		return err
	}
	ar.fired = append(ar.fired, slot)
	if ar.longterm[slot] {
		return nil
	}
	grown := ar.lifespans[slot] + uint32(ar.Params.Growth)
	if grown >= ar.Params.LongTermAt {
		ar.lifespans[slot] = ar.Params.LongTermAt
		ar.longterm[slot] = true
		return nil
	}
	ar.lifespans[slot] = grown
	return nil
}

// Age runs one aging pass: every live short-term neuron loses one
// lifespan unit, and expired ones retire to the free list.
func (ar *Array) Age() {
	for slot := range ar.lifespans {
		if !ar.valid[slot] || ar.longterm[slot] {
			continue
		}
		ar.lifespans[slot]--
		if ar.lifespans[slot] == 0 {
			ar.valid[slot] = false
			delete(ar.patterns, ar.pattBySlot[slot])
			ar.free = append(ar.free, uint32(slot))
		}
	}
}

// ByPattern returns the id of the live neuron for a pattern.
func (ar *Array) ByPattern(pattern uint64) (uint32, bool) {
	slot, ok := ar.patterns[pattern]
	if !ok {
		return 0, false
	}
	return ar.id(slot), true
}

// IsLongTerm reports whether a memory neuron is permanent.
func (ar *Array) IsLongTerm(id uint32) bool {
	slot, err := ar.slot(id)
	if err != nil {
		return false
	}
	return ar.longterm[slot]
}

// Lifespan returns the remaining lifespan of a memory neuron.
func (ar *Array) Lifespan(id uint32) (uint32, error) {
	slot, err := ar.slot(id)
	if err != nil {
		return 0, err
	}
	return ar.lifespans[slot], nil
}

// Drain returns the ids activated since the last call, ascending and
// deduplicated, for merging into a burst's fired set.
func (ar *Array) Drain() []uint32 {
	if len(ar.fired) == 0 {
		return nil
	}
	seen := make(map[uint32]bool, len(ar.fired))
	ids := make([]uint32, 0, len(ar.fired))
	for _, slot := range ar.fired {
		if !seen[slot] && ar.valid[slot] {
			seen[slot] = true
			ids = append(ids, ar.id(slot))
		}
	}
	ar.fired = ar.fired[:0]
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stats returns a one-line report of array occupancy and memory use.
func (ar *Array) Stats() string {
	n := uint64(ar.Len())
	mem := n * (8 + 4 + 4 + 1 + 1 + 8)
	longterm := 0
	for slot := range ar.longterm {
		if ar.valid[slot] && ar.longterm[slot] {
			longterm++
		}
	}
	return fmt.Sprintf("%14s:\t Live: %d\t LongTerm: %d\t Free: %d\t Mem: %v",
		"MemNeurons", ar.NumLive(), longterm, len(ar.free),
		(datasize.ByteSize)(mem).HumanReadable())
}
