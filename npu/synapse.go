// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c2h5oh/datasize"
)

// Synapses is a structure-of-arrays synapse store. Weight and psp are
// unsigned byte magnitudes; the type tag selects the sign of the
// contribution (0 = excitatory, anything else inhibitory).
type Synapses struct {
	Src   []uint32 `desc:"source neuron ids"`
	Tgt   []uint32 `desc:"target neuron ids"`
	Wt    []uint8  `desc:"weight magnitudes"`
	Psp   []uint8  `desc:"post-synaptic potential magnitudes"`
	Typ   []uint8  `desc:"type tags, 0 = excitatory"`
	Valid []bool   `desc:"false for removed synapses"`

	MaxLen uint32 `desc:"hard cap on synapse count"`
}

// NewSynapses returns an empty synapse store with a generous cap.
func NewSynapses() *Synapses {
	return &Synapses{MaxLen: 1 << 30}
}

// Len returns the number of synapse slots, including invalidated ones.
func (sy *Synapses) Len() uint32 {
	return uint32(len(sy.Src))
}

// Add appends one synapse and returns its index.
func (sy *Synapses) Add(src, tgt uint32, wt, psp, typ uint8) (uint32, error) {
	if sy.Len() >= sy.MaxLen {
		return 0, fmt.Errorf("synapses at %d: %w", sy.Len(), ErrCapacity)
	}
	idx := sy.Len()
	sy.Src = append(sy.Src, src)
	sy.Tgt = append(sy.Tgt, tgt)
	sy.Wt = append(sy.Wt, wt)
	sy.Psp = append(sy.Psp, psp)
	sy.Typ = append(sy.Typ, typ)
	sy.Valid = append(sy.Valid, true)
	return idx, nil
}

// Remove invalidates a synapse slot.
func (sy *Synapses) Remove(idx uint32) error {
	if idx >= sy.Len() || !sy.Valid[idx] {
		return fmt.Errorf("synapse %d: %w", idx, ErrInvariant)
	}
	sy.Valid[idx] = false
	return nil
}

// Contribution returns the signed potential delivered by a synapse:
// weight * psp, negated for inhibitory types.
func (sy *Synapses) Contribution(idx uint32) float32 {
	c := float32(sy.Wt[idx]) * float32(sy.Psp[idx])
	if sy.Typ[idx] != 0 {
		return -c
	}
	return c
}

// PackSynapse encodes weight, psp and type into the 32 bit word layout
// shared with the GPU shaders: type in bits 16-23, psp in 8-15, weight
// in 0-7.
func PackSynapse(wt, psp, typ uint8) uint32 {
	return uint32(typ)<<16 | uint32(psp)<<8 | uint32(wt)
}

// UnpackSynapse decodes a packed synapse word.
func UnpackSynapse(w uint32) (wt, psp, typ uint8) {
	return uint8(w), uint8(w >> 8), uint8(w >> 16)
}

// PackedWords returns the packed device words for all synapse slots.
// Invalid slots pack to 0, which contributes nothing.
func (sy *Synapses) PackedWords() []uint32 {
	ws := make([]uint32, sy.Len())
	for i := range ws {
		if sy.Valid[i] {
			ws[i] = PackSynapse(sy.Wt[i], sy.Psp[i], sy.Typ[i])
		}
	}
	return ws
}

// SizeReport returns a human-readable summary of synapse memory use.
func (sy *Synapses) SizeReport() string {
	var b strings.Builder
	n := uint64(sy.Len())
	mem := n * (4 + 4 + 1 + 1 + 1 + 1)
	fmt.Fprintf(&b, "%14s:\t Syns: %d\t SynMem: %v\n", "Synapses", n,
		(datasize.ByteSize)(mem).HumanReadable())
	return b.String()
}

// EmptyKey marks an unused slot in the source index hash table.
const EmptyKey = 0xFFFFFFFF

// SourceIndex is a flat open-addressed hash table from source neuron id
// to its outgoing synapse indices. The layout is the exact wire format
// uploaded to the GPU backends: Keys[cap] with EmptyKey for unused
// slots, Meta[2*cap] holding [start, count] pairs into Syns, and Syns
// holding synapse indices grouped by source. Linear probing with a
// power-of-two capacity at least twice the number of distinct sources.
type SourceIndex struct {
	Keys []uint32
	Meta []uint32
	Syns []uint32
}

// hash is the Knuth multiplicative hash used by both CPU probing and
// the shaders.
func (si *SourceIndex) hash(key uint32) uint32 {
	return (key * 2654435761) & uint32(len(si.Keys)-1)
}

// BuildSourceIndex constructs the source fan-out index over all valid
// synapses. Must be rebuilt after the synapse store changes.
func BuildSourceIndex(sy *Synapses) *SourceIndex {
	counts := make(map[uint32]uint32)
	nsyn := uint32(0)
	for i := uint32(0); i < sy.Len(); i++ {
		if sy.Valid[i] {
			counts[sy.Src[i]]++
			nsyn++
		}
	}
	tsz := uint32(256)
	for tsz < 2*uint32(len(counts)) {
		tsz <<= 1
	}
	si := &SourceIndex{
		Keys: make([]uint32, tsz),
		Meta: make([]uint32, 2*tsz),
		Syns: make([]uint32, 0, nsyn),
	}
	for i := range si.Keys {
		si.Keys[i] = EmptyKey
	}
	// reserve runs in ascending source order for deterministic layout
	srcs := make([]uint32, 0, len(counts))
	for s := range counts {
		srcs = append(srcs, s)
	}
	sort.Slice(srcs, func(i, j int) bool { return srcs[i] < srcs[j] })
	for _, s := range srcs {
		slot := si.hash(s)
		for si.Keys[slot] != EmptyKey {
			slot = (slot + 1) & uint32(len(si.Keys)-1)
		}
		si.Keys[slot] = s
		si.Meta[2*slot] = uint32(len(si.Syns))
		si.Meta[2*slot+1] = 0
		si.Syns = append(si.Syns, make([]uint32, counts[s])...)
	}
	// second pass fills the runs in synapse order
	for i := uint32(0); i < sy.Len(); i++ {
		if !sy.Valid[i] {
			continue
		}
		slot := si.slotOf(sy.Src[i])
		st := si.Meta[2*slot]
		cnt := si.Meta[2*slot+1]
		si.Syns[st+cnt] = i
		si.Meta[2*slot+1] = cnt + 1
	}
	return si
}

// slotOf probes for the slot holding key; key must be present.
func (si *SourceIndex) slotOf(key uint32) uint32 {
	slot := si.hash(key)
	for si.Keys[slot] != key {
		slot = (slot + 1) & uint32(len(si.Keys)-1)
	}
	return slot
}

// Lookup returns the outgoing synapse indices of a source neuron, or
// nil if it has none.
func (si *SourceIndex) Lookup(src uint32) []uint32 {
	slot := si.hash(src)
	for {
		k := si.Keys[slot]
		if k == EmptyKey {
			return nil
		}
		if k == src {
			st := si.Meta[2*slot]
			cnt := si.Meta[2*slot+1]
			return si.Syns[st : st+cnt]
		}
		slot = (slot + 1) & uint32(len(si.Keys)-1)
	}
}
