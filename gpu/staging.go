// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "github.com/neurokit/npu/npu"

// DevNeuron is the per-neuron device record, 48 bytes, matching the
// Neuron struct in the shaders field for field.
type DevNeuron struct {
	Pot       float32
	Thr       float32
	ThrLim    float32
	Rest      float32
	Leak      float32
	Excit     float32
	RefracPer uint32
	RefracCtr uint32
	FireCnt   uint32
	FireLim   uint32
	Snooze    uint32
	Flags     uint32
}

// DevNeuron flag bits.
const (
	NeurAccum uint32 = 1 << iota
	NeurValid
)

// DevInjected is one externally injected fire candidate.
type DevInjected struct {
	Idx uint32
	Pot float32
}

// DevParams is the per-burst uniform block shared with the shaders.
// Padded to 48 bytes.
type DevParams struct {
	NumNeurons  uint32
	NumSynapses uint32
	TableSize   uint32
	NumFired    uint32
	NumInjected uint32
	BurstLo     uint32
	BurstHi     uint32
	Seed        uint32
	AlwaysAt    float32
	pad0        uint32
	pad1        uint32
	pad2        uint32
}

// StageNeurons builds the device records for a population.
func StageNeurons(pop *npu.Pop[float32]) []DevNeuron {
	n := int(pop.Len())
	dn := make([]DevNeuron, n)
	for i := 0; i < n; i++ {
		d := &dn[i]
		d.Pot = pop.Pots[i]
		d.Thr = pop.Thrs[i]
		d.ThrLim = pop.ThrLims[i]
		d.Rest = pop.Rests[i]
		d.Leak = pop.Leaks[i]
		d.Excit = pop.Excit[i]
		d.RefracPer = uint32(pop.RefracPer[i])
		d.RefracCtr = uint32(pop.RefracCtr[i])
		d.FireCnt = uint32(pop.FireCnt[i])
		d.FireLim = uint32(pop.FireLim[i])
		d.Snooze = uint32(pop.SnoozePer[i])
		if pop.Accum[i] {
			d.Flags |= NeurAccum
		}
		if pop.Valid[i] {
			d.Flags |= NeurValid
		}
	}
	return dn
}

// UnstageNeurons copies the mutable device state back into the
// population after a burst.
func UnstageNeurons(dn []DevNeuron, pop *npu.Pop[float32]) {
	for i := range dn {
		pop.Pots[i] = dn[i].Pot
		pop.RefracCtr[i] = uint16(dn[i].RefracCtr)
		pop.FireCnt[i] = uint16(dn[i].FireCnt)
	}
}

// StageInjected flattens an injected candidate list for upload,
// dropping ids outside the store (memory-neuron range candidates are
// not array-backed).
func StageInjected(injected *npu.FCL[float32], numNeurons uint32) []DevInjected {
	if injected == nil {
		return nil
	}
	var di []DevInjected
	for _, idx := range injected.SortedIndexes() {
		if idx >= numNeurons {
			continue
		}
		pot, _ := injected.Potential(idx)
		di = append(di, DevInjected{Idx: idx, Pot: pot})
	}
	return di
}

// StageParams fills the uniform block for one burst.
func StageParams(numNeurons, numSyn, tableSize uint32, numFired, numInjected int,
	burst uint64, ex *npu.Excite) DevParams {
	return DevParams{
		NumNeurons:  numNeurons,
		NumSynapses: numSyn,
		TableSize:   tableSize,
		NumFired:    uint32(numFired),
		NumInjected: uint32(numInjected),
		BurstLo:     uint32(burst),
		BurstHi:     uint32(burst >> 32),
		Seed:        ex.Seed,
		AlwaysAt:    ex.AlwaysAt,
	}
}

// DecodeMaskWords extracts ascending fired ids from the bit-packed mask
// words downloaded from the device.
func DecodeMaskWords(words []uint32, n int) []uint32 {
	var fired []uint32
	for i := 0; i < n; i++ {
		if words[i>>5]>>(uint(i)&31)&1 == 1 {
			fired = append(fired, uint32(i))
		}
	}
	return fired
}

// MaskWords returns the number of 32 bit words needed for n mask bits.
func MaskWords(n int) int {
	return (n + 31) / 32
}
