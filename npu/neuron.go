// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/c2h5oh/datasize"
	"github.com/goki/mat32"
)

// NeuronSpec holds the per-neuron parameters supplied at creation time.
// Zero values are meaningful: ThresholdLimit == 0 means no upper firing
// bound, FireLimit == 0 means unlimited consecutive fires.
type NeuronSpec[T NeuralValue] struct {
	Threshold      T          `desc:"membrane potential at or above which the neuron may fire"`
	ThresholdLimit T          `desc:"upper bound of the firing window -- 0 = none"`
	Leak           float32    `desc:"per-burst decay coefficient toward resting potential"`
	Resting        T          `desc:"resting membrane potential, also the post-fire reset value"`
	Type           uint8      `desc:"neuron type tag, 0 = excitatory"`
	RefracPeriod   uint16     `desc:"bursts to block after firing"`
	Excitability   float32    `desc:"firing probability when in the window, 0..1"`
	FireLimit      uint16     `desc:"max consecutive fires before snoozing -- 0 = unlimited"`
	Snooze         uint16     `desc:"bursts to block when the fire limit is reached"`
	Accumulate     bool       `desc:"add incoming potential to the membrane instead of replacing it"`
	Area           uint32     `desc:"cortical area id"`
	Coord          mat32.Vec3i `desc:"3D position within the area"`
}

// BatchCols is the column-oriented form of a batch of NeuronSpecs.
// All slices must have identical length or the batch is rejected whole.
type BatchCols[T NeuralValue] struct {
	Thresholds      []T
	ThresholdLimits []T
	Leaks           []float32
	Restings        []T
	Types           []uint8
	RefracPeriods   []uint16
	Excitabilities  []float32
	FireLimits      []uint16
	Snoozes         []uint16
	Accumulates     []bool
	Areas           []uint32
	Coords          []mat32.Vec3i
}

// Pop is a structure-of-arrays neuron population. Columns are parallel
// slices indexed by neuron id; ids are dense and never reused. All
// backends read the same columns, so layout changes here are layout
// changes on the GPU staging path too.
type Pop[T NeuralValue] struct {
	Pots      []T           `desc:"current membrane potentials"`
	Thrs      []T           `desc:"firing thresholds"`
	ThrLims   []T           `desc:"firing window upper bounds, 0 = none"`
	Leaks     []float32     `desc:"leak coefficients"`
	Rests     []T           `desc:"resting potentials"`
	Types     []uint8       `desc:"neuron type tags"`
	RefracPer []uint16      `desc:"refractory periods in bursts"`
	RefracCtr []uint16      `desc:"remaining refractory countdown"`
	Excit     []float32     `desc:"excitability probabilities"`
	FireCnt   []uint16      `desc:"current consecutive-fire counts"`
	FireLim   []uint16      `desc:"consecutive-fire limits, 0 = unlimited"`
	SnoozePer []uint16      `desc:"snooze periods in bursts"`
	Accum     []bool        `desc:"potential accumulation flags"`
	Areas     []uint32      `desc:"cortical area ids"`
	Coords    []mat32.Vec3i `desc:"3D coordinates"`
	Valid     []bool        `desc:"false for removed neurons"`

	MaxLen uint32 `desc:"hard cap on population size"`

	coords coordCache
}

// NewPop returns an empty population with the default capacity limit.
// Regular populations must stay below the memory-neuron id range.
func NewPop[T NeuralValue]() *Pop[T] {
	pp := &Pop[T]{MaxLen: MemNeuronBase}
	pp.coords.init()
	return pp
}

// Len returns the number of neuron slots, including invalidated ones.
func (pp *Pop[T]) Len() uint32 {
	return uint32(len(pp.Pots))
}

// IsValid reports whether idx addresses a live neuron.
func (pp *Pop[T]) IsValid(idx uint32) bool {
	return idx < pp.Len() && pp.Valid[idx]
}

// AddNeuron appends one neuron and returns its id.
func (pp *Pop[T]) AddNeuron(ns *NeuronSpec[T]) (uint32, error) {
	if pp.Len() >= pp.MaxLen {
		return 0, fmt.Errorf("pop at %d neurons: %w", pp.Len(), ErrCapacity)
	}
	idx := pp.Len()
	pp.Pots = append(pp.Pots, ns.Resting)
	pp.Thrs = append(pp.Thrs, ns.Threshold)
	pp.ThrLims = append(pp.ThrLims, ns.ThresholdLimit)
	pp.Leaks = append(pp.Leaks, ns.Leak)
	pp.Rests = append(pp.Rests, ns.Resting)
	pp.Types = append(pp.Types, ns.Type)
	pp.RefracPer = append(pp.RefracPer, ns.RefracPeriod)
	pp.RefracCtr = append(pp.RefracCtr, 0)
	pp.Excit = append(pp.Excit, ns.Excitability)
	pp.FireCnt = append(pp.FireCnt, 0)
	pp.FireLim = append(pp.FireLim, ns.FireLimit)
	pp.SnoozePer = append(pp.SnoozePer, ns.Snooze)
	pp.Accum = append(pp.Accum, ns.Accumulate)
	pp.Areas = append(pp.Areas, ns.Area)
	pp.Coords = append(pp.Coords, ns.Coord)
	pp.Valid = append(pp.Valid, true)
	pp.coords.Invalidate(ns.Area)
	return idx, nil
}

// AddNeuronsBatch appends a batch of neurons from column slices,
// returning the new ids. The batch is atomic: any length mismatch or
// capacity overflow leaves the population untouched.
func (pp *Pop[T]) AddNeuronsBatch(bc *BatchCols[T]) ([]uint32, error) {
	n := len(bc.Thresholds)
	if len(bc.ThresholdLimits) != n || len(bc.Leaks) != n || len(bc.Restings) != n ||
		len(bc.Types) != n || len(bc.RefracPeriods) != n || len(bc.Excitabilities) != n ||
		len(bc.FireLimits) != n || len(bc.Snoozes) != n || len(bc.Accumulates) != n ||
		len(bc.Areas) != n || len(bc.Coords) != n {
		return nil, fmt.Errorf("batch column lengths differ: %w", ErrInvariant)
	}
	if pp.Len()+uint32(n) > pp.MaxLen {
		return nil, fmt.Errorf("batch of %d would exceed %d: %w", n, pp.MaxLen, ErrCapacity)
	}
	st := pp.Len()
	pp.Pots = append(pp.Pots, bc.Restings...)
	pp.Thrs = append(pp.Thrs, bc.Thresholds...)
	pp.ThrLims = append(pp.ThrLims, bc.ThresholdLimits...)
	pp.Leaks = append(pp.Leaks, bc.Leaks...)
	pp.Rests = append(pp.Rests, bc.Restings...)
	pp.Types = append(pp.Types, bc.Types...)
	pp.RefracPer = append(pp.RefracPer, bc.RefracPeriods...)
	pp.Excit = append(pp.Excit, bc.Excitabilities...)
	pp.FireLim = append(pp.FireLim, bc.FireLimits...)
	pp.SnoozePer = append(pp.SnoozePer, bc.Snoozes...)
	pp.Accum = append(pp.Accum, bc.Accumulates...)
	pp.Areas = append(pp.Areas, bc.Areas...)
	pp.Coords = append(pp.Coords, bc.Coords...)
	ids := make([]uint32, n)
	for i := 0; i < n; i++ {
		pp.RefracCtr = append(pp.RefracCtr, 0)
		pp.FireCnt = append(pp.FireCnt, 0)
		pp.Valid = append(pp.Valid, true)
		ids[i] = st + uint32(i)
	}
	// one invalidation per touched area, not per neuron
	seen := map[uint32]bool{}
	for _, ar := range bc.Areas {
		if !seen[ar] {
			seen[ar] = true
			pp.coords.Invalidate(ar)
		}
	}
	return ids, nil
}

// RemoveNeuron invalidates a neuron slot. Ids are not reused.
func (pp *Pop[T]) RemoveNeuron(idx uint32) error {
	if !pp.IsValid(idx) {
		return fmt.Errorf("neuron %d: %w", idx, ErrInvariant)
	}
	pp.Valid[idx] = false
	pp.coords.Invalidate(pp.Areas[idx])
	return nil
}

// MembranePotential returns the current potential of a neuron.
func (pp *Pop[T]) MembranePotential(idx uint32) (T, error) {
	if !pp.IsValid(idx) {
		var zero T
		return zero, fmt.Errorf("neuron %d: %w", idx, ErrInvariant)
	}
	return pp.Pots[idx], nil
}

// SetMembranePotential sets the potential of a neuron directly.
func (pp *Pop[T]) SetMembranePotential(idx uint32, v T) error {
	if !pp.IsValid(idx) {
		return fmt.Errorf("neuron %d: %w", idx, ErrInvariant)
	}
	pp.Pots[idx] = v
	return nil
}

// NeuronsInArea returns the ids of all valid neurons in an area.
func (pp *Pop[T]) NeuronsInArea(area uint32) []uint32 {
	var ids []uint32
	for i := uint32(0); i < pp.Len(); i++ {
		if pp.Valid[i] && pp.Areas[i] == area {
			ids = append(ids, i)
		}
	}
	return ids
}

// NeuronAtCoord looks up the neuron at the given coordinate within an
// area, using the lazily-built per-area cache. Later additions win when
// coordinates collide, matching the rebuild scan order.
func (pp *Pop[T]) NeuronAtCoord(area uint32, c mat32.Vec3i) (uint32, bool) {
	return pp.coords.Lookup(area, c, func() map[mat32.Vec3i]uint32 {
		am := make(map[mat32.Vec3i]uint32)
		for i := uint32(0); i < pp.Len(); i++ {
			if pp.Valid[i] && pp.Areas[i] == area {
				am[pp.Coords[i]] = i
			}
		}
		return am
	})
}

// NeuronsAtCoords looks up many coordinates in one area at once,
// returning parallel id and found slices. The area map is built at most
// once for the whole batch.
func (pp *Pop[T]) NeuronsAtCoords(area uint32, coords []mat32.Vec3i) ([]uint32, []bool) {
	ids := make([]uint32, len(coords))
	found := make([]bool, len(coords))
	for i, c := range coords {
		ids[i], found[i] = pp.NeuronAtCoord(area, c)
	}
	return ids, found
}

// NeuronVarNames are the inspectable per-neuron variables, in column
// order. Inspection tooling iterates these and reads values through
// VarByName.
var NeuronVarNames = []string{
	"Pot", "Thr", "ThrLim", "Leak", "Rest", "Type", "RefracPer", "RefracCtr",
	"Excit", "FireCnt", "FireLim", "SnoozePer", "Accum",
}

var neuronVarsMap map[string]int

func init() {
	neuronVarsMap = make(map[string]int, len(NeuronVarNames))
	for i, v := range NeuronVarNames {
		neuronVarsMap[v] = i
	}
}

// NeuronVarIdxByName returns the index of a variable in NeuronVarNames,
// or error for an invalid name.
func NeuronVarIdxByName(varNm string) (int, error) {
	i, ok := neuronVarsMap[varNm]
	if !ok {
		return -1, fmt.Errorf("neuron VarByName: variable name: %v not valid: %w", varNm, ErrInvariant)
	}
	return i, nil
}

// VarByName returns the value of a named variable for a neuron, as a
// float64 regardless of column type. Boolean columns read as 0 / 1.
func (pp *Pop[T]) VarByName(varNm string, idx uint32) (float64, error) {
	if !pp.IsValid(idx) {
		return 0, fmt.Errorf("neuron %d: %w", idx, ErrInvariant)
	}
	vi, err := NeuronVarIdxByName(varNm)
	if err != nil {
		return 0, err
	}
	switch vi {
	case 0:
		return float64(pp.Pots[idx]), nil
	case 1:
		return float64(pp.Thrs[idx]), nil
	case 2:
		return float64(pp.ThrLims[idx]), nil
	case 3:
		return float64(pp.Leaks[idx]), nil
	case 4:
		return float64(pp.Rests[idx]), nil
	case 5:
		return float64(pp.Types[idx]), nil
	case 6:
		return float64(pp.RefracPer[idx]), nil
	case 7:
		return float64(pp.RefracCtr[idx]), nil
	case 8:
		return float64(pp.Excit[idx]), nil
	case 9:
		return float64(pp.FireCnt[idx]), nil
	case 10:
		return float64(pp.FireLim[idx]), nil
	case 11:
		return float64(pp.SnoozePer[idx]), nil
	default:
		if pp.Accum[idx] {
			return 1, nil
		}
		return 0, nil
	}
}

// SizeReport returns a human-readable summary of population memory use.
func (pp *Pop[T]) SizeReport() string {
	var b strings.Builder
	n := uint64(pp.Len())
	var t T
	valBytes := uint64(unsafe.Sizeof(t))
	// T columns: pots, thrs, thrlims, rests
	mem := n * (4*valBytes + 4 + 4 + 1 + 2 + 2 + 4 + 2 + 2 + 2 + 1 + 4 + 12 + 1)
	fmt.Fprintf(&b, "%14s:\t Neurons: %d\t NeurMem: %v\n", "Pop", n,
		(datasize.ByteSize)(mem).HumanReadable())
	return b.String()
}
