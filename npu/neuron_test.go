// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"errors"
	"strings"
	"testing"

	"github.com/goki/mat32"
)

// difTol is tolerance for numerical diffs in tests
const difTol = 1.0e-6

func CmprFloats(got, trg []float32, msg string, t *testing.T) {
	t.Helper()
	for i := range got {
		dif := mat32.Abs(got[i] - trg[i])
		if dif > difTol { // allow for small numerical diffs
			t.Errorf("%v err: got: %v, trg: %v, dif: %v\n", msg, got[i], trg[i], dif)
		}
	}
}

func simpleSpec() *NeuronSpec[float32] {
	return &NeuronSpec[float32]{
		Threshold:    1.0,
		Leak:         0.1,
		Excitability: 1.0,
		Accumulate:   true,
	}
}

func TestAddNeuron(t *testing.T) {
	pp := NewPop[float32]()
	id0, err := pp.AddNeuron(simpleSpec())
	if err != nil {
		t.Fatal(err)
	}
	id1, err := pp.AddNeuron(simpleSpec())
	if err != nil {
		t.Fatal(err)
	}
	if id0 != 0 || id1 != 1 {
		t.Errorf("ids: got %d, %d", id0, id1)
	}
	if pp.Len() != 2 {
		t.Errorf("len: got %d", pp.Len())
	}
	pot, err := pp.MembranePotential(id0)
	if err != nil {
		t.Fatal(err)
	}
	if pot != 0 {
		t.Errorf("initial potential: got %g", pot)
	}
}

func TestAddNeuronCapacity(t *testing.T) {
	pp := NewPop[float32]()
	pp.MaxLen = 2
	pp.AddNeuron(simpleSpec())
	pp.AddNeuron(simpleSpec())
	_, err := pp.AddNeuron(simpleSpec())
	if !errors.Is(err, ErrCapacity) {
		t.Errorf("expected ErrCapacity, got %v", err)
	}
	if pp.Len() != 2 {
		t.Errorf("len after overflow: got %d", pp.Len())
	}
}

func batchOf(n int, area uint32) *BatchCols[float32] {
	bc := &BatchCols[float32]{}
	for i := 0; i < n; i++ {
		bc.Thresholds = append(bc.Thresholds, 1.0)
		bc.ThresholdLimits = append(bc.ThresholdLimits, 0)
		bc.Leaks = append(bc.Leaks, 0.1)
		bc.Restings = append(bc.Restings, 0)
		bc.Types = append(bc.Types, 0)
		bc.RefracPeriods = append(bc.RefracPeriods, 0)
		bc.Excitabilities = append(bc.Excitabilities, 1.0)
		bc.FireLimits = append(bc.FireLimits, 0)
		bc.Snoozes = append(bc.Snoozes, 0)
		bc.Accumulates = append(bc.Accumulates, true)
		bc.Areas = append(bc.Areas, area)
		bc.Coords = append(bc.Coords, mat32.Vec3i{X: int32(i), Y: 0, Z: 0})
	}
	return bc
}

func TestAddNeuronsBatch(t *testing.T) {
	pp := NewPop[float32]()
	ids, err := pp.AddNeuronsBatch(batchOf(5, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 5 || ids[0] != 0 || ids[4] != 4 {
		t.Errorf("batch ids: got %v", ids)
	}
	if pp.Len() != 5 {
		t.Errorf("len: got %d", pp.Len())
	}
}

func TestAddNeuronsBatchAtomic(t *testing.T) {
	pp := NewPop[float32]()
	pp.AddNeuron(simpleSpec())
	bc := batchOf(3, 1)
	bc.Leaks = bc.Leaks[:2] // mismatched column
	_, err := pp.AddNeuronsBatch(bc)
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("expected ErrInvariant, got %v", err)
	}
	if pp.Len() != 1 {
		t.Errorf("store changed by failed batch: len %d", pp.Len())
	}
	if len(pp.Thrs) != 1 || len(pp.Leaks) != 1 || len(pp.Valid) != 1 {
		t.Errorf("columns changed by failed batch")
	}
}

func TestNeuronAtCoord(t *testing.T) {
	pp := NewPop[float32]()
	coords := []mat32.Vec3i{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}
	for _, c := range coords {
		ns := simpleSpec()
		ns.Area = 7
		ns.Coord = c
		pp.AddNeuron(ns)
	}
	for i, c := range coords {
		idx, ok := pp.NeuronAtCoord(7, c)
		if !ok || idx != uint32(i) {
			t.Errorf("coord %v: got %d, %v", c, idx, ok)
		}
	}
	if _, ok := pp.NeuronAtCoord(7, mat32.Vec3i{X: 9, Y: 9, Z: 9}); ok {
		t.Errorf("lookup of empty coordinate succeeded")
	}
}

func TestNeuronsAtCoords(t *testing.T) {
	pp := NewPop[float32]()
	coords := []mat32.Vec3i{{X: 1, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 1}, {X: 3, Y: 0, Z: 0}}
	for _, c := range coords {
		ns := simpleSpec()
		ns.Area = 4
		ns.Coord = c
		pp.AddNeuron(ns)
	}
	query := append(coords, mat32.Vec3i{X: 9, Y: 9, Z: 9})
	ids, found := pp.NeuronsAtCoords(4, query)
	for i := range coords {
		if !found[i] || ids[i] != uint32(i) {
			t.Errorf("coord %v: got %d, %v", query[i], ids[i], found[i])
		}
	}
	if found[3] {
		t.Errorf("unregistered coordinate resolved to %d", ids[3])
	}
}

func TestCoordCacheInvalidation(t *testing.T) {
	pp := NewPop[float32]()
	ns := simpleSpec()
	ns.Area = 1
	ns.Coord = mat32.Vec3i{X: 1, Y: 1, Z: 1}
	id, _ := pp.AddNeuron(ns)
	if _, ok := pp.NeuronAtCoord(1, ns.Coord); !ok { // build the cache
		t.Fatal("initial lookup failed")
	}
	pp.RemoveNeuron(id)
	if _, ok := pp.NeuronAtCoord(1, ns.Coord); ok {
		t.Errorf("cache served removed neuron")
	}
	// adding in the same area must be visible immediately
	ns2 := simpleSpec()
	ns2.Area = 1
	ns2.Coord = mat32.Vec3i{X: 2, Y: 2, Z: 2}
	id2, _ := pp.AddNeuron(ns2)
	idx, ok := pp.NeuronAtCoord(1, ns2.Coord)
	if !ok || idx != id2 {
		t.Errorf("new neuron not visible: got %d, %v", idx, ok)
	}
}

func TestNeuronsInArea(t *testing.T) {
	pp := NewPop[float32]()
	pp.AddNeuronsBatch(batchOf(3, 1))
	pp.AddNeuronsBatch(batchOf(2, 2))
	in1 := pp.NeuronsInArea(1)
	in2 := pp.NeuronsInArea(2)
	if len(in1) != 3 || len(in2) != 2 {
		t.Errorf("area counts: got %d, %d", len(in1), len(in2))
	}
}

func TestVarByName(t *testing.T) {
	pp := NewPop[float32]()
	ns := simpleSpec()
	ns.RefracPeriod = 3
	id, _ := pp.AddNeuron(ns)
	pp.Pots[id] = 0.5

	if got, err := pp.VarByName("Pot", id); err != nil || got != 0.5 {
		t.Errorf("Pot: got %g, %v", got, err)
	}
	if got, _ := pp.VarByName("RefracPer", id); got != 3 {
		t.Errorf("RefracPer: got %g", got)
	}
	if got, _ := pp.VarByName("Accum", id); got != 1 {
		t.Errorf("Accum: got %g", got)
	}
	if _, err := pp.VarByName("Bogus", id); !errors.Is(err, ErrInvariant) {
		t.Errorf("invalid name: got %v", err)
	}
	for _, nm := range NeuronVarNames {
		if _, err := pp.VarByName(nm, id); err != nil {
			t.Errorf("var %s: %v", nm, err)
		}
	}
}

func TestSizeReport(t *testing.T) {
	pp := NewPop[float32]()
	pp.AddNeuronsBatch(batchOf(10, 1))
	rep := pp.SizeReport()
	if !strings.Contains(rep, "Neurons: 10") {
		t.Errorf("size report missing count: %q", rep)
	}
}
