// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import "testing"

func TestPackUnpackSynapse(t *testing.T) {
	cases := []struct{ wt, psp, typ uint8 }{
		{0, 0, 0},
		{255, 255, 255},
		{100, 50, 1},
		{1, 255, 0},
	}
	for _, c := range cases {
		w := PackSynapse(c.wt, c.psp, c.typ)
		wt, psp, typ := UnpackSynapse(w)
		if wt != c.wt || psp != c.psp || typ != c.typ {
			t.Errorf("round trip %v: got %d, %d, %d", c, wt, psp, typ)
		}
	}
	if PackSynapse(100, 50, 1) != 1<<16|50<<8|100 {
		t.Errorf("packed layout changed")
	}
}

func TestContribution(t *testing.T) {
	sy := NewSynapses()
	exc, _ := sy.Add(0, 1, 100, 50, 0)
	inh, _ := sy.Add(0, 2, 100, 50, 1)
	CmprFloats([]float32{sy.Contribution(exc), sy.Contribution(inh)},
		[]float32{5000, -5000}, "contribution signs", t)
}

func TestSourceIndexLookup(t *testing.T) {
	sy := NewSynapses()
	// source 0 fans out to 3 targets, source 5 to 1, source 9 to none
	sy.Add(0, 1, 10, 10, 0)
	sy.Add(0, 2, 20, 10, 0)
	sy.Add(5, 3, 30, 10, 0)
	sy.Add(0, 3, 40, 10, 0)
	si := BuildSourceIndex(sy)

	run := si.Lookup(0)
	if len(run) != 3 {
		t.Fatalf("source 0 run: got %d", len(run))
	}
	// runs hold synapse indices in insertion order
	if run[0] != 0 || run[1] != 1 || run[2] != 3 {
		t.Errorf("source 0 run order: got %v", run)
	}
	if run5 := si.Lookup(5); len(run5) != 1 || run5[0] != 2 {
		t.Errorf("source 5 run: got %v", run5)
	}
	if run9 := si.Lookup(9); run9 != nil {
		t.Errorf("missing source returned %v", run9)
	}
}

func TestSourceIndexCapacity(t *testing.T) {
	sy := NewSynapses()
	for s := uint32(0); s < 300; s++ {
		sy.Add(s, s+1000, 1, 1, 0)
	}
	si := BuildSourceIndex(sy)
	n := len(si.Keys)
	if n&(n-1) != 0 {
		t.Errorf("capacity %d not a power of two", n)
	}
	if n < 2*300 {
		t.Errorf("capacity %d below twice source count", n)
	}
	for s := uint32(0); s < 300; s++ {
		if run := si.Lookup(s); len(run) != 1 {
			t.Fatalf("source %d run: got %v", s, run)
		}
	}
}

func TestSourceIndexSkipsInvalid(t *testing.T) {
	sy := NewSynapses()
	keep, _ := sy.Add(1, 2, 10, 10, 0)
	gone, _ := sy.Add(1, 3, 10, 10, 0)
	sy.Remove(gone)
	si := BuildSourceIndex(sy)
	run := si.Lookup(1)
	if len(run) != 1 || run[0] != keep {
		t.Errorf("run with removed synapse: got %v", run)
	}
}
