// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"reflect"
	"testing"
)

func TestFCLAccumulates(t *testing.T) {
	f := NewFCL[float32]()
	f.Add(3, 1.0)
	f.Add(3, 0.5)
	f.Add(1, -0.25)
	if f.Len() != 2 {
		t.Errorf("len: got %d", f.Len())
	}
	p, ok := f.Potential(3)
	if !ok {
		t.Fatal("candidate 3 missing")
	}
	CmprFloats([]float32{p}, []float32{1.5}, "accumulated potential", t)
	if ids := f.SortedIndexes(); !reflect.DeepEqual(ids, []uint32{1, 3}) {
		t.Errorf("sorted ids: got %v", ids)
	}
}

func TestFCLClear(t *testing.T) {
	f := NewFCL[float32]()
	f.Add(0, 1.0)
	f.Clear()
	if !f.IsEmpty() {
		t.Errorf("not empty after clear")
	}
	if _, ok := f.Potential(0); ok {
		t.Errorf("cleared candidate still present")
	}
}
