// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memneuron

import (
	"reflect"
	"testing"
)

func TestCreateAssignsReservedIds(t *testing.T) {
	ar := NewArray()
	id0, err := ar.Create(0xABCD, 1)
	if err != nil {
		t.Fatal(err)
	}
	id1, _ := ar.Create(0xBEEF, 1)
	if id0 != Base || id1 != Base+1 {
		t.Errorf("ids: got %d, %d", id0, id1)
	}
	if got, ok := ar.ByPattern(0xABCD); !ok || got != id0 {
		t.Errorf("pattern lookup: got %d, %v", got, ok)
	}
}

func TestCreateKnownPatternReactivates(t *testing.T) {
	ar := NewArray()
	id, _ := ar.Create(0xABCD, 1)
	again, err := ar.Create(0xABCD, 1)
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Errorf("duplicate pattern made new neuron: %d vs %d", again, id)
	}
	ls, _ := ar.Lifespan(id)
	if ls != 23 { // 20 + 3
		t.Errorf("lifespan after reactivation: got %d", ls)
	}
}

func TestReactivateGrowthAndPromotion(t *testing.T) {
	ar := NewArray()
	id, _ := ar.Create(0x1, 1)
	for i := 0; i < 26; i++ { // 20 + 26*3 = 98, still short-term
		ar.Reactivate(id)
	}
	if ar.IsLongTerm(id) {
		t.Fatal("promoted too early")
	}
	if ls, _ := ar.Lifespan(id); ls != 98 {
		t.Fatalf("lifespan before threshold: got %d", ls)
	}
	ar.Reactivate(id) // 98 + 3 = 101 >= 100 -> long-term
	if !ar.IsLongTerm(id) {
		t.Error("not promoted at threshold")
	}
	ls, _ := ar.Lifespan(id)
	if ls != 100 {
		t.Errorf("long-term lifespan: got %d", ls)
	}
	// long-term neurons no longer age
	for i := 0; i < 200; i++ {
		ar.Age()
	}
	if !ar.IsLongTerm(id) || ar.NumLive() != 1 {
		t.Error("long-term neuron aged out")
	}
}

func TestAgeRetiresAndReusesSlots(t *testing.T) {
	ar := NewArray()
	ar.Params.InitialLifespan = 2
	id, _ := ar.Create(0x1, 1)
	ar.Age()
	if ar.NumLive() != 1 {
		t.Fatal("retired after one pass")
	}
	ar.Age()
	if ar.NumLive() != 0 {
		t.Fatal("not retired at zero lifespan")
	}
	if _, ok := ar.ByPattern(0x1); ok {
		t.Error("retired pattern still resolvable")
	}
	if err := ar.Reactivate(id); err == nil {
		t.Error("reactivating retired id succeeded")
	}
	// retired slot is reused, so the id comes back for a new pattern
	id2, _ := ar.Create(0x2, 1)
	if id2 != id {
		t.Errorf("slot not reused: got %d, want %d", id2, id)
	}
	if ar.Len() != 1 {
		t.Errorf("array grew despite free slot: len %d", ar.Len())
	}
}

func TestDrainAscendingDeduplicated(t *testing.T) {
	ar := NewArray()
	idA, _ := ar.Create(0xA, 1)
	idB, _ := ar.Create(0xB, 1)
	ar.Reactivate(idB)
	ar.Reactivate(idA)
	ar.Reactivate(idA)
	fired := ar.Drain()
	if !reflect.DeepEqual(fired, []uint32{idA, idB}) {
		t.Errorf("drained: got %v", fired)
	}
	if got := ar.Drain(); got != nil {
		t.Errorf("second drain not empty: %v", got)
	}
}

func TestStats(t *testing.T) {
	ar := NewArray()
	ar.Create(0xA, 1)
	s := ar.Stats()
	if s == "" {
		t.Error("empty stats")
	}
}
