// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"sync"

	"github.com/goki/mat32"
)

// coordCache maps (area, coordinate) -> neuron id. Area maps are built
// lazily on first lookup by scanning the population, and dropped whole
// when any neuron in the area is added or removed. Invalidation happens
// under the write lock before the mutating call returns, so readers
// never see an entry for a stale neuron.
type coordCache struct {
	mu    sync.RWMutex
	areas map[uint32]map[mat32.Vec3i]uint32
}

func (cc *coordCache) init() {
	cc.areas = make(map[uint32]map[mat32.Vec3i]uint32)
}

// Invalidate drops the cached map for an area.
func (cc *coordCache) Invalidate(area uint32) {
	cc.mu.Lock()
	delete(cc.areas, area)
	cc.mu.Unlock()
}

// Lookup finds the neuron at a coordinate, calling build to construct
// the area map if it is missing.
func (cc *coordCache) Lookup(area uint32, c mat32.Vec3i, build func() map[mat32.Vec3i]uint32) (uint32, bool) {
	cc.mu.RLock()
	am, ok := cc.areas[area]
	if ok {
		idx, found := am[c]
		cc.mu.RUnlock()
		return idx, found
	}
	cc.mu.RUnlock()

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if am, ok = cc.areas[area]; !ok { // lost the race, rebuild once
		am = build()
		cc.areas[area] = am
	}
	idx, found := am[c]
	return idx, found
}
