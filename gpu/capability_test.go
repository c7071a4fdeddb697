// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/neurokit/npu/npu"
)

func TestComputeTier(t *testing.T) {
	cases := []struct {
		threads int
		storage uint64
		tier    int
	}{
		{1024, 4 << 30, 7},
		{2048, 1 << 30, 7},
		{512, 1 << 28, 5},
		{1024, 1 << 28, 5},
		{256, 4 << 30, 3},
		{64, 1 << 20, 3},
	}
	for _, c := range cases {
		if got := ComputeTier(c.threads, c.storage); got != c.tier {
			t.Errorf("tier(%d, %d): got %d, want %d", c.threads, c.storage, got, c.tier)
		}
	}
}

func TestVendorRefusesLowTier(t *testing.T) {
	vb := NewVendor(Capability{DeviceName: "igpu", Tier: 3})
	pp := stagePop(1)
	err := vb.Initialize(pp, npu.NewSynapses())
	if !errors.Is(err, npu.ErrHardware) {
		t.Errorf("expected ErrHardware, got %v", err)
	}
	if !strings.Contains(err.Error(), "igpu") {
		t.Errorf("error does not name device: %v", err)
	}
}

func TestVendorClampsGroupSize(t *testing.T) {
	vb := NewVendor(Capability{Tier: 7, MaxThreads: 128})
	if vb.GroupSize != 256 {
		t.Fatalf("initial group size: got %d", vb.GroupSize)
	}
	// Initialize clamps before shader resolution; missing shaders on a
	// test box surface as ErrHardware after the clamp
	vb.Initialize(stagePop(1), npu.NewSynapses())
	if vb.GroupSize != 128 {
		t.Errorf("group size not clamped: got %d", vb.GroupSize)
	}
}

func TestComputeMissingShaders(t *testing.T) {
	cb := NewCompute()
	cb.ShaderDir = t.TempDir()
	err := cb.Initialize(stagePop(1), npu.NewSynapses())
	if !errors.Is(err, npu.ErrHardware) {
		t.Errorf("expected ErrHardware for missing shaders, got %v", err)
	}
}
