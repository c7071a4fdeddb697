// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"github.com/neurokit/npu/npu"
)

// Vendor is the vendor-tuned backend: the same staging contract and
// shaders as the portable backend, dispatched with wider workgroups on
// devices at or above the minimum compute tier. Lower fixed overhead
// is reflected in its cost model, not in this code path.
type Vendor struct {
	Compute
	Cap Capability `desc:"device capability from probe"`
}

// NewVendor returns a vendor backend gated on the probed capability.
func NewVendor(cp Capability) *Vendor {
	vb := &Vendor{Cap: cp}
	vb.ShaderDir = "shaders"
	vb.GroupSize = 256
	vb.label = "vendor-gpu"
	vb.Excite.Defaults()
	return vb
}

// Initialize implements Backend, refusing devices below the minimum
// tier before touching the device.
func (vb *Vendor) Initialize(pop *npu.Pop[float32], syn *npu.Synapses) error {
	if vb.Cap.Tier < MinVendorTier {
		return fmt.Errorf("device %q tier %d below %d: %w",
			vb.Cap.DeviceName, vb.Cap.Tier, MinVendorTier, npu.ErrHardware)
	}
	if vb.Cap.MaxThreads > 0 && vb.GroupSize > vb.Cap.MaxThreads {
		vb.GroupSize = vb.Cap.MaxThreads
	}
	return vb.Compute.Initialize(pop, syn)
}
