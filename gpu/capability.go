// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/goki/vgpu/vgpu"

	"github.com/neurokit/npu/npu"
)

// MinVendorTier is the lowest compute tier the vendor backend accepts.
const MinVendorTier = 7

// Capability describes the compute device found at probe time.
type Capability struct {
	DeviceName string            `desc:"physical device name"`
	Tier       int               `desc:"compute tier derived from device limits"`
	MaxStorage datasize.ByteSize `desc:"largest single storage buffer"`
	MaxThreads int               `desc:"max invocations per workgroup"`
}

// String returns a one-line report of the device capability.
func (cp *Capability) String() string {
	return fmt.Sprintf("%s:\t tier %d\t storage %v\t threads/group %d",
		cp.DeviceName, cp.Tier, cp.MaxStorage.HumanReadable(), cp.MaxThreads)
}

// ComputeTier maps device limits to the coarse tier used for vendor
// backend gating. Workgroup width and storage range are the two limits
// the burst kernels actually depend on.
func ComputeTier(maxThreads int, maxStorage uint64) int {
	switch {
	case maxThreads >= 1024 && maxStorage >= 1<<30:
		return 7
	case maxThreads >= 512 && maxStorage >= 1<<28:
		return 5
	default:
		return 3
	}
}

// Probe initializes Vulkan headlessly and reports device availability
// for backend selection. A failed init means no devices; Probe never
// returns an error.
func Probe() (av npu.Avail, cp Capability) {
	if vgpu.Init() != nil {
		return
	}
	gp := vgpu.NewComputeGPU()
	gp.Config("probe")
	defer func() {
		gp.Destroy()
		vgpu.Terminate()
	}()

	gp.GPUProps.Deref()
	gp.GPUProps.Limits.Deref()
	cp.DeviceName = gp.DeviceName
	cp.MaxThreads = int(gp.GPUProps.Limits.MaxComputeWorkGroupInvocations)
	cp.MaxStorage = datasize.ByteSize(gp.GPUProps.Limits.MaxStorageBufferRange)
	cp.Tier = ComputeTier(cp.MaxThreads, uint64(cp.MaxStorage))

	av.Portable = true
	av.Vendor = cp.Tier >= MinVendorTier
	return
}
