// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"fmt"

	"github.com/goki/ki/kit"
)

// BackendType enumerates the available burst execution backends.
type BackendType int

//go:generate stringer -type=BackendType

var KiT_BackendType = kit.Enums.AddEnum(BackendTypeN, false, nil)

func (ev BackendType) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *BackendType) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// CPUBackend runs bursts on host threads.
	CPUBackend BackendType = iota

	// PortableGPU runs bursts on any Vulkan compute device.
	PortableGPU

	// VendorGPU runs bursts on a vendor-tuned device path with lower
	// dispatch overhead, requiring a minimum device tier.
	VendorGPU

	BackendTypeN
)

// PopStats summarizes population scale for backend selection.
type PopStats struct {
	Neurons  uint64
	Synapses uint64
}

// Avail reports which device backends initialized successfully.
type Avail struct {
	Portable bool
	Vendor   bool
}

// CostModel estimates the burst speedup of a device backend over the
// CPU from population scale. The constants are rough hardware
// descriptions, not measurements; calibrate them for real deployments.
// Estimates are advisory and clamped to [0.1, 100].
type CostModel struct {
	CPUGFlops  float32 `def:"100" desc:"assumed host throughput, GFLOPS"`
	GPUTFlops  float32 `desc:"assumed device throughput, TFLOPS"`
	BusGBs     float32 `desc:"assumed host-device bandwidth, GB/s"`
	OverheadUS float32 `desc:"fixed per-burst dispatch overhead, microseconds"`
	FiredFrac  float32 `def:"0.01" desc:"assumed fraction of neurons firing per burst"`
}

// PortableCost returns the default cost model for the portable backend.
func PortableCost() CostModel {
	return CostModel{CPUGFlops: 100, GPUTFlops: 10, BusGBs: 25, OverheadUS: 200, FiredFrac: 0.01}
}

// VendorCost returns the default cost model for the vendor backend.
func VendorCost() CostModel {
	return CostModel{CPUGFlops: 100, GPUTFlops: 19.5, BusGBs: 32, OverheadUS: 100, FiredFrac: 0.01}
}

// Speedup estimates device speedup over CPU for the given scale.
func (cm *CostModel) Speedup(st PopStats) float32 {
	flops := float32(10*st.Synapses + 20*st.Neurons)
	cpuSecs := flops / (cm.CPUGFlops * 1e9)
	gpuSecs := flops / (cm.GPUTFlops * 1e12)
	// potentials down and back, bitpacked fired mask, fired id list
	xferBytes := float32(st.Neurons)*8 + float32(st.Neurons)*0.125 +
		cm.FiredFrac*float32(st.Neurons)*4
	gpuSecs += xferBytes/(cm.BusGBs*1e9) + cm.OverheadUS*1e-6
	sp := cpuSecs / gpuSecs
	if sp < 0.1 {
		sp = 0.1
	}
	if sp > 100 {
		sp = 100
	}
	return sp
}

// SelectConfig holds backend selection thresholds and force flags.
type SelectConfig struct {
	ForceCPU      bool `desc:"always select the CPU backend"`
	ForcePortable bool `desc:"select the portable GPU backend if available"`
	ForceVendor   bool `desc:"select the vendor GPU backend if available"`

	Avail Avail `desc:"device availability, typically from gpu.Probe"`

	VendorNeurons    uint64  `def:"100000" desc:"neuron count above which the vendor backend is considered"`
	VendorSynapses   uint64  `def:"10000000" desc:"synapse count above which the vendor backend is considered"`
	PortableNeurons  uint64  `def:"500000" desc:"neuron count above which the portable backend is considered"`
	PortableSynapses uint64  `def:"50000000" desc:"synapse count above which the portable backend is considered"`
	MinSpeedup       float32 `def:"1.5" desc:"minimum estimated speedup to leave the CPU"`

	Portable CostModel `desc:"cost model for the portable backend"`
	Vendor   CostModel `desc:"cost model for the vendor backend"`
}

// Defaults sets default selection parameters.
func (sc *SelectConfig) Defaults() {
	sc.VendorNeurons = 100_000
	sc.VendorSynapses = 10_000_000
	sc.PortableNeurons = 500_000
	sc.PortableSynapses = 50_000_000
	sc.MinSpeedup = 1.5
	sc.Portable = PortableCost()
	sc.Vendor = VendorCost()
}

// Decision is the outcome of backend selection.
type Decision struct {
	Type    BackendType `desc:"selected backend"`
	Speedup float32     `desc:"estimated speedup for device backends"`
	Reason  string      `desc:"why this backend was chosen"`
}

// SelectBackend picks a backend for the given population scale. Pure:
// it touches no hardware, relying on cfg.Avail for device presence.
// Force flags win; a forced device that is unavailable falls back to
// the CPU with the reason recorded.
func SelectBackend(cfg *SelectConfig, st PopStats) Decision {
	if cfg.ForceCPU {
		return Decision{Type: CPUBackend, Reason: "forced"}
	}
	if cfg.ForceVendor {
		if cfg.Avail.Vendor {
			return Decision{Type: VendorGPU, Reason: "forced"}
		}
		return Decision{Type: CPUBackend, Reason: "vendor gpu forced but unavailable"}
	}
	if cfg.ForcePortable {
		if cfg.Avail.Portable {
			return Decision{Type: PortableGPU, Reason: "forced"}
		}
		return Decision{Type: CPUBackend, Reason: "portable gpu forced but unavailable"}
	}
	if cfg.Avail.Vendor && (st.Neurons >= cfg.VendorNeurons || st.Synapses >= cfg.VendorSynapses) {
		if sp := cfg.Vendor.Speedup(st); sp > cfg.MinSpeedup {
			return Decision{Type: VendorGPU, Speedup: sp,
				Reason: fmt.Sprintf("scale %d/%d, est speedup %.2f", st.Neurons, st.Synapses, sp)}
		}
	}
	if cfg.Avail.Portable && (st.Neurons >= cfg.PortableNeurons || st.Synapses >= cfg.PortableSynapses) {
		if sp := cfg.Portable.Speedup(st); sp > cfg.MinSpeedup {
			return Decision{Type: PortableGPU, Speedup: sp,
				Reason: fmt.Sprintf("scale %d/%d, est speedup %.2f", st.Neurons, st.Synapses, sp)}
		}
	}
	return Decision{Type: CPUBackend, Reason: "below device thresholds"}
}
