// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"strings"
	"testing"
)

func selCfg() *SelectConfig {
	cfg := &SelectConfig{}
	cfg.Defaults()
	cfg.Avail = Avail{Portable: true, Vendor: true}
	return cfg
}

func TestSelectForceFlags(t *testing.T) {
	cfg := selCfg()
	big := PopStats{Neurons: 1_000_000, Synapses: 100_000_000}

	cfg.ForceCPU = true
	if d := SelectBackend(cfg, big); d.Type != CPUBackend {
		t.Errorf("force cpu: got %v", d.Type)
	}
	cfg.ForceCPU = false

	cfg.ForceVendor = true
	if d := SelectBackend(cfg, PopStats{Neurons: 10}); d.Type != VendorGPU {
		t.Errorf("force vendor: got %v", d.Type)
	}
	cfg.Avail.Vendor = false
	d := SelectBackend(cfg, PopStats{Neurons: 10})
	if d.Type != CPUBackend || !strings.Contains(d.Reason, "unavailable") {
		t.Errorf("forced unavailable vendor: got %v %q", d.Type, d.Reason)
	}
	cfg.ForceVendor = false

	cfg.ForcePortable = true
	cfg.Avail.Portable = false
	if d := SelectBackend(cfg, big); d.Type != CPUBackend {
		t.Errorf("forced unavailable portable: got %v", d.Type)
	}
}

func TestSelectThresholds(t *testing.T) {
	cfg := selCfg()

	small := PopStats{Neurons: 1000, Synapses: 10_000}
	if d := SelectBackend(cfg, small); d.Type != CPUBackend {
		t.Errorf("small network: got %v", d.Type)
	}

	vendorScale := PopStats{Neurons: 200_000, Synapses: 20_000_000}
	if d := SelectBackend(cfg, vendorScale); d.Type != VendorGPU {
		t.Errorf("vendor scale: got %v (%s)", d.Type, d.Reason)
	}

	cfg.Avail.Vendor = false
	portableScale := PopStats{Neurons: 600_000, Synapses: 60_000_000}
	if d := SelectBackend(cfg, portableScale); d.Type != PortableGPU {
		t.Errorf("portable scale: got %v (%s)", d.Type, d.Reason)
	}

	cfg.Avail.Portable = false
	if d := SelectBackend(cfg, portableScale); d.Type != CPUBackend {
		t.Errorf("no devices: got %v", d.Type)
	}
}

func TestSelectSpeedupGate(t *testing.T) {
	cfg := selCfg()
	cfg.Avail.Portable = false
	// at vendor threshold scale but with an absurd speedup floor the
	// decision stays on the CPU
	cfg.MinSpeedup = 1000
	big := PopStats{Neurons: 1_000_000, Synapses: 100_000_000}
	if d := SelectBackend(cfg, big); d.Type != CPUBackend {
		t.Errorf("speedup gate ignored: got %v", d.Type)
	}
}

func TestCostModelClamp(t *testing.T) {
	cm := VendorCost()
	tiny := cm.Speedup(PopStats{Neurons: 1, Synapses: 1})
	if tiny < 0.1-difTol {
		t.Errorf("speedup below clamp: %g", tiny)
	}
	huge := cm.Speedup(PopStats{Neurons: 1 << 40, Synapses: 1 << 40})
	if huge > 100+difTol {
		t.Errorf("speedup above clamp: %g", huge)
	}
}
