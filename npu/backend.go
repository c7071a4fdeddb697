// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

// BurstTiming holds wall-clock phase durations for one burst, in
// microseconds. TransferUS is zero for the CPU backend.
type BurstTiming struct {
	PropagationUS uint64 `desc:"synaptic propagation phase"`
	DynamicsUS    uint64 `desc:"neural dynamics phase"`
	TransferUS    uint64 `desc:"host-device data movement"`
	TotalUS       uint64 `desc:"whole burst including bookkeeping"`
}

// BurstResult is the outcome of one burst.
type BurstResult struct {
	Fired      []uint32    `desc:"ids of neurons that fired, ascending"`
	Timing     BurstTiming `desc:"phase wall-clock times"`
	Processed  uint64      `desc:"fire candidates evaluated"`
	NumFired   uint64      `desc:"neurons that fired"`
	Refractory uint64      `desc:"candidates blocked by refractory countdown"`
}

// Backend executes bursts over a fixed population and synapse store.
// Every backend runs the same two-phase composition: synaptic
// propagation expands the previous burst's fired set into the fire
// candidate list, then neural dynamics turns candidates into this
// burst's fired set. Exactly one burst is in flight at a time; backends
// are not reentrant.
type Backend[T NeuralValue] interface {
	// Initialize binds the stores and performs one-time setup (index
	// builds, device uploads). Must be called before the first burst
	// and again after structural changes to the stores.
	Initialize(pop *Pop[T], syn *Synapses) error

	// ProcessBurst runs one burst: fired is the previous burst's fired
	// set, injected carries external sensory candidates (may be nil),
	// burst is the global burst count used for deterministic jitter.
	ProcessBurst(fired []uint32, injected *FCL[T], burst uint64) (*BurstResult, error)

	// Name identifies the backend in logs and reports.
	Name() string

	// Release frees any resources held by the backend.
	Release() error
}
