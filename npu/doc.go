// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package npu implements the burst execution core of a spiking neural
processing unit: structure-of-arrays neuron and synapse stores, the
per-burst fire candidate list, leaky integrate-and-fire dynamics, a
multi-threaded CPU backend, and scale-based backend selection.

A burst has two phases with a fixed composition. Synaptic propagation
expands the previous burst's fired neurons through the source fan-out
index into the fire candidate list, accumulating signed weight * psp
contributions per target. Neural dynamics then evaluates every
candidate: refractory countdowns block, candidate potential integrates
(or replaces, per neuron), the firing window and excitability gate
decide firing, and non-firing candidates leak toward their resting
potential. The fired set comes back in ascending id order and seeds the
next burst.

Determinism: candidates are processed in ascending id order, and the
excitability gate draws from a counter-based Philox stream keyed by
neuron id and burst count, so a run reproduces exactly at any thread
count and on any backend.

GPU backends over the same stores live in the gpu package; memory
neuron lifespans are managed by the memneuron package.
*/
package npu
