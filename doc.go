// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package npu is the overall repository for a burst-driven spiking neural
processing unit implemented in the Go language (golang).

This top-level of the repository has no functional code -- everything is
organized into the following sub-repositories:

* npu: the core engine -- structure-of-arrays neuron and synapse stores,
the per-burst fire candidate list, leaky integrate-and-fire dynamics, the
multi-threaded CPU backend, backend selection, and burst timing logs.

* gpu: Vulkan compute backends (portable and vendor-tuned) running the
same two-phase burst over the same stores, with device capability
probing for backend selection.

* memneuron: lifecycle management for pattern-indexed memory neurons in
the reserved id range above the array-backed stores.
*/
package npu
