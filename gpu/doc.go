// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package gpu provides Vulkan compute backends for the npu burst engine.

Neuron records, packed synapse words and the source fan-out hash table
upload once at Initialize. Each burst uploads only the fired list, the
injected candidates and the uniform block, runs the propagation and
dynamics shaders with a wait between them, and downloads the neuron
records plus a bit-packed fired mask. The excitability gate in the
dynamics shader uses the same Philox counter stream as the host code,
so CPU and GPU bursts fire identically.

Probe reports device availability and capability for backend selection
without committing any resources.
*/
package gpu
