// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

// Workgroup width is compile-time in SPIR-V, so each dispatch size the
// backends use gets its own compiled variant.

//go:generate glslc -fshader-stage=compute -DTHREADS=64 -o shaders/propagate64.spv shaders/propagate.hlsl
//go:generate glslc -fshader-stage=compute -DTHREADS=64 -o shaders/dynamics64.spv shaders/dynamics.hlsl
//go:generate glslc -fshader-stage=compute -DTHREADS=256 -o shaders/propagate256.spv shaders/propagate.hlsl
//go:generate glslc -fshader-stage=compute -DTHREADS=256 -o shaders/dynamics256.spv shaders/dynamics.hlsl
