// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import "errors"

// Error kinds returned by stores and backends. Callers match with
// errors.Is; wrapped messages carry the context. Backends never retry
// internally -- a failed burst is reported and the engine decides.
var (
	// ErrCapacity indicates a store cannot grow further.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrHardware indicates a required compute device is missing,
	// unsupported, or failed to initialize.
	ErrHardware = errors.New("hardware unavailable")

	// ErrDispatch indicates a device dispatch or transfer failed after
	// successful initialization.
	ErrDispatch = errors.New("dispatch failed")

	// ErrInvariant indicates caller-supplied data violated a structural
	// requirement (mismatched batch columns, wrong value type, bad index).
	ErrInvariant = errors.New("invariant violated")
)
