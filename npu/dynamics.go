// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"github.com/emer/gosl/v2/slrand"
	"github.com/emer/gosl/v2/sltype"
)

// Excite holds the parameters of the leaky integrate-and-fire update
// applied to each fire candidate.
type Excite struct {
	AlwaysAt float32 `def:"0.999" desc:"excitability at or above which the probabilistic gate is bypassed"`
	Seed     uint32  `desc:"session seed mixed into the per-neuron firing jitter"`
}

// Defaults sets default parameter values.
func (ex *Excite) Defaults() {
	ex.AlwaysAt = 0.999
}

// StepOut is the result of evaluating one candidate. The compute phase
// produces these read-only against the population; the apply phase
// writes them back in index order.
type StepOut[T NeuralValue] struct {
	Idx       uint32 `desc:"neuron id"`
	Fired     bool   `desc:"neuron fired this burst"`
	Blocked   bool   `desc:"candidate discarded due to refractory countdown"`
	Pot       T      `desc:"new membrane potential"`
	RefracCtr uint16 `desc:"new refractory countdown"`
	FireCnt   uint16 `desc:"new consecutive-fire count"`
}

// gateFires applies the excitability gate: near-1 excitability always
// fires, non-positive never fires, and anything between fires with
// probability equal to the excitability using a counter-based Philox
// stream. The same neuron at the same burst count always draws the same
// number, on every backend.
func (ex *Excite) gateFires(excit float32, idx uint32, burst uint64) bool {
	if excit >= ex.AlwaysAt {
		return true
	}
	if excit <= 0 {
		return false
	}
	ctr := sltype.Uint2{X: uint32(burst), Y: uint32(burst >> 32)}
	return slrand.Float(&ctr, idx^ex.Seed) < excit
}

// Step evaluates the integrate-and-fire update for one candidate
// without mutating the population. cand is the accumulated candidate
// potential from the propagation phase; burst is the global burst
// count.
func Step[T NeuralValue](ex *Excite, pp *Pop[T], idx uint32, cand T, burst uint64) StepOut[T] {
	out := StepOut[T]{
		Idx:       idx,
		Pot:       pp.Pots[idx],
		RefracCtr: pp.RefracCtr[idx],
		FireCnt:   pp.FireCnt[idx],
	}
	lim := pp.FireLim[idx]

	// refractory countdown blocks the whole burst, input included
	if out.RefracCtr > 0 {
		out.RefracCtr--
		out.Blocked = true
		if out.RefracCtr == 0 && lim > 0 && out.FireCnt >= lim {
			out.FireCnt = 0
		}
		return out
	}

	if pp.Accum[idx] {
		out.Pot += cand
	} else {
		out.Pot = cand
	}

	thrLim := pp.ThrLims[idx]
	inWindow := out.Pot >= pp.Thrs[idx] && (thrLim == 0 || out.Pot <= thrLim)

	if inWindow && lim > 0 && out.FireCnt >= lim {
		// fire limit reached: snooze instead, no leak this burst
		out.FireCnt = 0
		out.RefracCtr = pp.SnoozePer[idx]
		return out
	}

	if inWindow && ex.gateFires(pp.Excit[idx], idx, burst) {
		out.Fired = true
		out.Pot = pp.Rests[idx]
		out.FireCnt++
		if lim > 0 && out.FireCnt >= lim {
			out.RefracCtr = pp.SnoozePer[idx]
			out.FireCnt = 0
		} else {
			out.RefracCtr = pp.RefracPer[idx]
		}
		return out
	}

	// no fire: consecutive run ends, potential decays toward rest
	if lim > 0 {
		out.FireCnt = 0
	}
	out.Pot -= T(pp.Leaks[idx]) * (out.Pot - pp.Rests[idx])
	return out
}

// Apply writes a step result back into the population.
func Apply[T NeuralValue](pp *Pop[T], out *StepOut[T]) {
	pp.Pots[out.Idx] = out.Pot
	pp.RefracCtr[out.Idx] = out.RefracCtr
	pp.FireCnt[out.Idx] = out.FireCnt
}
