// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/emer/emergent/timer"
	"github.com/goki/ki/ints"
)

// CPU is the multi-threaded host backend. Propagation walks the source
// index sequentially; dynamics splits the sorted candidate list across
// persistent worker goroutines that compute step results read-only,
// then a single sequential pass applies them in index order. The split
// keeps the parallel phase free of writes, so results are identical at
// any thread count.
type CPU[T NeuralValue] struct {
	Excite   Excite `desc:"integrate-and-fire parameters"`
	NThreads int    `desc:"number of worker goroutines"`

	pop *Pop[T]
	syn *Synapses
	src *SourceIndex
	fcl *FCL[T]

	thrChans []chan func(tt int)
	thrTimes []timer.Time
	waitGp   sync.WaitGroup
	started  bool

	cands []uint32
	outs  []StepOut[T]
}

// NewCPU returns a CPU backend with default parameters and one worker
// per logical processor, capped at 16.
func NewCPU[T NeuralValue]() *CPU[T] {
	cb := &CPU[T]{NThreads: ints.MinInt(runtime.NumCPU(), 16)}
	cb.Excite.Defaults()
	return cb
}

// Name implements Backend.
func (cb *CPU[T]) Name() string {
	return "cpu"
}

// Initialize binds the stores and (re)builds the source index. Call
// again whenever the synapse store changes.
func (cb *CPU[T]) Initialize(pop *Pop[T], syn *Synapses) error {
	if pop == nil || syn == nil {
		return fmt.Errorf("nil store: %w", ErrInvariant)
	}
	cb.pop = pop
	cb.syn = syn
	cb.src = BuildSourceIndex(syn)
	cb.fcl = NewFCL[T]()
	if cb.NThreads < 1 {
		cb.NThreads = 1
	}
	cb.startThreads()
	return nil
}

// startThreads launches the persistent workers that monitor the
// channels for work.
func (cb *CPU[T]) startThreads() {
	if cb.started {
		return
	}
	cb.thrChans = make([]chan func(tt int), cb.NThreads)
	cb.thrTimes = make([]timer.Time, cb.NThreads)
	for th := 0; th < cb.NThreads; th++ {
		cb.thrChans[th] = make(chan func(tt int))
		go cb.thrWorker(th)
	}
	cb.started = true
}

// thrWorker is the worker function run by the worker goroutines.
func (cb *CPU[T]) thrWorker(tt int) {
	for fun := range cb.thrChans[tt] {
		cb.thrTimes[tt].Start()
		fun(tt)
		cb.thrTimes[tt].Stop()
		cb.waitGp.Done()
	}
}

// thrRun splits [0, n) into chunks and runs fun on the workers,
// blocking until all finish. Runs inline when single threaded.
func (cb *CPU[T]) thrRun(n int, fun func(st, ed int)) {
	if cb.NThreads <= 1 || n < cb.NThreads {
		fun(0, n)
		return
	}
	chunk := (n + cb.NThreads - 1) / cb.NThreads
	for th := 0; th < cb.NThreads; th++ {
		st := th * chunk
		ed := ints.MinInt(st+chunk, n)
		if st >= ed {
			break
		}
		cb.waitGp.Add(1)
		cb.thrChans[th] <- func(tt int) { fun(st, ed) }
	}
	cb.waitGp.Wait()
}

// Release stops the worker goroutines.
func (cb *CPU[T]) Release() error {
	if cb.started {
		for th := 0; th < cb.NThreads; th++ {
			close(cb.thrChans[th])
		}
		cb.started = false
	}
	return nil
}

// ProcessBurst implements Backend.
func (cb *CPU[T]) ProcessBurst(fired []uint32, injected *FCL[T], burst uint64) (*BurstResult, error) {
	if cb.pop == nil {
		return nil, fmt.Errorf("backend not initialized: %w", ErrInvariant)
	}
	totTmr := timer.Time{}
	totTmr.Start()

	// phase 1: synaptic propagation, fired set -> candidate list
	propTmr := timer.Time{}
	propTmr.Start()
	for _, src := range fired {
		for _, sidx := range cb.src.Lookup(src) {
			if cb.syn.Valid[sidx] {
				cb.fcl.Add(cb.syn.Tgt[sidx], T(cb.syn.Contribution(sidx)))
			}
		}
	}
	if injected != nil {
		for idx, pot := range injected.Potentials() {
			cb.fcl.Add(idx, pot)
		}
	}
	propTmr.Stop()

	// phase 2: neural dynamics, candidate list -> new fired set
	dynTmr := timer.Time{}
	dynTmr.Start()
	cb.cands = cb.cands[:0]
	for _, idx := range cb.fcl.SortedIndexes() {
		if idx >= MemNeuronBase || !cb.pop.IsValid(idx) {
			continue
		}
		cb.cands = append(cb.cands, idx)
	}
	n := len(cb.cands)
	if cap(cb.outs) < n {
		cb.outs = make([]StepOut[T], n)
	}
	cb.outs = cb.outs[:n]
	cb.thrRun(n, func(st, ed int) {
		for i := st; i < ed; i++ {
			idx := cb.cands[i]
			cand, _ := cb.fcl.Potential(idx)
			cb.outs[i] = Step(&cb.Excite, cb.pop, idx, cand, burst)
		}
	})

	res := &BurstResult{Processed: uint64(n)}
	for i := range cb.outs {
		out := &cb.outs[i]
		Apply(cb.pop, out)
		if out.Blocked {
			res.Refractory++
		}
		if out.Fired {
			res.Fired = append(res.Fired, out.Idx)
		}
	}
	res.NumFired = uint64(len(res.Fired))
	dynTmr.Stop()

	cb.fcl.Clear()
	totTmr.Stop()

	res.Timing.PropagationUS = usecs(&propTmr)
	res.Timing.DynamicsUS = usecs(&dynTmr)
	res.Timing.TotalUS = usecs(&totTmr)
	return res, nil
}

// ThreadReport returns per-worker accumulated compute time.
func (cb *CPU[T]) ThreadReport() string {
	s := fmt.Sprintf("NThreads: %d\tgo max procs: %d\tnum cpu: %d\n",
		cb.NThreads, runtime.GOMAXPROCS(0), runtime.NumCPU())
	for th := range cb.thrTimes {
		s += fmt.Sprintf("\tthr %d: %7.4f secs\n", th, cb.thrTimes[th].TotalSecs())
	}
	return s
}

// usecs converts an accumulated timer to whole microseconds.
func usecs(t *timer.Time) uint64 {
	return uint64(t.TotalSecs() * 1e6)
}
