// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/emer/emergent/timer"
	"github.com/emer/etable/bitslice"
	"github.com/goki/vgpu/vgpu"

	"github.com/neurokit/npu/npu"
)

// Compute is the portable Vulkan compute backend. It runs the same
// two-phase burst as the CPU backend on any compute-capable device:
// one dispatch expands fired neurons through the on-device source hash
// table into a dense candidate accumulator, a second dispatch runs the
// integrate-and-fire update and sets bits in a packed fired mask.
// float32 populations only; the device records have no float64 layout.
//
// Stores upload once at Initialize. Per burst only the uniform block,
// the fired list and the injected candidates change on the host side;
// the neuron records come back after dynamics so the population stays
// authoritative between bursts.
type Compute struct {
	Excite    npu.Excite `desc:"integrate-and-fire parameters"`
	ShaderDir string     `desc:"directory holding compiled .spv shaders"`
	GroupSize int        `def:"64" desc:"compute workgroup width"`

	label string

	pop *npu.Pop[float32]
	syn *npu.Synapses
	src *npu.SourceIndex

	gp     *vgpu.GPU
	sy     *vgpu.System
	propPl *vgpu.Pipeline
	dynPl  *vgpu.Pipeline

	neur     []DevNeuron
	params   DevParams
	firedIn  []uint32
	injected []DevInjected
	fclZero  []uint32
	maskHost []uint32
	candZero []uint32
	counters []uint32
	mask     bitslice.Slice

	paramsVl, neurVl, fclVl, firedVl, injVl, maskVl, candVl, ctrVl *vgpu.Val
}

// NewCompute returns a portable GPU backend with default parameters.
func NewCompute() *Compute {
	cb := &Compute{ShaderDir: "shaders", GroupSize: 64, label: "portable-gpu"}
	cb.Excite.Defaults()
	return cb
}

// Name implements Backend.
func (cb *Compute) Name() string {
	return cb.label
}

// shaderPath resolves one compiled shader variant for the configured
// workgroup size, reporting missing files as hardware unavailability so
// selection can fall back to the CPU. Workgroup width is baked into
// the SPIR-V, so each size needs its own compiled variant.
func (cb *Compute) shaderPath(name string) (string, error) {
	fn := filepath.Join(cb.ShaderDir, fmt.Sprintf("%s%d.spv", name, cb.GroupSize))
	if _, err := os.Stat(fn); err != nil {
		return "", fmt.Errorf("shader %s: %v: %w", fn, err, npu.ErrHardware)
	}
	return fn, nil
}

// Initialize implements Backend: stages the stores, configures the
// device pipelines and performs the one-time persistent upload.
func (cb *Compute) Initialize(pop *npu.Pop[float32], syn *npu.Synapses) error {
	if pop == nil || syn == nil || pop.Len() == 0 {
		return fmt.Errorf("empty stores: %w", npu.ErrInvariant)
	}
	propFn, err := cb.shaderPath("propagate")
	if err != nil {
		return err
	}
	dynFn, err := cb.shaderPath("dynamics")
	if err != nil {
		return err
	}
	if err := vgpu.Init(); err != nil {
		return fmt.Errorf("vulkan init: %v: %w", err, npu.ErrHardware)
	}

	cb.pop = pop
	cb.syn = syn
	cb.src = npu.BuildSourceIndex(syn)
	cb.neur = StageNeurons(pop)

	n := int(pop.Len())
	nsyn := maxi(int(syn.Len()), 1)
	cb.firedIn = make([]uint32, n)
	cb.injected = make([]DevInjected, n)
	cb.fclZero = make([]uint32, n)
	cb.maskHost = make([]uint32, MaskWords(n))
	cb.candZero = make([]uint32, MaskWords(n))
	cb.counters = make([]uint32, 2)
	cb.mask = bitslice.Make(n, 0)

	cb.gp = vgpu.NewComputeGPU()
	cb.gp.Config(cb.Name())

	cb.sy = cb.gp.NewComputeSystem(cb.Name())
	cb.propPl = cb.sy.NewPipeline("propagate")
	cb.propPl.AddShaderFile("propagate", vgpu.ComputeShader, propFn)
	cb.dynPl = cb.sy.NewPipeline("dynamics")
	cb.dynPl.AddShaderFile("dynamics", vgpu.ComputeShader, dynFn)

	vars := cb.sy.Vars()
	setp := vars.AddSet()
	setn := vars.AddSet()
	sets := vars.AddSet()
	setb := vars.AddSet()

	paramsv := setp.AddStruct("Params", int(unsafe.Sizeof(DevParams{})), 1, vgpu.Uniform, vgpu.ComputeShader)
	neurv := setn.AddStruct("Neurons", int(unsafe.Sizeof(DevNeuron{})), n, vgpu.Storage, vgpu.ComputeShader)
	wordv := sets.AddStruct("SynWords", 4, nsyn, vgpu.Storage, vgpu.ComputeShader)
	tgtv := sets.AddStruct("SynTgts", 4, nsyn, vgpu.Storage, vgpu.ComputeShader)
	keyv := sets.AddStruct("HashKeys", 4, len(cb.src.Keys), vgpu.Storage, vgpu.ComputeShader)
	metav := sets.AddStruct("HashMeta", 4, len(cb.src.Meta), vgpu.Storage, vgpu.ComputeShader)
	runv := sets.AddStruct("HashSyns", 4, maxi(len(cb.src.Syns), 1), vgpu.Storage, vgpu.ComputeShader)
	fclv := setb.AddStruct("Fcl", 4, n, vgpu.Storage, vgpu.ComputeShader)
	firedv := setb.AddStruct("FiredIn", 4, n, vgpu.Storage, vgpu.ComputeShader)
	injv := setb.AddStruct("Injected", int(unsafe.Sizeof(DevInjected{})), n, vgpu.Storage, vgpu.ComputeShader)
	maskv := setb.AddStruct("FiredMask", 4, len(cb.maskHost), vgpu.Storage, vgpu.ComputeShader)
	ctrv := setb.AddStruct("Counters", 4, 2, vgpu.Storage, vgpu.ComputeShader)
	candv := setb.AddStruct("CandMask", 4, len(cb.candZero), vgpu.Storage, vgpu.ComputeShader)

	setp.ConfigVals(1)
	setn.ConfigVals(1)
	sets.ConfigVals(1)
	setb.ConfigVals(1)
	cb.sy.Config()

	cb.paramsVl, _ = paramsv.Vals.ValByIdxTry(0)
	cb.neurVl, _ = neurv.Vals.ValByIdxTry(0)
	cb.fclVl, _ = fclv.Vals.ValByIdxTry(0)
	cb.firedVl, _ = firedv.Vals.ValByIdxTry(0)
	cb.injVl, _ = injv.Vals.ValByIdxTry(0)
	cb.maskVl, _ = maskv.Vals.ValByIdxTry(0)
	cb.candVl, _ = candv.Vals.ValByIdxTry(0)
	cb.ctrVl, _ = ctrv.Vals.ValByIdxTry(0)

	// persistent store upload
	cb.neurVl.CopyFromBytes(unsafe.Pointer(&cb.neur[0]))
	words := cb.syn.PackedWords()
	tgts := cb.syn.Tgt
	if len(words) == 0 { // placeholder element for empty synapse stores
		words = []uint32{0}
		tgts = []uint32{0}
	}
	wvl, _ := wordv.Vals.ValByIdxTry(0)
	wvl.CopyFromBytes(unsafe.Pointer(&words[0]))
	tvl, _ := tgtv.Vals.ValByIdxTry(0)
	tvl.CopyFromBytes(unsafe.Pointer(&tgts[0]))
	kvl, _ := keyv.Vals.ValByIdxTry(0)
	kvl.CopyFromBytes(unsafe.Pointer(&cb.src.Keys[0]))
	mvl, _ := metav.Vals.ValByIdxTry(0)
	mvl.CopyFromBytes(unsafe.Pointer(&cb.src.Meta[0]))
	runs := cb.src.Syns
	if len(runs) == 0 {
		runs = []uint32{0}
	}
	rvl, _ := runv.Vals.ValByIdxTry(0)
	rvl.CopyFromBytes(unsafe.Pointer(&runs[0]))
	cb.sy.Mem.SyncToGPU()

	binds := []struct {
		set  int
		name string
	}{
		{0, "Params"}, {1, "Neurons"},
		{2, "SynWords"}, {2, "SynTgts"}, {2, "HashKeys"}, {2, "HashMeta"}, {2, "HashSyns"},
		{3, "Fcl"}, {3, "FiredIn"}, {3, "Injected"}, {3, "FiredMask"}, {3, "Counters"}, {3, "CandMask"},
	}
	for _, bd := range binds {
		if err := vars.BindDynValIdx(bd.set, bd.name, 0); err != nil {
			return fmt.Errorf("bind %s: %v: %w", bd.name, err, npu.ErrDispatch)
		}
	}
	return nil
}

// dispatch records and submits one compute pass, waiting for device
// completion so the next pass sees its writes.
func (cb *Compute) dispatch(pl *vgpu.Pipeline, nGps int) {
	cmd := cb.sy.ComputeCmdBuff()
	cb.sy.CmdResetBindVars(cmd, 0)
	pl.ComputeDispatch(cmd, nGps, 1, 1)
	cb.sy.ComputeCmdEnd(cmd)
	cb.sy.ComputeSubmitWait(cmd)
}

// ProcessBurst implements Backend.
func (cb *Compute) ProcessBurst(fired []uint32, injected *npu.FCL[float32], burst uint64) (*npu.BurstResult, error) {
	if cb.sy == nil {
		return nil, fmt.Errorf("backend not initialized: %w", npu.ErrInvariant)
	}
	n := int(cb.pop.Len())
	if len(fired) > n {
		return nil, fmt.Errorf("fired list longer than population: %w", npu.ErrInvariant)
	}
	totTmr := timer.Time{}
	totTmr.Start()

	inj := StageInjected(injected, cb.pop.Len())
	copy(cb.firedIn, fired)
	copy(cb.injected, inj)
	cb.params = StageParams(cb.pop.Len(), cb.syn.Len(), uint32(len(cb.src.Keys)),
		len(fired), len(inj), burst, &cb.Excite)

	xferTmr := timer.Time{}
	xferTmr.Start()
	cb.paramsVl.CopyFromBytes(unsafe.Pointer(&cb.params))
	cb.neurVl.CopyFromBytes(unsafe.Pointer(&cb.neur[0]))
	cb.firedVl.CopyFromBytes(unsafe.Pointer(&cb.firedIn[0]))
	cb.injVl.CopyFromBytes(unsafe.Pointer(&cb.injected[0]))
	cb.fclVl.CopyFromBytes(unsafe.Pointer(&cb.fclZero[0]))
	for i := range cb.maskHost {
		cb.maskHost[i] = 0
	}
	cb.maskVl.CopyFromBytes(unsafe.Pointer(&cb.maskHost[0]))
	cb.candVl.CopyFromBytes(unsafe.Pointer(&cb.candZero[0]))
	cb.counters[0] = 0
	cb.counters[1] = 0
	cb.ctrVl.CopyFromBytes(unsafe.Pointer(&cb.counters[0]))
	cb.sy.Mem.SyncToGPU()
	xferTmr.Stop()

	// phase 1: one thread per fired or injected entry
	propTmr := timer.Time{}
	propTmr.Start()
	work := len(fired) + len(inj)
	if work > 0 {
		cb.dispatch(cb.propPl, groups(work, cb.GroupSize))
	}
	propTmr.Stop()

	// phase 2: one thread per neuron
	dynTmr := timer.Time{}
	dynTmr.Start()
	cb.dispatch(cb.dynPl, groups(n, cb.GroupSize))
	dynTmr.Stop()

	xferTmr.Start()
	if err := cb.sy.Mem.SyncValIdxFmGPU(1, "Neurons", 0); err != nil {
		return nil, fmt.Errorf("neuron download: %v: %w", err, npu.ErrDispatch)
	}
	cb.neurVl.CopyToBytes(unsafe.Pointer(&cb.neur[0]))
	if err := cb.sy.Mem.SyncValIdxFmGPU(3, "FiredMask", 0); err != nil {
		return nil, fmt.Errorf("fired mask download: %v: %w", err, npu.ErrDispatch)
	}
	cb.maskVl.CopyToBytes(unsafe.Pointer(&cb.maskHost[0]))
	if err := cb.sy.Mem.SyncValIdxFmGPU(3, "Counters", 0); err != nil {
		return nil, fmt.Errorf("counter download: %v: %w", err, npu.ErrDispatch)
	}
	cb.ctrVl.CopyToBytes(unsafe.Pointer(&cb.counters[0]))
	xferTmr.Stop()

	UnstageNeurons(cb.neur, cb.pop)
	res := &npu.BurstResult{Fired: DecodeMaskWords(cb.maskHost, n)}
	res.NumFired = uint64(len(res.Fired))
	res.Processed = uint64(cb.counters[0])
	res.Refractory = uint64(cb.counters[1])
	for i := 0; i < n; i++ {
		cb.mask.Set(i, cb.maskHost[i>>5]>>(uint(i)&31)&1 == 1)
	}
	totTmr.Stop()

	res.Timing.PropagationUS = usecs(&propTmr)
	res.Timing.DynamicsUS = usecs(&dynTmr)
	res.Timing.TransferUS = usecs(&xferTmr)
	res.Timing.TotalUS = usecs(&totTmr)
	return res, nil
}

// FiredMask returns the bit-packed fired mask from the last burst.
func (cb *Compute) FiredMask() bitslice.Slice {
	return cb.mask
}

// Release implements Backend.
func (cb *Compute) Release() error {
	if cb.sy != nil {
		cb.sy.Destroy()
		cb.sy = nil
	}
	if cb.gp != nil {
		cb.gp.Destroy()
		cb.gp = nil
		vgpu.Terminate()
	}
	return nil
}

// groups returns the workgroup count covering n items.
func groups(n, size int) int {
	return (n + size - 1) / size
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// usecs converts an accumulated timer to whole microseconds.
func usecs(t *timer.Time) uint64 {
	return uint64(t.TotalSecs() * 1e6)
}
