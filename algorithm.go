// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Flash algorithms: the contract the flashing engine drives, and a runner
// executing vendor algorithm blobs on the target core.
package goflash

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
)

var ErrEraseAllUnsupported = errors.New("flash algorithm has no chip erase entry")

// Operation passed to the algorithm's Init/UnInit functions.
type Operation uint32

const (
	OpErase   Operation = 1
	OpProgram Operation = 2
	OpVerify  Operation = 3
)

func (o Operation) String() string {
	switch o {
	case OpErase:
		return "erase"
	case OpProgram:
		return "program"
	case OpVerify:
		return "verify"
	default:
		return fmt.Sprintf("Operation(%d)", uint32(o))
	}
}

// FlashAlgorithm performs erase and program operations on one flash region.
// Calls are not safe for concurrent use.
//
// Double buffering: LoadPageBuffer may be called for one buffer while a
// StartProgramPage on another buffer is in flight. WaitForCompletion must be
// called before the next StartProgramPage.
//
//go:generate mockgen -destination=mocks/flash_algorithm.go -package=mocks github.com/google/goflash FlashAlgorithm
type FlashAlgorithm interface {
	Properties() FlashProperties
	Init(ctx context.Context, op Operation) error
	Uninit(ctx context.Context) error
	EraseSector(ctx context.Context, addr uint64) error
	EraseAll(ctx context.Context) error
	ProgramPage(ctx context.Context, addr uint64, data []byte) error
	// Number of page buffers in target RAM. Two or more allow double buffering.
	PageBuffers() int
	LoadPageBuffer(ctx context.Context, index int, data []byte) error
	StartProgramPage(ctx context.Context, addr uint64, index int) error
	WaitForCompletion(ctx context.Context) error
}

const (
	defaultStackSize = 0x400
	thumbBit         = 1 << 24
	initTimeout      = 2 * time.Second
)

// Runs a RawFlashAlgorithm on a halted core. The blob is loaded at
// LoadAddress and must start with a breakpoint instruction, which is used as
// the return address of every call.
type algorithmRunner struct {
	core      Core
	raw       *RawFlashAlgorithm
	ram       Region
	loaded    bool
	op        Operation
	inited    bool
	busy      bool
	stackTop  uint64
	bufferTop uint64
}

func newAlgorithmRunner(core Core, raw *RawFlashAlgorithm, ram Region) (*algorithmRunner, error) {
	if len(raw.Instructions) == 0 {
		return nil, fmt.Errorf("flash algorithm %q has no instructions", raw.Name)
	}
	stack := raw.StackSize
	if stack == 0 {
		stack = defaultStackSize
	}
	codeEnd := raw.LoadAddress + uint64(len(raw.Instructions))
	stackTop := (codeEnd + stack + 7) &^ 7
	buffers := raw.PageBuffers
	if buffers < 1 {
		buffers = 1
	}
	bufferTop := stackTop + uint64(buffers)*uint64(raw.FlashProperties.PageSize)
	if !ram.Range.ContainsRange(raw.LoadAddress, bufferTop) {
		return nil, fmt.Errorf("flash algorithm %q needs RAM %#x..%#x, target RAM is %v",
			raw.Name, raw.LoadAddress, bufferTop, ram.Range)
	}
	return &algorithmRunner{
		core:      core,
		raw:       raw,
		ram:       ram,
		stackTop:  stackTop,
		bufferTop: bufferTop,
	}, nil
}

func (r *algorithmRunner) Properties() FlashProperties {
	return r.raw.FlashProperties
}

func (r *algorithmRunner) PageBuffers() int {
	if r.raw.PageBuffers < 1 {
		return 1
	}
	return r.raw.PageBuffers
}

func (r *algorithmRunner) bufferAddress(index int) uint64 {
	return r.stackTop + uint64(index)*uint64(r.raw.FlashProperties.PageSize)
}

func (r *algorithmRunner) load(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	glog.V(1).Infof("Loading flash algorithm %q at %#x (%d bytes)",
		r.raw.Name, r.raw.LoadAddress, len(r.raw.Instructions))
	if err := r.core.Halt(ctx); err != nil {
		return fmt.Errorf("halt core: %w", err)
	}
	if vw, ok := r.core.(verifyingWriter); ok {
		if err := vw.writeVerified(ctx, r.raw.LoadAddress, r.raw.Instructions); err != nil {
			return fmt.Errorf("load algorithm: %w", err)
		}
		r.loaded = true
		return nil
	}
	if err := r.core.Write8(ctx, r.raw.LoadAddress, r.raw.Instructions); err != nil {
		return fmt.Errorf("load algorithm: %w", err)
	}
	verify := make([]byte, len(r.raw.Instructions))
	if err := r.core.Read8(ctx, r.raw.LoadAddress, verify); err != nil {
		return fmt.Errorf("verify algorithm: %w", err)
	}
	for i := range verify {
		if verify[i] != r.raw.Instructions[i] {
			return fmt.Errorf("algorithm readback differs at offset %#x", i)
		}
	}
	r.loaded = true
	return nil
}

// Sets up registers and starts execution at the given entry offset.
func (r *algorithmRunner) start(ctx context.Context, pc uint64, args ...uint32) error {
	if r.busy {
		return fmt.Errorf("flash algorithm is busy")
	}
	regs := []struct {
		reg CoreRegister
		val uint32
	}{
		{RegPC, uint32(r.raw.LoadAddress + pc)},
		{RegR9, uint32(r.raw.LoadAddress + r.raw.DataSectionOffset)},
		{RegSP, uint32(r.stackTop)},
		{RegLR, uint32(r.raw.LoadAddress) | 1},
		{RegXPSR, thumbBit},
	}
	for i, a := range args {
		regs = append(regs, struct {
			reg CoreRegister
			val uint32
		}{CoreRegister(i), a})
	}
	for _, reg := range regs {
		if err := r.core.WriteCoreReg(ctx, reg.reg, reg.val); err != nil {
			return fmt.Errorf("write register %d: %w", reg.reg, err)
		}
	}
	if err := r.core.Run(ctx); err != nil {
		return fmt.Errorf("run core: %w", err)
	}
	r.busy = true
	return nil
}

func (r *algorithmRunner) wait(ctx context.Context, timeout time.Duration) error {
	if !r.busy {
		return nil
	}
	r.busy = false
	if err := r.core.WaitForHalt(ctx, timeout); err != nil {
		return fmt.Errorf("wait for algorithm: %w", err)
	}
	res, err := r.core.ReadCoreReg(ctx, RegR0)
	if err != nil {
		return fmt.Errorf("read result: %w", err)
	}
	if res != 0 {
		return fmt.Errorf("algorithm returned error code %#x", res)
	}
	return nil
}

func (r *algorithmRunner) call(ctx context.Context, pc uint64, timeout time.Duration, args ...uint32) error {
	if err := r.start(ctx, pc, args...); err != nil {
		return err
	}
	return r.wait(ctx, timeout)
}

func (r *algorithmRunner) Init(ctx context.Context, op Operation) error {
	if r.inited {
		if r.op == op {
			return nil
		}
		if err := r.Uninit(ctx); err != nil {
			return err
		}
	}
	if err := r.load(ctx); err != nil {
		return err
	}
	if r.raw.PcInit != nil {
		start := uint32(r.raw.FlashProperties.AddressRange.Start)
		if err := r.call(ctx, *r.raw.PcInit, initTimeout, start, 0, uint32(op)); err != nil {
			return fmt.Errorf("init for %v: %w", op, err)
		}
	}
	r.op = op
	r.inited = true
	return nil
}

func (r *algorithmRunner) Uninit(ctx context.Context) error {
	if !r.inited {
		return nil
	}
	r.inited = false
	if r.raw.PcUninit == nil {
		return nil
	}
	if err := r.call(ctx, *r.raw.PcUninit, initTimeout, uint32(r.op)); err != nil {
		return fmt.Errorf("uninit for %v: %w", r.op, err)
	}
	return nil
}

func (r *algorithmRunner) EraseSector(ctx context.Context, addr uint64) error {
	return r.call(ctx, r.raw.PcEraseSector, r.raw.FlashProperties.EraseSectorTimeout, uint32(addr))
}

func (r *algorithmRunner) EraseAll(ctx context.Context) error {
	if r.raw.PcEraseAll == nil {
		return ErrEraseAllUnsupported
	}
	// Chip erase takes roughly as long as erasing every sector.
	timeout := r.raw.FlashProperties.EraseSectorTimeout *
		time.Duration(len(r.raw.FlashProperties.AllSectors()))
	return r.call(ctx, *r.raw.PcEraseAll, timeout)
}

func (r *algorithmRunner) ProgramPage(ctx context.Context, addr uint64, data []byte) error {
	if err := r.LoadPageBuffer(ctx, 0, data); err != nil {
		return err
	}
	if err := r.StartProgramPage(ctx, addr, 0); err != nil {
		return err
	}
	return r.WaitForCompletion(ctx)
}

func (r *algorithmRunner) LoadPageBuffer(ctx context.Context, index int, data []byte) error {
	if index < 0 || index >= r.PageBuffers() {
		return fmt.Errorf("page buffer %d out of range", index)
	}
	if len(data) > int(r.raw.FlashProperties.PageSize) {
		return fmt.Errorf("page data of %d bytes exceeds page size %d", len(data), r.raw.FlashProperties.PageSize)
	}
	return r.core.Write8(ctx, r.bufferAddress(index), data)
}

func (r *algorithmRunner) StartProgramPage(ctx context.Context, addr uint64, index int) error {
	if index < 0 || index >= r.PageBuffers() {
		return fmt.Errorf("page buffer %d out of range", index)
	}
	return r.start(ctx, r.raw.PcProgramPage,
		uint32(addr), r.raw.FlashProperties.PageSize, uint32(r.bufferAddress(index)))
}

func (r *algorithmRunner) WaitForCompletion(ctx context.Context) error {
	return r.wait(ctx, r.raw.FlashProperties.ProgramPageTimeout)
}
