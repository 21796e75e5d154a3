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

package goflash

import (
	"context"
	"strings"
	"testing"
	"time"
)

// Core stand-in that records calls and keeps written memory.
type recordingCore struct {
	mem    map[uint64]byte
	regs   map[CoreRegister]uint32
	runs   []uint32
	result uint32
}

func newRecordingCore() *recordingCore {
	return &recordingCore{mem: map[uint64]byte{}, regs: map[CoreRegister]uint32{}}
}

func (c *recordingCore) Read8(ctx context.Context, addr uint64, data []byte) error {
	for i := range data {
		data[i] = c.mem[addr+uint64(i)]
	}
	return nil
}

func (c *recordingCore) Write8(ctx context.Context, addr uint64, data []byte) error {
	for i, b := range data {
		c.mem[addr+uint64(i)] = b
	}
	return nil
}

func (c *recordingCore) ReadCoreReg(ctx context.Context, reg CoreRegister) (uint32, error) {
	if reg == RegR0 {
		return c.result, nil
	}
	return c.regs[reg], nil
}

func (c *recordingCore) WriteCoreReg(ctx context.Context, reg CoreRegister, value uint32) error {
	c.regs[reg] = value
	return nil
}

func (c *recordingCore) Halt(ctx context.Context) error { return nil }

func (c *recordingCore) Run(ctx context.Context) error {
	c.runs = append(c.runs, c.regs[RegPC])
	return nil
}

func (c *recordingCore) WaitForHalt(ctx context.Context, timeout time.Duration) error { return nil }
func (c *recordingCore) Reset(ctx context.Context) error                              { return nil }
func (c *recordingCore) ResetAndHalt(ctx context.Context, timeout time.Duration) error {
	return nil
}

func u64(v uint64) *uint64 { return &v }

func testAlgorithm() *RawFlashAlgorithm {
	return &RawFlashAlgorithm{
		Name:              "test",
		Instructions:      []byte{0x00, 0xbe, 0x00, 0xbe, 0x01, 0x02, 0x03, 0x04},
		LoadAddress:       0x20000000,
		PcInit:            u64(0x05),
		PcUninit:          u64(0x11),
		PcProgramPage:     0x21,
		PcEraseSector:     0x31,
		DataSectionOffset: 0x100,
		StackSize:         0x200,
		PageBuffers:       2,
		FlashProperties: FlashProperties{
			AddressRange: AddressRange{0x08000000, 0x08010000},
			PageSize:     0x100,
			Sectors:      []SectorDescription{{Size: 0x400}},
		},
	}
}

var testRAM = Region{Name: "RAM", Kind: RegionRam, Range: AddressRange{0x20000000, 0x20004000}}

func TestAlgorithmRunnerCallSequence(t *testing.T) {
	ctx := context.Background()
	core := newRecordingCore()
	r, err := newAlgorithmRunner(core, testAlgorithm(), testRAM)
	if err != nil {
		t.Fatalf("newAlgorithmRunner failed: %v", err)
	}
	if err := r.Init(ctx, OpErase); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if core.mem[0x20000004] != 0x01 {
		t.Errorf("Algorithm blob was not loaded")
	}
	if err := r.EraseSector(ctx, 0x08000400); err != nil {
		t.Fatalf("EraseSector failed: %v", err)
	}
	if core.regs[RegR0] != 0x08000400 {
		t.Errorf("R0 = %#x, want sector address", core.regs[RegR0])
	}
	if core.regs[RegLR] != 0x20000001 {
		t.Errorf("LR = %#x, want breakpoint at load address", core.regs[RegLR])
	}
	if core.regs[RegR9] != 0x20000100 {
		t.Errorf("R9 = %#x, want static base", core.regs[RegR9])
	}
	if sp := core.regs[RegSP]; sp%8 != 0 || sp <= 0x20000008 {
		t.Errorf("SP = %#x is not an aligned stack top above the code", sp)
	}
	want := []uint32{0x20000005, 0x20000031}
	if len(core.runs) != len(want) || core.runs[0] != want[0] || core.runs[1] != want[1] {
		t.Errorf("Unexpected entry points %x, want %x", core.runs, want)
	}
}

func TestAlgorithmRunnerReinitOnOperationChange(t *testing.T) {
	ctx := context.Background()
	core := newRecordingCore()
	r, err := newAlgorithmRunner(core, testAlgorithm(), testRAM)
	if err != nil {
		t.Fatalf("newAlgorithmRunner failed: %v", err)
	}
	for _, op := range []Operation{OpErase, OpErase, OpProgram} {
		if err := r.Init(ctx, op); err != nil {
			t.Fatalf("Init(%v) failed: %v", op, err)
		}
	}
	// init(erase), uninit, init(program)
	if len(core.runs) != 3 {
		t.Errorf("Expected 3 algorithm calls, got %d", len(core.runs))
	}
	if core.regs[RegR2] != uint32(OpProgram) {
		t.Errorf("Last init was for operation %d", core.regs[RegR2])
	}
}

func TestAlgorithmRunnerProgramUsesPageBuffers(t *testing.T) {
	ctx := context.Background()
	core := newRecordingCore()
	r, err := newAlgorithmRunner(core, testAlgorithm(), testRAM)
	if err != nil {
		t.Fatalf("newAlgorithmRunner failed: %v", err)
	}
	page := []byte{1, 2, 3, 4}
	if err := r.LoadPageBuffer(ctx, 1, page); err != nil {
		t.Fatalf("LoadPageBuffer failed: %v", err)
	}
	if err := r.StartProgramPage(ctx, 0x08000100, 1); err != nil {
		t.Fatalf("StartProgramPage failed: %v", err)
	}
	if err := r.StartProgramPage(ctx, 0x08000200, 0); err == nil {
		t.Errorf("StartProgramPage while busy did not fail")
	}
	if err := r.WaitForCompletion(ctx); err != nil {
		t.Fatalf("WaitForCompletion failed: %v", err)
	}
	buf := uint64(core.regs[RegR2])
	if core.mem[buf] != 1 || core.mem[buf+3] != 4 {
		t.Errorf("R2 (%#x) does not point at the loaded page buffer", buf)
	}
	if core.regs[RegR1] != 0x100 {
		t.Errorf("R1 = %#x, want page size", core.regs[RegR1])
	}
}

func TestAlgorithmRunnerReportsNonZeroResult(t *testing.T) {
	core := newRecordingCore()
	core.result = 1
	r, err := newAlgorithmRunner(core, testAlgorithm(), testRAM)
	if err != nil {
		t.Fatalf("newAlgorithmRunner failed: %v", err)
	}
	err = r.EraseSector(context.Background(), 0x08000000)
	if err == nil || !strings.Contains(err.Error(), "error code") {
		t.Errorf("EraseSector did not fail as expected. Err: %v", err)
	}
}

func TestAlgorithmRunnerChecksRAMFit(t *testing.T) {
	small := Region{Name: "RAM", Kind: RegionRam, Range: AddressRange{0x20000000, 0x20000100}}
	if _, err := newAlgorithmRunner(newRecordingCore(), testAlgorithm(), small); err == nil {
		t.Errorf("newAlgorithmRunner accepted an algorithm larger than RAM")
	}
}

func TestAlgorithmRunnerEraseAllUnsupported(t *testing.T) {
	r, err := newAlgorithmRunner(newRecordingCore(), testAlgorithm(), testRAM)
	if err != nil {
		t.Fatalf("newAlgorithmRunner failed: %v", err)
	}
	if err := r.EraseAll(context.Background()); err != ErrEraseAllUnsupported {
		t.Errorf("EraseAll = %v, want ErrEraseAllUnsupported", err)
	}
}
