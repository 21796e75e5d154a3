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
	"fmt"
	"sync"
	"time"
)

const (
	fakeMaxSpeedKHz   = 10000
	fakeDefaultErased = 0xff
	fakeAlgorithmBufs = 2
	fakeIdentifier    = "Simulated probe"
)

type simRegion struct {
	Region
	erased byte
	data   []byte
}

// FakeProbe simulates a probe connected to a target whose memories live in
// host RAM. Flash follows erase semantics: erasing sets every byte of a
// sector to the erased value, programming can only move bits away from it.
// Flash is written through a simulated algorithm with two page buffers.
type FakeProbe struct {
	mu           sync.Mutex
	probe        *Probe
	chip         *Target
	regions      []*simRegion
	regs         map[CoreRegister]uint32
	transactions int
}

func NewFakeProbe() *FakeProbe {
	f := &FakeProbe{regs: make(map[CoreRegister]uint32)}
	f.probe = newProbe(ProbeInfo{Identifier: fakeIdentifier, Type: ProbeTypeFake}, f)
	return f
}

// The Probe handle driving this simulation.
func (f *FakeProbe) Probe() *Probe {
	return f.probe
}

// Makes autodetection report t.
func (f *FakeProbe) SetChip(t *Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chip = t
}

// Number of memory, register and flash operations issued by attached
// sessions.
func (f *FakeProbe) Transactions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transactions
}

// Returns a copy of simulated memory without counting a transaction.
func (f *FakeProbe) ReadMemory(addr uint64, n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.regionFor(addr, n)
	if err != nil {
		return nil, err
	}
	off := addr - r.Range.Start
	return append([]byte(nil), r.data[off:off+uint64(n)]...), nil
}

// Overwrites simulated memory, flash included, without erase semantics.
func (f *FakeProbe) WriteMemory(addr uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.regionFor(addr, len(data))
	if err != nil {
		return err
	}
	copy(r.data[addr-r.Range.Start:], data)
	return nil
}

func (f *FakeProbe) regionFor(addr uint64, n int) (*simRegion, error) {
	if f.regions == nil {
		return nil, ErrNotAttached
	}
	for _, r := range f.regions {
		if r.Range.ContainsRange(addr, addr+uint64(n)) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("bus fault accessing %#x (%d bytes)", addr, n)
}

func (f *FakeProbe) bindTarget(t *Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions = nil
	for _, region := range t.MemoryMap {
		r := &simRegion{Region: region, data: make([]byte, region.Range.Size())}
		if region.Kind == RegionNvm {
			r.erased = fakeDefaultErased
			if alg, err := t.AlgorithmFor(region); err == nil {
				r.erased = alg.FlashProperties.ErasedByteValue
			}
			for i := range r.data {
				r.data[i] = r.erased
			}
		}
		f.regions = append(f.regions, r)
	}
	return nil
}

func (f *FakeProbe) SelectProtocol(p WireProtocol) error {
	return nil
}

func (f *FakeProbe) SetSpeed(khz uint32) (uint32, error) {
	if khz > fakeMaxSpeedKHz {
		return fakeMaxSpeedKHz, nil
	}
	return khz, nil
}

func (f *FakeProbe) TargetReset(assert bool) error {
	return nil
}

func (f *FakeProbe) Core(index int) (Core, error) {
	if index != 0 {
		return nil, fmt.Errorf("simulated target has a single core")
	}
	return &simCore{f: f}, nil
}

func (f *FakeProbe) Close() error {
	return nil
}

func (f *FakeProbe) flashAlgorithm(raw *RawFlashAlgorithm, region Region) (FlashAlgorithm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regions {
		if r.Kind == RegionNvm && r.Range == region.Range {
			return &simAlgorithm{
				f:       f,
				region:  r,
				props:   raw.FlashProperties,
				buffers: make([][]byte, fakeAlgorithmBufs),
			}, nil
		}
	}
	return nil, fmt.Errorf("no simulated flash at %v", region.Range)
}

type simCore struct {
	f *FakeProbe
}

func (c *simCore) Read8(ctx context.Context, addr uint64, data []byte) error {
	f := c.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions++
	if addr == chipIDAddress && len(data) == 4 && f.chip != nil {
		id := f.chip.ChipID
		data[0], data[1], data[2], data[3] = byte(id), byte(id>>8), byte(id>>16), byte(id>>24)
		return nil
	}
	r, err := f.regionFor(addr, len(data))
	if err != nil {
		return err
	}
	copy(data, r.data[addr-r.Range.Start:])
	return nil
}

func (c *simCore) Write8(ctx context.Context, addr uint64, data []byte) error {
	f := c.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions++
	r, err := f.regionFor(addr, len(data))
	if err != nil {
		return err
	}
	if r.Kind == RegionNvm {
		return fmt.Errorf("write to flash at %#x without flash algorithm", addr)
	}
	copy(r.data[addr-r.Range.Start:], data)
	return nil
}

func (c *simCore) ReadCoreReg(ctx context.Context, reg CoreRegister) (uint32, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.transactions++
	return c.f.regs[reg], nil
}

func (c *simCore) WriteCoreReg(ctx context.Context, reg CoreRegister, value uint32) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.transactions++
	c.f.regs[reg] = value
	return nil
}

func (c *simCore) Halt(ctx context.Context) error                                { return nil }
func (c *simCore) Run(ctx context.Context) error                                 { return nil }
func (c *simCore) WaitForHalt(ctx context.Context, timeout time.Duration) error  { return nil }
func (c *simCore) Reset(ctx context.Context) error                               { return nil }
func (c *simCore) ResetAndHalt(ctx context.Context, timeout time.Duration) error { return nil }

type pendingPage struct {
	addr  uint64
	index int
}

type simAlgorithm struct {
	f       *FakeProbe
	region  *simRegion
	props   FlashProperties
	buffers [][]byte
	pending *pendingPage
}

func (a *simAlgorithm) Properties() FlashProperties {
	return a.props
}

func (a *simAlgorithm) PageBuffers() int {
	return len(a.buffers)
}

func (a *simAlgorithm) Init(ctx context.Context, op Operation) error {
	return nil
}

func (a *simAlgorithm) Uninit(ctx context.Context) error {
	return nil
}

func (a *simAlgorithm) erase(start, size uint64) {
	off := start - a.region.Range.Start
	for i := off; i < off+size; i++ {
		a.region.data[i] = a.region.erased
	}
}

func (a *simAlgorithm) EraseSector(ctx context.Context, addr uint64) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.transactions++
	s, ok := a.props.SectorAt(addr)
	if !ok || s.Address != addr {
		return fmt.Errorf("%#x is not the start of a sector", addr)
	}
	a.erase(s.Address, s.Size)
	return nil
}

func (a *simAlgorithm) EraseAll(ctx context.Context) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.transactions++
	a.erase(a.region.Range.Start, a.region.Range.Size())
	return nil
}

// Programming clears bits away from the erased state, as real NOR flash does.
func (a *simAlgorithm) program(addr uint64, data []byte) error {
	page := uint64(a.props.PageSize)
	if (addr-a.props.AddressRange.Start)%page != 0 || uint64(len(data)) > page {
		return fmt.Errorf("program of %d bytes at %#x is not page aligned", len(data), addr)
	}
	if !a.region.Range.ContainsRange(addr, addr+uint64(len(data))) {
		return fmt.Errorf("program at %#x outside %v", addr, a.region.Range)
	}
	mem := a.region.data[addr-a.region.Range.Start:]
	for i, b := range data {
		if a.region.erased == 0xff {
			mem[i] &= b
		} else {
			mem[i] |= b
		}
	}
	return nil
}

func (a *simAlgorithm) ProgramPage(ctx context.Context, addr uint64, data []byte) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.transactions++
	if a.pending != nil {
		return fmt.Errorf("flash algorithm busy")
	}
	return a.program(addr, data)
}

func (a *simAlgorithm) LoadPageBuffer(ctx context.Context, index int, data []byte) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.transactions++
	if index < 0 || index >= len(a.buffers) {
		return fmt.Errorf("page buffer %d out of range", index)
	}
	if a.pending != nil && a.pending.index == index {
		return fmt.Errorf("page buffer %d is being programmed", index)
	}
	a.buffers[index] = append(a.buffers[index][:0], data...)
	return nil
}

func (a *simAlgorithm) StartProgramPage(ctx context.Context, addr uint64, index int) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.transactions++
	if index < 0 || index >= len(a.buffers) {
		return fmt.Errorf("page buffer %d out of range", index)
	}
	if a.pending != nil {
		return fmt.Errorf("flash algorithm busy")
	}
	a.pending = &pendingPage{addr: addr, index: index}
	return nil
}

func (a *simAlgorithm) WaitForCompletion(ctx context.Context) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.transactions++
	if a.pending == nil {
		return nil
	}
	p := a.pending
	a.pending = nil
	return a.program(p.addr, a.buffers[p.index])
}
