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

// Chip descriptions: memory map, flash properties and flash algorithms.
package goflash

import (
	"fmt"
	"time"
)

type RegionKind uint8

const (
	RegionRam RegionKind = iota
	RegionNvm
)

func (k RegionKind) String() string {
	switch k {
	case RegionRam:
		return "ram"
	case RegionNvm:
		return "nvm"
	default:
		return fmt.Sprintf("RegionKind(%d)", uint8(k))
	}
}

// Half-open address range [Start, End).
type AddressRange struct {
	Start uint64
	End   uint64
}

func (r AddressRange) Size() uint64 {
	return r.End - r.Start
}

func (r AddressRange) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// ContainsRange reports whether [start, end) lies entirely inside r.
func (r AddressRange) ContainsRange(start, end uint64) bool {
	return start >= r.Start && end <= r.End && start <= end
}

func (r AddressRange) Intersects(start, end uint64) bool {
	return start < r.End && end > r.Start
}

func (r AddressRange) String() string {
	return fmt.Sprintf("%#08x..%#08x", r.Start, r.End)
}

// One entry of a target's memory map.
type Region struct {
	Name         string
	Kind         RegionKind
	Range        AddressRange
	IsBootMemory bool
}

// Erase granularity description. A description applies from Address
// (relative to the flash start) up to the next description.
type SectorDescription struct {
	Size    uint64
	Address uint64
}

type FlashProperties struct {
	AddressRange       AddressRange
	PageSize           uint32
	ErasedByteValue    byte
	ProgramPageTimeout time.Duration
	EraseSectorTimeout time.Duration
	Sectors            []SectorDescription
}

// Sector of the flash containing addr.
type SectorInfo struct {
	Address uint64
	Size    uint64
}

// SectorAt resolves the erase sector containing addr.
func (p *FlashProperties) SectorAt(addr uint64) (SectorInfo, bool) {
	if !p.AddressRange.Contains(addr) || len(p.Sectors) == 0 {
		return SectorInfo{}, false
	}
	offset := addr - p.AddressRange.Start
	var desc SectorDescription
	for _, d := range p.Sectors {
		if d.Address > offset {
			break
		}
		desc = d
	}
	if desc.Size == 0 {
		return SectorInfo{}, false
	}
	index := (offset - desc.Address) / desc.Size
	start := p.AddressRange.Start + desc.Address + index*desc.Size
	return SectorInfo{Address: start, Size: desc.Size}, true
}

// PageAt resolves the program page containing addr.
func (p *FlashProperties) PageAt(addr uint64) (uint64, bool) {
	if !p.AddressRange.Contains(addr) || p.PageSize == 0 {
		return 0, false
	}
	size := uint64(p.PageSize)
	offset := addr - p.AddressRange.Start
	return p.AddressRange.Start + offset/size*size, true
}

// Every sector of the flash in ascending order.
func (p *FlashProperties) AllSectors() []SectorInfo {
	var sectors []SectorInfo
	addr := p.AddressRange.Start
	for addr < p.AddressRange.End {
		s, ok := p.SectorAt(addr)
		if !ok {
			break
		}
		sectors = append(sectors, s)
		addr = s.Address + s.Size
	}
	return sectors
}

func (p *FlashProperties) Validate() error {
	if p.AddressRange.End <= p.AddressRange.Start {
		return fmt.Errorf("empty flash range %v", p.AddressRange)
	}
	if p.PageSize == 0 {
		return fmt.Errorf("page size must be non-zero")
	}
	if p.ProgramPageTimeout <= 0 || p.EraseSectorTimeout <= 0 {
		return fmt.Errorf("program and erase timeouts must be positive")
	}
	if len(p.Sectors) == 0 || p.Sectors[0].Address != 0 {
		return fmt.Errorf("sector descriptions must start at offset 0")
	}
	for i, s := range p.Sectors {
		if s.Size == 0 || s.Size%uint64(p.PageSize) != 0 {
			return fmt.Errorf("sector size %#x is not a multiple of page size %#x", s.Size, p.PageSize)
		}
		if i > 0 && s.Address <= p.Sectors[i-1].Address {
			return fmt.Errorf("sector descriptions are not ascending at %#x", s.Address)
		}
	}
	return nil
}

// Vendor flash algorithm blob and its entry points. Pc* values are offsets
// into Instructions.
type RawFlashAlgorithm struct {
	Name              string
	Default           bool
	Instructions      []byte
	LoadAddress       uint64
	PcInit            *uint64
	PcUninit          *uint64
	PcProgramPage     uint64
	PcEraseSector     uint64
	PcEraseAll        *uint64
	DataSectionOffset uint64
	StackSize         uint64
	PageBuffers       int
	FlashProperties   FlashProperties
}

type Target struct {
	Name            string
	ChipID          uint32
	Cores           []string
	MemoryMap       []Region
	FlashAlgorithms []RawFlashAlgorithm
	// Where the description came from: "builtin" or a file path.
	Source string
}

// NvmRegions returns the flash entries of the memory map.
func (t *Target) NvmRegions() []Region {
	var regions []Region
	for _, r := range t.MemoryMap {
		if r.Kind == RegionNvm {
			regions = append(regions, r)
		}
	}
	return regions
}

func (t *Target) RamRegion() (Region, bool) {
	for _, r := range t.MemoryMap {
		if r.Kind == RegionRam {
			return r, true
		}
	}
	return Region{}, false
}

// AlgorithmFor picks the flash algorithm covering region, preferring the
// default one.
func (t *Target) AlgorithmFor(region Region) (*RawFlashAlgorithm, error) {
	var found *RawFlashAlgorithm
	for i := range t.FlashAlgorithms {
		a := &t.FlashAlgorithms[i]
		if !a.FlashProperties.AddressRange.ContainsRange(region.Range.Start, region.Range.End) {
			continue
		}
		if found == nil || a.Default {
			found = a
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no flash algorithm for region %q (%v) on %s", region.Name, region.Range, t.Name)
	}
	return found, nil
}

func (t *Target) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("target has no name")
	}
	for i, a := range t.MemoryMap {
		if a.Range.End <= a.Range.Start {
			return fmt.Errorf("%s: region %q is empty", t.Name, a.Name)
		}
		for _, b := range t.MemoryMap[i+1:] {
			if a.Range.Intersects(b.Range.Start, b.Range.End) {
				return fmt.Errorf("%s: regions %q and %q overlap", t.Name, a.Name, b.Name)
			}
		}
	}
	for _, alg := range t.FlashAlgorithms {
		if err := alg.FlashProperties.Validate(); err != nil {
			return fmt.Errorf("%s: algorithm %q: %w", t.Name, alg.Name, err)
		}
	}
	return nil
}
