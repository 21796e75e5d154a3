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

package flashing

import (
	"sort"

	"github.com/google/goflash"
)

// Collects image data for one target and writes it to flash on Commit.
// A loader can be committed once.
type FlashLoader struct {
	memoryMap     []goflash.Region
	keepUnwritten bool
	source        string
	data          []MemoryRegion
	committed     bool
}

// source describes where memoryMap came from and is used in messages only.
func NewFlashLoader(memoryMap []goflash.Region, keepUnwrittenBytes bool, source string) *FlashLoader {
	m := append([]goflash.Region(nil), memoryMap...)
	sort.Slice(m, func(i, j int) bool { return m[i].Range.Start < m[j].Range.Start })
	return &FlashLoader{memoryMap: m, keepUnwritten: keepUnwrittenBytes, source: source}
}

// Returns a loader bound to the memory map of t.
func NewTargetLoader(t *goflash.Target) *FlashLoader {
	return NewFlashLoader(t.MemoryMap, false, t.Name+" ("+t.Source+")")
}

func (l *FlashLoader) Source() string {
	return l.source
}

// Options for Commit with the loader's defaults applied.
func (l *FlashLoader) DefaultOptions() DownloadOptions {
	return DownloadOptions{KeepUnwrittenBytes: l.keepUnwritten}
}

// Added data in address order.
func (l *FlashLoader) Regions() []MemoryRegion {
	return append([]MemoryRegion(nil), l.data...)
}

func (l *FlashLoader) nvmRegionAt(addr uint64) (goflash.Region, bool) {
	for _, r := range l.memoryMap {
		if r.Kind == goflash.RegionNvm && r.Range.Contains(addr) {
			return r, true
		}
	}
	return goflash.Region{}, false
}

// Stores a copy of data to be written at addr. Data spanning adjacent
// flash regions is split at the region boundary.
func (l *FlashLoader) AddData(addr uint64, data []byte) error {
	if l.committed {
		return ErrLoaderCommitted
	}
	end := addr + uint64(len(data))
	if end < addr {
		return &OutOfBoundsError{Address: addr, Size: uint64(len(data))}
	}
	var pieces []MemoryRegion
	for cur := addr; cur < end; {
		r, ok := l.nvmRegionAt(cur)
		if !ok {
			return &OutOfBoundsError{Address: addr, Size: uint64(len(data))}
		}
		next := end
		if r.Range.End < next {
			next = r.Range.End
		}
		pieces = append(pieces, MemoryRegion{
			Address: cur,
			Data:    append([]byte(nil), data[cur-addr:next-addr]...),
		})
		cur = next
	}
	for _, p := range pieces {
		i := sort.Search(len(l.data), func(i int) bool { return l.data[i].Address >= p.Address })
		if i > 0 && l.data[i-1].End() > p.Address {
			return &OverlapError{First: l.data[i-1].Range(), Second: p.Range()}
		}
		if i < len(l.data) && l.data[i].Address < p.End() {
			return &OverlapError{First: l.data[i].Range(), Second: p.Range()}
		}
	}
	for _, p := range pieces {
		i := sort.Search(len(l.data), func(i int) bool { return l.data[i].Address >= p.Address })
		l.data = append(l.data, MemoryRegion{})
		copy(l.data[i+1:], l.data[i:])
		l.data[i] = p
	}
	return nil
}

// Data falling inside rng.
func (l *FlashLoader) dataIn(rng goflash.AddressRange) []MemoryRegion {
	var out []MemoryRegion
	for _, d := range l.data {
		if rng.ContainsRange(d.Address, d.End()) {
			out = append(out, d)
		}
	}
	return out
}

// Plans the flash operations for the added data inside props' address
// range without touching any target.
func (l *FlashLoader) Layout(props goflash.FlashProperties, keepUnwrittenBytes bool) *FlashLayout {
	return buildLayout(props, l.dataIn(props.AddressRange), keepUnwrittenBytes)
}
