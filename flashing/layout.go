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

type FlashSector struct {
	Address uint64
	Size    uint64
}

// A page to program. Data always spans a whole page.
type FlashPage struct {
	Address uint64
	Data    []byte
	// Offsets into Data not covered by image data.
	unwritten []span
}

// A whole page inside a touched sector that no image data lands on. It is
// rewritten with its previous contents after the erase.
type FlashFill struct {
	Address uint64
	Size    uint64
	data    []byte
}

type span struct {
	start, end uint64
}

// The erase and program operations needed to write image data to one flash
// region.
type FlashLayout struct {
	sectors []FlashSector
	pages   []FlashPage
	fills   []FlashFill
	erased  byte
}

func (l *FlashLayout) Sectors() []FlashSector {
	return l.sectors
}

func (l *FlashLayout) Pages() []FlashPage {
	return l.pages
}

func (l *FlashLayout) Fills() []FlashFill {
	return l.fills
}

func (l *FlashLayout) TotalSectorSize() uint64 {
	var n uint64
	for _, s := range l.sectors {
		n += s.Size
	}
	return n
}

func (l *FlashLayout) TotalPageSize() uint64 {
	var n uint64
	for _, p := range l.pages {
		n += uint64(len(p.Data))
	}
	return n
}

func (l *FlashLayout) TotalFillSize() uint64 {
	var n uint64
	for _, f := range l.fills {
		n += f.Size
	}
	return n
}

func (l *FlashLayout) containsPage(addr uint64) bool {
	i := sort.Search(len(l.pages), func(i int) bool { return l.pages[i].Address >= addr })
	return i < len(l.pages) && l.pages[i].Address == addr
}

// Sectors whose previous contents are needed to restore unwritten bytes.
func (l *FlashLayout) readbackSectors() []FlashSector {
	var out []FlashSector
	for _, s := range l.sectors {
		needed := false
		for _, f := range l.fills {
			if f.Address >= s.Address && f.Address < s.Address+s.Size {
				needed = true
				break
			}
		}
		for i := 0; !needed && i < len(l.pages); i++ {
			p := &l.pages[i]
			needed = p.Address >= s.Address && p.Address < s.Address+s.Size && len(p.unwritten) > 0
		}
		if needed {
			out = append(out, s)
		}
	}
	return out
}

// Copies the previous contents of sector into every unwritten byte inside
// it.
func (l *FlashLayout) restore(sector FlashSector, contents []byte) {
	for i := range l.pages {
		p := &l.pages[i]
		if p.Address < sector.Address || p.Address >= sector.Address+sector.Size {
			continue
		}
		off := p.Address - sector.Address
		for _, s := range p.unwritten {
			copy(p.Data[s.start:s.end], contents[off+s.start:off+s.end])
		}
	}
	for i := range l.fills {
		f := &l.fills[i]
		if f.Address < sector.Address || f.Address >= sector.Address+sector.Size {
			continue
		}
		off := f.Address - sector.Address
		copy(f.data, contents[off:off+f.Size])
	}
}

// Pages of the fill pass.
func (l *FlashLayout) fillPages() []FlashPage {
	pages := make([]FlashPage, len(l.fills))
	for i, f := range l.fills {
		pages[i] = FlashPage{Address: f.Address, Data: f.data}
	}
	return pages
}

func buildLayout(props goflash.FlashProperties, regions []MemoryRegion, keepUnwritten bool) *FlashLayout {
	layout := &FlashLayout{erased: props.ErasedByteValue}
	pageSize := uint64(props.PageSize)

	var pages []*FlashPage
	var covered [][]bool
	byAddr := map[uint64]int{}
	for _, r := range regions {
		for cur := r.Address; cur < r.End(); {
			base, ok := props.PageAt(cur)
			if !ok {
				break
			}
			i, ok := byAddr[base]
			if !ok {
				data := make([]byte, pageSize)
				for j := range data {
					data[j] = props.ErasedByteValue
				}
				i = len(pages)
				byAddr[base] = i
				pages = append(pages, &FlashPage{Address: base, Data: data})
				covered = append(covered, make([]bool, pageSize))
			}
			end := base + pageSize
			if r.End() < end {
				end = r.End()
			}
			copy(pages[i].Data[cur-base:], r.Data[cur-r.Address:end-r.Address])
			for j := cur - base; j < end-base; j++ {
				covered[i][j] = true
			}
			cur = end
		}
	}
	for i, p := range pages {
		var s *span
		for j, c := range covered[i] {
			switch {
			case !c && s == nil:
				p.unwritten = append(p.unwritten, span{uint64(j), uint64(j) + 1})
				s = &p.unwritten[len(p.unwritten)-1]
			case !c:
				s.end++
			default:
				s = nil
			}
		}
		layout.pages = append(layout.pages, *p)
	}
	sort.Slice(layout.pages, func(i, j int) bool { return layout.pages[i].Address < layout.pages[j].Address })

	for _, p := range layout.pages {
		s, ok := props.SectorAt(p.Address)
		if !ok {
			continue
		}
		n := len(layout.sectors)
		if n > 0 && layout.sectors[n-1].Address == s.Address {
			continue
		}
		layout.sectors = append(layout.sectors, FlashSector{Address: s.Address, Size: s.Size})
	}

	if keepUnwritten {
		for _, s := range layout.sectors {
			for addr := s.Address; addr < s.Address+s.Size; addr += pageSize {
				if layout.containsPage(addr) {
					continue
				}
				data := make([]byte, pageSize)
				for j := range data {
					data[j] = props.ErasedByteValue
				}
				layout.fills = append(layout.fills, FlashFill{Address: addr, Size: pageSize, data: data})
			}
		}
	}
	return layout
}
