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
	"debug/elf"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/google/goflash"
	"github.com/marcinbor85/gohex"
)

// A run of bytes at a target address. Treat as immutable once built.
type MemoryRegion struct {
	Address uint64
	Data    []byte
}

func (r MemoryRegion) End() uint64 {
	return r.Address + uint64(len(r.Data))
}

func (r MemoryRegion) Range() goflash.AddressRange {
	return goflash.AddressRange{Start: r.Address, End: r.End()}
}

type Format uint8

const (
	FormatElf Format = iota
	FormatHex
	FormatBin
)

func (f Format) String() string {
	switch f {
	case FormatElf:
		return "elf"
	case FormatHex:
		return "hex"
	case FormatBin:
		return "bin"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "elf":
		return FormatElf, nil
	case "hex", "ihex":
		return FormatHex, nil
	case "bin":
		return FormatBin, nil
	}
	return 0, fmt.Errorf("unknown image format %q", s)
}

// Guesses the format from the file extension, defaulting to ELF.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex":
		return FormatHex
	case ".bin":
		return FormatBin
	}
	return FormatElf
}

// Extracts the loadable bytes of an image as regions in address order.
// binBase is the load address of raw binaries and ignored otherwise.
func BuildImage(r io.ReaderAt, format Format, binBase uint64) ([]MemoryRegion, error) {
	var regions []MemoryRegion
	var err error
	switch format {
	case FormatElf:
		regions, err = elfRegions(r)
	case FormatHex:
		regions, err = hexRegions(r)
	case FormatBin:
		var data []byte
		data, err = io.ReadAll(io.NewSectionReader(r, 0, math.MaxInt64))
		if len(data) > 0 {
			regions = []MemoryRegion{{Address: binBase, Data: data}}
		}
	default:
		err = fmt.Errorf("unsupported format")
	}
	if err != nil {
		return nil, &ImageFormatError{Format: format, Err: err}
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Address < regions[j].Address })
	for i := 1; i < len(regions); i++ {
		if regions[i].Address < regions[i-1].End() {
			return nil, &OverlapError{First: regions[i-1].Range(), Second: regions[i].Range()}
		}
	}
	return regions, nil
}

func elfRegions(r io.ReaderAt) ([]MemoryRegion, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var regions []MemoryRegion
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("reading segment at %#x: %v", prog.Paddr, err)
		}
		glog.V(1).Infof("Found loadable segment: paddr %#08x, %d bytes", prog.Paddr, prog.Filesz)
		regions = append(regions, MemoryRegion{Address: prog.Paddr, Data: data})
	}
	return regions, nil
}

func hexRegions(r io.ReaderAt) ([]MemoryRegion, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(io.NewSectionReader(r, 0, math.MaxInt64)); err != nil {
		return nil, err
	}
	var regions []MemoryRegion
	for _, seg := range mem.GetDataSegments() {
		regions = append(regions, MemoryRegion{Address: uint64(seg.Address), Data: seg.Data})
	}
	return regions, nil
}

// Adds every loadable region of the image at path to loader.
func LoadFile(loader *FlashLoader, path string, format Format, binBase uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	regions, err := BuildImage(f, format, binBase)
	if err != nil {
		return err
	}
	for _, r := range regions {
		if err := loader.AddData(r.Address, r.Data); err != nil {
			return err
		}
	}
	return nil
}
