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
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"
)

// A group of chip variants described together.
type Family struct {
	Name     string
	Variants []*Target
}

var registry struct {
	sync.RWMutex
	families []*Family
}

func init() {
	registry.families = builtinFamilies()
}

const (
	kib = 1024
	mib = 1024 * kib
)

func stm32Algorithm(name string, start, size uint64, pageSize uint32, sectors ...SectorDescription) RawFlashAlgorithm {
	return RawFlashAlgorithm{
		Name:        name,
		Default:     true,
		LoadAddress: 0x20000000,
		PageBuffers: 2,
		FlashProperties: FlashProperties{
			AddressRange:       AddressRange{Start: start, End: start + size},
			PageSize:           pageSize,
			ErasedByteValue:    0xff,
			ProgramPageTimeout: 100 * time.Millisecond,
			EraseSectorTimeout: 3 * time.Second,
			Sectors:            sectors,
		},
	}
}

func mcu(name string, chipID uint32, flash, ram uint64, alg RawFlashAlgorithm) *Target {
	start := alg.FlashProperties.AddressRange.Start
	return &Target{
		Name:   name,
		ChipID: chipID,
		Cores:  []string{"main"},
		MemoryMap: []Region{
			{Name: "FLASH", Kind: RegionNvm, Range: AddressRange{start, start + flash}, IsBootMemory: true},
			{Name: "RAM", Kind: RegionRam, Range: AddressRange{0x20000000, 0x20000000 + ram}},
		},
		FlashAlgorithms: []RawFlashAlgorithm{alg},
		Source:          "builtin",
	}
}

// Builtin descriptions carry memory maps and flash geometry only. Running
// on hardware needs a description file with the algorithm blob.
func builtinFamilies() []*Family {
	return []*Family{
		{Name: "STM32F1 Series", Variants: []*Target{
			mcu("STM32F103C8", 0x410, 64*kib, 20*kib,
				stm32Algorithm("stm32f1xx_64", 0x08000000, 64*kib, 0x400, SectorDescription{Size: 0x400})),
		}},
		{Name: "STM32F3 Series", Variants: []*Target{
			mcu("STM32F303CB", 0x422, 128*kib, 40*kib,
				stm32Algorithm("stm32f3xx_128", 0x08000000, 128*kib, 0x800, SectorDescription{Size: 0x800})),
		}},
		{Name: "STM32F4 Series", Variants: []*Target{
			mcu("STM32F411CE", 0x431, 512*kib, 128*kib,
				stm32Algorithm("stm32f4xx_512", 0x08000000, 512*kib, 0x400,
					SectorDescription{Size: 16 * kib, Address: 0},
					SectorDescription{Size: 64 * kib, Address: 64 * kib},
					SectorDescription{Size: 128 * kib, Address: 128 * kib})),
		}},
		{Name: "nRF52 Series", Variants: []*Target{
			mcu("nRF52840_xxAA", 0, 1*mib, 256*kib, RawFlashAlgorithm{
				Name:        "nrf52",
				Default:     true,
				LoadAddress: 0x20000000,
				PageBuffers: 2,
				FlashProperties: FlashProperties{
					AddressRange:       AddressRange{0, 1 * mib},
					PageSize:           4 * kib,
					ErasedByteValue:    0xff,
					ProgramPageTimeout: 500 * time.Millisecond,
					EraseSectorTimeout: 3 * time.Second,
					Sectors:            []SectorDescription{{Size: 4 * kib}},
				},
			}),
		}},
	}
}

// Snapshot of all registered families in registration order.
func Families() []Family {
	registry.RLock()
	defer registry.RUnlock()
	out := make([]Family, len(registry.families))
	for i, f := range registry.families {
		out[i] = *f
	}
	return out
}

// Looks up a target by name, ignoring case. A unique prefix match is
// accepted with a warning.
func TargetByName(name string) (*Target, error) {
	registry.RLock()
	defer registry.RUnlock()

	var partial []*Target
	for _, f := range registry.families {
		for _, v := range f.Variants {
			if strings.EqualFold(v.Name, name) {
				t := *v
				return &t, nil
			}
			if strings.HasPrefix(strings.ToLower(v.Name), strings.ToLower(name)) {
				partial = append(partial, v)
			}
		}
	}
	if len(partial) == 1 {
		glog.Warningf("Found chip %s which matches given partial name %s. Consider specifying its full name.",
			partial[0].Name, name)
		t := *partial[0]
		return &t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrChipNotFound, name)
}

// Matches the device ID field (low 12 bits) of a chip ID word.
func targetByChipID(id uint32) (*Target, bool) {
	registry.RLock()
	defer registry.RUnlock()
	for _, f := range registry.families {
		for _, v := range f.Variants {
			if v.ChipID != 0 && v.ChipID == id&0xfff {
				t := *v
				return &t, true
			}
		}
	}
	return nil, false
}

type tomlSector struct {
	Size    uint64 `toml:"size"`
	Address uint64 `toml:"address"`
}

type tomlAlgorithm struct {
	Name                 string       `toml:"name"`
	Default              bool         `toml:"default"`
	Instructions         string       `toml:"instructions"`
	LoadAddress          uint64       `toml:"load_address"`
	PcInit               *uint64      `toml:"pc_init"`
	PcUninit             *uint64      `toml:"pc_uninit"`
	PcProgramPage        uint64       `toml:"pc_program_page"`
	PcEraseSector        uint64       `toml:"pc_erase_sector"`
	PcEraseAll           *uint64      `toml:"pc_erase_all"`
	DataSectionOffset    uint64       `toml:"data_section_offset"`
	StackSize            uint64       `toml:"stack_size"`
	PageBuffers          int          `toml:"page_buffers"`
	FlashStart           uint64       `toml:"flash_start"`
	FlashEnd             uint64       `toml:"flash_end"`
	PageSize             uint32       `toml:"page_size"`
	ErasedByteValue      *uint8       `toml:"erased_byte_value"`
	ProgramPageTimeoutMs *uint32      `toml:"program_page_timeout_ms"`
	EraseSectorTimeoutMs *uint32      `toml:"erase_sector_timeout_ms"`
	Sectors              []tomlSector `toml:"sectors"`
}

type tomlRegion struct {
	Name  string `toml:"name"`
	Kind  string `toml:"kind"`
	Start uint64 `toml:"start"`
	End   uint64 `toml:"end"`
	Boot  bool   `toml:"boot"`
}

type tomlVariant struct {
	Name            string          `toml:"name"`
	ChipID          uint32          `toml:"chip_id"`
	Cores           []string        `toml:"cores"`
	MemoryMap       []tomlRegion    `toml:"memory_map"`
	FlashAlgorithms []tomlAlgorithm `toml:"flash_algorithms"`
}

type tomlFamily struct {
	Name     string        `toml:"name"`
	Variants []tomlVariant `toml:"variants"`
}

// Timeouts used when a description leaves them out.
const (
	defaultProgramPageTimeout = time.Second
	defaultEraseSectorTimeout = 2 * time.Second
)

func millisOr(ms *uint32, def time.Duration) time.Duration {
	if ms == nil {
		return def
	}
	return time.Duration(*ms) * time.Millisecond
}

func (a *tomlAlgorithm) convert() (RawFlashAlgorithm, error) {
	code, err := base64.StdEncoding.DecodeString(a.Instructions)
	if err != nil {
		return RawFlashAlgorithm{}, fmt.Errorf("algorithm %q: decoding instructions: %v", a.Name, err)
	}
	erased := byte(0xff)
	if a.ErasedByteValue != nil {
		erased = *a.ErasedByteValue
	}
	raw := RawFlashAlgorithm{
		Name:              a.Name,
		Default:           a.Default,
		Instructions:      code,
		LoadAddress:       a.LoadAddress,
		PcInit:            a.PcInit,
		PcUninit:          a.PcUninit,
		PcProgramPage:     a.PcProgramPage,
		PcEraseSector:     a.PcEraseSector,
		PcEraseAll:        a.PcEraseAll,
		DataSectionOffset: a.DataSectionOffset,
		StackSize:         a.StackSize,
		PageBuffers:       a.PageBuffers,
		FlashProperties: FlashProperties{
			AddressRange:       AddressRange{a.FlashStart, a.FlashEnd},
			PageSize:           a.PageSize,
			ErasedByteValue:    erased,
			ProgramPageTimeout: millisOr(a.ProgramPageTimeoutMs, defaultProgramPageTimeout),
			EraseSectorTimeout: millisOr(a.EraseSectorTimeoutMs, defaultEraseSectorTimeout),
		},
	}
	for _, s := range a.Sectors {
		raw.FlashProperties.Sectors = append(raw.FlashProperties.Sectors, SectorDescription{Size: s.Size, Address: s.Address})
	}
	sort.Slice(raw.FlashProperties.Sectors, func(i, j int) bool {
		return raw.FlashProperties.Sectors[i].Address < raw.FlashProperties.Sectors[j].Address
	})
	return raw, nil
}

func (v *tomlVariant) convert(source string) (*Target, error) {
	t := &Target{Name: v.Name, ChipID: v.ChipID, Cores: v.Cores, Source: source}
	for _, r := range v.MemoryMap {
		region := Region{Name: r.Name, Range: AddressRange{r.Start, r.End}, IsBootMemory: r.Boot}
		switch strings.ToLower(r.Kind) {
		case "nvm", "flash":
			region.Kind = RegionNvm
		case "ram":
			region.Kind = RegionRam
		default:
			return nil, fmt.Errorf("%s: region %q has unknown kind %q", v.Name, r.Name, r.Kind)
		}
		t.MemoryMap = append(t.MemoryMap, region)
	}
	for i := range v.FlashAlgorithms {
		raw, err := v.FlashAlgorithms[i].convert()
		if err != nil {
			return nil, fmt.Errorf("%s: %v", v.Name, err)
		}
		t.FlashAlgorithms = append(t.FlashAlgorithms, raw)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Parses a chip family description in TOML.
func ParseFamily(data []byte, source string) (*Family, error) {
	var tf tomlFamily
	md, err := toml.Decode(string(data), &tf)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %v", source, err)
	}
	for _, key := range md.Undecoded() {
		glog.Warningf("%s: ignoring unknown key %s", source, key)
	}
	if tf.Name == "" {
		return nil, fmt.Errorf("%s: family has no name", source)
	}
	f := &Family{Name: tf.Name}
	for i := range tf.Variants {
		t, err := tf.Variants[i].convert(source)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", source, err)
		}
		f.Variants = append(f.Variants, t)
	}
	return f, nil
}

// Registers the chip family described in the TOML file at path. A family
// with the same name replaces the registered one.
func AddTargetFromTOML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loading chip description: %v", err)
	}
	f, err := ParseFamily(data, path)
	if err != nil {
		return err
	}
	registerFamily(f)
	return nil
}

func registerFamily(f *Family) {
	registry.Lock()
	defer registry.Unlock()
	for i, existing := range registry.families {
		if existing.Name == f.Name {
			registry.families[i] = f
			return
		}
	}
	registry.families = append(registry.families, f)
	glog.V(1).Infof("Registered chip family %s (%d variants)", f.Name, len(f.Variants))
}
