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

package goflash_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/goflash"
)

const familyTOML = `
name = "Test Series"

[[variants]]
name = "TEST01xB"
chip_id = 0x7a1
cores = ["main"]

  [[variants.memory_map]]
  name = "FLASH"
  kind = "nvm"
  start = 0x08000000
  end = 0x08010000
  boot = true

  [[variants.memory_map]]
  name = "RAM"
  kind = "ram"
  start = 0x20000000
  end = 0x20002000

  [[variants.flash_algorithms]]
  name = "test01_64"
  default = true
  instructions = "AL4AvgECAwQ="
  load_address = 0x20000000
  pc_init = 0x05
  pc_program_page = 0x21
  pc_erase_sector = 0x31
  page_buffers = 2
  flash_start = 0x08000000
  flash_end = 0x08010000
  page_size = 0x100
  erased_byte_value = 0xff
  program_page_timeout_ms = 100
  erase_sector_timeout_ms = 1000

    [[variants.flash_algorithms.sectors]]
    size = 0x400
    address = 0x0
`

func TestAddTargetFromTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	if err := os.WriteFile(path, []byte(familyTOML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := goflash.AddTargetFromTOML(path); err != nil {
		t.Fatalf("AddTargetFromTOML failed: %v", err)
	}
	target, err := goflash.TargetByName("test01xb")
	if err != nil {
		t.Fatalf("TargetByName failed: %v", err)
	}
	if target.Source != path || target.ChipID != 0x7a1 {
		t.Errorf("Unexpected target %+v", target)
	}
	if len(target.NvmRegions()) != 1 {
		t.Fatalf("Expected one flash region, got %d", len(target.NvmRegions()))
	}
	alg, err := target.AlgorithmFor(target.NvmRegions()[0])
	if err != nil {
		t.Fatalf("AlgorithmFor failed: %v", err)
	}
	if alg.PcInit == nil || *alg.PcInit != 0x05 || alg.PcUninit != nil {
		t.Errorf("Unexpected entry points in %+v", alg)
	}
	if len(alg.Instructions) != 8 || alg.Instructions[1] != 0xbe {
		t.Errorf("Instructions were not decoded: % x", alg.Instructions)
	}
	s, ok := alg.FlashProperties.SectorAt(0x08000401)
	if !ok || s.Address != 0x08000400 || s.Size != 0x400 {
		t.Errorf("SectorAt = %+v, %v", s, ok)
	}

	found := false
	for _, f := range goflash.Families() {
		found = found || f.Name == "Test Series"
	}
	if !found {
		t.Errorf("Families does not list the added family")
	}
}

func TestParseFamilyRejectsBadGeometry(t *testing.T) {
	bad := []byte(`
name = "Broken"
[[variants]]
name = "BROKEN1"
  [[variants.flash_algorithms]]
  name = "broken"
  flash_start = 0x0
  flash_end = 0x1000
  page_size = 0x300
    [[variants.flash_algorithms.sectors]]
    size = 0x400
`)
	if _, err := goflash.ParseFamily(bad, "inline"); err == nil {
		t.Errorf("ParseFamily accepted sectors that are not a multiple of the page size")
	}
}

func TestTargetByNamePrefix(t *testing.T) {
	target, err := goflash.TargetByName("nRF52840")
	if err != nil {
		t.Fatalf("TargetByName failed: %v", err)
	}
	if target.Name != "nRF52840_xxAA" {
		t.Errorf("Got %s", target.Name)
	}
	if _, err := goflash.TargetByName("STM32"); !errors.Is(err, goflash.ErrChipNotFound) {
		t.Errorf("Ambiguous prefix returned %v, want ErrChipNotFound", err)
	}
}

func TestSectorGeometry(t *testing.T) {
	target, err := goflash.TargetByName("STM32F411CE")
	if err != nil {
		t.Fatalf("TargetByName failed: %v", err)
	}
	props := target.FlashAlgorithms[0].FlashProperties
	sectors := props.AllSectors()
	if len(sectors) != 8 {
		t.Fatalf("Expected 8 sectors, got %d", len(sectors))
	}
	if sectors[4].Address != 0x08010000 || sectors[4].Size != 0x10000 {
		t.Errorf("Unexpected sector 4: %+v", sectors[4])
	}
	if sectors[7].Address != 0x08060000 || sectors[7].Size != 0x20000 {
		t.Errorf("Unexpected sector 7: %+v", sectors[7])
	}
}

func TestParseFamilyDefaultsMissingTimeouts(t *testing.T) {
	desc := strings.NewReplacer(
		"program_page_timeout_ms = 100\n", "",
		"erase_sector_timeout_ms = 1000\n", "",
	).Replace(familyTOML)
	family, err := goflash.ParseFamily([]byte(desc), "inline")
	if err != nil {
		t.Fatalf("ParseFamily failed: %v", err)
	}
	props := family.Variants[0].FlashAlgorithms[0].FlashProperties
	if props.ProgramPageTimeout != time.Second || props.EraseSectorTimeout != 2*time.Second {
		t.Errorf("Timeouts = %v/%v, want defaults", props.ProgramPageTimeout, props.EraseSectorTimeout)
	}
}

func TestParseFamilyRejectsZeroTimeout(t *testing.T) {
	desc := strings.Replace(familyTOML, "program_page_timeout_ms = 100", "program_page_timeout_ms = 0", 1)
	if _, err := goflash.ParseFamily([]byte(desc), "inline"); err == nil {
		t.Errorf("ParseFamily accepted a zero program timeout")
	}
}
