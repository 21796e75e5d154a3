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

package flashing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/goflash"
	"github.com/google/goflash/flashing"
)

const (
	testPageSize   = 0x100
	testSectorSize = 0x1000
)

func testProperties() goflash.FlashProperties {
	return goflash.FlashProperties{
		AddressRange:       goflash.AddressRange{Start: 0, End: 0x8000},
		PageSize:           testPageSize,
		ErasedByteValue:    0xff,
		ProgramPageTimeout: 100 * time.Millisecond,
		EraseSectorTimeout: time.Second,
		Sectors:            []goflash.SectorDescription{{Size: testSectorSize}},
	}
}

// 32KiB of flash in 4KiB sectors of 256 byte pages, plus RAM.
func testTarget() *goflash.Target {
	return &goflash.Target{
		Name:  "TEST32K",
		Cores: []string{"main"},
		MemoryMap: []goflash.Region{
			{Name: "FLASH", Kind: goflash.RegionNvm, Range: goflash.AddressRange{Start: 0, End: 0x8000}, IsBootMemory: true},
			{Name: "RAM", Kind: goflash.RegionRam, Range: goflash.AddressRange{Start: 0x20000000, End: 0x20010000}},
		},
		FlashAlgorithms: []goflash.RawFlashAlgorithm{{
			Name:            "test",
			Default:         true,
			PageBuffers:     2,
			FlashProperties: testProperties(),
		}},
		Source: "test",
	}
}

func attachFake(t *testing.T) (*goflash.FakeProbe, *goflash.Session) {
	t.Helper()
	fake := goflash.NewFakeProbe()
	session, err := fake.Probe().Attach(context.Background(), goflash.ExplicitTarget(testTarget()))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	return fake, session
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

type recorder struct {
	events []flashing.ProgressEvent
}

func (r *recorder) handle(e flashing.ProgressEvent) {
	r.events = append(r.events, e)
}

func (r *recorder) progress() *flashing.FlashProgress {
	return flashing.NewFlashProgress(r.handle)
}

func (r *recorder) initialized() []*flashing.FlashLayout {
	var out []*flashing.FlashLayout
	for _, e := range r.events {
		if i, ok := e.(flashing.Initialized); ok {
			out = append(out, i.Layout)
		}
	}
	return out
}

func (r *recorder) erased() []uint64 {
	var out []uint64
	for _, e := range r.events {
		if s, ok := e.(flashing.SectorErased); ok {
			out = append(out, s.Address)
		}
	}
	return out
}

func (r *recorder) saw(want flashing.ProgressEvent) bool {
	for _, e := range r.events {
		if e == want {
			return true
		}
	}
	return false
}

// CommitTarget with injected core and algorithm.
type stubTarget struct {
	target *goflash.Target
	core   goflash.Core
	alg    goflash.FlashAlgorithm
}

func (s *stubTarget) Target() *goflash.Target {
	return s.target
}

func (s *stubTarget) Core(index int) (goflash.Core, error) {
	if s.core == nil {
		return nil, errors.New("no core")
	}
	return s.core, nil
}

func (s *stubTarget) FlashAlgorithm(ctx context.Context, region goflash.Region) (goflash.FlashAlgorithm, error) {
	if s.alg == nil {
		return nil, errors.New("no flash algorithm")
	}
	return s.alg, nil
}
