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

package util

import (
	"context"
	"fmt"

	"github.com/google/goflash"
	"github.com/google/goflash/flashing"

	"github.com/golang/glog"
)

// Offset of the test data from the start of flash, so it never starts on a
// page boundary.
const testDataOffset = 1

type testCycle struct {
	name         string
	chipErase    bool
	doubleBuffer bool
}

var testCycles = []testCycle{
	{"sector erase, single buffering", false, false},
	{"chip erase, single buffering", true, false},
	{"sector erase, double buffering", false, true},
}

// Exercises the target's flash algorithm against its first flash region.
// Each cycle erases, checks the erased state, programs one page worth of
// data at an unaligned address and reads it back.
func RunAlgorithmTest(ctx context.Context, target flashing.CommitTarget, progress *flashing.FlashProgress) error {
	t := target.Target()
	region, err := bootFlash(t)
	if err != nil {
		return err
	}
	raw, err := t.AlgorithmFor(region)
	if err != nil {
		return err
	}
	props := raw.FlashProperties
	sectors := props.AllSectors()
	if len(sectors) < 2 {
		return fmt.Errorf("region %s has fewer than two sectors", region.Name)
	}
	testData := make([]byte, props.PageSize)
	for i := range testData {
		testData[i] = byte(i)
	}
	start := props.AddressRange.Start

	for i, c := range testCycles {
		glog.Infof("Test cycle %d: %s", i+1, c.name)
		erased := goflash.AddressRange{Start: start, End: sectors[1].Address + sectors[1].Size}
		if c.chipErase {
			if err := flashing.EraseAll(ctx, target, progress); err != nil {
				return err
			}
			erased = region.Range
		} else if err := flashing.EraseSectors(ctx, target, progress, 0, 2); err != nil {
			return err
		}
		blank := make([]byte, erased.Size())
		for j := range blank {
			blank[j] = props.ErasedByteValue
		}
		if err := verifyContents(ctx, target, "erase", erased.Start, blank); err != nil {
			return err
		}

		loader := flashing.NewTargetLoader(t)
		if err := loader.AddData(start+testDataOffset, testData); err != nil {
			return err
		}
		opts := loader.DefaultOptions()
		opts.SkipErase = true
		opts.DisableDoubleBuffering = !c.doubleBuffer
		opts.Progress = progress
		if err := loader.Commit(ctx, target, opts); err != nil {
			return err
		}
		if err := verifyContents(ctx, target, "program", start+testDataOffset, testData); err != nil {
			return err
		}
	}
	glog.Info("Flash algorithm test passed")
	return nil
}

func bootFlash(t *goflash.Target) (goflash.Region, error) {
	nvm := t.NvmRegions()
	if len(nvm) == 0 {
		return goflash.Region{}, fmt.Errorf("target %s has no flash", t.Name)
	}
	for _, r := range nvm {
		if r.IsBootMemory {
			return r, nil
		}
	}
	return nvm[0], nil
}
