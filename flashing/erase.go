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
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/goflash"
)

// The flash region erase helpers operate on: the boot region if marked,
// otherwise the first one.
func primaryFlash(t *goflash.Target) (goflash.Region, error) {
	regions := t.NvmRegions()
	if len(regions) == 0 {
		return goflash.Region{}, fmt.Errorf("%s has no flash memory", t.Name)
	}
	for _, r := range regions {
		if r.IsBootMemory {
			return r, nil
		}
	}
	return regions[0], nil
}

// Erases count sectors of the primary flash region, starting at sector
// index start.
func EraseSectors(ctx context.Context, target CommitTarget, progress *FlashProgress, start, count int) error {
	region, err := primaryFlash(target.Target())
	if err != nil {
		return err
	}
	alg, err := target.FlashAlgorithm(ctx, region)
	if err != nil {
		return err
	}
	var all []FlashSector
	props := alg.Properties()
	for _, s := range props.AllSectors() {
		if region.Range.Contains(s.Address) {
			all = append(all, FlashSector{Address: s.Address, Size: s.Size})
		}
	}
	if start < 0 || count < 0 || start+count > len(all) {
		return fmt.Errorf("sectors %d..%d out of range, %s has %d sectors", start, start+count, region.Name, len(all))
	}
	sectors := all[start : start+count]
	progress.emit(Initialized{Layout: &FlashLayout{sectors: sectors, erased: props.ErasedByteValue}})
	if err := eraseSectors(ctx, alg, progress, sectors); err != nil {
		return err
	}
	return alg.Uninit(ctx)
}

// Erases every flash region of the target. Regions whose algorithm has no
// chip erase entry are erased sector by sector.
func EraseAll(ctx context.Context, target CommitTarget, progress *FlashProgress) error {
	for _, region := range target.Target().NvmRegions() {
		alg, err := target.FlashAlgorithm(ctx, region)
		if err != nil {
			return err
		}
		props := alg.Properties()
		whole := FlashSector{Address: region.Range.Start, Size: region.Range.Size()}
		progress.emit(Initialized{Layout: &FlashLayout{sectors: []FlashSector{whole}, erased: props.ErasedByteValue}})
		progress.emit(StartedErasing{})
		if err := alg.Init(ctx, goflash.OpErase); err != nil {
			progress.emit(FailedErasing{})
			return &EraseError{Address: whole.Address, Err: err}
		}
		err = alg.EraseAll(ctx)
		if errors.Is(err, goflash.ErrEraseAllUnsupported) {
			glog.V(1).Infof("%s has no chip erase, erasing sector by sector", region.Name)
			err = eraseEach(ctx, alg, region, props)
		}
		if err != nil {
			progress.emit(FailedErasing{})
			return &EraseError{Address: whole.Address, Err: err}
		}
		progress.emit(SectorErased{Address: whole.Address, Size: whole.Size})
		progress.emit(FinishedErasing{})
		if err := alg.Uninit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func eraseEach(ctx context.Context, alg goflash.FlashAlgorithm, region goflash.Region, props goflash.FlashProperties) error {
	for _, s := range props.AllSectors() {
		if !region.Range.Contains(s.Address) {
			continue
		}
		if err := alg.EraseSector(ctx, s.Address); err != nil {
			return err
		}
	}
	return nil
}
