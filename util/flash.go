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
	"bytes"
	"context"
	"fmt"

	"github.com/google/goflash/flashing"

	"github.com/golang/glog"
)

type FlashFileOptions struct {
	Format   flashing.Format
	BinBase  uint64
	Download flashing.DownloadOptions
	// Reads every written region back after the commit.
	Verify bool
}

// Contents read back from the target differ from what was expected.
type ReadbackMismatchError struct {
	Stage    string
	Address  uint64
	Expected byte
	Actual   byte
}

func (e *ReadbackMismatchError) Error() string {
	return fmt.Sprintf("%s readback mismatch at 0x%08x: expected 0x%02x, got 0x%02x",
		e.Stage, e.Address, e.Expected, e.Actual)
}

// Writes an image file to the target's flash.
func FlashFile(ctx context.Context, target flashing.CommitTarget, path string, opts FlashFileOptions) error {
	loader := flashing.NewTargetLoader(target.Target())
	glog.Infof("Loading %s as %s", path, opts.Format)
	if err := flashing.LoadFile(loader, path, opts.Format, opts.BinBase); err != nil {
		return err
	}
	glog.Infof("Flashing %s", target.Target().Name)
	if err := loader.Commit(ctx, target, opts.Download); err != nil {
		return err
	}
	if opts.Verify && !opts.Download.DryRun {
		glog.Info("Verifying contents")
		for _, r := range loader.Regions() {
			if err := verifyContents(ctx, target, "program", r.Address, r.Data); err != nil {
				return err
			}
		}
	}
	glog.Info("Device programmed successfully")
	return nil
}

func verifyContents(ctx context.Context, target flashing.CommitTarget, stage string, addr uint64, want []byte) error {
	core, err := target.Core(0)
	if err != nil {
		return err
	}
	got := make([]byte, len(want))
	if err := core.Read8(ctx, addr, got); err != nil {
		return fmt.Errorf("Failed to read flash contents: %w", err)
	}
	if bytes.Equal(want, got) {
		return nil
	}
	for i := range want {
		if want[i] != got[i] {
			return &ReadbackMismatchError{Stage: stage, Address: addr + uint64(i), Expected: want[i], Actual: got[i]}
		}
	}
	return nil
}
