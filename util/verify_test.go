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

package util_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/goflash/flashing"
	"github.com/google/goflash/util"
)

func TestAlgorithmTestPassesOnHealthyFlash(t *testing.T) {
	fake, session := attach(t, "STM32F303CB")
	var starts, programmed int
	progress := flashing.NewFlashProgress(func(e flashing.ProgressEvent) {
		switch e.(type) {
		case flashing.StartedErasing:
			starts++
		case flashing.PageProgrammed:
			programmed++
		}
	})

	if err := util.RunAlgorithmTest(context.Background(), session, progress); err != nil {
		t.Fatalf("RunAlgorithmTest failed: %v", err)
	}
	if starts != 3 {
		t.Errorf("saw %d erase phases, want 3", starts)
	}
	// A page of data at offset 1 straddles two pages in each of 3 cycles.
	if programmed != 6 {
		t.Errorf("saw %d programmed pages, want 6", programmed)
	}
	if fake.Transactions() == 0 {
		t.Error("no probe transactions recorded")
	}
	got, err := fake.ReadMemory(flashBase, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0xff {
		t.Errorf("byte before test data = 0x%02x, want erased", got[0])
	}
}

func TestAlgorithmTestReportsEraseMismatch(t *testing.T) {
	_, session := attach(t, "STM32F303CB")
	target := corruptingTarget{Session: session, addr: flashBase + 0x900}

	err := util.RunAlgorithmTest(context.Background(), target, nil)
	var mismatch *util.ReadbackMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("RunAlgorithmTest = %v, want ReadbackMismatchError", err)
	}
	if mismatch.Stage != "erase" || mismatch.Address != flashBase+0x900 {
		t.Errorf("mismatch = %+v", mismatch)
	}
	if mismatch.Expected != 0xff || mismatch.Actual != 0xfe {
		t.Errorf("mismatch bytes = %02x/%02x", mismatch.Expected, mismatch.Actual)
	}
}
