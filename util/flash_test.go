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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/goflash"
	"github.com/google/goflash/flashing"
	"github.com/google/goflash/util"
)

const flashBase = 0x08000000

func attach(t *testing.T, chip string) (*goflash.FakeProbe, *goflash.Session) {
	t.Helper()
	fake := goflash.NewFakeProbe()
	session, err := fake.Probe().Attach(context.Background(), goflash.TargetNamed(chip))
	if err != nil {
		t.Fatalf("Attach(%s) failed: %v", chip, err)
	}
	return fake, session
}

// Flips one bit of every read covering addr.
type corruptingTarget struct {
	*goflash.Session
	addr uint64
}

func (c corruptingTarget) Core(index int) (goflash.Core, error) {
	core, err := c.Session.Core(index)
	if err != nil {
		return nil, err
	}
	return corruptingCore{Core: core, addr: c.addr}, nil
}

type corruptingCore struct {
	goflash.Core
	addr uint64
}

func (c corruptingCore) Read8(ctx context.Context, addr uint64, data []byte) error {
	if err := c.Core.Read8(ctx, addr, data); err != nil {
		return err
	}
	if c.addr >= addr && c.addr < addr+uint64(len(data)) {
		data[c.addr-addr] ^= 0x01
	}
	return nil
}

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firmware.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func firmware(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func TestFlashFileWritesImage(t *testing.T) {
	fake, session := attach(t, "STM32F303CB")
	data := firmware(0x1234)
	path := writeImage(t, data)

	opts := util.FlashFileOptions{Format: flashing.FormatBin, BinBase: flashBase, Verify: true}
	if err := util.FlashFile(context.Background(), session, path, opts); err != nil {
		t.Fatalf("FlashFile failed: %v", err)
	}
	got, err := fake.ReadMemory(flashBase, len(data))
	if err != nil {
		t.Fatal(err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("flash[0x%x] = 0x%02x, want 0x%02x", i, got[i], data[i])
		}
	}
}

func TestFlashFileDryRunTouchesNothing(t *testing.T) {
	fake, session := attach(t, "STM32F303CB")
	path := writeImage(t, firmware(0x400))
	before := fake.Transactions()

	opts := util.FlashFileOptions{
		Format:   flashing.FormatBin,
		BinBase:  flashBase,
		Verify:   true,
		Download: flashing.DownloadOptions{DryRun: true},
	}
	if err := util.FlashFile(context.Background(), session, path, opts); err != nil {
		t.Fatalf("FlashFile failed: %v", err)
	}
	if n := fake.Transactions() - before; n != 0 {
		t.Errorf("dry run made %d probe transactions", n)
	}
}

func TestFlashFileDetectsVerifyMismatch(t *testing.T) {
	_, session := attach(t, "STM32F303CB")
	path := writeImage(t, firmware(0x200))
	target := corruptingTarget{Session: session, addr: flashBase + 0x10}

	opts := util.FlashFileOptions{Format: flashing.FormatBin, BinBase: flashBase, Verify: true}
	err := util.FlashFile(context.Background(), target, path, opts)
	var mismatch *util.ReadbackMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("FlashFile = %v, want ReadbackMismatchError", err)
	}
	if mismatch.Address != flashBase+0x10 || mismatch.Stage != "program" {
		t.Errorf("mismatch = %+v", mismatch)
	}
}

func TestFlashFileMissingImage(t *testing.T) {
	_, session := attach(t, "STM32F303CB")
	path := filepath.Join(t.TempDir(), "missing.bin")
	opts := util.FlashFileOptions{Format: flashing.FormatBin, BinBase: flashBase}
	if err := util.FlashFile(context.Background(), session, path, opts); err == nil {
		t.Error("FlashFile succeeded without an image")
	}
}

func TestFlashFileRejectsImageOutsideFlash(t *testing.T) {
	_, session := attach(t, "STM32F303CB")
	path := writeImage(t, firmware(0x10))
	opts := util.FlashFileOptions{Format: flashing.FormatBin, BinBase: 0x10000000}
	err := util.FlashFile(context.Background(), session, path, opts)
	var oob *flashing.OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Errorf("FlashFile = %v, want OutOfBoundsError", err)
	}
}
