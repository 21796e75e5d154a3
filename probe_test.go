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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/goflash"
	"github.com/google/goflash/mocks"

	"github.com/golang/mock/gomock"
)

func TestParseDebugProbeSelector(t *testing.T) {
	sel, err := goflash.ParseDebugProbeSelector("1209:6f66:ABC123")
	if err != nil {
		t.Fatalf("ParseDebugProbeSelector failed: %v", err)
	}
	want := goflash.DebugProbeSelector{VendorID: 0x1209, ProductID: 0x6f66, SerialNumber: "ABC123"}
	if sel != want {
		t.Errorf("Got %+v, want %+v", sel, want)
	}
	if !sel.Matches(goflash.ProbeInfo{VendorID: 0x1209, ProductID: 0x6f66, SerialNumber: "ABC123"}) {
		t.Errorf("Selector does not match its own probe")
	}
	if sel.Matches(goflash.ProbeInfo{VendorID: 0x1209, ProductID: 0x6f66, SerialNumber: "other"}) {
		t.Errorf("Selector matches a probe with another serial")
	}
	for _, bad := range []string{"1209", "zz:6f66", "1209:10000"} {
		if _, err := goflash.ParseDebugProbeSelector(bad); err == nil {
			t.Errorf("ParseDebugProbeSelector(%q) did not fail", bad)
		}
	}
}

func TestProbeSetSpeedReportsActual(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dev := mocks.NewMockUsbDeviceInterface(mockCtrl)
	gomock.InOrder(
		dev.EXPECT().ControlOut(goflash.ReqSetSpeed, uint16(0), uint32(24000)).Return(nil),
		dev.EXPECT().ControlIn(goflash.ReqSetSpeed, uint16(0), gomock.Any()).
			SetArg(2, uint32(12000)).
			Return(nil),
	)
	p := goflash.NewProbeFromDevice(goflash.ProbeInfo{Identifier: "test"}, dev)
	actual, err := p.SetSpeed(24000)
	if err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}
	if actual != 12000 || p.SpeedKHz() != 12000 {
		t.Errorf("SetSpeed = %d (SpeedKHz %d), want 12000", actual, p.SpeedKHz())
	}
}

func TestProbeSelectProtocolFailure(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dev := mocks.NewMockUsbDeviceInterface(mockCtrl)
	dev.EXPECT().ControlOut(goflash.ReqSelectProtocol, uint16(goflash.ProtocolJtag), gomock.Any()).
		Return(errors.New("stall"))
	p := goflash.NewProbeFromDevice(goflash.ProbeInfo{Identifier: "test"}, dev)
	err := p.SelectProtocol(goflash.ProtocolJtag)
	var perr *goflash.ProtocolSelectError
	if !errors.As(err, &perr) || perr.Protocol != goflash.ProtocolJtag {
		t.Errorf("SelectProtocol returned %v, want ProtocolSelectError", err)
	}
}

func TestUsbCoreWaitForHaltPolls(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	ctx := context.Background()
	dev := mocks.NewMockUsbDeviceInterface(mockCtrl)
	gomock.InOrder(
		dev.EXPECT().ControlOut(goflash.ReqSelectProtocol, uint16(goflash.ProtocolSwd), gomock.Any()).
			Return(nil),
		dev.EXPECT().ControlIn(goflash.ReqCoreStatus, uint16(0), gomock.Any()).
			SetArg(2, uint8(0)).Return(nil),
		dev.EXPECT().ControlIn(goflash.ReqCoreStatus, uint16(0), gomock.Any()).
			SetArg(2, uint8(1)).Return(nil),
	)
	p := goflash.NewProbeFromDevice(goflash.ProbeInfo{Identifier: "test"}, dev)
	session, err := p.Attach(ctx, goflash.ExplicitTarget(&goflash.Target{Name: "any"}))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	core, err := session.Core(0)
	if err != nil {
		t.Fatalf("Core failed: %v", err)
	}
	if err := core.WaitForHalt(ctx, time.Second); err != nil {
		t.Errorf("WaitForHalt failed: %v", err)
	}
}

func TestAttachAutodetect(t *testing.T) {
	fake := goflash.NewFakeProbe()
	chip, err := goflash.TargetByName("STM32F303CB")
	if err != nil {
		t.Fatalf("TargetByName failed: %v", err)
	}
	fake.SetChip(chip)
	session, err := fake.Probe().Attach(context.Background(), goflash.TargetSelector{})
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer session.Close()
	if session.Target().Name != "STM32F303CB" {
		t.Errorf("Autodetected %s, want STM32F303CB", session.Target().Name)
	}
}

func TestAttachAutodetectFailure(t *testing.T) {
	fake := goflash.NewFakeProbe()
	_, err := fake.Probe().AttachUnderReset(context.Background(), goflash.TargetSelector{})
	var aerr *goflash.AttachError
	if !errors.As(err, &aerr) || !aerr.UnderReset {
		t.Fatalf("Attach returned %v, want AttachError under reset", err)
	}
	if !errors.Is(err, goflash.ErrChipAutodetectFailed) {
		t.Errorf("Attach error %v does not wrap ErrChipAutodetectFailed", err)
	}
}

func TestAttachUnknownChip(t *testing.T) {
	fake := goflash.NewFakeProbe()
	_, err := fake.Probe().Attach(context.Background(), goflash.TargetNamed("NoSuchChip42"))
	if !errors.Is(err, goflash.ErrChipNotFound) {
		t.Errorf("Attach returned %v, want ErrChipNotFound", err)
	}
}

func TestFakeProbeLimitsSpeed(t *testing.T) {
	p := goflash.NewFakeProbe().Probe()
	actual, err := p.SetSpeed(50000)
	if err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}
	if actual >= 50000 {
		t.Errorf("SetSpeed = %d, want a lower actual speed", actual)
	}
}

func TestSessionCoreReadsSimulatedMemory(t *testing.T) {
	ctx := context.Background()
	fake := goflash.NewFakeProbe()
	session, err := fake.Probe().Attach(ctx, goflash.TargetNamed("nRF52840_xxAA"))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	core, err := session.Core(0)
	if err != nil {
		t.Fatalf("Core failed: %v", err)
	}
	if _, err := session.Core(1); err == nil {
		t.Errorf("Core(1) on a single core target did not fail")
	}
	buf := make([]byte, 4)
	if err := core.Read8(ctx, 0x1000, buf); err != nil {
		t.Fatalf("Read8 failed: %v", err)
	}
	for _, b := range buf {
		if b != 0xff {
			t.Fatalf("Fresh flash reads % x, want erased bytes", buf)
		}
	}
	if err := core.Write8(ctx, 0x1000, buf); err == nil {
		t.Errorf("Write8 to flash without an algorithm did not fail")
	}
	if err := core.ResetAndHalt(ctx, 500*time.Millisecond); err != nil {
		t.Errorf("ResetAndHalt failed: %v", err)
	}
}

func TestUsbCoreResets(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	ctx := context.Background()
	dev := mocks.NewMockUsbDeviceInterface(mockCtrl)
	gomock.InOrder(
		dev.EXPECT().ControlOut(goflash.ReqSelectProtocol, uint16(goflash.ProtocolSwd), gomock.Any()).
			Return(nil),
		// Plain reset.
		dev.EXPECT().ControlOut(goflash.ReqCoreCtrl, uint16(3), gomock.Any()).Return(nil),
		// Reset and halt, then poll until halted.
		dev.EXPECT().ControlOut(goflash.ReqCoreCtrl, uint16(4), gomock.Any()).Return(nil),
		dev.EXPECT().ControlIn(goflash.ReqCoreStatus, uint16(0), gomock.Any()).
			SetArg(2, uint8(1)).Return(nil),
	)
	p := goflash.NewProbeFromDevice(goflash.ProbeInfo{Identifier: "test"}, dev)
	session, err := p.Attach(ctx, goflash.ExplicitTarget(&goflash.Target{Name: "any"}))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	core, err := session.Core(0)
	if err != nil {
		t.Fatalf("Core failed: %v", err)
	}
	if err := core.Reset(ctx); err != nil {
		t.Errorf("Reset failed: %v", err)
	}
	if err := core.ResetAndHalt(ctx, time.Second); err != nil {
		t.Errorf("ResetAndHalt failed: %v", err)
	}
}

func TestUsbAlgorithmLoadVerifiesReadback(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	ctx := context.Background()
	flash := goflash.Region{Name: "FLASH", Kind: goflash.RegionNvm, Range: goflash.AddressRange{Start: 0x08000000, End: 0x08010000}}
	target := &goflash.Target{
		Name: "blob",
		MemoryMap: []goflash.Region{
			flash,
			{Name: "RAM", Kind: goflash.RegionRam, Range: goflash.AddressRange{Start: 0x20000000, End: 0x20010000}},
		},
		FlashAlgorithms: []goflash.RawFlashAlgorithm{{
			Name:         "blob",
			Default:      true,
			Instructions: []byte{0x00, 0xbe, 0x00, 0xbe},
			LoadAddress:  0x20000000,
			FlashProperties: goflash.FlashProperties{
				AddressRange:       flash.Range,
				PageSize:           0x100,
				ErasedByteValue:    0xff,
				ProgramPageTimeout: time.Second,
				EraseSectorTimeout: time.Second,
				Sectors:            []goflash.SectorDescription{{Size: 0x400}},
			},
		}},
	}
	dev := mocks.NewMockUsbDeviceInterface(mockCtrl)
	gomock.InOrder(
		dev.EXPECT().ControlOut(goflash.ReqSelectProtocol, uint16(goflash.ProtocolSwd), gomock.Any()).
			Return(nil),
		// Halt before loading.
		dev.EXPECT().ControlOut(goflash.ReqCoreCtrl, uint16(1), gomock.Any()).Return(nil),
		dev.EXPECT().ControlOut(goflash.ReqMemWriteCtrl, uint16(0),
			[]byte{4, 0, 0, 0, 0x00, 0x00, 0x00, 0x20, 0x00, 0xbe, 0x00, 0xbe}).
			Return(nil),
		// Readback with a corrupted byte.
		dev.EXPECT().ControlOut(goflash.ReqMemReadCtrl, uint16(0), &goflash.AddressBlock{4, 0x20000000}).
			Return(nil),
		dev.EXPECT().ControlIn(goflash.ReqMemReadCtrl, uint16(0), gomock.Any()).
			SetArg(2, []byte{0x00, 0xbe, 0xff, 0xbe}).
			Return(nil),
	)
	p := goflash.NewProbeFromDevice(goflash.ProbeInfo{Identifier: "test"}, dev)
	session, err := p.Attach(ctx, goflash.ExplicitTarget(target))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	alg, err := session.FlashAlgorithm(ctx, flash)
	if err != nil {
		t.Fatalf("FlashAlgorithm failed: %v", err)
	}
	if err := alg.Init(ctx, goflash.OpErase); err == nil {
		t.Errorf("Init succeeded with a corrupted algorithm load")
	}
}
