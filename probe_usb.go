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
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
)

// Commands of ReqCoreCtrl, sent in the low byte of the request value.
// The high byte carries the core index.
const (
	coreCmdHalt      = 0x01
	coreCmdRun       = 0x02
	coreCmdReset     = 0x03
	coreCmdResetHalt = 0x04
)

const (
	coreStatusHalted = 0x01

	haltPollInterval = time.Millisecond
)

// Drives a probe speaking the vendor protocol over any UsbDeviceInterface
// (native USB or HID framed).
type usbProbe struct {
	dev UsbDeviceInterface
	mem *Memory
}

// Wraps an opened transport into a Probe.
func NewProbeFromDevice(info ProbeInfo, dev UsbDeviceInterface) *Probe {
	return newProbe(info, &usbProbe{dev: dev, mem: NewMemory(dev)})
}

func (p *usbProbe) SelectProtocol(proto WireProtocol) error {
	return p.dev.ControlOut(ReqSelectProtocol, uint16(proto), []byte{})
}

func (p *usbProbe) SetSpeed(khz uint32) (uint32, error) {
	if err := p.dev.ControlOut(ReqSetSpeed, 0, khz); err != nil {
		return 0, err
	}
	var actual uint32
	if err := p.dev.ControlIn(ReqSetSpeed, 0, &actual); err != nil {
		return 0, err
	}
	return actual, nil
}

func (p *usbProbe) TargetReset(assert bool) error {
	var val uint16
	if assert {
		val = 1
	}
	return p.dev.ControlOut(ReqTargetReset, val, []byte{})
}

func (p *usbProbe) Core(index int) (Core, error) {
	if index < 0 || index > 0xff {
		return nil, fmt.Errorf("invalid core index %d", index)
	}
	return &usbCore{probe: p, index: uint16(index)}, nil
}

func (p *usbProbe) Close() error {
	return p.dev.Close()
}

type usbCore struct {
	probe *usbProbe
	index uint16
}

func (c *usbCore) Read8(ctx context.Context, addr uint64, data []byte) error {
	return c.probe.mem.Read(addr, data)
}

func (c *usbCore) Write8(ctx context.Context, addr uint64, data []byte) error {
	return c.probe.mem.Write(addr, data, false)
}

func (c *usbCore) writeVerified(ctx context.Context, addr uint64, data []byte) error {
	return c.probe.mem.Write(addr, data, true)
}

func (c *usbCore) ReadCoreReg(ctx context.Context, reg CoreRegister) (uint32, error) {
	var v uint32
	if err := c.probe.dev.ControlIn(ReqCoreReg, c.index<<8|uint16(reg), &v); err != nil {
		return 0, fmt.Errorf("read core register %d: %w", reg, err)
	}
	return v, nil
}

func (c *usbCore) WriteCoreReg(ctx context.Context, reg CoreRegister, value uint32) error {
	if err := c.probe.dev.ControlOut(ReqCoreReg, c.index<<8|uint16(reg), value); err != nil {
		return fmt.Errorf("write core register %d: %w", reg, err)
	}
	return nil
}

func (c *usbCore) command(cmd uint16) error {
	return c.probe.dev.ControlOut(ReqCoreCtrl, c.index<<8|cmd, []byte{})
}

func (c *usbCore) Halt(ctx context.Context) error {
	return c.command(coreCmdHalt)
}

func (c *usbCore) Run(ctx context.Context) error {
	return c.command(coreCmdRun)
}

func (c *usbCore) Reset(ctx context.Context) error {
	return c.command(coreCmdReset)
}

func (c *usbCore) ResetAndHalt(ctx context.Context, timeout time.Duration) error {
	if err := c.command(coreCmdResetHalt); err != nil {
		return err
	}
	return c.WaitForHalt(ctx, timeout)
}

func (c *usbCore) WaitForHalt(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var status uint8
		if err := c.probe.dev.ControlIn(ReqCoreStatus, c.index, &status); err != nil {
			return fmt.Errorf("read core status: %w", err)
		}
		if status&coreStatusHalted != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			glog.V(1).Infof("Core %d still running after %v", c.index, timeout)
			return fmt.Errorf("core %d did not halt within %v", c.index, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(haltPollInterval):
		}
	}
}
