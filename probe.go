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
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/karalabe/hid"
)

type WireProtocol uint8

const (
	ProtocolSwd WireProtocol = iota
	ProtocolJtag
)

func (p WireProtocol) String() string {
	switch p {
	case ProtocolSwd:
		return "swd"
	case ProtocolJtag:
		return "jtag"
	default:
		return fmt.Sprintf("WireProtocol(%d)", uint8(p))
	}
}

func ParseWireProtocol(s string) (WireProtocol, error) {
	switch strings.ToLower(s) {
	case "swd":
		return ProtocolSwd, nil
	case "jtag":
		return ProtocolJtag, nil
	}
	return 0, fmt.Errorf("unknown wire protocol %q", s)
}

type ProbeType uint8

const (
	ProbeTypeUsb ProbeType = iota
	ProbeTypeHid
	ProbeTypeFake
)

func (t ProbeType) String() string {
	switch t {
	case ProbeTypeUsb:
		return "usb"
	case ProbeTypeHid:
		return "hid"
	case ProbeTypeFake:
		return "fake"
	default:
		return fmt.Sprintf("ProbeType(%d)", uint8(t))
	}
}

type ProbeInfo struct {
	Identifier   string
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Type         ProbeType
	// Platform path, set for HID probes only.
	path string
}

func (p ProbeInfo) String() string {
	s := fmt.Sprintf("%s (VID: %04x, PID: %04x", p.Identifier, p.VendorID, p.ProductID)
	if p.SerialNumber != "" {
		s += ", Serial: " + p.SerialNumber
	}
	return s + ", " + p.Type.String() + ")"
}

// Selects a probe by USB identity. An empty SerialNumber matches any probe.
type DebugProbeSelector struct {
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
}

// Parses "VID:PID" or "VID:PID:Serial", with VID and PID in hex.
func ParseDebugProbeSelector(s string) (DebugProbeSelector, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return DebugProbeSelector{}, fmt.Errorf("invalid probe selector %q, expected VID:PID[:Serial]", s)
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return DebugProbeSelector{}, fmt.Errorf("invalid vendor id in %q: %v", s, err)
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return DebugProbeSelector{}, fmt.Errorf("invalid product id in %q: %v", s, err)
	}
	sel := DebugProbeSelector{VendorID: uint16(vid), ProductID: uint16(pid)}
	if len(parts) == 3 {
		sel.SerialNumber = parts[2]
	}
	return sel, nil
}

func (s DebugProbeSelector) Matches(info ProbeInfo) bool {
	if s.VendorID != info.VendorID || s.ProductID != info.ProductID {
		return false
	}
	return s.SerialNumber == "" || s.SerialNumber == info.SerialNumber
}

func (s DebugProbeSelector) String() string {
	if s.SerialNumber == "" {
		return fmt.Sprintf("%04x:%04x", s.VendorID, s.ProductID)
	}
	return fmt.Sprintf("%04x:%04x:%s", s.VendorID, s.ProductID, s.SerialNumber)
}

var knownProbes = []struct {
	vid, pid uint16
	typ      ProbeType
	name     string
}{
	{0x1209, 0x6f66, ProbeTypeUsb, "goflash-link"},
	{0x1209, 0x6f67, ProbeTypeHid, "goflash-link (HID)"},
	{0xc251, 0xf002, ProbeTypeHid, "Keil ULINKplus"},
}

func lookupKnownProbe(vid, pid uint16, typ ProbeType) (string, bool) {
	for _, k := range knownProbes {
		if k.vid == vid && k.pid == pid && k.typ == typ {
			return k.name, true
		}
	}
	return "", false
}

// Lists every attached probe found in the known-probe table.
func ListAll() []ProbeInfo {
	probes := listUsbProbes()
	if hid.Supported() {
		probes = append(probes, listHidProbes()...)
	}
	return probes
}

func listUsbProbes() []ProbeInfo {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := lookupKnownProbe(uint16(desc.Vendor), uint16(desc.Product), ProbeTypeUsb)
		return ok
	})
	if err != nil {
		glog.Warningf("USB enumeration incomplete: %v", err)
	}
	var probes []ProbeInfo
	for _, dev := range devs {
		vid, pid := uint16(dev.Desc.Vendor), uint16(dev.Desc.Product)
		name, _ := lookupKnownProbe(vid, pid, ProbeTypeUsb)
		sn, err := dev.SerialNumber()
		if err != nil {
			glog.V(1).Infof("Reading serial number of %04x:%04x: %v", vid, pid, err)
		}
		probes = append(probes, ProbeInfo{
			Identifier:   name,
			VendorID:     vid,
			ProductID:    pid,
			SerialNumber: sn,
			Type:         ProbeTypeUsb,
		})
		dev.Close()
	}
	return probes
}

func listHidProbes() []ProbeInfo {
	var probes []ProbeInfo
	for _, info := range hid.Enumerate(0, 0) {
		name, ok := lookupKnownProbe(info.VendorID, info.ProductID, ProbeTypeHid)
		if !ok {
			continue
		}
		probes = append(probes, ProbeInfo{
			Identifier:   name,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			SerialNumber: info.Serial,
			Type:         ProbeTypeHid,
			path:         info.Path,
		})
	}
	return probes
}

// Operations the Probe delegates to the transport-specific driver.
type probeDriver interface {
	SelectProtocol(p WireProtocol) error
	// Returns the speed the probe actually configured.
	SetSpeed(khz uint32) (uint32, error)
	TargetReset(assert bool) error
	Core(index int) (Core, error)
	Close() error
}

// Implemented by drivers that bring their own flash algorithm
// implementation instead of running the target's blob.
type algorithmProvider interface {
	flashAlgorithm(raw *RawFlashAlgorithm, region Region) (FlashAlgorithm, error)
}

// Implemented by drivers that need to know the target being attached.
type targetBinder interface {
	bindTarget(t *Target) error
}

type Probe struct {
	info     ProbeInfo
	drv      probeDriver
	protocol WireProtocol
	selected bool
	speed    uint32
}

func newProbe(info ProbeInfo, drv probeDriver) *Probe {
	return &Probe{info: info, drv: drv}
}

// Opens the first attached probe matching sel.
func Open(sel DebugProbeSelector) (*Probe, error) {
	for _, info := range ListAll() {
		if sel.Matches(info) {
			return OpenInfo(info)
		}
	}
	return nil, &ProbeOpenError{Selector: sel.String(), Err: ErrNoProbeFound}
}

func OpenInfo(info ProbeInfo) (*Probe, error) {
	glog.V(1).Infof("Opening probe %v", info)
	switch info.Type {
	case ProbeTypeUsb:
		dev, err := OpenUsbDevice(info.VendorID, info.ProductID, info.SerialNumber)
		if err != nil {
			return nil, &ProbeOpenError{Selector: info.String(), Err: err}
		}
		return NewProbeFromDevice(info, dev), nil
	case ProbeTypeHid:
		dev, err := openHidDevice(info)
		if err != nil {
			return nil, &ProbeOpenError{Selector: info.String(), Err: err}
		}
		return NewProbeFromDevice(info, dev), nil
	}
	return nil, &ProbeOpenError{Selector: info.String(), Err: fmt.Errorf("unsupported probe type %v", info.Type)}
}

func (p *Probe) Info() ProbeInfo {
	return p.info
}

func (p *Probe) SelectProtocol(proto WireProtocol) error {
	if err := p.drv.SelectProtocol(proto); err != nil {
		return &ProtocolSelectError{Protocol: proto, Err: err}
	}
	p.protocol = proto
	p.selected = true
	return nil
}

func (p *Probe) Protocol() WireProtocol {
	return p.protocol
}

// Sets the wire speed and returns what the probe actually configured,
// which may be lower than requested.
func (p *Probe) SetSpeed(khz uint32) (uint32, error) {
	actual, err := p.drv.SetSpeed(khz)
	if err != nil {
		return 0, fmt.Errorf("set speed to %d kHz: %w", khz, err)
	}
	p.speed = actual
	return actual, nil
}

// Last speed configured, or 0 if SetSpeed was never called.
func (p *Probe) SpeedKHz() uint32 {
	return p.speed
}

// Picks the target to attach to. The zero value autodetects.
type TargetSelector struct {
	Name   string
	Target *Target
}

func TargetNamed(name string) TargetSelector {
	return TargetSelector{Name: name}
}

func ExplicitTarget(t *Target) TargetSelector {
	return TargetSelector{Target: t}
}

func (s TargetSelector) String() string {
	switch {
	case s.Target != nil:
		return s.Target.Name
	case s.Name != "":
		return s.Name
	}
	return "auto"
}

func (p *Probe) Attach(ctx context.Context, sel TargetSelector) (*Session, error) {
	return p.attach(ctx, sel, false)
}

// Like Attach, but holds the target in reset while the connection is
// established.
func (p *Probe) AttachUnderReset(ctx context.Context, sel TargetSelector) (*Session, error) {
	return p.attach(ctx, sel, true)
}

func (p *Probe) attach(ctx context.Context, sel TargetSelector, underReset bool) (*Session, error) {
	fail := func(err error) (*Session, error) {
		return nil, &AttachError{Target: sel.String(), UnderReset: underReset, Err: err}
	}
	if !p.selected {
		if err := p.SelectProtocol(ProtocolSwd); err != nil {
			return fail(err)
		}
	}
	if underReset {
		if err := p.drv.TargetReset(true); err != nil {
			return fail(fmt.Errorf("assert reset: %w", err))
		}
	}
	t, err := p.resolveTarget(ctx, sel)
	if err != nil {
		return fail(err)
	}
	if b, ok := p.drv.(targetBinder); ok {
		if err := b.bindTarget(t); err != nil {
			return fail(err)
		}
	}
	if underReset {
		if err := p.drv.TargetReset(false); err != nil {
			return fail(fmt.Errorf("deassert reset: %w", err))
		}
	}
	glog.Infof("Attached to %s via %v", t.Name, p.info)
	return newSession(p, t), nil
}

// Address of the device ID word read during autodetection.
const chipIDAddress = 0xe0042000

func (p *Probe) resolveTarget(ctx context.Context, sel TargetSelector) (*Target, error) {
	if sel.Target != nil {
		return sel.Target, nil
	}
	if sel.Name != "" {
		return TargetByName(sel.Name)
	}
	core, err := p.drv.Core(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChipAutodetectFailed, err)
	}
	var id [4]byte
	if err := core.Read8(ctx, chipIDAddress, id[:]); err != nil {
		return nil, fmt.Errorf("%w: reading chip id: %v", ErrChipAutodetectFailed, err)
	}
	t, ok := targetByChipID(uint32(id[0]) | uint32(id[1])<<8 | uint32(id[2])<<16 | uint32(id[3])<<24)
	if !ok {
		return nil, ErrChipAutodetectFailed
	}
	glog.V(1).Infof("Autodetected chip %s", t.Name)
	return t, nil
}

func (p *Probe) Close() error {
	return p.drv.Close()
}
