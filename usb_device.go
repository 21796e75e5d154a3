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

// Low-level interface to USB debug probes speaking the vendor control
// protocol: control requests for small transfers and probe state, bulk
// endpoints for large memory transfers.
package goflash

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/google/gousb"
)

const (
	probeInEp  = 1
	probeOutEp = 2

	probeMjVersion = 1
)

//go:generate stringer -type Request
type Request uint8

const (
	ReqMemReadBulk    Request = 0x10
	ReqMemWriteBulk   Request = 0x11
	ReqMemReadCtrl    Request = 0x12
	ReqMemWriteCtrl   Request = 0x13
	ReqFwVersion      Request = 0x17
	ReqSelectProtocol Request = 0x30
	ReqSetSpeed       Request = 0x31
	ReqTargetReset    Request = 0x32
	ReqCoreReg        Request = 0x33
	ReqCoreCtrl       Request = 0x34
	ReqCoreStatus     Request = 0x35
)

func (r Request) String() string {
	switch r {
	case ReqMemReadBulk:
		return "ReqMemReadBulk"
	case ReqMemWriteBulk:
		return "ReqMemWriteBulk"
	case ReqMemReadCtrl:
		return "ReqMemReadCtrl"
	case ReqMemWriteCtrl:
		return "ReqMemWriteCtrl"
	case ReqFwVersion:
		return "ReqFwVersion"
	case ReqSelectProtocol:
		return "ReqSelectProtocol"
	case ReqSetSpeed:
		return "ReqSetSpeed"
	case ReqTargetReset:
		return "ReqTargetReset"
	case ReqCoreReg:
		return "ReqCoreReg"
	case ReqCoreCtrl:
		return "ReqCoreCtrl"
	case ReqCoreStatus:
		return "ReqCoreStatus"
	default:
		return fmt.Sprintf("Request(%#x)", uint8(r))
	}
}

const (
	rTypeControlIn  uint8 = gousb.ControlIn | gousb.ControlVendor | gousb.ControlInterface
	rTypeControlOut uint8 = gousb.ControlOut | gousb.ControlVendor | gousb.ControlInterface
)

//go:generate mockgen -destination=mocks/usb_device.go -package=mocks github.com/google/goflash UsbDeviceInterface
type UsbDeviceInterface interface {
	// Reads/Writes to bulk data endpoint.
	io.Reader
	io.Writer
	io.Closer
	// Sends a request over the control endpoint.
	ControlIn(request Request, val uint16, data interface{}) error
	ControlOut(request Request, val uint16, data interface{}) error
}

// Encapsulates probe USB resources.
type UsbDevice struct {
	ctx *gousb.Context
	// dev also implements the control endpoint.
	dev       *gousb.Device
	intf      *gousb.Interface
	intf_done func()
	// Bulk output/input data endpoints.
	ep_out *gousb.OutEndpoint
	ep_in  *gousb.InEndpoint
}

// Opens the probe with the given VID:PID. An empty serial matches any device.
func OpenUsbDevice(vid, pid uint16, serial string) (*UsbDevice, error) {
	d := &UsbDevice{}
	d.ctx = gousb.NewContext()

	devs, err := d.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == vid && uint16(desc.Product) == pid
	})
	for _, dev := range devs {
		if d.dev != nil {
			dev.Close()
			continue
		}
		if serial != "" {
			sn, serr := dev.SerialNumber()
			if serr != nil || sn != serial {
				dev.Close()
				continue
			}
		}
		d.dev = dev
	}
	if d.dev == nil {
		d.Close()
		if err != nil {
			return nil, fmt.Errorf("Opening probe %04x:%04x: %v", vid, pid, err)
		}
		return nil, fmt.Errorf("Probe %04x:%04x not found", vid, pid)
	}

	// The default interface is always #0 alt #0 in the currently active
	// config.
	d.intf, d.intf_done, err = d.dev.DefaultInterface()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("Claming default interface: %v", err)
	}

	d.ep_out, err = d.intf.OutEndpoint(probeOutEp)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("Opening output interface: %v", err)
	}

	d.ep_in, err = d.intf.InEndpoint(probeInEp)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("Opening input interface: %v", err)
	}

	ver := FwVersion{}
	if err = d.ReadFwVersion(&ver); err != nil {
		d.Close()
		return nil, fmt.Errorf("Failed reading FW version: %v", err)
	}

	if ver.Major != probeMjVersion {
		d.Close()
		return nil, fmt.Errorf("Unexpected FW version: %v", ver)
	}
	return d, nil
}

func (d *UsbDevice) Close() error {
	glog.V(1).Infof("Closing USB device")
	if d.intf_done != nil {
		d.intf_done()
		d.intf_done = nil
	}
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	if d.dev != nil {
		d.dev.Close()
		d.dev = nil
	}
	if d.ctx != nil {
		d.ctx.Close()
		d.ctx = nil
	}
	return nil
}

func dumpHead(p []byte) string {
	if len(p) > 32 {
		p = p[:32]
	}
	return hex.Dump(p)
}

func (d *UsbDevice) Read(p []byte) (n int, err error) {
	n, err = d.ep_in.Read(p)
	glog.V(2).Infof("[usb-bulk IN]: read %d bytes. data[:32]:\n%s", n, dumpHead(p[:n]))
	return n, err
}

func (d *UsbDevice) Write(buf []byte) (n int, err error) {
	n, err = d.ep_out.Write(buf)
	glog.V(2).Infof("[usb-bulk OUT]: wrote %d bytes. data[:32]:\n%s", n, dumpHead(buf))
	return n, err
}

func (d *UsbDevice) ControlIn(request Request, val uint16, data interface{}) error {
	if binary.Size(data) == -1 {
		return fmt.Errorf("Failed to get data size")
	}
	buf := make([]byte, binary.Size(data))
	n, err := d.dev.Control(rTypeControlIn, uint8(request), val, 0, buf)
	if err != nil {
		return fmt.Errorf("dev.Control failed %v", err)
	}
	if n != len(buf) {
		return fmt.Errorf("Failed to read entire buffer %v vs %v", n, len(buf))
	}
	if err := decodeInto(buf, data); err != nil {
		return err
	}
	glog.V(2).Infof("[usb-ctrl IN]: request = %v, val = %x, data =\n%s",
		request, val, hex.Dump(buf))
	return nil
}

func (d *UsbDevice) ControlOut(request Request, val uint16, data interface{}) error {
	buf, err := encodeFrom(data)
	if err != nil {
		return err
	}
	n, err := d.dev.Control(rTypeControlOut, uint8(request), val, 0, buf)
	if err != nil {
		return fmt.Errorf("dev.Control failed %v", err)
	}
	if n != len(buf) {
		return fmt.Errorf("Failed to write entire buffer %v vs %v", n, len(buf))
	}
	glog.V(2).Infof("[usb-ctrl OUT]: request = %v, val = %x, data =\n%s",
		request, val, hex.Dump(buf))
	return nil
}

// Byte slices are copied as-is, everything else is little-endian encoded.
func encodeFrom(data interface{}) ([]byte, error) {
	if b, ok := data.([]byte); ok {
		return b, nil
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("binary.Write failed: %v", err)
	}
	return buf.Bytes(), nil
}

func decodeInto(buf []byte, data interface{}) error {
	if b, ok := data.([]byte); ok {
		copy(b, buf)
		return nil
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, data); err != nil {
		return fmt.Errorf("binary.Read failed: %v", err)
	}
	return nil
}

type FwVersion struct {
	Major uint8
	Minor uint8
	Debug uint8
}

// Reads the probe firmware version.
func (d *UsbDevice) ReadFwVersion(ver *FwVersion) error {
	return d.ControlIn(ReqFwVersion, 0, ver)
}
