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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/karalabe/hid"
)

const (
	hidReportSize  = 64
	hidReportMagic = 0x3f
	hidHeaderSize  = 10

	hidStatusOk = 0
)

// Message kinds carried in the HID frame header.
const (
	hidKindCtrlOut = 1
	hidKindCtrlIn  = 2
	hidKindBulkOut = 3
	hidKindBulkIn  = 4
)

// Carries the vendor protocol over HID reports for probes without bulk
// endpoints. Every message is framed as
//
//	"##" kind request val(BE16) len(BE32) payload...
//
// and split across 64 byte reports, each prefixed with 0x3f. For IN
// messages len is the number of bytes requested and no payload is sent.
// Replies use the same framing with the status in place of kind.
type hidDevice struct {
	rw io.ReadWriteCloser
}

func openHidDevice(info ProbeInfo) (*hidDevice, error) {
	for _, hi := range hid.Enumerate(info.VendorID, info.ProductID) {
		if info.path != "" && hi.Path != info.path {
			continue
		}
		if info.SerialNumber != "" && hi.Serial != info.SerialNumber {
			continue
		}
		dev, err := hi.Open()
		if err != nil {
			return nil, fmt.Errorf("opening HID device %s: %v", hi.Path, err)
		}
		return &hidDevice{rw: dev}, nil
	}
	return nil, fmt.Errorf("HID probe %04x:%04x not found", info.VendorID, info.ProductID)
}

func (d *hidDevice) send(kind uint8, request Request, val uint16, length int, payload []byte) error {
	msg := make([]byte, hidHeaderSize+len(payload))
	msg[0], msg[1] = '#', '#'
	msg[2] = kind
	msg[3] = uint8(request)
	binary.BigEndian.PutUint16(msg[4:], val)
	binary.BigEndian.PutUint32(msg[6:], uint32(length))
	copy(msg[hidHeaderSize:], payload)

	chunk := make([]byte, hidReportSize)
	chunk[0] = hidReportMagic
	for len(msg) > 0 {
		n := copy(chunk[1:], msg)
		for i := 1 + n; i < hidReportSize; i++ {
			chunk[i] = 0
		}
		msg = msg[n:]
		if _, err := d.rw.Write(chunk); err != nil {
			return fmt.Errorf("hid write failed: %v", err)
		}
	}
	return nil
}

func (d *hidDevice) readReport(chunk []byte) error {
	if _, err := io.ReadFull(d.rw, chunk); err != nil {
		return fmt.Errorf("hid read failed: %v", err)
	}
	if chunk[0] != hidReportMagic {
		return fmt.Errorf("unexpected report marker %#x", chunk[0])
	}
	return nil
}

// Reads one reply and returns its payload.
func (d *hidDevice) receive(request Request) ([]byte, error) {
	chunk := make([]byte, hidReportSize)
	if err := d.readReport(chunk); err != nil {
		return nil, err
	}
	if chunk[1] != '#' || chunk[2] != '#' {
		return nil, fmt.Errorf("malformed reply header")
	}
	status := chunk[3]
	length := int(binary.BigEndian.Uint32(chunk[7:]))
	if status != hidStatusOk {
		return nil, fmt.Errorf("probe rejected %v with status %#x", request, status)
	}
	reply := make([]byte, 0, length)
	reply = append(reply, chunk[1+hidHeaderSize:]...)
	for len(reply) < length {
		if err := d.readReport(chunk); err != nil {
			return nil, err
		}
		reply = append(reply, chunk[1:]...)
	}
	return reply[:length], nil
}

func (d *hidDevice) ControlOut(request Request, val uint16, data interface{}) error {
	buf, err := encodeFrom(data)
	if err != nil {
		return err
	}
	if err := d.send(hidKindCtrlOut, request, val, len(buf), buf); err != nil {
		return err
	}
	if _, err := d.receive(request); err != nil {
		return err
	}
	glog.V(2).Infof("[hid-ctrl OUT]: request = %v, val = %x, data =\n%s",
		request, val, hex.Dump(buf))
	return nil
}

func (d *hidDevice) ControlIn(request Request, val uint16, data interface{}) error {
	size := binary.Size(data)
	if b, ok := data.([]byte); ok {
		size = len(b)
	}
	if size == -1 {
		return fmt.Errorf("Failed to get data size")
	}
	if err := d.send(hidKindCtrlIn, request, val, size, nil); err != nil {
		return err
	}
	buf, err := d.receive(request)
	if err != nil {
		return err
	}
	if len(buf) != size {
		return fmt.Errorf("Failed to read entire buffer %v vs %v", len(buf), size)
	}
	glog.V(2).Infof("[hid-ctrl IN]: request = %v, val = %x, data =\n%s",
		request, val, hex.Dump(buf))
	return decodeInto(buf, data)
}

func (d *hidDevice) Write(p []byte) (int, error) {
	if err := d.send(hidKindBulkOut, 0, 0, len(p), p); err != nil {
		return 0, err
	}
	if _, err := d.receive(0); err != nil {
		return 0, err
	}
	glog.V(2).Infof("[hid-bulk OUT]: wrote %d bytes. data[:32]:\n%s", len(p), dumpHead(p))
	return len(p), nil
}

func (d *hidDevice) Read(p []byte) (int, error) {
	if err := d.send(hidKindBulkIn, 0, 0, len(p), nil); err != nil {
		return 0, err
	}
	buf, err := d.receive(0)
	if err != nil {
		return 0, err
	}
	n := copy(p, buf)
	glog.V(2).Infof("[hid-bulk IN]: read %d bytes. data[:32]:\n%s", n, dumpHead(p[:n]))
	return n, nil
}

func (d *hidDevice) Close() error {
	glog.V(1).Infof("Closing HID device")
	return d.rw.Close()
}
