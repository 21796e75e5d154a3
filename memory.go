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

// Target memory access through the probe.
package goflash

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"
)

const (
	// Transfers below this size use the control endpoint.
	ctrlTransferMax = 48
	// Largest single transfer the probe firmware accepts.
	maxTransferSize = 1024
)

type Memory struct {
	dev UsbDeviceInterface
}

type AddressBlock struct {
	Dlen uint32
	Addr uint32
}

func wireAddress(addr uint64, n int) (uint32, error) {
	if addr+uint64(n) > 1<<32 {
		return 0, fmt.Errorf("address %#x+%d exceeds the 32-bit probe address space", addr, n)
	}
	return uint32(addr), nil
}

// Reads len(data) bytes from memory address addr.
// Automatically decides to use control-transfer or bulk-endpoint transfer
// based on data length.
func (m *Memory) doRead(addr uint64, data []byte) error {
	var err error
	glog.V(1).Infof("[target-mem-read]: addr = %#x, dlen = %v", addr, len(data))

	for off := 0; off < len(data); off += maxTransferSize {
		end := off + maxTransferSize
		if end > len(data) {
			end = len(data)
		}
		if err = m.readChunk(addr+uint64(off), data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) readChunk(addr uint64, data []byte) error {
	var err error
	cmd := ReqMemReadBulk
	if len(data) < ctrlTransferMax {
		cmd = ReqMemReadCtrl
	}

	info := AddressBlock{}
	info.Dlen = uint32(len(data))
	if info.Addr, err = wireAddress(addr, len(data)); err != nil {
		return err
	}

	if err = m.dev.ControlOut(cmd, 0, &info); err != nil {
		return fmt.Errorf("ControlOut AddressBlock failed: %v", err)
	}

	switch cmd {
	case ReqMemReadBulk:
		var n int
		if n, err = m.dev.Read(data); err != nil {
			return fmt.Errorf("ReqMemReadBulk data failed: %v", err)
		}
		if n != len(data) {
			return fmt.Errorf("Failed to read entire buffer over bulk interface")
		}
	case ReqMemReadCtrl:
		if err = m.dev.ControlIn(ReqMemReadCtrl, 0, data); err != nil {
			return fmt.Errorf("ReqMemReadCtrl data failed: %v", err)
		}
	}

	return nil
}

// Read decodes little-endian target memory at addr into data.
func (m *Memory) Read(addr uint64, data interface{}) error {
	if b, ok := data.([]byte); ok {
		return m.doRead(addr, b)
	}
	if binary.Size(data) == -1 {
		return fmt.Errorf("Failed to get data size")
	}
	buf := make([]byte, binary.Size(data))
	if err := m.doRead(addr, buf); err != nil {
		return fmt.Errorf("m.doRead failed %v", err)
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, data); err != nil {
		return fmt.Errorf("binary.Read failed: %v", err)
	}
	return nil
}

// Writes data to memory address addr.
// Automatically decides to use control-transfer or bulk-endpoint transfer
// based on data length.
func (m *Memory) doWrite(addr uint64, data []byte, validate bool) error {
	glog.V(1).Infof("[target-mem-write]: addr = %#x, dlen = %v", addr, len(data))

	for off := 0; off < len(data); off += maxTransferSize {
		end := off + maxTransferSize
		if end > len(data) {
			end = len(data)
		}
		if err := m.writeChunk(addr+uint64(off), data[off:end]); err != nil {
			return err
		}
	}

	if validate {
		actual := make([]byte, len(data))
		if err := m.doRead(addr, actual); err != nil {
			return fmt.Errorf("Read for verify failed %v", err)
		}
		if !bytes.Equal(data, actual) {
			return fmt.Errorf("Write verification failed")
		}
	}
	return nil
}

func (m *Memory) writeChunk(addr uint64, data []byte) error {
	var err error
	var written int

	cmd := ReqMemWriteBulk
	if len(data) < ctrlTransferMax {
		cmd = ReqMemWriteCtrl
	}

	info := AddressBlock{}
	info.Dlen = uint32(len(data))
	if info.Addr, err = wireAddress(addr, len(data)); err != nil {
		return err
	}

	infoBuf := new(bytes.Buffer)
	if err = binary.Write(infoBuf, binary.LittleEndian, info); err != nil {
		return fmt.Errorf("binary.Write failed: %v", err)
	}

	if cmd == ReqMemWriteCtrl {
		infoBuf.Write(data)
	}

	if err = m.dev.ControlOut(cmd, 0, infoBuf.Bytes()); err != nil {
		return fmt.Errorf("ControlOut AddressBlock failed: %v", err)
	}

	if cmd == ReqMemWriteBulk {
		if written, err = m.dev.Write(data); err != nil {
			return fmt.Errorf("ReqMemWriteBulk data failed: %v", err)
		}
		if written != len(data) {
			return fmt.Errorf("Failed to write entire buffer over bulk interface")
		}
	}
	return nil
}

// Write encodes data little-endian and stores it at addr. With validate set
// the memory is read back and compared.
func (m *Memory) Write(addr uint64, data interface{}, validate bool) error {
	buf, err := encodeFrom(data)
	if err != nil {
		return err
	}
	if err = m.doWrite(addr, buf, validate); err != nil {
		return fmt.Errorf("m.doWrite failed %v", err)
	}
	return nil
}

func NewMemory(dev UsbDeviceInterface) *Memory {
	return &Memory{dev}
}
