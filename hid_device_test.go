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
	"bytes"
	"encoding/binary"
	"testing"
)

// Records written reports and replays canned reply reports.
type scriptedHid struct {
	written bytes.Buffer
	replies bytes.Buffer
	closed  bool
}

func (s *scriptedHid) Read(p []byte) (int, error)  { return s.replies.Read(p) }
func (s *scriptedHid) Write(p []byte) (int, error) { return s.written.Write(p) }
func (s *scriptedHid) Close() error                { s.closed = true; return nil }

func (s *scriptedHid) reply(status uint8, payload []byte) {
	msg := make([]byte, hidHeaderSize+len(payload))
	msg[0], msg[1] = '#', '#'
	msg[2] = status
	binary.BigEndian.PutUint32(msg[6:], uint32(len(payload)))
	copy(msg[hidHeaderSize:], payload)
	for len(msg) > 0 {
		chunk := make([]byte, hidReportSize)
		chunk[0] = hidReportMagic
		n := copy(chunk[1:], msg)
		msg = msg[n:]
		s.replies.Write(chunk)
	}
}

func TestHidControlOutFraming(t *testing.T) {
	s := &scriptedHid{}
	s.reply(hidStatusOk, nil)
	d := &hidDevice{rw: s}

	if err := d.ControlOut(ReqSetSpeed, 0x0102, uint32(4000)); err != nil {
		t.Fatalf("ControlOut failed: %v", err)
	}
	out := s.written.Bytes()
	if len(out) != hidReportSize {
		t.Fatalf("Expected a single report, got %d bytes", len(out))
	}
	want := []byte{hidReportMagic, '#', '#', hidKindCtrlOut, byte(ReqSetSpeed), 0x01, 0x02, 0, 0, 0, 4, 0xa0, 0x0f, 0, 0}
	if !bytes.Equal(out[:len(want)], want) {
		t.Errorf("Unexpected frame % x", out[:len(want)])
	}
}

func TestHidLargeTransferSpansReports(t *testing.T) {
	s := &scriptedHid{}
	payload := make([]byte, 200)
	for i := range payload {
		payload[i] = byte(i)
	}
	s.reply(hidStatusOk, payload)
	d := &hidDevice{rw: s}

	buf := make([]byte, 200)
	n, err := d.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(payload) || !bytes.Equal(buf, payload) {
		t.Errorf("Unexpected payload (%d bytes)", n)
	}
	req := s.written.Bytes()
	if got := binary.BigEndian.Uint32(req[7:]); got != 200 {
		t.Errorf("Requested length = %d, want 200", got)
	}
}

func TestHidErrorStatus(t *testing.T) {
	s := &scriptedHid{}
	s.reply(0x05, nil)
	d := &hidDevice{rw: s}

	var v uint32
	if err := d.ControlIn(ReqCoreReg, 15, &v); err == nil {
		t.Errorf("ControlIn did not fail on error status")
	}
}
