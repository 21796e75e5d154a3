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

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/goflash"
	"github.com/google/goflash/flashing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	color.NoColor = true
}

func TestMissingManifestIsEmpty(t *testing.T) {
	m, err := loadManifest(t.TempDir())
	if err != nil {
		t.Fatalf("loadManifest failed: %v", err)
	}
	if *m != (Manifest{}) {
		t.Errorf("manifest = %+v, want zero", m)
	}
}

func TestFlagsOverrideManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := `
chip = "STM32F303CB"
protocol = "jtag"
speed = 1800
connect_under_reset = true
chip_description_path = "chips.toml"
`
	if err := os.WriteFile(filepath.Join(dir, manifestName), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := loadManifest(dir)
	if err != nil {
		t.Fatalf("loadManifest failed: %v", err)
	}

	var o connectOptions
	cmd := &cobra.Command{Use: "test"}
	o.register(cmd)
	if err := cmd.Flags().Parse([]string{"--speed", "4000", "--chip", "nRF52840_xxAA"}); err != nil {
		t.Fatal(err)
	}
	o.merge(cmd.Flags(), m)

	if o.chip != "nRF52840_xxAA" || o.speed != 4000 {
		t.Errorf("flags lost: chip %q speed %d", o.chip, o.speed)
	}
	if o.protocol != "jtag" || !o.connectUnderReset {
		t.Errorf("manifest ignored: protocol %q under reset %v", o.protocol, o.connectUnderReset)
	}
	if want := filepath.Join(dir, "chips.toml"); o.chipDescriptionPath != want {
		t.Errorf("chip description path = %q, want %q", o.chipDescriptionPath, want)
	}
}

func TestHints(t *testing.T) {
	target, err := goflash.TargetByName("STM32F303CB")
	if err != nil {
		t.Fatal(err)
	}
	meta := &Metadata{Release: "test", Target: target}
	for _, tc := range []struct {
		err  error
		want string
	}{
		{&goflash.AttachError{Err: goflash.ErrChipAutodetectFailed}, "--chip"},
		{&goflash.AttachError{Target: "STM32F303CB", Err: fmt.Errorf("no ack")}, "--connect-under-reset"},
		{&goflash.AmbiguousProbeError{}, "--probe"},
		{&goflash.ProbeOpenError{Selector: "1209:6f66", Err: goflash.ErrNoProbeFound}, "list-probes"},
		{fmt.Errorf("loading: %w", &flashing.OutOfBoundsError{Address: 0x10000000, Size: 4}), "FLASH at"},
	} {
		var buf bytes.Buffer
		renderError(&buf, tc.err, meta)
		if !strings.Contains(buf.String(), tc.want) {
			t.Errorf("renderError(%v) = %q, want hint mentioning %q", tc.err, buf.String(), tc.want)
		}
	}
}

func TestImageSelection(t *testing.T) {
	o := flashOptions{hex: "fw.hex"}
	path, format, err := o.image(nil)
	if err != nil || path != "fw.hex" || format != flashing.FormatHex {
		t.Errorf("image() = %q, %v, %v", path, format, err)
	}
	if _, _, err := o.image([]string{"other.elf"}); err == nil {
		t.Error("two images accepted")
	}
	o = flashOptions{}
	if _, _, err := o.image(nil); err == nil {
		t.Error("missing image accepted")
	}
	path, format, err = o.image([]string{"app.bin"})
	if err != nil || path != "app.bin" || format != flashing.FormatBin {
		t.Errorf("image(app.bin) = %q, %v, %v", path, format, err)
	}
}
