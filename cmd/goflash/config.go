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
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"
	"github.com/spf13/pflag"
)

const manifestName = "goflash.toml"

// Per-project defaults read from goflash.toml. Command line flags win.
type Manifest struct {
	Chip                string `toml:"chip"`
	Protocol            string `toml:"protocol"`
	Speed               uint32 `toml:"speed"`
	Probe               string `toml:"probe"`
	ConnectUnderReset   bool   `toml:"connect_under_reset"`
	RestoreUnwritten    bool   `toml:"restore_unwritten"`
	ChipDescriptionPath string `toml:"chip_description_path"`
}

// A missing manifest yields the zero Manifest.
func loadManifest(dir string) (*Manifest, error) {
	var m Manifest
	path := filepath.Join(dir, manifestName)
	md, err := toml.DecodeFile(path, &m)
	if errors.Is(err, fs.ErrNotExist) {
		return &m, nil
	}
	if err != nil {
		return nil, err
	}
	for _, key := range md.Undecoded() {
		glog.Warningf("%s: unknown key %q", path, key.String())
	}
	if m.ChipDescriptionPath != "" && !filepath.IsAbs(m.ChipDescriptionPath) {
		m.ChipDescriptionPath = filepath.Join(dir, m.ChipDescriptionPath)
	}
	return &m, nil
}

// Fills every option the user did not pass on the command line from m.
func (o *connectOptions) merge(flags *pflag.FlagSet, m *Manifest) {
	if !flags.Changed("chip") && m.Chip != "" {
		o.chip = m.Chip
	}
	if !flags.Changed("protocol") && m.Protocol != "" {
		o.protocol = m.Protocol
	}
	if !flags.Changed("speed") && m.Speed != 0 {
		o.speed = m.Speed
	}
	if !flags.Changed("probe") && m.Probe != "" {
		o.probe = m.Probe
	}
	if !flags.Changed("connect-under-reset") && m.ConnectUnderReset {
		o.connectUnderReset = true
	}
	if !flags.Changed("chip-description-path") && m.ChipDescriptionPath != "" {
		o.chipDescriptionPath = m.ChipDescriptionPath
	}
}
