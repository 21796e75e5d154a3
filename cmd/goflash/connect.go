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
	"context"
	"fmt"

	"github.com/google/goflash"

	"github.com/golang/glog"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

// How to reach the target. Shared by every command that attaches.
type connectOptions struct {
	chip                string
	chipDescriptionPath string
	probe               string
	interactive         bool
	protocol            string
	speed               uint32
	connectUnderReset   bool
	dryRun              bool
	workDir             string
}

func (o *connectOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.chip, "chip", "", "target chip name, detected automatically when omitted")
	f.StringVar(&o.chipDescriptionPath, "chip-description-path", "", "TOML file describing additional chips")
	f.StringVar(&o.probe, "probe", "", "probe to use, as VID:PID[:serial]")
	f.BoolVar(&o.interactive, "interactive", false, "choose a probe interactively when several are attached")
	f.StringVar(&o.protocol, "protocol", "", "wire protocol, swd or jtag")
	f.Uint32Var(&o.speed, "speed", 0, "probe speed in kHz")
	f.BoolVar(&o.connectUnderReset, "connect-under-reset", false, "hold the target in reset while attaching")
	f.BoolVar(&o.dryRun, "dry-run", false, "run against a simulated probe without touching hardware")
	f.StringVar(&o.workDir, "work-dir", ".", "directory holding "+manifestName)
}

// Reads the manifest, opens a probe and attaches to the target.
func (o *connectOptions) connect(cmd *cobra.Command) (*goflash.Session, error) {
	ctx := cmd.Context()
	meta := metadataFrom(ctx)
	m, err := loadManifest(o.workDir)
	if err != nil {
		return nil, err
	}
	o.merge(cmd.Flags(), m)
	meta.Chip = o.chip

	if o.chipDescriptionPath != "" {
		if err := goflash.AddTargetFromTOML(o.chipDescriptionPath); err != nil {
			return nil, err
		}
	}

	probe, err := o.openProbe()
	if err != nil {
		return nil, err
	}
	meta.Probe = probe.Info().String()

	if o.protocol != "" {
		proto, err := goflash.ParseWireProtocol(o.protocol)
		if err != nil {
			probe.Close()
			return nil, err
		}
		if err := probe.SelectProtocol(proto); err != nil {
			probe.Close()
			return nil, err
		}
	}
	if o.speed != 0 {
		actual, err := probe.SetSpeed(o.speed)
		if err != nil {
			probe.Close()
			return nil, err
		}
		if actual < o.speed {
			glog.Warningf("Unable to use specified speed of %d kHz, actual speed used is %d kHz", o.speed, actual)
		}
		meta.SpeedKHz = actual
	}

	sel := goflash.TargetSelector{}
	if o.chip != "" {
		sel = goflash.TargetNamed(o.chip)
	}
	session, err := o.attach(ctx, probe, sel)
	if err != nil {
		probe.Close()
		return nil, err
	}
	meta.Target = session.Target()
	meta.Chip = session.Target().Name
	glog.Infof("Attached to %s via %s", meta.Chip, meta.Probe)
	return session, nil
}

func (o *connectOptions) attach(ctx context.Context, probe *goflash.Probe, sel goflash.TargetSelector) (*goflash.Session, error) {
	if o.connectUnderReset {
		return probe.AttachUnderReset(ctx, sel)
	}
	return probe.Attach(ctx, sel)
}

func (o *connectOptions) openProbe() (*goflash.Probe, error) {
	if o.dryRun {
		if o.chip == "" {
			return nil, fmt.Errorf("--dry-run needs --chip")
		}
		return goflash.NewFakeProbe().Probe(), nil
	}
	if o.probe != "" {
		sel, err := goflash.ParseDebugProbeSelector(o.probe)
		if err != nil {
			return nil, err
		}
		return goflash.Open(sel)
	}
	probes := goflash.ListAll()
	switch {
	case len(probes) == 0:
		return nil, goflash.ErrNoProbeFound
	case len(probes) == 1:
		return goflash.OpenInfo(probes[0])
	case !o.interactive:
		return nil, &goflash.AmbiguousProbeError{Probes: probes}
	}
	prompt := promptui.Select{
		Label: "Select a probe",
		Items: probes,
	}
	i, _, err := prompt.Run()
	if err != nil {
		return nil, err
	}
	return goflash.OpenInfo(probes[i])
}
