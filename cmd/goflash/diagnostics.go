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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/goflash"
	"github.com/google/goflash/flashing"

	"github.com/fatih/color"
	"github.com/golang/glog"
)

// What we know about the session when something goes wrong.
type Metadata struct {
	Release  string
	Chip     string
	Probe    string
	SpeedKHz uint32
	Target   *goflash.Target
}

func (m *Metadata) String() string {
	parts := []string{"goflash " + m.Release}
	if m.Chip != "" {
		parts = append(parts, "chip "+m.Chip)
	}
	if m.Probe != "" {
		parts = append(parts, "probe "+m.Probe)
	}
	if m.SpeedKHz != 0 {
		parts = append(parts, fmt.Sprintf("%d kHz", m.SpeedKHz))
	}
	return strings.Join(parts, ", ")
}

type metadataKey struct{}

func withMetadata(ctx context.Context, m *Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, m)
}

func metadataFrom(ctx context.Context) *Metadata {
	if m, ok := ctx.Value(metadataKey{}).(*Metadata); ok {
		return m
	}
	return &Metadata{Release: version}
}

func renderError(w io.Writer, err error, meta *Metadata) {
	glog.V(1).Infof("Failed with %s", meta)
	color.New(color.FgRed, color.Bold).Fprint(w, "       Error ")
	fmt.Fprintln(w, err)
	hint := color.New(color.FgCyan, color.Bold)
	for _, h := range hints(err, meta) {
		hint.Fprint(w, "        hint ")
		fmt.Fprintln(w, h)
	}
}

func hints(err error, meta *Metadata) []string {
	var (
		attach    *goflash.AttachError
		ambiguous *goflash.AmbiguousProbeError
		oob       *flashing.OutOfBoundsError
	)
	switch {
	case errors.Is(err, goflash.ErrChipAutodetectFailed):
		return []string{"The chip could not be identified. Specify it with --chip; goflash list-chips shows the known chips."}
	case errors.Is(err, goflash.ErrChipNotFound):
		return []string{"Run goflash list-chips for the known chips, or load a description with --chip-description-path."}
	case errors.As(err, &ambiguous):
		return []string{"Select a probe with --probe VID:PID[:serial], or pass --interactive to choose one."}
	case errors.Is(err, goflash.ErrNoProbeFound):
		return []string{"Check that the probe is plugged in; goflash list-probes shows what is attached."}
	case errors.As(err, &attach) && !attach.UnderReset:
		return []string{"The target may be sleeping or running with its debug pins disabled. Try --connect-under-reset."}
	case errors.As(err, &oob):
		if meta.Target == nil {
			return nil
		}
		h := []string{fmt.Sprintf("The image does not fit the flash of %s, which has:", meta.Target.Name)}
		for _, r := range meta.Target.NvmRegions() {
			h = append(h, fmt.Sprintf("  %s at %v", r.Name, r.Range))
		}
		return h
	}
	return nil
}
