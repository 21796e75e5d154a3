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

package flashing

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/google/goflash"
)

// What Commit needs from an attached session.
type CommitTarget interface {
	Target() *goflash.Target
	Core(index int) (goflash.Core, error)
	FlashAlgorithm(ctx context.Context, region goflash.Region) (goflash.FlashAlgorithm, error)
}

type regionPlan struct {
	region goflash.Region
	props  goflash.FlashProperties
	layout *FlashLayout
}

// Erases and programs the added data. All flash regions that received data
// go through each phase together, in address order, under a single
// Initialized event. On failure the remaining work is abandoned and the
// target is left as it is.
func (l *FlashLoader) Commit(ctx context.Context, target CommitTarget, opts DownloadOptions) error {
	if l.committed {
		return ErrLoaderCommitted
	}
	l.committed = true

	plans, err := l.plan(target.Target(), opts.KeepUnwrittenBytes)
	if err != nil {
		return err
	}
	if opts.LayoutPath != "" {
		if err := writeLayoutFile(opts.LayoutPath, plans); err != nil {
			return err
		}
	}

	dry := opts.DryRun
	runs := make([]*regionCommit, len(plans))
	for i, p := range plans {
		runs[i] = &regionCommit{target: target, plan: p, opts: opts}
		glog.V(1).Infof("Committing %s: %d sectors, %d pages, %d fills (dry run: %v)",
			p.region.Name, len(p.layout.sectors), len(p.layout.pages), len(p.layout.fills), dry)
	}
	if opts.KeepUnwrittenBytes && !dry {
		for _, r := range runs {
			if err := r.readFillSources(ctx); err != nil {
				return err
			}
		}
	}
	if !dry {
		for _, r := range runs {
			alg, err := target.FlashAlgorithm(ctx, r.plan.region)
			if err != nil {
				return err
			}
			r.alg = alg
		}
	}

	progress := opts.Progress
	progress.emit(Initialized{Layout: mergeLayouts(plans)})

	if !opts.SkipErase {
		progress.emit(StartedErasing{})
		for _, r := range runs {
			if err := eraseRun(ctx, r.alg, progress, r.plan.layout.sectors); err != nil {
				progress.emit(FailedErasing{})
				return err
			}
		}
		progress.emit(FinishedErasing{})
	}
	if hasFills(plans) {
		if err := runPhase(ctx, progress, runs, fillEvents, (*FlashLayout).fillPages); err != nil {
			return err
		}
	}
	if err := runPhase(ctx, progress, runs, programEvents, (*FlashLayout).Pages); err != nil {
		return err
	}
	if !dry {
		for _, r := range runs {
			if err := r.alg.Uninit(ctx); err != nil {
				return fmt.Errorf("deinitializing flash algorithm: %w", err)
			}
		}
	}
	return nil
}

func (l *FlashLoader) plan(t *goflash.Target, keepUnwritten bool) ([]regionPlan, error) {
	var plans []regionPlan
	for _, region := range l.memoryMap {
		if region.Kind != goflash.RegionNvm {
			continue
		}
		data := l.dataIn(region.Range)
		if len(data) == 0 {
			continue
		}
		raw, err := t.AlgorithmFor(region)
		if err != nil {
			return nil, err
		}
		plans = append(plans, regionPlan{
			region: region,
			props:  raw.FlashProperties,
			layout: buildLayout(raw.FlashProperties, data, keepUnwritten),
		})
	}
	return plans, nil
}

// The layout observers see: the single region's own layout, or the
// concatenation of all of them.
func mergeLayouts(plans []regionPlan) *FlashLayout {
	if len(plans) == 1 {
		return plans[0].layout
	}
	merged := &FlashLayout{erased: 0xff}
	for i, p := range plans {
		if i == 0 {
			merged.erased = p.layout.erased
		}
		merged.sectors = append(merged.sectors, p.layout.sectors...)
		merged.pages = append(merged.pages, p.layout.pages...)
		merged.fills = append(merged.fills, p.layout.fills...)
	}
	return merged
}

func hasFills(plans []regionPlan) bool {
	for _, p := range plans {
		if len(p.layout.fills) > 0 {
			return true
		}
	}
	return false
}

func writeLayoutFile(path string, plans []regionPlan) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating layout visualization: %v", err)
	}
	layouts := make([]*FlashLayout, len(plans))
	for i, p := range plans {
		layouts[i] = p.layout
	}
	if err := writeSVG(f, layouts...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type regionCommit struct {
	target      CommitTarget
	plan        regionPlan
	opts        DownloadOptions
	alg         goflash.FlashAlgorithm
	programming bool
}

// Runs one programming pass over every region, publishing ev.
func runPhase(ctx context.Context, progress *FlashProgress, runs []*regionCommit, ev phaseEvents, pages func(*FlashLayout) []FlashPage) error {
	progress.emit(ev.started)
	for _, r := range runs {
		if err := r.programPages(ctx, pages(r.plan.layout), ev); err != nil {
			progress.emit(ev.failed)
			return err
		}
	}
	progress.emit(ev.finished)
	return nil
}

// Reads the current contents of every sector holding bytes the image does
// not write. Runs before anything is erased.
func (c *regionCommit) readFillSources(ctx context.Context) error {
	sectors := c.plan.layout.readbackSectors()
	if len(sectors) == 0 {
		return nil
	}
	core, err := c.target.Core(0)
	if err != nil {
		return err
	}
	for _, s := range sectors {
		buf := make([]byte, s.Size)
		if err := core.Read8(ctx, s.Address, buf); err != nil {
			return &FillReadError{Address: s.Address, Size: s.Size, Err: err}
		}
		c.plan.layout.restore(s, buf)
	}
	return nil
}

// A whole erase phase over one algorithm.
func eraseSectors(ctx context.Context, alg goflash.FlashAlgorithm, progress *FlashProgress, sectors []FlashSector) error {
	progress.emit(StartedErasing{})
	if err := eraseRun(ctx, alg, progress, sectors); err != nil {
		progress.emit(FailedErasing{})
		return err
	}
	progress.emit(FinishedErasing{})
	return nil
}

// Erases sectors in order. A nil alg only reports them.
func eraseRun(ctx context.Context, alg goflash.FlashAlgorithm, progress *FlashProgress, sectors []FlashSector) error {
	if alg != nil && len(sectors) > 0 {
		if err := alg.Init(ctx, goflash.OpErase); err != nil {
			return &EraseError{Address: sectors[0].Address, Err: err}
		}
	}
	for _, s := range sectors {
		start := time.Now()
		if alg != nil {
			if err := alg.EraseSector(ctx, s.Address); err != nil {
				return &EraseError{Address: s.Address, Err: err}
			}
		}
		progress.emit(SectorErased{Address: s.Address, Size: s.Size, Time: time.Since(start)})
	}
	return nil
}

type phaseEvents struct {
	phase    string
	started  ProgressEvent
	done     func(addr, size uint64, d time.Duration) ProgressEvent
	failed   ProgressEvent
	finished ProgressEvent
}

var fillEvents = phaseEvents{
	phase:   "fill",
	started: StartedFilling{},
	done: func(addr, size uint64, d time.Duration) ProgressEvent {
		return PageFilled{Address: addr, Size: size, Time: d}
	},
	failed:   FailedFilling{},
	finished: FinishedFilling{},
}

var programEvents = phaseEvents{
	phase:   "program",
	started: StartedProgramming{},
	done: func(addr, size uint64, d time.Duration) ProgressEvent {
		return PageProgrammed{Address: addr, Size: size, Time: d}
	},
	failed:   FailedProgramming{},
	finished: FinishedProgramming{},
}

func (c *regionCommit) programPages(ctx context.Context, pages []FlashPage, ev phaseEvents) error {
	progress := c.opts.Progress
	fail := func(addr uint64, err error) error {
		return &ProgramError{Phase: ev.phase, Address: addr, Err: err}
	}
	if c.alg != nil && len(pages) > 0 && !c.programming {
		if err := c.alg.Init(ctx, goflash.OpProgram); err != nil {
			return fmt.Errorf("initializing flash algorithm for programming: %w", err)
		}
		c.programming = true
	}
	switch {
	case c.alg == nil:
		for _, p := range pages {
			progress.emit(ev.done(p.Address, uint64(len(p.Data)), 0))
		}
	case !c.opts.DisableDoubleBuffering && c.alg.PageBuffers() >= 2 && len(pages) > 0:
		if err := c.alg.LoadPageBuffer(ctx, 0, pages[0].Data); err != nil {
			return fail(pages[0].Address, err)
		}
		for i, p := range pages {
			start := time.Now()
			if err := c.alg.StartProgramPage(ctx, p.Address, i%2); err != nil {
				return fail(p.Address, err)
			}
			// Transfer the next page while this one is being written.
			if i+1 < len(pages) {
				if err := c.alg.LoadPageBuffer(ctx, (i+1)%2, pages[i+1].Data); err != nil {
					// The current page is still being written; let it finish so
					// the algorithm is usable afterwards.
					if werr := c.alg.WaitForCompletion(ctx); werr != nil {
						glog.Warningf("Page at %#x did not complete: %v", p.Address, werr)
					}
					return fail(pages[i+1].Address, err)
				}
			}
			if err := c.alg.WaitForCompletion(ctx); err != nil {
				return fail(p.Address, err)
			}
			progress.emit(ev.done(p.Address, uint64(len(p.Data)), time.Since(start)))
		}
	default:
		for _, p := range pages {
			start := time.Now()
			if err := c.alg.ProgramPage(ctx, p.Address, p.Data); err != nil {
				return fail(p.Address, err)
			}
			progress.emit(ev.done(p.Address, uint64(len(p.Data)), time.Since(start)))
		}
	}
	return nil
}
