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

// Package progress renders flashing progress events for humans.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/goflash/flashing"
	"github.com/mattn/go-isatty"
)

type Phase int

const (
	PhaseFill Phase = iota
	PhaseErase
	PhaseProgram
)

func (p Phase) String() string {
	switch p {
	case PhaseFill:
		return "Reading flash"
	case PhaseErase:
		return "Erasing sectors"
	case PhaseProgram:
		return "Programming pages"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

type BarState int

const (
	BarHidden BarState = iota
	BarPending
	BarActive
	BarFinished
	BarAbandoned
)

const (
	barWidth     = 40
	tickInterval = 100 * time.Millisecond
)

type bar struct {
	state   BarState
	done    uint64
	total   uint64
	start   time.Time
	elapsed time.Duration
}

// Bars draws one progress bar per flashing phase. On a terminal the bars
// are redrawn in place by a ticker goroutine between Start and Stop;
// elsewhere one line is printed per finished or abandoned phase.
type Bars struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	bars  [3]bar
	lines int
	stop  chan struct{}
	wg    sync.WaitGroup
}

func NewBars(w io.Writer) *Bars {
	b := &Bars{w: w}
	if f, ok := w.(*os.File); ok {
		b.tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return b
}

func (b *Bars) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tty || b.stop != nil {
		return
	}
	b.stop = make(chan struct{})
	b.wg.Add(1)
	go b.tick(b.stop)
}

func (b *Bars) tick(stop chan struct{}) {
	defer b.wg.Done()
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			b.mu.Lock()
			b.redraw()
			b.mu.Unlock()
		}
	}
}

// Stops the ticker and draws the final state.
func (b *Bars) Stop() {
	b.mu.Lock()
	stop := b.stop
	b.stop = nil
	b.mu.Unlock()
	if stop != nil {
		close(stop)
		b.wg.Wait()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tty {
		b.redraw()
	}
}

// Current progress of a phase.
func (b *Bars) State(p Phase) (state BarState, done, total uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bar := b.bars[p]
	return bar.state, bar.done, bar.total
}

// Handle is a flashing.ProgressHandler.
func (b *Bars) Handle(e flashing.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch e := e.(type) {
	case flashing.Initialized:
		if n := e.Layout.TotalFillSize(); n > 0 {
			b.grow(PhaseFill, n)
		}
		b.grow(PhaseErase, e.Layout.TotalSectorSize())
		b.grow(PhaseProgram, e.Layout.TotalPageSize())
	case flashing.StartedErasing:
		b.begin(PhaseErase)
	case flashing.SectorErased:
		b.bars[PhaseErase].done += e.Size
	case flashing.FinishedErasing:
		b.finish(PhaseErase)
	case flashing.FailedErasing:
		b.abandon(PhaseErase, PhaseFill, PhaseProgram)
	case flashing.StartedFilling:
		b.begin(PhaseFill)
	case flashing.PageFilled:
		b.bars[PhaseFill].done += e.Size
	case flashing.FinishedFilling:
		b.finish(PhaseFill)
	case flashing.FailedFilling:
		b.abandon(PhaseFill, PhaseProgram)
	case flashing.StartedProgramming:
		b.begin(PhaseProgram)
	case flashing.PageProgrammed:
		b.bars[PhaseProgram].done += e.Size
	case flashing.FinishedProgramming:
		b.finish(PhaseProgram)
	case flashing.FailedProgramming:
		b.abandon(PhaseProgram)
	}
}

func (b *Bars) grow(p Phase, n uint64) {
	bar := &b.bars[p]
	if bar.state == BarHidden || bar.state == BarFinished {
		bar.state = BarPending
	}
	bar.total += n
}

func (b *Bars) begin(p Phase) {
	bar := &b.bars[p]
	if bar.state != BarActive {
		bar.start = time.Now()
	}
	bar.state = BarActive
}

func (b *Bars) finish(p Phase) {
	bar := &b.bars[p]
	bar.state = BarFinished
	bar.elapsed += time.Since(bar.start)
	b.phaseDone(p)
}

func (b *Bars) abandon(phases ...Phase) {
	for _, p := range phases {
		bar := &b.bars[p]
		if bar.state == BarHidden || bar.state == BarFinished {
			continue
		}
		bar.state = BarAbandoned
		if !bar.start.IsZero() {
			bar.elapsed += time.Since(bar.start)
		}
		b.phaseDone(p)
	}
}

func (b *Bars) phaseDone(p Phase) {
	if b.tty {
		b.redraw()
		return
	}
	fmt.Fprintln(b.w, b.line(p))
}

func (b *Bars) line(p Phase) string {
	bar := b.bars[p]
	label := fmt.Sprintf("%18s", p.String())
	switch bar.state {
	case BarFinished:
		return fmt.Sprintf("%s %s %s in %s", color.GreenString(label), color.GreenString("done"),
			humanBytes(bar.done), bar.elapsed.Round(time.Millisecond))
	case BarAbandoned:
		return fmt.Sprintf("%s %s at %s of %s", color.RedString(label), color.RedString("abandoned"),
			humanBytes(bar.done), humanBytes(bar.total))
	}
	filled := 0
	if bar.total > 0 {
		filled = int(bar.done * barWidth / bar.total)
	}
	if filled > barWidth {
		filled = barWidth
	}
	return fmt.Sprintf("%s [%s%s] %s/%s", color.CyanString(label),
		strings.Repeat("=", filled), strings.Repeat(" ", barWidth-filled),
		humanBytes(bar.done), humanBytes(bar.total))
}

// Must be called with mu held.
func (b *Bars) redraw() {
	var sb strings.Builder
	if b.lines > 0 {
		fmt.Fprintf(&sb, "\x1b[%dA", b.lines)
	}
	n := 0
	for p := PhaseFill; p <= PhaseProgram; p++ {
		if b.bars[p].state == BarHidden {
			continue
		}
		sb.WriteString("\r\x1b[2K")
		sb.WriteString(b.line(p))
		sb.WriteString("\n")
		n++
	}
	b.lines = n
	if _, err := io.WriteString(b.w, sb.String()); err != nil {
		// Nowhere left to draw.
		b.tty = false
	}
}

func humanBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
