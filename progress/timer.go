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

package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/goflash/flashing"
)

// Timer measures how long each flashing phase takes and reports it when
// the phase finishes.
type Timer struct {
	mu      sync.Mutex
	w       io.Writer
	now     func() time.Time
	started map[Phase]time.Time
	took    map[Phase]time.Duration
}

func NewTimer(w io.Writer) *Timer {
	return &Timer{
		w:       w,
		now:     time.Now,
		started: make(map[Phase]time.Time),
		took:    make(map[Phase]time.Duration),
	}
}

func (t *Timer) Handle(e flashing.ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e.(type) {
	case flashing.StartedErasing:
		t.started[PhaseErase] = t.now()
	case flashing.StartedFilling:
		t.started[PhaseFill] = t.now()
	case flashing.StartedProgramming:
		t.started[PhaseProgram] = t.now()
	case flashing.FinishedErasing:
		t.stop(PhaseErase, "erasing")
	case flashing.FinishedFilling:
		t.stop(PhaseFill, "filling")
	case flashing.FinishedProgramming:
		t.stop(PhaseProgram, "programming")
	}
}

func (t *Timer) stop(p Phase, verb string) {
	start, ok := t.started[p]
	if !ok {
		glog.Warningf("%v finished without having started", p)
		return
	}
	delete(t.started, p)
	d := t.now().Sub(start)
	t.took[p] += d
	fmt.Fprintf(t.w, "Finished %s in %v\n", verb, d)
}

// Total time spent in a phase so far.
func (t *Timer) Elapsed(p Phase) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.took[p]
}
