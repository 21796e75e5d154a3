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

import "time"

// Events published while a loader commits. Handlers receive one of the
// concrete types below.
type ProgressEvent interface {
	isProgressEvent()
}

// Published once per committed flash region before any phase starts.
type Initialized struct {
	Layout *FlashLayout
}

type StartedErasing struct{}

type SectorErased struct {
	Address uint64
	Size    uint64
	Time    time.Duration
}

type FailedErasing struct{}

type FinishedErasing struct{}

type StartedFilling struct{}

type PageFilled struct {
	Address uint64
	Size    uint64
	Time    time.Duration
}

type FailedFilling struct{}

type FinishedFilling struct{}

type StartedProgramming struct{}

type PageProgrammed struct {
	Address uint64
	Size    uint64
	Time    time.Duration
}

type FailedProgramming struct{}

type FinishedProgramming struct{}

// Target log output received over RTT while the device runs.
type Rtt struct {
	Channel int
	Message string
}

func (Initialized) isProgressEvent()         {}
func (StartedErasing) isProgressEvent()      {}
func (SectorErased) isProgressEvent()        {}
func (FailedErasing) isProgressEvent()       {}
func (FinishedErasing) isProgressEvent()     {}
func (StartedFilling) isProgressEvent()      {}
func (PageFilled) isProgressEvent()          {}
func (FailedFilling) isProgressEvent()       {}
func (FinishedFilling) isProgressEvent()     {}
func (StartedProgramming) isProgressEvent()  {}
func (PageProgrammed) isProgressEvent()      {}
func (FailedProgramming) isProgressEvent()   {}
func (FinishedProgramming) isProgressEvent() {}
func (Rtt) isProgressEvent()                 {}

type ProgressHandler func(ProgressEvent)

// Delivers events to every subscribed handler, in subscription order, on
// the goroutine that publishes them. Handlers must return promptly since
// flashing waits for them. A nil *FlashProgress discards events.
type FlashProgress struct {
	handlers []ProgressHandler
}

func NewFlashProgress(handlers ...ProgressHandler) *FlashProgress {
	return &FlashProgress{handlers: handlers}
}

// Adds a handler. Subscribe before the commit starts.
func (p *FlashProgress) Subscribe(h ProgressHandler) {
	p.handlers = append(p.handlers, h)
}

func (p *FlashProgress) emit(e ProgressEvent) {
	if p == nil {
		return
	}
	for _, h := range p.handlers {
		h(e)
	}
}

func (p *FlashProgress) Rtt(channel int, message string) {
	p.emit(Rtt{Channel: channel, Message: message})
}
