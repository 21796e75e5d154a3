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
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoProbeFound         = errors.New("no supported probe was found")
	ErrChipNotFound         = errors.New("chip not found")
	ErrChipAutodetectFailed = errors.New("chip autodetection failed")
	ErrNotAttached          = errors.New("probe is not attached to a target")
)

type ProbeOpenError struct {
	Selector string
	Err      error
}

func (e *ProbeOpenError) Error() string {
	return fmt.Sprintf("failed to open probe %s: %v", e.Selector, e.Err)
}

func (e *ProbeOpenError) Unwrap() error { return e.Err }

type ProtocolSelectError struct {
	Protocol WireProtocol
	Err      error
}

func (e *ProtocolSelectError) Error() string {
	return fmt.Sprintf("failed to select protocol %v: %v", e.Protocol, e.Err)
}

func (e *ProtocolSelectError) Unwrap() error { return e.Err }

// AttachError wraps failures to establish a session. errors.Is(err,
// ErrChipAutodetectFailed) tells autodetection apart from link failures.
type AttachError struct {
	Target     string
	UnderReset bool
	Err        error
}

func (e *AttachError) Error() string {
	mode := "attach"
	if e.UnderReset {
		mode = "attach under reset"
	}
	return fmt.Sprintf("failed to %s to target %s: %v", mode, e.Target, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

type AmbiguousProbeError struct {
	Probes []ProbeInfo
}

func (e *AmbiguousProbeError) Error() string {
	ids := make([]string, len(e.Probes))
	for i, p := range e.Probes {
		ids[i] = p.String()
	}
	return fmt.Sprintf("more than a single probe detected (%s)", strings.Join(ids, ", "))
}
