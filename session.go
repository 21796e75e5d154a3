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
	"context"
	"fmt"

	"github.com/golang/glog"
)

// An attached connection between a probe and one target chip. Not safe
// for concurrent use.
type Session struct {
	probe      *Probe
	target     *Target
	algorithms map[string]FlashAlgorithm
}

func newSession(p *Probe, t *Target) *Session {
	return &Session{probe: p, target: t, algorithms: make(map[string]FlashAlgorithm)}
}

func (s *Session) Target() *Target {
	return s.target
}

func (s *Session) Probe() *Probe {
	return s.probe
}

func (s *Session) Core(index int) (Core, error) {
	n := len(s.target.Cores)
	if n == 0 {
		n = 1
	}
	if index < 0 || index >= n {
		return nil, fmt.Errorf("%s has no core %d", s.target.Name, index)
	}
	return s.probe.drv.Core(index)
}

// Returns the flash algorithm driving region. Algorithms are created once
// per session and reused.
func (s *Session) FlashAlgorithm(ctx context.Context, region Region) (FlashAlgorithm, error) {
	raw, err := s.target.AlgorithmFor(region)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s@%v", raw.Name, region.Range)
	if alg, ok := s.algorithms[key]; ok {
		return alg, nil
	}
	var alg FlashAlgorithm
	if p, ok := s.probe.drv.(algorithmProvider); ok {
		alg, err = p.flashAlgorithm(raw, region)
	} else {
		alg, err = s.newRunner(raw)
	}
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("Using flash algorithm %q for %s", raw.Name, region.Name)
	s.algorithms[key] = alg
	return alg, nil
}

func (s *Session) newRunner(raw *RawFlashAlgorithm) (FlashAlgorithm, error) {
	ram, ok := s.target.RamRegion()
	if !ok {
		return nil, fmt.Errorf("%s has no RAM to run flash algorithms from", s.target.Name)
	}
	core, err := s.Core(0)
	if err != nil {
		return nil, err
	}
	return newAlgorithmRunner(core, raw, ram)
}

func (s *Session) Close() error {
	return s.probe.Close()
}
