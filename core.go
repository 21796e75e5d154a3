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
	"time"
)

type CoreRegister uint16

// Cortex-M register numbers as used by the probe's core register request.
const (
	RegR0   CoreRegister = 0
	RegR1   CoreRegister = 1
	RegR2   CoreRegister = 2
	RegR3   CoreRegister = 3
	RegR9   CoreRegister = 9
	RegSP   CoreRegister = 13
	RegLR   CoreRegister = 14
	RegPC   CoreRegister = 15
	RegXPSR CoreRegister = 16
)

// A halted-or-running CPU core reached through an attached session.
//
//go:generate mockgen -destination=mocks/core.go -package=mocks github.com/google/goflash Core
type Core interface {
	Read8(ctx context.Context, addr uint64, data []byte) error
	Write8(ctx context.Context, addr uint64, data []byte) error
	ReadCoreReg(ctx context.Context, reg CoreRegister) (uint32, error)
	WriteCoreReg(ctx context.Context, reg CoreRegister, value uint32) error
	Halt(ctx context.Context) error
	Run(ctx context.Context) error
	// WaitForHalt blocks until the core halts or timeout expires.
	WaitForHalt(ctx context.Context, timeout time.Duration) error
	Reset(ctx context.Context) error
	ResetAndHalt(ctx context.Context, timeout time.Duration) error
}

// Implemented by cores whose transport can read back and compare a write
// itself.
type verifyingWriter interface {
	writeVerified(ctx context.Context, addr uint64, data []byte) error
}
