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
	"errors"
	"fmt"

	"github.com/google/goflash"
)

var ErrLoaderCommitted = errors.New("flash loader has already been committed")

type ImageFormatError struct {
	Format Format
	Err    error
}

func (e *ImageFormatError) Error() string {
	return fmt.Sprintf("failed to parse %v image: %v", e.Format, e.Err)
}

func (e *ImageFormatError) Unwrap() error { return e.Err }

// Two pieces of image data claim the same addresses.
type OverlapError struct {
	First  goflash.AddressRange
	Second goflash.AddressRange
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("data at %v overlaps data at %v", e.Second, e.First)
}

// Data was added outside every flash region of the target.
type OutOfBoundsError struct {
	Address uint64
	Size    uint64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("no flash memory contains the %d bytes at %#08x", e.Size, e.Address)
}

type EraseError struct {
	Address uint64
	Err     error
}

func (e *EraseError) Error() string {
	return fmt.Sprintf("erasing sector at %#08x failed: %v", e.Address, e.Err)
}

func (e *EraseError) Unwrap() error { return e.Err }

// Programming a page failed. Phase is "fill" or "program".
type ProgramError struct {
	Phase   string
	Address uint64
	Err     error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s of page at %#08x failed: %v", e.Phase, e.Address, e.Err)
}

func (e *ProgramError) Unwrap() error { return e.Err }

// Reading back flash contents to preserve unwritten bytes failed. Nothing
// has been erased when this is returned.
type FillReadError struct {
	Address uint64
	Size    uint64
	Err     error
}

func (e *FillReadError) Error() string {
	return fmt.Sprintf("reading %d bytes at %#08x to restore unwritten bytes failed: %v", e.Size, e.Address, e.Err)
}

func (e *FillReadError) Unwrap() error { return e.Err }
