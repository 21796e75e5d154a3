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

// Settings of a single Commit.
type DownloadOptions struct {
	// Preserve bytes of touched sectors that the image does not write by
	// reading them back before erasing.
	KeepUnwrittenBytes bool
	// Program pages one at a time even if the algorithm has two page
	// buffers.
	DisableDoubleBuffering bool
	// Assume the touched sectors are already erased.
	SkipErase bool
	// Plan and report progress without any target access.
	DryRun   bool
	Progress *FlashProgress
	// If set, an SVG of the planned layout is written here.
	LayoutPath string
}
