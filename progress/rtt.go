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
	"strings"

	"github.com/fatih/color"
	"github.com/google/goflash/flashing"
)

// Prints RTT output from the target, one line per message.
type RttPrinter struct {
	w      io.Writer
	prefix func(a ...interface{}) string
}

func NewRttPrinter(w io.Writer) *RttPrinter {
	return &RttPrinter{w: w, prefix: color.New(color.FgMagenta, color.Bold).SprintFunc()}
}

func (r *RttPrinter) Handle(e flashing.ProgressEvent) {
	rtt, ok := e.(flashing.Rtt)
	if !ok {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(rtt.Message, "\n"), "\n") {
		fmt.Fprintf(r.w, "%s %s\n", r.prefix(fmt.Sprintf("RTT[%d]:", rtt.Channel)), line)
	}
}
