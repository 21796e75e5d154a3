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
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"
)

const (
	svgColumnWidth = 120
	svgColumnGap   = 20
	svgLabelWidth  = 110
	svgHeight      = 800
	svgMargin      = 20
)

// Remembers the first write error since svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, nil
}

// Renders the layout as one column each for sectors, fills and pages.
func (l *FlashLayout) WriteSVG(w io.Writer) error {
	return writeSVG(w, l)
}

func writeSVG(w io.Writer, layouts ...*FlashLayout) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	groupWidth := svgLabelWidth + 3*(svgColumnWidth+svgColumnGap)
	canvas.Start(svgMargin*2+groupWidth*len(layouts), svgHeight+2*svgMargin)
	canvas.Title("Flash layout")
	for i, l := range layouts {
		drawLayout(canvas, svgMargin+i*groupWidth, l)
	}
	canvas.End()
	if ew.err != nil {
		return fmt.Errorf("writing layout visualization: %v", ew.err)
	}
	return nil
}

func drawLayout(canvas *svg.SVG, x int, l *FlashLayout) {
	if len(l.sectors) == 0 {
		return
	}
	lo := l.sectors[0].Address
	last := l.sectors[len(l.sectors)-1]
	hi := last.Address + last.Size
	scale := func(addr uint64) int {
		return svgMargin + int(float64(addr-lo)/float64(hi-lo)*svgHeight)
	}
	height := func(addr, size uint64) int {
		h := scale(addr+size) - scale(addr)
		if h < 1 {
			h = 1
		}
		return h
	}
	columns := []string{"sectors", "fills", "pages"}
	for i, name := range columns {
		canvas.Text(x+svgLabelWidth+i*(svgColumnWidth+svgColumnGap), svgMargin-5, name, "font-size:12px;font-family:monospace")
	}
	col := func(i int) int { return x + svgLabelWidth + i*(svgColumnWidth+svgColumnGap) }
	for _, s := range l.sectors {
		y := scale(s.Address)
		canvas.Rect(col(0), y, svgColumnWidth, height(s.Address, s.Size), "fill:#f2c14e;stroke:#444;stroke-width:1")
		canvas.Text(x, y+10, fmt.Sprintf("%#08x", s.Address), "font-size:10px;font-family:monospace")
	}
	for _, f := range l.fills {
		canvas.Rect(col(1), scale(f.Address), svgColumnWidth, height(f.Address, f.Size), "fill:#9ec1cf;stroke:#444;stroke-width:1")
	}
	for _, p := range l.pages {
		canvas.Rect(col(2), scale(p.Address), svgColumnWidth, height(p.Address, uint64(len(p.Data))), "fill:#7ab87a;stroke:#444;stroke-width:1")
	}
	canvas.Text(x, scale(hi), fmt.Sprintf("%#08x", hi), "font-size:10px;font-family:monospace")
}
