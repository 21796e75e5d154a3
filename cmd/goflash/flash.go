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

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/goflash"
	"github.com/google/goflash/flashing"
	"github.com/google/goflash/progress"
	"github.com/google/goflash/util"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const resetHaltTimeout = 500 * time.Millisecond

type flashOptions struct {
	connect                connectOptions
	elf, hex, bin          string
	base                   string
	resetHalt              bool
	restoreUnwritten       bool
	flashLayout            string
	disableProgressbars    bool
	disableDoubleBuffering bool
	verify                 bool
}

var flashOpts flashOptions

var flashCmd = &cobra.Command{
	Use:   "flash [IMAGE]",
	Short: "Write an ELF, Intel HEX or raw binary image to the target's flash",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlash(cmd, args, &flashOpts)
	},
}

func init() {
	o := &flashOpts
	o.connect.register(flashCmd)
	f := flashCmd.Flags()
	f.StringVar(&o.elf, "elf", "", "ELF image to flash")
	f.StringVar(&o.hex, "hex", "", "Intel HEX image to flash")
	f.StringVar(&o.bin, "bin", "", "raw binary image to flash")
	f.StringVar(&o.base, "base", "0", "load address of a raw binary image")
	f.BoolVar(&o.resetHalt, "reset-halt", false, "halt the core after the reset that follows flashing")
	f.BoolVar(&o.restoreUnwritten, "restore-unwritten", false, "preserve flash contents the image does not overwrite")
	f.StringVar(&o.flashLayout, "flash-layout", "", "write an SVG of the flash layout to this file")
	f.BoolVar(&o.disableProgressbars, "disable-progressbars", false, "print phase timings instead of progress bars")
	f.BoolVar(&o.disableDoubleBuffering, "disable-double-buffering", false, "program one page buffer at a time")
	f.BoolVar(&o.verify, "verify", false, "read the image back after flashing")
	rootCmd.AddCommand(flashCmd)
}

// Picks the image and its format from the flags or the positional argument.
func (o *flashOptions) image(args []string) (string, flashing.Format, error) {
	var paths []string
	var format flashing.Format
	for _, c := range []struct {
		path   string
		format flashing.Format
	}{{o.elf, flashing.FormatElf}, {o.hex, flashing.FormatHex}, {o.bin, flashing.FormatBin}} {
		if c.path != "" {
			paths = append(paths, c.path)
			format = c.format
		}
	}
	if len(args) == 1 {
		paths = append(paths, args[0])
		format = flashing.FormatFromPath(args[0])
	}
	switch len(paths) {
	case 0:
		return "", 0, fmt.Errorf("no image given")
	case 1:
		return paths[0], format, nil
	}
	return "", 0, fmt.Errorf("more than one image given: %v", paths)
}

func runFlash(cmd *cobra.Command, args []string, o *flashOptions) error {
	path, format, err := o.image(args)
	if err != nil {
		return err
	}
	base, err := strconv.ParseUint(o.base, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid --base %q: %w", o.base, err)
	}
	m, err := loadManifest(o.connect.workDir)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("restore-unwritten") && m.RestoreUnwritten {
		o.restoreUnwritten = true
	}

	session, err := o.connect.connect(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	fp := flashing.NewFlashProgress(progress.NewRttPrinter(os.Stdout).Handle)
	if o.disableProgressbars {
		fp.Subscribe(progress.NewTimer(os.Stderr).Handle)
	} else {
		bars := progress.NewBars(os.Stderr)
		bars.Start()
		defer bars.Stop()
		fp.Subscribe(bars.Handle)
	}

	heading := color.New(color.FgGreen, color.Bold)
	heading.Fprint(os.Stderr, "    Flashing ")
	fmt.Fprintln(os.Stderr, path)
	start := time.Now()
	opts := util.FlashFileOptions{
		Format:  format,
		BinBase: base,
		Verify:  o.verify,
		Download: flashing.DownloadOptions{
			KeepUnwrittenBytes:     o.restoreUnwritten,
			DisableDoubleBuffering: o.disableDoubleBuffering,
			DryRun:                 o.connect.dryRun,
			Progress:               fp,
			LayoutPath:             o.flashLayout,
		},
	}
	if err := util.FlashFile(cmd.Context(), session, path, opts); err != nil {
		return err
	}
	if err := resetTarget(cmd, session, o.resetHalt); err != nil {
		return err
	}
	heading.Fprint(os.Stderr, "    Finished ")
	fmt.Fprintf(os.Stderr, "in %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func resetTarget(cmd *cobra.Command, session *goflash.Session, halt bool) error {
	core, err := session.Core(0)
	if err != nil {
		return err
	}
	if halt {
		return core.ResetAndHalt(cmd.Context(), resetHaltTimeout)
	}
	return core.Reset(cmd.Context())
}
