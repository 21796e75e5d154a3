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

	"github.com/google/goflash/flashing"
	"github.com/google/goflash/progress"
	"github.com/google/goflash/util"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type eraseOptions struct {
	connect connectOptions
	all     bool
	sector  int
	count   int
}

var eraseOpts eraseOptions

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase the whole flash or a range of sectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		o := &eraseOpts
		if o.all == cmd.Flags().Changed("sector") {
			return fmt.Errorf("pass either --all or --sector")
		}
		session, err := o.connect.connect(cmd)
		if err != nil {
			return err
		}
		defer session.Close()
		fp := flashing.NewFlashProgress(progress.NewTimer(os.Stderr).Handle)
		if o.all {
			err = flashing.EraseAll(cmd.Context(), session, fp)
		} else {
			err = flashing.EraseSectors(cmd.Context(), session, fp, o.sector, o.count)
		}
		if err != nil {
			return err
		}
		color.New(color.FgGreen, color.Bold).Fprint(os.Stderr, "      Erased ")
		fmt.Fprintln(os.Stderr, session.Target().Name)
		return nil
	},
}

var algorithmTestOpts connectOptions

var algorithmTestCmd = &cobra.Command{
	Use:   "algorithm-test",
	Short: "Run erase and program cycles to check the target's flash algorithm",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := algorithmTestOpts.connect(cmd)
		if err != nil {
			return err
		}
		defer session.Close()
		fp := flashing.NewFlashProgress(progress.NewTimer(os.Stderr).Handle)
		if err := util.RunAlgorithmTest(cmd.Context(), session, fp); err != nil {
			return err
		}
		color.New(color.FgGreen, color.Bold).Fprint(os.Stderr, "      Passed ")
		fmt.Fprintf(os.Stderr, "flash algorithm test on %s\n", session.Target().Name)
		return nil
	},
}

func init() {
	eraseOpts.connect.register(eraseCmd)
	eraseCmd.Flags().BoolVar(&eraseOpts.all, "all", false, "erase every flash region")
	eraseCmd.Flags().IntVar(&eraseOpts.sector, "sector", 0, "index of the first sector to erase")
	eraseCmd.Flags().IntVar(&eraseOpts.count, "count", 1, "number of sectors to erase")
	rootCmd.AddCommand(eraseCmd)

	algorithmTestOpts.register(algorithmTestCmd)
	rootCmd.AddCommand(algorithmTestCmd)
}
