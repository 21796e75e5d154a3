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
	"text/tabwriter"

	"github.com/google/goflash"

	"github.com/spf13/cobra"
)

var listProbesCmd = &cobra.Command{
	Use:   "list-probes",
	Short: "List attached debug probes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		probes := goflash.ListAll()
		if len(probes) == 0 {
			fmt.Println("No debug probes were found.")
			return nil
		}
		fmt.Println("The following debug probes were found:")
		for i, p := range probes {
			fmt.Printf("[%d]: %s\n", i, p)
		}
		return nil
	},
}

var chipDescriptionPath string

var listChipsCmd = &cobra.Command{
	Use:   "list-chips",
	Short: "List the chips goflash knows about",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if chipDescriptionPath != "" {
			if err := goflash.AddTargetFromTOML(chipDescriptionPath); err != nil {
				return err
			}
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, f := range goflash.Families() {
			fmt.Fprintf(w, "%s\n", f.Name)
			for _, t := range f.Variants {
				var flash uint64
				for _, r := range t.NvmRegions() {
					flash += r.Range.Size()
				}
				fmt.Fprintf(w, "\t%s\t%d KiB flash\t%s\n", t.Name, flash/1024, t.Source)
			}
		}
		return w.Flush()
	},
}

func init() {
	listChipsCmd.Flags().StringVar(&chipDescriptionPath, "chip-description-path", "", "TOML file describing additional chips")
	rootCmd.AddCommand(listProbesCmd, listChipsCmd)
}
