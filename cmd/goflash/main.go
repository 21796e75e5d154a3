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

// Flashes firmware images onto microcontrollers through a debug probe.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

var logLevels = map[string]struct {
	verbosity string
	threshold string
}{
	"error":   {"0", "ERROR"},
	"warning": {"0", "WARNING"},
	"info":    {"0", "INFO"},
	"debug":   {"1", "INFO"},
	"trace":   {"2", "INFO"},
}

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "goflash",
	Short:         "Flash firmware onto microcontrollers",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyLogLevel(logLevel)
	},
}

func applyLogLevel(level string) error {
	if level == "" {
		return nil
	}
	l, ok := logLevels[level]
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	if err := flag.Set("v", l.verbosity); err != nil {
		return err
	}
	return flag.Set("stderrthreshold", l.threshold)
}

func init() {
	// glog writes to files unless told otherwise.
	if f := flag.Lookup("logtostderr"); f != nil {
		f.DefValue = "true"
		f.Value.Set("true")
	}
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "", "log level: error, warning, info, debug or trace")
}

func main() {
	defer glog.Flush()
	meta := &Metadata{Release: version}
	ctx := withMetadata(context.Background(), meta)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		renderError(os.Stderr, err, meta)
		glog.Flush()
		os.Exit(1)
	}
}
