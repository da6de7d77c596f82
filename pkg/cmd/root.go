// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package cmd implements the circuitc command-line tool: check, compile,
// inspect and fmt over the s-expression circuit description format (see
// pkg/circuit/textual).
package cmd

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set by main from the version string given to the linker with
// -ldflags; it is empty for a plain "go build" or "go install".
var Version string

var rootCmd = &cobra.Command{
	Use:   "circuitc",
	Short: "A compiler for dataflow-circuit descriptions.",
	Long:  "A compiler (and general toolbox) for dataflow-circuit descriptions: validation, lowering and inspection.",
	Run: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "version") {
			fmt.Print("circuitc ")

			if Version != "" {
				fmt.Printf("%s", Version)
			} else if info, ok := debug.ReadBuildInfo(); ok {
				fmt.Printf("%s", info.Main.Version)
			} else {
				fmt.Printf("(unknown version)")
			}

			fmt.Println()

			return
		}

		fmt.Println(cmd.UsageString())
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("version", false, "report version of this executable")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().String("resolver-mode", "any",
		"input freshness mode: \"any\" counts an input with several wired sources fresh once one is, \"all\" once every one is")
	rootCmd.PersistentFlags().Int("workers", 1, "worker pool size (accepted but unused: every pass runs sequentially)")
	rootCmd.PersistentFlags().StringArrayP("set", "S", []string{}, "set value of an externalised constant (key=value)")
	rootCmd.PersistentFlags().String("config", "", "path to a JSON configuration file")

	log.SetFormatter(&log.TextFormatter{})
}

func configureLogging(cmd *cobra.Command) {
	if GetFlag(cmd, "verbose") {
		log.SetLevel(log.DebugLevel)
	}
}
