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
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataflowc/circuitc/pkg/circuit/textual"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt circuit_file",
	Short: "Reformat a circuit description into canonical s-expression form.",
	Long: `Fmt parses circuit_file and re-renders it in the textual front end's
canonical, sorted form.  By default the result is printed to stdout; with
--write the file is rewritten in place.`,
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)

		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		circ, err := textual.Parse(args[0], data)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		out := textual.Format(circ)

		if GetFlag(cmd, "write") {
			if err := os.WriteFile(args[0], []byte(out), 0o644); err != nil {
				fmt.Println(err)
				os.Exit(1)
			}

			return
		}

		fmt.Print(out)
	},
}

func init() {
	fmtCmd.Flags().Bool("write", false, "rewrite circuit_file in place instead of printing to stdout")
	rootCmd.AddCommand(fmtCmd)
}
