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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dataflowc/circuitc/pkg/circuit/textual"
	"github.com/dataflowc/circuitc/pkg/circuit/validate"
)

var checkCmd = &cobra.Command{
	Use:   "check circuit_file",
	Short: "Validate a circuit description and report any invariant violations.",
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

		log.WithField("file", args[0]).Debug("parsed circuit")

		errs := validate.Validate(circ)
		if len(errs) == 0 {
			fmt.Println("ok")
			return
		}

		for _, e := range errs {
			fmt.Println(e)
		}

		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
