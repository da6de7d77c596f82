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

	"github.com/dataflowc/circuitc/internal/config"
	"github.com/dataflowc/circuitc/pkg/circuit/annotate"
	"github.com/dataflowc/circuitc/pkg/circuit/ephemeral"
	"github.com/dataflowc/circuitc/pkg/circuit/serial"
	"github.com/dataflowc/circuitc/pkg/circuit/subgraph"
	"github.com/dataflowc/circuitc/pkg/circuit/textual"
	"github.com/dataflowc/circuitc/pkg/circuit/validate"
)

var compileCmd = &cobra.Command{
	Use:   "compile circuit_file",
	Short: "Validate, lower and serialize a circuit description.",
	Long: `Compile runs the full pipeline: parse, validate, discover subgraphs,
classify output ephemerality, annotate variables, and serialize the circuit
as JSON (see pkg/circuit/serial). The subgraphs and annotations are computed
but are not part of the JSON output.`,
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)

		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			fmt.Println(err)
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

		if errs := validate.Validate(circ); len(errs) > 0 {
			for _, e := range errs {
				fmt.Println(e)
			}

			os.Exit(1)
		}

		subgraphs, err := subgraph.DiscoverAll(circ, cfg.ResolverMode)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		log.WithField("count", len(subgraphs)).Debug("discovered subgraphs")

		analysis := ephemeral.Analyze(circ, subgraphs)
		table := annotate.Annotate(circ, analysis)

		log.WithField("nonephemeral", len(analysis.AllNonephemeralOutputs())).
			WithField("variables", len(table.All())).
			Debug("lowering complete")

		out, err := serial.Marshal(circ)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		output := GetString(cmd, "output")
		if output == "" {
			fmt.Println(string(out))
			return
		}

		if err := os.WriteFile(output, out, 0o644); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	compileCmd.Flags().StringP("output", "o", "", "write the serialized circuit to this file instead of stdout")
	rootCmd.AddCommand(compileCmd)
}
