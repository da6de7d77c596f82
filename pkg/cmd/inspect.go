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
	"strings"

	"github.com/spf13/cobra"

	"github.com/dataflowc/circuitc/internal/config"
	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/circuit/annotate"
	"github.com/dataflowc/circuitc/pkg/circuit/ephemeral"
	"github.com/dataflowc/circuitc/pkg/circuit/serial"
	"github.com/dataflowc/circuitc/pkg/circuit/subgraph"
	"github.com/dataflowc/circuitc/pkg/circuit/textual"
	"github.com/dataflowc/circuitc/pkg/circuit/validate"
	"github.com/dataflowc/circuitc/pkg/cmd/browser"
	"github.com/dataflowc/circuitc/pkg/util/termio"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect circuit_file",
	Short: "Print a human-readable summary of a circuit: components, subgraphs and variable classification.",
	Long: `Inspect loads a circuit -- either its textual s-expression form, or a
previously-compiled JSON file (see "circuitc compile") when named with the
--json flag -- and prints the components it declares, the subgraphs the
Subgraph Discoverer finds, and how the Ephemerality Analyzer and Variable
Annotator classify every output.`,
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

		var circ *circuit.Circuit

		if GetFlag(cmd, "json") {
			circ, err = serial.Unmarshal(data)
		} else {
			circ, err = textual.Parse(args[0], data)
		}

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

		if GetFlag(cmd, "interactive") {
			runInteractive(subgraphs)
			return
		}

		analysis := ephemeral.Analyze(circ, subgraphs)
		table := annotate.Annotate(circ, analysis)

		printComponents(circ)
		printSubgraphs(subgraphs)
		printVariables(table)
	},
}

func init() {
	inspectCmd.Flags().Bool("json", false, "load circuit_file as a previously-compiled JSON document instead of s-expression text")
	inspectCmd.Flags().Bool("interactive", false, "browse the discovered subgraphs in a raw-terminal, tab/table view instead of printing a static report")
	rootCmd.AddCommand(inspectCmd)
}

// runInteractive launches the subgraph browser on the current terminal. It
// needs stdout to be an interactive terminal, since the browser reads raw
// arrow-key input.
func runInteractive(subgraphs []subgraph.Subgraph) {
	term, err := termio.NewTerminal()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := browser.New(term, subgraphs).Run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func printComponents(circ *circuit.Circuit) {
	comps := circ.Components()

	heading("components", len(comps))

	t := termio.NewFormattedTable(3, uint(len(comps))+1)
	t.SetRow(0,
		termio.NewFormattedText("name", termio.BoldAnsiEscape()),
		termio.NewFormattedText("definition", termio.BoldAnsiEscape()),
		termio.NewFormattedText("inputs", termio.BoldAnsiEscape()))

	for i, comp := range comps {
		t.SetRow(uint(i+1),
			termio.NewText(comp.Name),
			termio.NewText(comp.Definition.ClassName),
			termio.NewText(inputsSummary(comp)))
	}

	t.SetMaxWidths(48)
	t.Print(true)
	fmt.Println()
}

func inputsSummary(comp *circuit.Component) string {
	names := make([]string, 0, len(comp.Inputs))
	for name := range comp.Inputs {
		names = append(names, name)
	}

	return strings.Join(names, ", ")
}

func printSubgraphs(subgraphs []subgraph.Subgraph) {
	heading("subgraphs", len(subgraphs))

	t := termio.NewFormattedTable(3, uint(len(subgraphs))+1)
	t.SetRow(0,
		termio.NewFormattedText("entry", termio.BoldAnsiEscape()),
		termio.NewFormattedText("kind", termio.BoldAnsiEscape()),
		termio.NewFormattedText("calls", termio.BoldAnsiEscape()))

	for i, sg := range subgraphs {
		kind := "call_group"
		if sg.Entry == subgraph.EntryTimer {
			kind = "timer"
		}

		names := make([]string, len(sg.Calls))
		for j, c := range sg.Calls {
			names[j] = c.Name
		}

		t.SetRow(uint(i+1),
			termio.NewText(sg.EntryName),
			termio.NewText(kind),
			termio.NewText(strings.Join(names, ", ")))
	}

	t.SetMaxWidths(56)
	t.Print(true)
	fmt.Println()
}

func printVariables(table *annotate.Table) {
	entries := table.All()

	heading("variables", len(entries))

	t := termio.NewFormattedTable(3, uint(len(entries))+1)
	t.SetRow(0,
		termio.NewFormattedText("output", termio.BoldAnsiEscape()),
		termio.NewFormattedText("storage", termio.BoldAnsiEscape()),
		termio.NewFormattedText("validity", termio.BoldAnsiEscape()))

	for i, gv := range entries {
		row := uint(i + 1)
		storage := termio.NewText(gv.Var.String())

		if gv.Var == annotate.VarStored {
			storage = termio.NewColouredText(gv.Var.String(), termio.TERM_YELLOW)
		}

		t.SetRow(row, termio.NewText(gv.Ref.String()), storage, termio.NewText(gv.Valid.String()))
	}

	t.SetMaxWidths(48)
	t.Print(true)
}

func heading(title string, count int) {
	fmt.Printf("%s (%d)\n", title, count)
}
