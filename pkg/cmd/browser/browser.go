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

// Package browser implements an interactive, raw-terminal view of a
// compiled circuit's subgraphs: a Tabs widget to switch between entry
// points and a Table widget listing that subgraph's component calls in
// topological order, navigated with the arrow keys.
package browser

import (
	"fmt"

	"github.com/dataflowc/circuitc/pkg/circuit/subgraph"
	"github.com/dataflowc/circuitc/pkg/util/termio"
	"github.com/dataflowc/circuitc/pkg/util/termio/widget"
)

// Browser drives an interactive subgraph view on top of a raw terminal
// session, mirroring the tabs/table/status-bar layout of a trace
// inspector (one tab per subgraph, a scrolling table of its calls).
type Browser struct {
	term      *termio.Terminal
	subgraphs []subgraph.Subgraph
	tabs      *widget.Tabs
	table     *widget.Table
	status    *widget.TextLine
}

// New constructs a Browser over the given subgraphs, attached to term.
func New(term *termio.Terminal, subgraphs []subgraph.Subgraph) *Browser {
	titles := make([]string, len(subgraphs))
	for i, sg := range subgraphs {
		titles[i] = sg.EntryName
	}

	b := &Browser{
		term:      term,
		subgraphs: subgraphs,
		tabs:      widget.NewTabs(titles...),
		status:    widget.NewText(),
	}

	b.table = widget.NewTable(b)
	b.refreshStatus()

	term.Add(b.tabs)
	term.Add(widget.NewSeparator("-"))
	term.Add(b.table)
	term.Add(widget.NewSeparator("-"))
	term.Add(b.status)

	return b
}

// Run drives the navigation loop until the user quits ('q' or Escape),
// restoring the terminal's prior state on exit.
func (b *Browser) Run() error {
	defer func() { _ = b.term.Restore() }()

	for {
		if err := b.term.Render(); err != nil {
			return err
		}

		key, err := b.term.ReadKey()
		if err != nil {
			return err
		}

		switch key {
		case 'q', termio.ESC:
			return nil
		case termio.CURSOR_LEFT:
			b.selectRelative(-1)
		case termio.CURSOR_RIGHT:
			b.selectRelative(1)
		}
	}
}

func (b *Browser) selectRelative(delta int) {
	n := len(b.subgraphs)
	if n == 0 {
		return
	}

	cur := int(b.tabs.Selected())
	next := ((cur+delta)%n + n) % n

	b.tabs.Select(uint(next))
	b.refreshStatus()
}

func (b *Browser) current() subgraph.Subgraph {
	return b.subgraphs[b.tabs.Selected()]
}

func (b *Browser) refreshStatus() {
	b.status.Clear()
	b.status.Add(termio.NewText(fmt.Sprintf("%d calls -- left/right to switch subgraphs, q to quit",
		len(b.current().Calls))))
}

// ColumnWidth implements widget.TableSource.
func (b *Browser) ColumnWidth(col uint) uint {
	if col == 0 {
		return 6
	}

	return 32
}

// Dimensions implements widget.TableSource.
func (b *Browser) Dimensions() (uint, uint) {
	return 2, uint(len(b.current().Calls))
}

// CellAt implements widget.TableSource: column 0 is the call's position,
// column 1 its component name and resolved callset(s).
func (b *Browser) CellAt(col, row uint) termio.FormattedText {
	calls := b.current().Calls
	if row >= uint(len(calls)) {
		return termio.NewText("")
	}

	call := calls[row]

	if col == 0 {
		return termio.NewText(fmt.Sprintf("%d", row))
	}

	names := ""

	for i, cs := range call.Callsets {
		if i > 0 {
			names += ","
		}

		names += cs.Name
	}

	return termio.NewText(fmt.Sprintf("%s [%s]", call.Name, names))
}
