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

// Command circuitc is the dataflow-circuit compiler's command-line tool.
// See pkg/cmd for its subcommands (check, compile, inspect, fmt).
package main

import "github.com/dataflowc/circuitc/pkg/cmd"

// version is overridden at build time via -ldflags "-X main.version=...".
var version string

func main() {
	cmd.Version = version
	cmd.Execute()
}
