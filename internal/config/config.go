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

// Package config resolves the CLI's layered configuration: an explicit
// command-line flag always wins, an environment variable fills in a flag
// left at its default, and a JSON config file (--config) fills in anything
// neither of those set. This mirrors the flag-getter idiom the CLI
// subcommands already use (GetFlag/GetString/GetUint/GetStringArray),
// generalised so subcommands can express "this value may also come from the
// environment or a project file" without each reimplementing the fallback.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dataflowc/circuitc/pkg/circuit/callset"
)

// GetFlag gets an expected bool flag, or exits if an error arises.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// GetInt gets an expected signed integer flag, or exits if an error arises.
func GetInt(cmd *cobra.Command, flag string) int {
	r, err := cmd.Flags().GetInt(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// GetUint gets an expected unsigned integer flag, or exits if an error
// arises.
func GetUint(cmd *cobra.Command, flag string) uint {
	r, err := cmd.Flags().GetUint(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// GetString gets an expected string flag, or exits if an error arises.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// GetStringArray gets an expected string-array flag, or exits if an error
// arises.
func GetStringArray(cmd *cobra.Command, flag string) []string {
	r, err := cmd.Flags().GetStringArray(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// fileConfig is the shape of a --config JSON file: the lowest-priority
// layer, overridden by environment variables, themselves overridden by
// explicit flags.
type fileConfig struct {
	ResolverMode string            `json:"resolver_mode"`
	Verbose      *bool             `json:"verbose"`
	Workers      *int              `json:"workers"`
	Externs      map[string]string `json:"externs"`
}

// Config is the fully-resolved configuration for a circuitc invocation.
type Config struct {
	// ResolverMode selects whether an input slot with several wired sources
	// counts as fresh once any or only once all of them are fresh; the
	// Subgraph Discoverer applies it (see pkg/circuit/callset.Mode).
	ResolverMode callset.Mode
	// Verbose is the resolved verbosity (flag, CIRCUITC_VERBOSE, file). The
	// subcommands set the logrus level from the --verbose flag alone and do
	// not read this field.
	Verbose bool
	// Workers is the resolved --workers value (a worker count for
	// internal/parallel, where 0 or negative means one worker). No
	// subcommand passes it on: every pass runs sequentially.
	Workers int
	// Externs holds --set key=value overrides, the externalised constants
	// a circuit description may reference.
	Externs map[string]string
}

// Load resolves Config from cmd's flags, falling back to the CIRCUITC_*
// environment variables and then to the file named by --config (if given)
// for any flag left at its unchanged default.
func Load(cmd *cobra.Command) (*Config, error) {
	fc, err := loadFile(GetString(cmd, "config"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{Externs: map[string]string{}}

	cfg.ResolverMode = resolveMode(cmd, fc)
	cfg.Verbose = resolveBool(cmd, "verbose", "CIRCUITC_VERBOSE", fc.Verbose)
	cfg.Workers = resolveInt(cmd, "workers", "CIRCUITC_WORKERS", fc.Workers)

	for k, v := range fc.Externs {
		cfg.Externs[k] = v
	}

	for _, kv := range GetStringArray(cmd, "set") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("config: malformed --set value %q, expected key=value", kv)
		}

		cfg.Externs[k] = v
	}

	return cfg, nil
}

func loadFile(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return fc, nil
}

func resolveMode(cmd *cobra.Command, fc fileConfig) callset.Mode {
	value := GetString(cmd, "resolver-mode")

	if !cmd.Flags().Changed("resolver-mode") {
		if env := os.Getenv("CIRCUITC_RESOLVER_MODE"); env != "" {
			value = env
		} else if fc.ResolverMode != "" {
			value = fc.ResolverMode
		}
	}

	if strings.EqualFold(value, "all") {
		return callset.ModeAll
	}

	return callset.ModeAny
}

func resolveBool(cmd *cobra.Command, flag, envVar string, fileValue *bool) bool {
	if cmd.Flags().Changed(flag) {
		return GetFlag(cmd, flag)
	}

	if env := os.Getenv(envVar); env != "" {
		if b, err := strconv.ParseBool(env); err == nil {
			return b
		}
	}

	if fileValue != nil {
		return *fileValue
	}

	return GetFlag(cmd, flag)
}

func resolveInt(cmd *cobra.Command, flag, envVar string, fileValue *int) int {
	if cmd.Flags().Changed(flag) {
		return GetInt(cmd, flag)
	}

	if env := os.Getenv(envVar); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			return n
		}
	}

	if fileValue != nil {
		return *fileValue
	}

	return GetInt(cmd, flag)
}
