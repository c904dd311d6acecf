// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

// Package logging provides the plugin's structured logger: hclog gated by
// the DEBUG environment variable (spec §6), since this is a subordinate
// process whose stdout is reserved for the JSON wire protocol.
package logging

import (
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// debugToken is the substring that, when present in the DEBUG environment
// variable's value, enables verbose diagnostics.
const debugToken = "codify"

// New builds a named logger. Diagnostics are written to stderr (never
// stdout, which carries the JSON-RPC stream) and are emitted at Debug
// level only when DEBUG contains debugToken; otherwise only warnings and
// errors are logged.
func New(name string) hclog.Logger {
	level := hclog.Warn
	if strings.Contains(os.Getenv("DEBUG"), debugToken) {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     os.Stderr,
		JSONFormat: true,
	})
}
