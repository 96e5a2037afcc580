// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// limbicd runs the limbic signal bus as a standalone daemon: the bus,
// the adaptive threshold engine, and the read-only inspection API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "limbicd",
	Short: "The limbic signal bus daemon",
	Long: `limbicd hosts an in-process signal bus with TTL decay, cooldown
rate limiting, pattern matching, and adaptive threshold triggers, and
exposes a read-only HTTP API for inspection.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
