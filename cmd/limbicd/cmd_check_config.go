// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/limbic/config"
)

var checkConfigPath string

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate a configuration file without starting the daemon",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(checkConfigPath)
		if err != nil {
			return err
		}
		fmt.Printf("%s: OK (%d threshold kinds, %d throttled kinds)\n",
			checkConfigPath, len(cfg.Thresholds), len(cfg.Bus.Cooldowns))
		return nil
	},
}

func init() {
	checkConfigCmd.Flags().StringVarP(&checkConfigPath, "config", "c", "limbic.yaml",
		"path to the configuration file")
	rootCmd.AddCommand(checkConfigCmd)
}
