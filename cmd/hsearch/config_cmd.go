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

	"github.com/AleutianAI/AleutianSearch/services/search/engine"
)

func newConfigCmd(a *app) *cobra.Command {
	var (
		file        string
		listOptions bool
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective search configuration as YAML",
		Long: `config validates and prints the configuration every search would use:
defaults, then the YAML file, then HSEARCH_* environment variables, then
-o overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if listOptions {
				for _, name := range engine.OptionNames() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			cfg := a.cfg
			if file != "" {
				var err error
				if cfg, err = a.loadConfig(file); err != nil {
					return err
				}
			}
			data, err := cfg.MarshalYAMLBytes()
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Configuration file (overrides --config)")
	cmd.Flags().BoolVar(&listOptions, "options", false, "List option names accepted by -o and HSEARCH_*")
	return cmd
}
