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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/pkg/validation"
	"github.com/AleutianAI/AleutianSearch/services/search/storage"
)

func newRunsCmd(a *app) *cobra.Command {
	runs := &cobra.Command{
		Use:   "runs",
		Short: "Browse the history of saved runs",
	}

	var opts storage.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			recs, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				a.printer.Info("no runs recorded")
				return nil
			}
			renderRuns(a.printer, recs)
			return nil
		},
	}
	list.Flags().StringVarP(&opts.Algorithm, "algorithm", "a", "", "Only runs of this algorithm")
	list.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum runs to show (0 for all)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one saved run with its configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateRunID(args[0]); err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderRun(a.printer, rec)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete saved runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateRunIDs(args); err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					return err
				}
				a.printer.Success("deleted " + id)
			}
			return nil
		},
	}

	runs.AddCommand(list, show, del)
	return runs
}
