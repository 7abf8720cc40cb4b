package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kydenul/promo"
)

func newHistoryCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, inspect and prune past promotion results",
	}
	cmd.AddCommand(
		newHistoryListCommand(root),
		newHistoryShowCommand(root),
		newHistoryRemoveCommand(root),
		newHistoryClearCommand(root),
	)
	return cmd
}

func newHistoryListCommand(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List past promotions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			entries := a.engine.History().Entries()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No promotion history yet.")
				return nil
			}
			for i, r := range entries {
				if limit > 0 && i >= limit {
					fmt.Fprintf(out, "... %d more\n", len(entries)-limit)
					break
				}
				fmt.Fprintf(out, "%s  %s\n", r.ID, promo.FormatHistoryLine(r, time.Local))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many results")
	return cmd
}

func newHistoryShowCommand(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the full ranked list of one promotion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			r, ok := a.engine.History().Get(args[0])
			if !ok {
				return fmt.Errorf("no promotion with id %s", args[0])
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			fmt.Fprint(out, promo.FormatSummary(r, time.Local))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored record as JSON")
	return cmd
}

func newHistoryRemoveCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove one promotion from the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			history := a.engine.History()
			if !history.Remove(cmd.Context(), args[0]) {
				return fmt.Errorf("no promotion with id %s", args[0])
			}
			if err := history.LastError(); err != nil {
				return fmt.Errorf("removed in memory but not saved: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newHistoryClearCommand(root *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the whole promotion history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear history without --yes")
			}

			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			history := a.engine.History()
			n := history.Len()
			history.Clear(cmd.Context())
			if err := history.LastError(); err != nil {
				return fmt.Errorf("history not cleared: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d results\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing the history")
	return cmd
}
