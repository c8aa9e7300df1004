package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"stardust/internal/journal"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the run journal",
	}
	cmd.PersistentFlags().String("db", "", "Journal database (defaults to the configured path)")
	cmd.AddCommand(newJournalRunsCmd(), newJournalEventsCmd())
	return cmd
}

func openJournal(cmd *cobra.Command) (*journal.Journal, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no journal configured; pass --db or set journal.path")
	}
	return journal.Open(path)
}

func newJournalRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				if runs == nil {
					runs = []journal.Run{}
				}
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSIZE\tWORKERS\tSCENE\tTICKS\tDROPPED")
			for _, r := range runs {
				ticks, dropped := "-", "-"
				if r.Summary != nil {
					ticks = strconv.Itoa(int(r.Summary.Ticks))
					dropped = strconv.FormatUint(r.Summary.Tick.Dropped, 10)
				}
				fmt.Fprintf(tw, "%d\t%s\t%dx%d\t%d\t%s\t%s\t%s\n", r.ID, r.StartedAt.Local().Format(time.DateTime),
					r.Width, r.Height, r.Workers, r.Scene, ticks, dropped)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 = all)")
	return cmd
}

func newJournalEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <run-id>",
		Short: "List worker events of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			kind, _ := cmd.Flags().GetString("kind")

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer j.Close()

			events, err := j.Events(cmd.Context(), id, kind)
			if err != nil {
				return err
			}
			if jsonOut {
				if events == nil {
					events = []journal.EventRow{}
				}
				return writeJSON(cmd.OutOrStdout(), events)
			}
			w := cmd.OutOrStdout()
			for _, e := range events {
				tick := ""
				if e.Tick != nil {
					tick = fmt.Sprintf(" tick=%d", *e.Tick)
				}
				fmt.Fprintf(w, "%s worker=%d %s%s %v\n", e.At.Local().Format(time.TimeOnly), e.Worker, e.Kind, tick, e.Detail)
			}
			return nil
		},
	}
	cmd.Flags().String("kind", "", "Only show one kind: ready, load_failed, crashed, exited")
	return cmd
}
