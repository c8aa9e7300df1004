package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"stardust/internal/config"
	"stardust/internal/sim"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [key=value...]",
		Short: "Measure throughput across scenes and worker counts",
		Long: `Run every scene with every worker count, unthrottled, and rank the
results by ticks per second.

Examples:
  stardust-cli sweep
  stardust-cli sweep --workers 1,2,4,8 --scenes sandbox --ticks 500 width=512 height=512`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			scenes, _ := cmd.Flags().GetStringSlice("scenes")
			workers, _ := cmd.Flags().GetIntSlice("workers")
			ticks, _ := cmd.Flags().GetInt("ticks")
			parallel, _ := cmd.Flags().GetInt("parallel")

			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			for _, n := range workers {
				if n <= 0 {
					return fmt.Errorf("worker counts must be positive, got %d", n)
				}
			}

			results := sim.Sweep(cmd.Context(), cfg, sim.SweepOptions{
				Scenes:   scenes,
				Workers:  workers,
				Ticks:    ticks,
				Parallel: parallel,
			}, newLogger(cmd, cfg))

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tSCENE\tWORKERS\tTPS\tELAPSED\tMOVES\tERROR")
			for i, res := range results {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f\t%s\t%d\t%s\n", i+1, res.Case.Scene, res.Case.Workers,
					res.Report.TicksPerSec, res.Report.Elapsed.Round(time.Millisecond), res.Report.Moves, res.Err)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSlice("scenes", config.Scenes, "Scenes to run")
	cmd.Flags().IntSlice("workers", []int{1, 2, 4}, "Worker counts to try")
	cmd.Flags().Int("ticks", 200, "Ticks per case")
	cmd.Flags().Int("parallel", 1, "Cases run at once")
	return cmd
}
