package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"stardust/internal/render"
	"stardust/internal/sim"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [key=value...]",
		Short: "Run a scene headless",
		Long: `Run a scene for a number of ticks and print a throughput report.

Arguments override config keys, for example width=512 workers=4 scene=hourglass.

Examples:
  stardust-cli run --ticks 1000
  stardust-cli run --unthrottled scene=hourglass journal=runs.db
  stardust-cli run --ticks 300 --snapshot frame.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			ticks, _ := cmd.Flags().GetInt("ticks")
			unthrottled, _ := cmd.Flags().GetBool("unthrottled")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			snapshot, _ := cmd.Flags().GetString("snapshot")

			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			s, err := sim.New(ctx, cfg, newLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer s.Close()

			rep, err := s.Run(ctx, sim.RunOptions{Ticks: ticks, Unthrottled: unthrottled})
			if err != nil {
				return err
			}
			if snapshot != "" {
				if err := writeSnapshot(s, snapshot); err != nil {
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ticks:    %d in %s (%.1f/s)\n", rep.Ticks, rep.Elapsed.Round(time.Millisecond), rep.TicksPerSec)
			fmt.Fprintf(out, "dropped:  %d\n", rep.Coordinator.Dropped)
			fmt.Fprintf(out, "workers:  %d (%d load failures, %d crashes)\n", rep.Pool.Workers, rep.Pool.LoadFailures, rep.Pool.Crashes)
			fmt.Fprintf(out, "moves:    %d\n", rep.Moves)
			if id := s.RunID(); id != 0 {
				fmt.Fprintf(out, "journal:  run %d\n", id)
			}
			return nil
		},
	}
	cmd.Flags().Int("ticks", 600, "Ticks to advance (0 = until interrupted)")
	cmd.Flags().Bool("unthrottled", false, "Advance as fast as the workers allow")
	cmd.Flags().Duration("timeout", 0, "Stop after this long")
	cmd.Flags().String("snapshot", "", "Write the final frame to a PNG file")
	return cmd
}

func writeSnapshot(s *sim.Sim, path string) error {
	var fb render.Framebuffer
	fb.Copy(s.World)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := png.Encode(f, fb.Image()); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return f.Close()
}
