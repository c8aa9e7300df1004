package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stardust/internal/shm"
	"stardust/internal/world"
)

type layoutField struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Count  int    `json:"count"`
	Offset int    `json:"offset"`
	Bytes  int    `json:"bytes"`
}

type layoutOutput struct {
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Workers  int           `json:"workers"`
	Total    int           `json:"total"`
	Checksum string        `json:"checksum"`
	Fields   []layoutField `json:"fields"`
}

func newLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout [key=value...]",
		Short: "Print the shared memory layout for the configured world",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			workers, _ := cmd.Flags().GetInt("max-workers")

			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			plan, err := shm.Layout(world.Fields(cfg.World.Width, cfg.World.Height, workers))
			if err != nil {
				return err
			}

			out := layoutOutput{
				Width:    cfg.World.Width,
				Height:   cfg.World.Height,
				Workers:  workers,
				Total:    plan.Total,
				Checksum: fmt.Sprintf("%016x", plan.Checksum()),
			}
			for _, p := range plan.Fields {
				out.Fields = append(out.Fields, layoutField{
					Name: p.Name, Kind: p.Kind.String(), Count: p.Count, Offset: p.Offset, Bytes: p.Bytes(),
				})
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%dx%d, %d worker slots, %d bytes, checksum %s\n\n", out.Width, out.Height, out.Workers, out.Total, out.Checksum)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FIELD\tKIND\tCOUNT\tOFFSET\tBYTES")
			for _, f := range out.Fields {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", f.Name, f.Kind, f.Count, f.Offset, f.Bytes)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("max-workers", world.MaxWorkers, "Worker status slots to reserve")
	return cmd
}
