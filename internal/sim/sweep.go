package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"stardust/internal/config"
)

// SweepCase is one point of a sweep.
type SweepCase struct {
	Scene   string `json:"scene"`
	Workers int    `json:"workers"`
}

func (c SweepCase) String() string {
	return fmt.Sprintf("scene=%s workers=%d", c.Scene, c.Workers)
}

// SweepResult pairs a case with the report of its run.
type SweepResult struct {
	Case   SweepCase `json:"case"`
	Report Report    `json:"report"`
	Err    string    `json:"error,omitempty"`
}

// SweepOptions configures a sweep.
type SweepOptions struct {
	Scenes  []string
	Workers []int
	Ticks   int
	// Parallel is how many simulations run at once. Every simulation has its
	// own worker pool, so values above one mostly measure contention.
	Parallel int
}

// Sweep runs every scene with every worker count, unthrottled, and returns
// the results fastest first. Journals are disabled for sweep runs.
func Sweep(ctx context.Context, base *config.Config, opts SweepOptions, logger *slog.Logger) []SweepResult {
	if logger == nil {
		logger = slog.Default()
	}
	var cases []SweepCase
	for _, scene := range opts.Scenes {
		for _, n := range opts.Workers {
			cases = append(cases, SweepCase{Scene: scene, Workers: n})
		}
	}
	parallel := max(1, opts.Parallel)
	logger.Info("sweep starting", "cases", len(cases), "parallel", parallel, "ticks", opts.Ticks)

	jobs := make(chan SweepCase)
	results := make(chan SweepResult)
	var wg sync.WaitGroup

	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				results <- runCase(ctx, base, c, opts.Ticks, logger)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(jobs)
		for _, c := range cases {
			select {
			case jobs <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	start := time.Now()
	var all []SweepResult
	for res := range results {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		if (all[i].Err == "") != (all[j].Err == "") {
			return all[i].Err == ""
		}
		return all[i].Report.TicksPerSec > all[j].Report.TicksPerSec
	})
	logger.Info("sweep finished", "cases", len(all), "elapsed", time.Since(start).Round(time.Millisecond))
	return all
}

func runCase(ctx context.Context, base *config.Config, c SweepCase, ticks int, logger *slog.Logger) SweepResult {
	cfg := *base
	cfg.World.Wrapping = append([]string(nil), base.World.Wrapping...)
	cfg.Scene.Name = c.Scene
	cfg.Engine.Workers = c.Workers
	cfg.Journal.Path = ""

	res := SweepResult{Case: c}
	s, err := New(ctx, &cfg, logger.With("case", c.String()))
	if err != nil {
		res.Err = err.Error()
		return res
	}
	defer s.Close()

	rep, err := s.Run(ctx, RunOptions{Ticks: ticks, Unthrottled: true})
	res.Report = rep
	if err != nil {
		res.Err = err.Error()
	}
	return res
}
