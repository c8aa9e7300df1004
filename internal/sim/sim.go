// Package sim wires a world, its worker pool, the tick coordinator and the
// optional run journal into one simulation, and runs it without a window.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"stardust/internal/config"
	"stardust/internal/engine"
	"stardust/internal/journal"
	"stardust/internal/particles"
	"stardust/internal/world"
)

// Sim is a running simulation.
type Sim struct {
	cfg    *config.Config
	logger *slog.Logger

	World   *world.World
	Rules   *engine.RuleSet
	Pool    *engine.Pool
	Coord   *engine.Coordinator
	Editor  *engine.Editor
	Journal *journal.Journal

	runID int64
}

// New allocates the world, starts the pool and populates the configured
// scene. Close releases everything.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Sim, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	w, err := world.New(world.Options{
		MaxWidth:   cfg.World.Width,
		MaxHeight:  cfg.World.Height,
		MaxWorkers: world.MaxWorkers,
		MaxBytes:   cfg.World.MaxBytes,
	})
	if err != nil {
		return nil, err
	}
	s := &Sim{
		cfg:    cfg,
		logger: logger,
		World:  w,
		Rules:  particles.Rules(),
		Coord:  engine.NewCoordinator(w, logger.With("component", "coordinator")),
	}
	s.Editor = engine.NewEditor(w, s.Rules, world.OwnerMain)

	if err := s.applyWrapping(ctx); err != nil {
		s.Close()
		return nil, err
	}

	var sink engine.EventSink
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Journal = j
		sink = j
	}

	workers := cfg.Engine.Workers
	if workers == 0 {
		workers = engine.DefaultWorkers(runtime.NumCPU())
	}
	s.Pool = engine.NewPool(w, s.Rules, engine.PoolOptions{
		Workers:        workers,
		IterationLimit: cfg.Engine.IterationLimit,
		Logger:         logger,
		Sink:           sink,
	})
	if err := s.Pool.Start(); err != nil {
		s.Close()
		return nil, err
	}

	if err := Populate(s.Editor, cfg.Scene.Name, cfg.Scene.Seed); err != nil {
		s.Close()
		return nil, err
	}

	if s.Journal != nil {
		id, err := s.Journal.StartRun(ctx, journal.RunInfo{
			Width:   cfg.World.Width,
			Height:  cfg.World.Height,
			Workers: s.Pool.Workers(),
			Scene:   cfg.Scene.Name,
			Seed:    cfg.Scene.Seed,
			Config:  cfg,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.runID = id
	}

	logger.Info("simulation ready",
		"width", cfg.World.Width, "height", cfg.World.Height,
		"workers", s.Pool.Workers(), "scene", cfg.Scene.Name,
		"bytes", w.Descriptor().Bytes)
	return s, nil
}

func (s *Sim) applyWrapping(ctx context.Context) error {
	var edges [4]uint8
	for i, name := range s.cfg.World.Wrapping {
		id, ok := s.Rules.ByName(name)
		if !ok {
			return fmt.Errorf("wrapping edge %d: %w %q", i, engine.ErrUnknownType, name)
		}
		edges[i] = id
	}
	return s.World.SetWrapping(ctx, s.cfg.LockOptions(s.logger), edges)
}

// Config returns the configuration the simulation was built from.
func (s *Sim) Config() *config.Config { return s.cfg }

// Logger returns the simulation's logger.
func (s *Sim) Logger() *slog.Logger { return s.logger }

// RunID returns the journal run id, or zero without a journal.
func (s *Sim) RunID() int64 { return s.runID }

// Resize changes the simulation window under the global lock.
func (s *Sim) Resize(ctx context.Context, r world.Rect) error {
	return s.World.SetWindow(ctx, s.cfg.LockOptions(s.logger), r)
}

// Close stops the workers and releases the journal and the shared block.
func (s *Sim) Close() error {
	var errs []error
	if s.Pool != nil {
		s.Pool.Stop()
	}
	if s.Journal != nil {
		errs = append(errs, s.Journal.Close())
	}
	if s.World != nil {
		errs = append(errs, s.World.Close())
	}
	return errors.Join(errs...)
}
