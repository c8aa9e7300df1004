package sim

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"stardust/internal/config"
	"stardust/internal/particles"
	"stardust/internal/world"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.World.Width = 24
	cfg.World.Height = 16
	cfg.Engine.Workers = 2
	cfg.Engine.TPS = 500
	cfg.Scene.Name = "box"
	return cfg
}

func newTestSim(t *testing.T, cfg *config.Config) *Sim {
	t.Helper()
	s, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func countType(w *world.World, typ uint8) int {
	r := w.Window()
	n := 0
	for y := r.Y1; y < r.Y2; y++ {
		for x := r.X1; x < r.X2; x++ {
			if w.Cells.Type[w.Index(x, y)] == typ {
				n++
			}
		}
	}
	return n
}

func TestScenesMatchConfig(t *testing.T) {
	var names []string
	for name := range scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	want := append([]string(nil), config.Scenes...)
	sort.Strings(want)
	if len(names) != len(want) {
		t.Fatalf("scenes = %v, config lists %v", names, want)
	}
	for i := range names {
		if names[i] != want[i] {
			t.Fatalf("scenes = %v, config lists %v", names, want)
		}
	}
}

func TestNewPopulatesScene(t *testing.T) {
	s := newTestSim(t, testConfig(t))
	if s.Pool.Workers() != 2 {
		t.Fatalf("workers = %d, want 2", s.Pool.Workers())
	}
	if got, want := countType(s.World, particles.TypeWall), 2*24+2*14; got != want {
		t.Fatalf("walls = %d, want %d", got, want)
	}
	if got, want := countType(s.World, particles.TypeAir), 22*14; got != want {
		t.Fatalf("air = %d, want %d", got, want)
	}
	if s.RunID() != 0 {
		t.Fatalf("run id without journal = %d", s.RunID())
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.World.Wrapping = []string{"wall", "wall", "wall", "lava"}
	if _, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("unknown wrapping type accepted")
	}
	cfg = testConfig(t)
	cfg.Engine.TPS = 0
	if _, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("zero tps accepted")
	}
}

func TestPopulateUnknownScene(t *testing.T) {
	s := newTestSim(t, testConfig(t))
	if err := Populate(s.Editor, "volcano", 1); err == nil {
		t.Fatal("unknown scene accepted")
	}
}

func TestEveryScenePopulates(t *testing.T) {
	s := newTestSim(t, testConfig(t))
	for _, name := range config.Scenes {
		if err := Populate(s.Editor, name, 7); err != nil {
			t.Fatalf("Populate(%s): %v", name, err)
		}
		if name != "empty" && countType(s.World, particles.TypeWall) == 0 {
			t.Fatalf("scene %s has no walls", name)
		}
	}
}

func TestRunUnthrottled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scene.Name = "sandbox"
	s := newTestSim(t, cfg)
	sand := countType(s.World, particles.TypeSand)

	rep, err := s.Run(context.Background(), RunOptions{Ticks: 30, Unthrottled: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Ticks != 30 || s.World.Tick() != 30 {
		t.Fatalf("ticks = %d (world %d), want 30", rep.Ticks, s.World.Tick())
	}
	if rep.Coordinator.Advanced != 30 {
		t.Fatalf("advanced = %d, want 30", rep.Coordinator.Advanced)
	}
	if rep.Moves == 0 {
		t.Fatal("nothing moved in a sandbox")
	}
	if got := countType(s.World, particles.TypeSand); got != sand {
		t.Fatalf("sand count %d -> %d", sand, got)
	}
	for i, v := range s.World.Cells.Lock {
		if v != 0 {
			t.Fatalf("cell %d still locked by %d", i, v)
		}
	}
}

func TestRunThrottledStopsOnCancel(t *testing.T) {
	s := newTestSim(t, testConfig(t))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	rep, err := s.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Ticks <= 0 {
		t.Fatalf("ticks = %d, want some progress", rep.Ticks)
	}
	for i := 0; i < s.Pool.Workers(); i++ {
		if st := s.World.Status(i); st != world.StatusIdle {
			t.Fatalf("worker %d status = %v after run", i, st)
		}
	}
}

func TestRunJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	s := newTestSim(t, cfg)
	if s.RunID() == 0 {
		t.Fatal("no run started")
	}

	if _, err := s.Run(context.Background(), RunOptions{Ticks: 10, Unthrottled: true, SampleEvery: time.Millisecond}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ctx := context.Background()
	runs, err := s.Journal.Runs(ctx, 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %+v, %v", runs, err)
	}
	if runs[0].Summary == nil || runs[0].Summary.Ticks != 10 || runs[0].Workers != 2 {
		t.Fatalf("summary = %+v", runs[0].Summary)
	}
	// Ready events reach the journal through the dispatch goroutine.
	deadline := time.Now().Add(time.Second)
	for {
		if err := s.Journal.Flush(ctx); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		ready, err := s.Journal.Events(ctx, s.RunID(), "ready")
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		if len(ready) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("ready events = %+v, want 2", ready)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSweep(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Path = filepath.Join(t.TempDir(), "unused.db")
	results := Sweep(context.Background(), cfg, SweepOptions{
		Scenes:  []string{"box", "sandbox"},
		Workers: []int{1, 2},
		Ticks:   5,
	}, slog.New(slog.DiscardHandler))
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for i, res := range results {
		if res.Err != "" {
			t.Fatalf("%s: %s", res.Case, res.Err)
		}
		if res.Report.Ticks != 5 || res.Report.Pool.Workers != res.Case.Workers {
			t.Fatalf("%s: report %+v", res.Case, res.Report)
		}
		if i > 0 && res.Report.TicksPerSec > results[i-1].Report.TicksPerSec {
			t.Fatal("results not sorted by throughput")
		}
	}
	if cfg.Scene.Name != "box" || cfg.Engine.Workers != 2 {
		t.Fatal("sweep mutated the base config")
	}
}

func TestRecordSampleWritesJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	s := newTestSim(t, cfg)
	if _, err := s.Coord.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := s.recordSample(context.Background()); err != nil {
		t.Fatalf("recordSample: %v", err)
	}
	samples, err := s.Journal.Samples(context.Background(), s.RunID())
	if err != nil || len(samples) != 1 || samples[0].Tick != 1 || samples[0].Advanced != 1 {
		t.Fatalf("samples = %+v, %v", samples, err)
	}
}

func TestResize(t *testing.T) {
	s := newTestSim(t, testConfig(t))
	r := world.Rect{X1: 2, Y1: 2, X2: 10, Y2: 8}
	if err := s.Resize(context.Background(), r); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if got := s.World.Window(); got != r {
		t.Fatalf("window = %+v, want %+v", got, r)
	}
	if got := s.Editor.Window(); got != r {
		t.Fatalf("editor window = %+v", got)
	}
	if err := s.Resize(context.Background(), world.Rect{X2: 100, Y2: 100}); err == nil {
		t.Fatal("window larger than the world accepted")
	}
	if _, err := s.Coord.Step(context.Background()); err != nil {
		t.Fatalf("Step after resize: %v", err)
	}
}
