package particles

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"stardust/internal/engine"
	"stardust/internal/world"
)

type harness struct {
	w     *world.World
	ed    *engine.Editor
	coord *engine.Coordinator
}

func newHarness(t *testing.T, width, height int) *harness {
	t.Helper()
	w, err := world.New(world.Options{MaxWidth: width, MaxHeight: height, MaxWorkers: 4})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	rules := Rules()
	logger := slog.New(slog.DiscardHandler)
	pool := engine.NewPool(w, rules, engine.PoolOptions{Workers: 1, Logger: logger})
	if err := pool.Start(); err != nil {
		t.Fatalf("pool.Start: %v", err)
	}
	t.Cleanup(pool.Stop)

	return &harness{w: w, ed: engine.NewEditor(w, rules, 0), coord: engine.NewCoordinator(w, logger)}
}

func (h *harness) step(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.coord.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}
}

func (h *harness) find(t *testing.T, typ uint8) []int {
	t.Helper()
	var out []int
	for i, v := range h.w.Cells.Type {
		if v == typ {
			out = append(out, i)
		}
	}
	return out
}

func TestBuiltinsRegistered(t *testing.T) {
	rs := Rules()
	for name, id := range map[string]uint8{"air": TypeAir, "wall": TypeWall, "sand": TypeSand, "water": TypeWater} {
		got, ok := rs.ByName(name)
		if !ok || got != id {
			t.Fatalf("ByName(%q) = %d,%v want %d", name, got, ok, id)
		}
	}
	if r, _ := rs.Lookup(TypeAir); !r.Static() {
		t.Fatal("air must be static")
	}
	if r, _ := rs.Lookup(TypeSand); r.Static() {
		t.Fatal("sand must be simulated")
	}
}

func TestSandFallsOneCellPerTickThenSettles(t *testing.T) {
	h := newHarness(t, 10, 10)
	if _, err := h.ed.Border(TypeWall); err != nil {
		t.Fatalf("Border: %v", err)
	}
	if err := h.ed.Set(5, 0, TypeSand); err != nil {
		t.Fatalf("Set: %v", err)
	}
	h.w.Cells.VelocityY[h.w.Index(5, 0)] = 1

	for tick := 1; tick <= 8; tick++ {
		h.step(t)
		sand := h.find(t, TypeSand)
		if len(sand) != 1 {
			t.Fatalf("tick %d: %d sand cells", tick, len(sand))
		}
		if x, y := h.w.Coord(sand[0]); x != 5 || y != tick {
			t.Fatalf("tick %d: sand at (%d,%d), want (5,%d)", tick, x, y, tick)
		}
	}

	h.step(t)
	sand := h.find(t, TypeSand)
	if x, y := h.w.Coord(sand[0]); x != 5 || y != 8 {
		t.Fatalf("resting sand moved to (%d,%d)", x, y)
	}
	if st := h.w.Cells.Stage[sand[0]]; st != world.StageSettled {
		t.Fatalf("resting sand stage = %d, want settled", st)
	}
	if n := len(h.find(t, TypeWall)); n != 35 {
		t.Fatalf("%d wall cells, want 35 (border minus the opening)", n)
	}
}

func TestSandSinksThroughWater(t *testing.T) {
	h := newHarness(t, 3, 4)
	if err := h.ed.Set(1, 3, TypeWater); err != nil {
		t.Fatalf("Set water: %v", err)
	}
	if err := h.ed.Set(1, 2, TypeSand); err != nil {
		t.Fatalf("Set sand: %v", err)
	}
	for i := 0; i < 10; i++ {
		h.step(t)
	}
	sand := h.find(t, TypeSand)
	if len(sand) != 1 || sand[0] != h.w.Index(1, 3) {
		t.Fatalf("sand cells %v, want only (1,3)", sand)
	}
	if water := h.find(t, TypeWater); len(water) != 1 {
		t.Fatalf("water cells %v, want exactly one", water)
	}
}

func TestWaterSpreadsSideways(t *testing.T) {
	h := newHarness(t, 5, 2)
	if err := h.ed.Set(2, 1, TypeWater); err != nil {
		t.Fatalf("Set: %v", err)
	}
	h.step(t)
	h.step(t)
	water := h.find(t, TypeWater)
	if len(water) != 1 {
		t.Fatalf("%d water cells", len(water))
	}
	x, y := h.w.Coord(water[0])
	if y != 1 || x == 2 {
		t.Fatalf("water at (%d,%d), want it to have moved along the floor", x, y)
	}
}

func TestResetColours(t *testing.T) {
	h := newHarness(t, 4, 4)
	if err := h.ed.Set(0, 0, TypeAir); err != nil {
		t.Fatal(err)
	}
	if got := h.w.Cells.Colour[0]; got != colourAir {
		t.Fatalf("air colour = %#x", got)
	}
	if err := h.ed.Set(1, 0, TypeSand); err != nil {
		t.Fatal(err)
	}
	if got := h.w.Cells.Colour[1]; got&0xFF != 0xFF {
		t.Fatalf("sand alpha = %#x, want opaque", got&0xFF)
	}
	if h.w.Cells.ScratchA[1] == 0 {
		t.Fatal("sand reset must seed its generator")
	}
}

func TestJitterClamps(t *testing.T) {
	if got := jitter(0xFFFFFF80, 10); got != 0xFFFFFF80 {
		t.Fatalf("jitter up = %#x", got)
	}
	if got := jitter(0x05050580, -10); got != 0x00000080 {
		t.Fatalf("jitter down = %#x", got)
	}
}
