package ui

import (
	"strings"
	"testing"

	"stardust/internal/particles"
	"stardust/internal/world"
)

func TestStatusLines(t *testing.T) {
	lines := Status{Scene: "box", Seed: 3, Tick: 12, TPS: 59.6, TargetTPS: 60, Workers: 4, Dropped: 2, Paused: true, Brush: 5}.Lines()
	want := []string{"box #3", "tick 12 (paused)", "tps 60/60", "workers 4", "dropped 2", "crashes 0", "brush 5"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestPalette(t *testing.T) {
	p := Palette(particles.Rules())
	var names []string
	for i, m := range p {
		names = append(names, m.Name)
		if i > 0 && m.ID <= p[i-1].ID {
			t.Fatalf("palette not in id order: %+v", p)
		}
	}
	if got := strings.Join(names, ","); got != "air,wall,sand,water" {
		t.Fatalf("palette = %s", got)
	}
	if p[1].Colour != 0x6E6A64FF {
		t.Fatalf("wall colour = %#x", p[1].Colour)
	}
}

func TestFillMask(t *testing.T) {
	w, err := world.New(world.Options{MaxWidth: 4, MaxHeight: 3, MaxWorkers: 1})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	defer w.Close()

	locked := w.Index(2, 1)
	if !w.TryAcquire(locked, world.OwnerMain) {
		t.Fatal("TryAcquire failed")
	}
	buf := FillMask(w, MaskLocks, nil)
	if len(buf) != 4*12 {
		t.Fatalf("mask length = %d", len(buf))
	}
	for i := 0; i < 12; i++ {
		lit := buf[i*4+3] != 0
		if lit != (i == 1*4+2) {
			t.Fatalf("pixel %d lit = %v", i, lit)
		}
	}
	w.Release(locked, world.OwnerMain)

	for i := range w.Cells.Stage {
		w.Cells.Stage[i] = 0
	}
	w.Cells.Stage[w.Index(0, 0)] = world.StageSettled
	buf = FillMask(w, MaskSettled, buf)
	if buf[3] == 0 || buf[7] != 0 {
		t.Fatalf("settled mask = %v", buf[:8])
	}
}
