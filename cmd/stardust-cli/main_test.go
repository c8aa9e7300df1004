package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sugawarayuuta/sonnet"

	"stardust/internal/journal"
	"stardust/internal/sim"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--log-level", "error"))
	if err := root.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, errOut.String())
	}
	return out.String()
}

func TestVersion(t *testing.T) {
	if got := execute(t, "version"); !strings.Contains(got, version) {
		t.Fatalf("version output = %q", got)
	}
	var v map[string]string
	if err := sonnet.Unmarshal([]byte(execute(t, "version", "--json")), &v); err != nil || v["version"] != version {
		t.Fatalf("json version = %v, %v", v, err)
	}
}

func TestLayout(t *testing.T) {
	var out layoutOutput
	raw := execute(t, "layout", "--json", "--max-workers", "4", "width=8", "height=4")
	if err := sonnet.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode: %v\n%s", err, raw)
	}
	if out.Width != 8 || out.Height != 4 || out.Workers != 4 {
		t.Fatalf("header = %+v", out)
	}
	if len(out.Fields) != 19 || out.Fields[0].Name != "global_lock" {
		t.Fatalf("fields = %+v", out.Fields)
	}
	last := out.Fields[len(out.Fields)-1]
	if last.Offset+last.Bytes != out.Total {
		t.Fatalf("last field ends at %d, total %d", last.Offset+last.Bytes, out.Total)
	}

	text := execute(t, "layout", "width=8", "height=4")
	if !strings.Contains(text, "scratch_b") || !strings.Contains(text, out.Checksum) {
		t.Fatalf("text layout = %s", text)
	}
}

func TestRunAndJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	png := filepath.Join(t.TempDir(), "frame.png")

	var rep sim.Report
	raw := execute(t, "run", "--json", "--ticks", "5", "--unthrottled", "--snapshot", png,
		"width=16", "height=12", "workers=2", "scene=sandbox", "journal="+db)
	if err := sonnet.Unmarshal([]byte(raw), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, raw)
	}
	if rep.Ticks != 5 || rep.Pool.Workers != 2 {
		t.Fatalf("report = %+v", rep)
	}

	var runs []journal.Run
	if err := sonnet.Unmarshal([]byte(execute(t, "journal", "runs", "--json", "--db", db)), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Scene != "sandbox" || runs[0].Summary == nil || runs[0].Summary.Ticks != 5 {
		t.Fatalf("runs = %+v", runs)
	}

	events := execute(t, "journal", "events", "--db", db, "--kind", "ready", "1")
	if strings.Count(events, " ready") != 2 {
		t.Fatalf("ready events = %q", events)
	}
}

func TestJournalNeedsPath(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"journal", "runs"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "no journal") {
		t.Fatalf("err = %v", err)
	}
}

func TestSweep(t *testing.T) {
	out := execute(t, "sweep", "--scenes", "box", "--workers", "1,2", "--ticks", "3", "width=12", "height=12")
	if !strings.HasPrefix(out, "RANK") || strings.Count(out, "box") != 2 {
		t.Fatalf("sweep output = %q", out)
	}
}

func TestBadOverride(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"layout", "width"})
	if err := root.Execute(); err == nil {
		t.Fatal("override without = accepted")
	}
}
