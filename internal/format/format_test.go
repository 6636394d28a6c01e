package format_test

import (
	"strings"
	"testing"
	"time"

	"github.com/heraclitus0/epacog/internal/archive"
	"github.com/heraclitus0/epacog/internal/epistemic"
	"github.com/heraclitus0/epacog/internal/format"
	"github.com/heraclitus0/epacog/internal/logging"
	"github.com/heraclitus0/epacog/internal/sim"
	"github.com/heraclitus0/epacog/internal/threshold"
	"github.com/heraclitus0/epacog/internal/topology"
)

func sampleTrace() []epistemic.Snapshot {
	return []epistemic.Snapshot{
		{Step: 0, Received: 0.1, Projection: 0.03, Memory: 0.01, Distortion: 0.1, Threshold: 0.35},
		{Step: 1, Received: 2, Distortion: 1.97, Threshold: 0.35, Ruptured: true, CollapseType: "default"},
	}
}

func TestTraceASCII(t *testing.T) {
	out := format.Trace(format.ASCII, sampleTrace())
	for _, want := range []string{"Θ", "0.0300", "1.9700", "⚠", "⊙", "default"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestTraceMarkdown(t *testing.T) {
	out := format.Trace(format.Markdown, sampleTrace())
	if !strings.Contains(out, "| t") {
		t.Errorf("expected markdown header:\n%s", out)
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected markdown separator:\n%s", out)
	}
}

func TestSummaryAndTopology(t *testing.T) {
	trace := sampleTrace()
	out := format.Summary(format.ASCII, sim.Summarize(trace))
	if !strings.Contains(out, "collapse default") || !strings.Contains(out, "ruptures") {
		t.Errorf("summary output:\n%s", out)
	}

	field := topology.BuildField(trace)
	out = format.Topology(format.ASCII, topology.Describe(field, nil))
	if !strings.Contains(out, "first rupture") || !strings.Contains(out, "0.500") {
		t.Errorf("topology output:\n%s", out)
	}
	out = format.Topology(format.ASCII, topology.Describe(topology.BuildField(nil), nil))
	if !strings.Contains(out, "0.000") {
		t.Errorf("empty topology output:\n%s", out)
	}
}

func TestTopologyGroupsCollapsedZones(t *testing.T) {
	s := topology.Summary{
		TotalSteps: 6,
		ZoneDistribution: map[string]int{
			topology.ZoneStable:                      3,
			topology.ZoneCollapsedPrefix + "default": 2,
			topology.ZoneCollapsedPrefix + "rcc":     1,
		},
	}
	out := format.Topology(format.ASCII, s)
	var total string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "zone collapsed (all)") {
			total = line
		}
	}
	if total == "" || !strings.Contains(total, " 3 ") {
		t.Fatalf("collapsed total row missing or wrong:\n%s", out)
	}
	if strings.Contains(out, "zone collapsed:") {
		t.Errorf("collapsed zones should be listed under the total:\n%s", out)
	}
	iTotal := strings.Index(out, "zone collapsed (all)")
	iDefault := strings.Index(out, "collapsed:default")
	iRcc := strings.Index(out, "collapsed:rcc")
	if iDefault < iTotal || iRcc < iDefault {
		t.Errorf("collapsed rows out of order:\n%s", out)
	}
}

func TestRunsAndDecisions(t *testing.T) {
	runs := []archive.RunRecord{{
		RunID:     "0f8e2c1a-1111-2222-3333-444455556666",
		Label:     "baseline",
		Steps:     100,
		Ruptures:  4,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
	out := format.Runs(format.ASCII, runs)
	if !strings.Contains(out, "0f8e2c1a") || strings.Contains(out, "444455556666") {
		t.Errorf("run ids should be shortened:\n%s", out)
	}
	if !strings.Contains(out, "2026-01-02 03:04:05") {
		t.Errorf("created timestamp missing:\n%s", out)
	}

	entries := logging.EntriesFromTrace("run", sampleTrace())
	out = format.Decisions(format.Markdown, entries)
	if !strings.Contains(out, logging.DecisionRupture) || !strings.Contains(out, logging.DecisionRealign) {
		t.Errorf("decisions output:\n%s", out)
	}
}

func TestVariantsAndSetup(t *testing.T) {
	out := format.Variants(format.ASCII, "Threshold", threshold.Describe())
	if !strings.Contains(out, threshold.NameSaturating) {
		t.Errorf("variants output:\n%s", out)
	}
	out = format.Setup(format.Markdown, sim.Setup{Threshold: "default", CollapseModel: "none"})
	if !strings.Contains(out, "collapse model") || !strings.Contains(out, "none") {
		t.Errorf("setup output:\n%s", out)
	}
}

func TestParseModeAndHelpers(t *testing.T) {
	for in, want := range map[string]format.Mode{"": format.ASCII, "md": format.Markdown, "Markdown": format.Markdown} {
		got, err := format.ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := format.ParseMode("html"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if format.ShortID("abc") != "abc" || format.ShortID("") != "" {
		t.Error("ShortID should pass through ids without dashes")
	}
	if got := format.Float(0.5); got != "0.5000" {
		t.Errorf("Float: %s", got)
	}
}

func TestComparison(t *testing.T) {
	rows := []format.ComparisonRow{
		{Step: 0, Expected: format.Outcome(false, ""), Replayed: "realign"},
		{Step: 1, Expected: format.Outcome(true, "default"), Replayed: format.Outcome(true, "raw")},
	}
	out, diverge := format.Comparison(format.ASCII, rows)
	if diverge != 1 {
		t.Fatalf("diverge: got %d, want 1", diverge)
	}
	if !strings.Contains(out, "DIFF") || !strings.Contains(out, "rupture:default") {
		t.Errorf("comparison output:\n%s", out)
	}
}
