package archive

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTrace() []epistemic.Snapshot {
	return []epistemic.Snapshot{
		{Step: 0, Received: 0.1, Projection: 0.03, Memory: 0.01, Distortion: 0.1, Threshold: 0.35},
		{Step: 1, Received: 2, Projection: 0, Memory: 0, Distortion: 1.97, Threshold: 0.3505, Ruptured: true, CollapseType: "default"},
		{Step: 2, Received: 0.1, Projection: 0.03, Memory: 0.01, Distortion: 0.1, Threshold: 0.35},
	}
}

func TestSaveRunAndCurrent(t *testing.T) {
	s := tempDB(t)

	rec, err := s.SaveRun(RunRecord{Label: "first", ScenarioJSON: `{"steps":3}`}, sampleTrace())
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if rec.RunID == "" {
		t.Fatal("expected generated run ID")
	}
	if rec.Steps != 3 || rec.Ruptures != 1 {
		t.Fatalf("derived counts: steps=%d ruptures=%d", rec.Steps, rec.Ruptures)
	}

	cur, err := s.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.RunID != rec.RunID || cur.Label != "first" || cur.ScenarioJSON != `{"steps":3}` {
		t.Fatalf("unexpected current run %+v", cur)
	}
	if cur.ParentID != "" || cur.SetupJSON != "" {
		t.Fatal("empty columns should read back empty")
	}
}

func TestTraceRoundTrip(t *testing.T) {
	s := tempDB(t)
	rec, err := s.SaveRun(RunRecord{}, sampleTrace())
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadTrace(rec.RunID)
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	if diff := cmp.Diff(sampleTrace(), got); diff != "" {
		t.Fatalf("trace (-want +got):\n%s", diff)
	}
}

func TestLineageAndSetActive(t *testing.T) {
	s := tempDB(t)
	root, _ := s.SaveRun(RunRecord{Label: "root"}, sampleTrace())
	child, err := s.SaveRun(RunRecord{ParentID: root.RunID, Label: "replay"}, sampleTrace())
	if err != nil {
		t.Fatalf("SaveRun child: %v", err)
	}

	chain, err := s.Lineage(child.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 2 || chain[0].RunID != child.RunID || chain[1].RunID != root.RunID {
		t.Fatalf("unexpected lineage %+v", chain)
	}

	if err := s.SetActive(root.RunID); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	cur, _ := s.Current()
	if cur.RunID != root.RunID {
		t.Fatalf("expected root active, got %s", cur.RunID)
	}
	if err := s.SetActive("nonexistent"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestSaveRunUnknownParent(t *testing.T) {
	s := tempDB(t)
	if _, err := s.SaveRun(RunRecord{ParentID: "missing"}, sampleTrace()); err == nil {
		t.Fatal("expected foreign key failure for unknown parent")
	}
	if runs, _ := s.ListRuns(10); len(runs) != 0 {
		t.Fatalf("failed save must not leave a run behind, found %d", len(runs))
	}
}

func TestListRuns(t *testing.T) {
	s := tempDB(t)
	s.SaveRun(RunRecord{}, sampleTrace())
	s.SaveRun(RunRecord{}, nil)

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	runs, _ = s.ListRuns(1)
	if len(runs) != 1 {
		t.Fatalf("limit ignored, got %d", len(runs))
	}
}

func TestCurrentNoActiveRun(t *testing.T) {
	s := tempDB(t)
	if _, err := s.Current(); err == nil {
		t.Fatal("expected error when no run is active")
	}
}

func TestFindRun(t *testing.T) {
	s := tempDB(t)
	a, _ := s.SaveRun(RunRecord{RunID: "aaaa-1111", Label: "a"}, sampleTrace())
	s.SaveRun(RunRecord{RunID: "aaab-2222", Label: "b"}, sampleTrace())

	got, err := s.FindRun("aaaa")
	if err != nil {
		t.Fatalf("FindRun prefix: %v", err)
	}
	if got.RunID != a.RunID {
		t.Fatalf("got %s, want %s", got.RunID, a.RunID)
	}
	if _, err := s.FindRun("aaa"); err == nil {
		t.Fatal("expected ambiguous prefix error")
	}
	if _, err := s.FindRun("zzz"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	active, err := s.FindRun("")
	if err != nil || active.Label != "b" {
		t.Fatalf("empty ref should select the active run, got %+v (%v)", active, err)
	}
}

func TestFindRunPrefixIsLiteral(t *testing.T) {
	s := tempDB(t)
	s.SaveRun(RunRecord{RunID: "aaaa-1111", Label: "a"}, sampleTrace())
	s.SaveRun(RunRecord{RunID: "aa_b-2222", Label: "b"}, sampleTrace())

	for _, ref := range []string{"aaa_", "%", "a%1", "____"} {
		if _, err := s.FindRun(ref); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("FindRun(%q): want ErrRunNotFound, got %v", ref, err)
		}
	}
	got, err := s.FindRun("aa_")
	if err != nil {
		t.Fatalf("FindRun(aa_): %v", err)
	}
	if got.Label != "b" {
		t.Fatalf("aa_ should match only the literal underscore run, got %s", got.RunID)
	}
}

func TestListRunsOrdersSubSecondTimes(t *testing.T) {
	s := tempDB(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.SaveRun(RunRecord{Label: "whole", CreatedAt: base}, sampleTrace())
	s.SaveRun(RunRecord{Label: "half", CreatedAt: base.Add(500 * time.Millisecond)}, sampleTrace())
	s.SaveRun(RunRecord{Label: "earlier", CreatedAt: base.Add(-time.Second)}, sampleTrace())

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	var got []string
	for _, r := range runs {
		got = append(got, r.Label)
	}
	if diff := cmp.Diff([]string{"half", "whole", "earlier"}, got); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if !runs[0].CreatedAt.Equal(base.Add(500 * time.Millisecond)) {
		t.Fatalf("created_at round trip: %v", runs[0].CreatedAt)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetRun("nonexistent"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := s.SaveRun(RunRecord{}, sampleTrace())
	s.Close()

	if _, err := s.SaveRun(RunRecord{}, sampleTrace()); err == nil {
		t.Error("SaveRun: expected error on closed DB")
	}
	if _, err := s.LoadTrace(rec.RunID); err == nil {
		t.Error("LoadTrace: expected error on closed DB")
	}
	if _, err := s.ListRuns(10); err == nil {
		t.Error("ListRuns: expected error on closed DB")
	}
	if err := s.SetActive(rec.RunID); err == nil {
		t.Error("SetActive: expected error on closed DB")
	}
}

func TestSaveRun_SnapshotTableMissing(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}
	db.Exec("DROP TABLE snapshots")

	s := &Store{db: db}
	if _, err := s.SaveRun(RunRecord{}, sampleTrace()); err == nil {
		t.Fatal("expected error when snapshots table is missing")
	}
}
