package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelforge/internal/logging"
)

func mkdirAged(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if age > 0 {
		when := time.Now().Add(-age)
		if err := os.Chtimes(dir, when, when); err != nil {
			t.Fatalf("set time: %v", err)
		}
	}
	return dir
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldWorkspaces(t *testing.T) {
	root := t.TempDir()
	old := mkdirAged(t, root, "job-old", 2*time.Hour)
	recent := mkdirAged(t, root, "job-recent", 0)
	activeOld := mkdirAged(t, root, "job-running", 3*time.Hour)
	foreign := mkdirAged(t, root, "not-a-job", 5*time.Hour)

	result := CleanStale(context.Background(), root, time.Hour, map[string]struct{}{"running": {}}, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("removed = %v, want [%s]", result.Removed, old)
	}
	for _, keep := range []string{recent, activeOld, foreign} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("%s should still exist", keep)
		}
	}
}

func TestCleanOrphanedKeepsActiveJobs(t *testing.T) {
	root := t.TempDir()
	orphan := mkdirAged(t, root, "job-orphan", 0)
	active := mkdirAged(t, root, "job-active", 0)
	if err := os.WriteFile(filepath.Join(root, "job-file"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result := CleanOrphaned(context.Background(), root, map[string]struct{}{"active": {}}, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != orphan {
		t.Fatalf("removed = %v", result.Removed)
	}
	if _, err := os.Stat(active); err != nil {
		t.Fatalf("active workspace removed")
	}
}

func TestWorkspaceIsExclusive(t *testing.T) {
	root := t.TempDir()
	ws, err := Create(root, "abc")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ws.Dir() != filepath.Join(root, "job-abc") {
		t.Fatalf("dir = %s", ws.Dir())
	}
	if _, err := Create(root, "abc"); err == nil {
		t.Fatalf("expected second workspace for same job to fail")
	}
	if err := os.WriteFile(ws.Path("final.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	usage, err := Summarize(root)
	if err != nil || usage.Workspaces != 1 || usage.Bytes != 4 {
		t.Fatalf("usage = %+v, err %v", usage, err)
	}
	if err := ws.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Fatalf("workspace still present")
	}
	if _, err := Create(root, "../escape"); err == nil {
		t.Fatalf("expected invalid job id to be rejected")
	}
}
