package trace

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/taskweave/taskweave/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "traces.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func sampleRun(id string, started time.Time) (Run, map[string]*models.Packet) {
	root := models.NewTask("ship it", "0")
	root.State = models.TaskStateDone
	root.Result = "shipped"

	sub := models.NewTask("write notes", "0.0")
	sub.State = models.TaskStateDone
	sub.Result = "notes written"

	packets := map[string]*models.Packet{
		"0":   {Task: root, PublisherID: "root", AssigneeID: "root", Status: models.PacketStatusClosed},
		"0.0": {Task: sub, PublisherID: "root", AssigneeID: "w1", Status: models.PacketStatusClosed, Attempt: 1},
	}

	finished := started.Add(time.Minute)
	run := Run{
		ID:          id,
		RootContent: root.Content,
		RootResult:  root.Result,
		Status:      RunStatusCompleted,
		StartedAt:   started,
		FinishedAt:  &finished,
	}
	return run, packets
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTestDB(t)

	run, packets := sampleRun("run-1", time.Now().Add(-time.Hour))
	if err := db.SaveRun(run, packets); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	loaded, err := db.LoadRun("run-1")
	if err != nil {
		t.Fatalf("LoadRun() error = %v", err)
	}

	if loaded.RootContent != "ship it" {
		t.Errorf("RootContent = %q, want %q", loaded.RootContent, "ship it")
	}
	if loaded.Status != RunStatusCompleted {
		t.Errorf("Status = %q, want %q", loaded.Status, RunStatusCompleted)
	}
	if loaded.FinishedAt == nil {
		t.Error("FinishedAt = nil, want set")
	}
	if len(loaded.Packets) != 2 {
		t.Fatalf("len(Packets) = %d, want 2", len(loaded.Packets))
	}

	// Packets come back ordered by task id.
	if loaded.Packets[0].TaskID != "0" || loaded.Packets[1].TaskID != "0.0" {
		t.Errorf("packet order = [%s %s], want [0 0.0]", loaded.Packets[0].TaskID, loaded.Packets[1].TaskID)
	}
	if loaded.Packets[1].Attempt != 1 {
		t.Errorf("Packets[1].Attempt = %d, want 1", loaded.Packets[1].Attempt)
	}
	if loaded.Packets[1].Result != "notes written" {
		t.Errorf("Packets[1].Result = %q, want %q", loaded.Packets[1].Result, "notes written")
	}
}

func TestLoadRunUnknownID(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadRun("missing"); err == nil {
		t.Fatal("LoadRun() error = nil, want error for unknown run")
	}
}

func TestRunsOrderedMostRecentFirst(t *testing.T) {
	db := openTestDB(t)

	base := time.Now().Add(-3 * time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run, packets := sampleRun(id, base.Add(time.Duration(i)*time.Hour))
		if err := db.SaveRun(run, packets); err != nil {
			t.Fatalf("SaveRun(%s) error = %v", id, err)
		}
	}

	runs, err := db.Runs(10)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	if runs[0].ID != "run-c" || runs[2].ID != "run-a" {
		t.Errorf("run order = [%s %s %s], want newest first", runs[0].ID, runs[1].ID, runs[2].ID)
	}
	if len(runs[0].Packets) != 0 {
		t.Errorf("Runs() included packets, want listing only")
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := openTestDB(t)

	old, oldPackets := sampleRun("run-old", time.Now().Add(-48*time.Hour))
	recent, recentPackets := sampleRun("run-new", time.Now().Add(-time.Hour))
	if err := db.SaveRun(old, oldPackets); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if err := db.SaveRun(recent, recentPackets); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	count, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns() error = %v", err)
	}
	if count != 1 {
		t.Errorf("purged = %d, want 1", count)
	}

	if _, err := db.LoadRun("run-old"); err == nil {
		t.Error("LoadRun(run-old) succeeded, want purged")
	}
	if _, err := db.LoadRun("run-new"); err != nil {
		t.Errorf("LoadRun(run-new) error = %v", err)
	}
}

func TestExportYAML(t *testing.T) {
	db := openTestDB(t)

	run, packets := sampleRun("run-1", time.Now().Add(-time.Hour))
	if err := db.SaveRun(run, packets); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	loaded, err := db.LoadRun("run-1")
	if err != nil {
		t.Fatalf("LoadRun() error = %v", err)
	}

	out, err := ExportYAML(loaded)
	if err != nil {
		t.Fatalf("ExportYAML() error = %v", err)
	}

	text := string(out)
	for _, fragment := range []string{"id: run-1", "root_content: ship it", "task_id: \"0.0\"", "status: completed"} {
		if !strings.Contains(text, fragment) {
			t.Errorf("yaml missing %q:\n%s", fragment, text)
		}
	}
}
