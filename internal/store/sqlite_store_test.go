package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupSQLiteStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	store, _ := setupSQLiteStore(t)

	original := createTestRecord("sqlite-run")
	if err := store.SaveRun(original); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	loaded, err := store.LoadRun("sqlite-run")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.Result.BestEnergy != original.Result.BestEnergy {
		t.Errorf("BestEnergy mismatch: expected %f, got %f", original.Result.BestEnergy, loaded.Result.BestEnergy)
	}
	if loaded.Result.FinalSequences["A"] != "MKVA" {
		t.Errorf("FinalSequences mismatch: got %v", loaded.Result.FinalSequences)
	}

	original.Result.BestEnergy = -3
	if err := store.SaveRun(original); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	loaded, err = store.LoadRun("sqlite-run")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.Result.BestEnergy != -3 {
		t.Errorf("Expected overwritten BestEnergy=-3, got %f", loaded.Result.BestEnergy)
	}
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store, _ := setupSQLiteStore(t)

	if _, err := store.LoadRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
	if err := store.DeleteRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	store, _ := setupSQLiteStore(t)

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		rec := createTestRecord(id)
		rec.Timestamp = base.Add(time.Duration(i) * time.Second)
		if err := store.SaveRun(rec); err != nil {
			t.Fatalf("SaveRun %s failed: %v", id, err)
		}
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(infos))
	}
	if infos[0].ID != "c" || infos[2].ID != "a" {
		t.Errorf("Expected newest first, got %s, %s, %s", infos[0].ID, infos[1].ID, infos[2].ID)
	}
	if infos[0].StepsRun != 100 || infos[0].Chains != 2 {
		t.Errorf("Unexpected info: %+v", infos[0])
	}
}

func TestSQLiteStore_DeleteRemovesTrace(t *testing.T) {
	store, dir := setupSQLiteStore(t)

	if err := store.SaveRun(createTestRecord("traced")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	writer, err := NewTraceWriter(dir, "traced", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	writer.Close()

	if err := store.DeleteRun("traced"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "runs", "traced")); !os.IsNotExist(err) {
		t.Error("Trace directory still exists after delete")
	}
	if _, err := store.LoadRun("traced"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError after delete, got %v", err)
	}
}

func TestSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("Expected error for empty path")
	}
}
