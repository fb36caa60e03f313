package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/seqdesign/internal/anneal"
	"github.com/cwbudde/seqdesign/internal/design"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

// createTestRecord creates a record with test data.
func createTestRecord(runID string) *Record {
	return &Record{
		ID:              runID,
		Timestamp:       time.Now(),
		Seed:            42,
		DurationSeconds: 1.5,
		Config: RunConfig{
			Chains:      []string{"A", "B"},
			Oracles:     []string{"FoldingOracle"},
			EnergyTerms: []string{"PLDDTEnergy"},
			Mutators:    []string{"RandomMutator"},
			Minimizer:   "SimpleMinimizer",
			Steps:       100,
		},
		Result: &anneal.Result{
			BestSequences:  design.Sequences{"A": "MKVL", "B": "WWYY"},
			BestEnergy:     -1.55,
			BestStep:       37,
			FinalSequences: design.Sequences{"A": "MKVA", "B": "WWYY"},
			FinalEnergy:    -1.4,
			Stats:          anneal.RunStats{StepsRun: 100, Accepted: 61, Improved: 9},
		},
	}
}

func TestNewFSStore(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store.BaseDir() != tempDir {
		t.Errorf("Expected base dir %s, got %s", tempDir, store.BaseDir())
	}
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveRun(t *testing.T) {
	store, tempDir := setupTestStore(t)

	runID := "test-run-123"
	if err := store.SaveRun(createTestRecord(runID)); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "runs", runID, "run.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Record file was not created at %s", expectedPath)
	}
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("Temp file should not exist after save: %s.tmp", expectedPath)
	}
}

func TestSaveRun_InvalidInput(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveRun(nil); err == nil {
		t.Error("Expected error for nil record")
	}
	if err := store.SaveRun(createTestRecord("")); err == nil {
		t.Error("Expected error for empty runID")
	}
}

func TestSaveRun_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	runID := "test-run-overwrite"
	first := createTestRecord(runID)
	first.Result.BestEnergy = -0.5
	second := createTestRecord(runID)
	second.Result.BestEnergy = -2.0

	if err := store.SaveRun(first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := store.SaveRun(second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.LoadRun(runID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Result.BestEnergy != -2.0 {
		t.Errorf("Expected BestEnergy=-2.0, got %f", loaded.Result.BestEnergy)
	}
}

func TestLoadRun(t *testing.T) {
	store, _ := setupTestStore(t)

	original := createTestRecord("test-run-load")
	if err := store.SaveRun(original); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	loaded, err := store.LoadRun(original.ID)
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}

	if loaded.ID != original.ID {
		t.Errorf("ID mismatch: expected %s, got %s", original.ID, loaded.ID)
	}
	if loaded.Seed != original.Seed {
		t.Errorf("Seed mismatch: expected %d, got %d", original.Seed, loaded.Seed)
	}
	if loaded.Result.BestEnergy != original.Result.BestEnergy {
		t.Errorf("BestEnergy mismatch: expected %f, got %f", original.Result.BestEnergy, loaded.Result.BestEnergy)
	}
	if loaded.Result.BestSequences["A"] != "MKVL" {
		t.Errorf("BestSequences mismatch: got %v", loaded.Result.BestSequences)
	}
	if loaded.Result.Stats.Accepted != 61 {
		t.Errorf("Stats.Accepted mismatch: expected 61, got %d", loaded.Result.Stats.Accepted)
	}
	if loaded.Config.Minimizer != original.Config.Minimizer {
		t.Errorf("Config.Minimizer mismatch: expected %s, got %s", original.Config.Minimizer, loaded.Config.Minimizer)
	}
}

func TestLoadRun_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadRun("nonexistent-run")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %T: %v", err, err)
	}

	if _, err := store.LoadRun(""); err == nil {
		t.Error("Expected error for empty runID")
	}
}

func TestListRuns_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected empty list, got %d runs", len(infos))
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	store, _ := setupTestStore(t)

	base := time.Now()
	for i, runID := range []string{"run-1", "run-2", "run-3"} {
		rec := createTestRecord(runID)
		rec.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := store.SaveRun(rec); err != nil {
			t.Fatalf("Failed to save run %s: %v", runID, err)
		}
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(infos))
	}
	if infos[0].ID != "run-3" || infos[2].ID != "run-1" {
		t.Errorf("Expected newest first, got %s, %s, %s", infos[0].ID, infos[1].ID, infos[2].ID)
	}
}

func TestListRuns_SkipsInvalidDirectories(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRun(createTestRecord("valid-run")); err != nil {
		t.Fatalf("Failed to save valid run: %v", err)
	}

	// Directory without run.json
	if err := os.MkdirAll(filepath.Join(tempDir, "runs", "trace-only"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	// Non-directory entry
	if err := os.WriteFile(filepath.Join(tempDir, "runs", "dummy.txt"), []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create dummy file: %v", err)
	}
	// Corrupted record
	corrupt := filepath.Join(tempDir, "runs", "corrupt")
	if err := os.MkdirAll(corrupt, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(corrupt, "run.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt record: %v", err)
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "valid-run" {
		t.Errorf("Expected only valid-run, got %+v", infos)
	}
}

func TestDeleteRun(t *testing.T) {
	store, tempDir := setupTestStore(t)

	runID := "test-run-delete"
	if err := store.SaveRun(createTestRecord(runID)); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	writer, err := NewTraceWriter(tempDir, runID, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	writer.Close()

	if err := store.DeleteRun(runID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	if _, err := store.LoadRun(runID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError after delete, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "runs", runID)); !os.IsNotExist(err) {
		t.Error("Run directory still exists after delete")
	}
}

func TestDeleteRun_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.DeleteRun("nonexistent-run"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %T: %v", err, err)
	}
	if err := store.DeleteRun(""); err == nil {
		t.Error("Expected error for empty runID")
	}
}

func TestConcurrentSave(t *testing.T) {
	store, _ := setupTestStore(t)

	const numRuns = 10
	done := make(chan bool, numRuns)

	for i := 0; i < numRuns; i++ {
		go func(idx int) {
			runID := fmt.Sprintf("concurrent-run-%d", idx)
			if err := store.SaveRun(createTestRecord(runID)); err != nil {
				t.Errorf("Concurrent save failed for run %s: %v", runID, err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < numRuns; i++ {
		<-done
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != numRuns {
		t.Errorf("Expected %d runs, got %d", numRuns, len(infos))
	}
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	for _, kind := range []string{"", BackendFS, BackendSQLite} {
		s, err := NewStore(kind, dir)
		if err != nil {
			t.Fatalf("NewStore(%q) failed: %v", kind, err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("Close(%q) failed: %v", kind, err)
		}
	}

	if _, err := NewStore("postgres", dir); err == nil {
		t.Error("Expected error for unsupported backend")
	}
}
