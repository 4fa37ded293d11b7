package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	store := NewFileStore(path)

	snap := Snapshot{
		Semantic: []Record{{
			ID:           "id-1",
			Content:      "a durable fact",
			Tier:         TierSemantic,
			Category:     CategoryIdentity,
			Importance:   1.0,
			Confidence:   1.0,
			CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			LastVerified: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
	if err := store.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Semantic) != 1 || got.Semantic[0].Content != "a durable fact" {
		t.Errorf("unexpected snapshot after round trip: %+v", got)
	}
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "never-written.json"))
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load of missing file should not error, got %v", err)
	}
	if len(got.Working)+len(got.Episodic)+len(got.Semantic) != 0 {
		t.Error("expected empty snapshot for missing file")
	}
}

func TestFileStoreLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Load(); err == nil {
		t.Error("expected error for malformed snapshot")
	}
}

func TestFileStoreSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "memory.json"))
	if err := store.Save(Snapshot{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "memory.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}
