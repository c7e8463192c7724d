package wal

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"
)

func TestWAL_AppendAndRead(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to open WAL: %v", err)
	}

	if err := w.Append(EntryFetched, "test-project", "cloud_functions", map[string]int{"count": 2}); err != nil {
		t.Fatalf("Failed to append fetched entry: %v", err)
	}
	if err := w.Append(EntryLoaded, "test-project", "cloud_functions", map[string]int{"count": 2}); err != nil {
		t.Fatalf("Failed to append loaded entry: %v", err)
	}
	if err := w.AppendError(EntryFailed, "test-project", "storage_buckets", nil, errors.New("api exploded")); err != nil {
		t.Fatalf("Failed to append error entry: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close WAL: %v", err)
	}

	// Read back entries
	files, err := filepath.Glob(filepath.Join(dir, "kartta-*.wal"))
	if err != nil || len(files) != 1 {
		t.Fatalf("Expected 1 WAL file, got %v (err %v)", files, err)
	}

	reader, err := NewReader(files[0])
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer func() { _ = reader.Close() }()

	var entries []*Entry
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read entry: %v", err)
		}
		entries = append(entries, entry)
	}

	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Type != EntryFetched || entries[0].Sequence != 1 {
		t.Errorf("Entry 0 = %s/%d, want fetched/1", entries[0].Type, entries[0].Sequence)
	}
	if entries[1].Type != EntryLoaded || entries[1].Sequence != 2 {
		t.Errorf("Entry 1 = %s/%d, want loaded/2", entries[1].Type, entries[1].Sequence)
	}
	if entries[2].Type != EntryFailed {
		t.Errorf("Entry 2 type = %s, want failed", entries[2].Type)
	}
	if entries[2].Error != "api exploded" {
		t.Errorf("Entry 2 error = %q, want 'api exploded'", entries[2].Error)
	}
	if entries[0].ProjectID != "test-project" || entries[0].Asset != "cloud_functions" {
		t.Errorf("Entry 0 project/asset = %s/%s", entries[0].ProjectID, entries[0].Asset)
	}
}

func TestWAL_SequenceContinuesAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to open WAL: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Append(EntryFetched, "p1", "cloud_functions", nil); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	w2, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to reopen WAL: %v", err)
	}
	defer func() { _ = w2.Close() }()

	if err := w2.Append(EntryLoaded, "p1", "cloud_functions", nil); err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}

	stats := w2.GetStats()
	if stats.LastSequence != 4 {
		t.Errorf("LastSequence = %d, want 4 (continued from previous file)", stats.LastSequence)
	}
}

func TestWAL_Replay(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to open WAL: %v", err)
	}
	if err := w.Append(EntrySkipped, "p1", "cloud_functions", map[string]string{"reason": "permission denied"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var replayed []*Entry
	err = Replay(dir, time.Time{}, func(entry *Entry) error {
		replayed = append(replayed, entry)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(replayed) != 1 || replayed[0].Type != EntrySkipped {
		t.Errorf("Replayed = %v, want 1 skipped entry", replayed)
	}

	// Replay since the future sees nothing
	var none []*Entry
	err = Replay(dir, time.Now().Add(time.Hour), func(entry *Entry) error {
		none = append(none, entry)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Replay since future returned %d entries, want 0", len(none))
	}
}

func TestWAL_GetStats(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to open WAL: %v", err)
	}
	defer func() { _ = w.Close() }()

	for i := 0; i < 2; i++ {
		if err := w.Append(EntryFetched, "p1", "cloud_functions", nil); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := w.Append(EntryCleaned, "p1", "cloud_functions", nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	stats := w.GetStats()
	if stats.TotalFiles != 1 {
		t.Errorf("TotalFiles = %d, want 1", stats.TotalFiles)
	}
	if stats.EntryCount != 3 {
		t.Errorf("EntryCount = %d, want 3", stats.EntryCount)
	}
	if stats.ByType[EntryFetched] != 2 {
		t.Errorf("ByType[fetched] = %d, want 2", stats.ByType[EntryFetched])
	}
	if stats.ByType[EntryCleaned] != 1 {
		t.Errorf("ByType[cleaned] = %d, want 1", stats.ByType[EntryCleaned])
	}
	if stats.TotalSizeBytes == 0 {
		t.Error("TotalSizeBytes = 0, want > 0")
	}
}
