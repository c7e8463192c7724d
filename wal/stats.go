package wal

import (
	"io"
	"os"
	"path/filepath"
	"time"
)

// Stats represents WAL statistics
type Stats struct {
	TotalFiles     int
	TotalSizeBytes int64
	OldestFile     time.Time
	NewestFile     time.Time

	// Entry statistics
	EntryCount   int64
	LastSequence int64
	ByType       map[EntryType]int64
}

// GetStats returns current WAL statistics
func (w *WAL) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := Stats{
		LastSequence: w.sequence,
		ByType:       make(map[EntryType]int64),
	}

	files := w.listWALFiles()
	stats.TotalFiles = len(files)

	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		stats.TotalSizeBytes += info.Size()
		if stats.OldestFile.IsZero() || info.ModTime().Before(stats.OldestFile) {
			stats.OldestFile = info.ModTime()
		}
		if info.ModTime().After(stats.NewestFile) {
			stats.NewestFile = info.ModTime()
		}

		countEntries(file, &stats)
	}

	return stats
}

func (w *WAL) listWALFiles() []string {
	files, err := filepath.Glob(filepath.Join(w.dir, "kartta-*.wal"))
	if err != nil {
		return nil
	}
	return files
}

func countEntries(path string, stats *Stats) {
	reader, err := NewReader(path)
	if err != nil {
		return
	}
	defer func() { _ = reader.Close() }()

	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}
		stats.EntryCount++
		stats.ByType[entry.Type]++
	}
}
