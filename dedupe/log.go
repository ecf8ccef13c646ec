package dedupe

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogStore is the append-only JSONL fingerprint store. The whole set is
// loaded into memory at open; every Record appends one line and surfaces
// write errors to the caller.
//
// The on-disk format is one JSON object per line: {key, source, first_seen}.
// Unknown fields are ignored. A malformed or truncated line (a crash mid-append
// leaves at most one) is skipped and counted, never fatal.
type LogStore struct {
	mu      sync.RWMutex
	seen    map[string]bool
	f       *os.File
	skipped int
	logger  *slog.Logger
}

// OpenLog opens (creating if needed) the fingerprint log at path.
func OpenLog(path string, logger *slog.Logger) (*LogStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir: %v", ErrUnavailable, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}

	s := &LogStore{seen: make(map[string]bool), f: f, logger: logger}
	if err := s.load(); err != nil {
		f.Close()
		return nil, err
	}

	// Reposition for appends.
	if _, err := f.Seek(0, 2); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: seek: %v", ErrUnavailable, err)
	}
	return s, nil
}

func (s *LogStore) load() error {
	sc := bufio.NewScanner(s.f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.Key == "" {
			s.skipped++
			s.logger.Warn("dedupe: skipping invalid log line")
			continue
		}
		s.seen[rec.Key] = true
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: read log: %v", ErrUnavailable, err)
	}
	return nil
}

// Seen reports whether the key was recorded in any run.
func (s *LogStore) Seen(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seen[key]
}

// Record appends the fingerprint. A persistence failure is reported as
// ErrPersist and leaves the in-memory set unchanged so a retry is possible.
func (s *LogStore) Record(ctx context.Context, key, source string, at time.Time) error {
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[key] {
		return nil
	}

	line, err := json.Marshal(Record{Key: key, Source: source, FirstSeen: at.UTC()})
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrPersist, err)
	}
	if _, err := s.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: append: %v", ErrPersist, err)
	}

	s.seen[key] = true
	return nil
}

// Count returns the number of distinct fingerprints loaded or recorded.
func (s *LogStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Skipped returns how many malformed lines were ignored at load.
func (s *LogStore) Skipped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skipped
}

// Sync flushes the log to stable storage. Called at graceful shutdown.
func (s *LogStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Sync()
}

// Close syncs and closes the log file.
func (s *LogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
