package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/meigma/dataanchor/core"
)

// PruneOptions configures store pruning.
type PruneOptions struct {
	// MaxSize is the maximum total size in bytes.
	// Entries are evicted LRU until the store is under this limit.
	// Zero means no size limit.
	MaxSize int64

	// MaxAge is the maximum age for entries.
	// Entries older than this (based on LastAccessed) are evicted.
	// Zero means no age limit.
	MaxAge time.Duration
}

// PruneResult contains statistics about a prune operation.
type PruneResult struct {
	EntriesRemoved   int
	BytesRemoved     int64
	EntriesRemaining int
	BytesRemaining   int64
}

// Prune removes entries based on opts. Entries are visited least recently
// accessed first; each is evicted if it has expired or the store is still
// over MaxSize.
func (s *Store) Prune(ctx context.Context, opts PruneOptions) (PruneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadAllEntries()
	if err != nil || len(entries) == 0 {
		return PruneResult{}, err
	}
	slices.SortFunc(entries, func(a, b *Entry) int {
		return a.LastAccessed.Compare(b.LastAccessed)
	})

	var cutoff time.Time
	if opts.MaxAge > 0 {
		cutoff = time.Now().Add(-opts.MaxAge)
	}
	var total int64
	for _, e := range entries {
		total += e.Size()
	}

	var result PruneResult
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		expired := !cutoff.IsZero() && e.LastAccessed.Before(cutoff)
		oversize := opts.MaxSize > 0 && total > opts.MaxSize
		if (expired || oversize) && s.evict(e.Signature) {
			total -= e.Size()
			result.EntriesRemoved++
			result.BytesRemoved += e.Size()
			continue
		}
		result.EntriesRemaining++
		result.BytesRemaining += e.Size()
	}

	s.logger.Debug("transaction store pruned",
		"removed", result.EntriesRemoved,
		"bytes_removed", result.BytesRemoved,
		"remaining", result.EntriesRemaining,
		"bytes_remaining", result.BytesRemaining)
	return result, nil
}

// evict deletes the entry for sig. A failed deletion is logged and the entry
// stays counted. Caller must hold s.mu.
func (s *Store) evict(sig core.Signature) bool {
	err := os.Remove(s.entryPath(sig))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to evict entry", "signature", sig, "error", err)
		return false
	}
	return true
}

// Size returns the total size of all stored transactions in bytes.
func (s *Store) Size() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.loadAllEntries()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.Size()
	}
	return total, nil
}

// Entries returns all entries, most recently accessed first.
func (s *Store) Entries() ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.loadAllEntries()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b *Entry) int {
		return b.LastAccessed.Compare(a.LastAccessed)
	})
	return entries, nil
}

// loadAllEntries loads every entry file. Unreadable files are skipped.
// Caller must hold at least s.mu.RLock().
func (s *Store) loadAllEntries() ([]*Entry, error) {
	files, err := os.ReadDir(s.dir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]*Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir(), f.Name())
		entry, loadErr := loadEntry(path)
		if loadErr != nil {
			s.logger.Debug("failed to load entry", "path", path, "error", loadErr)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
