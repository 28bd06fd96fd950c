package dataanchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/meigma/dataanchor/internal/cache"
)

// StoreInfo contains statistics about a transaction store directory.
type StoreInfo struct {
	// Path is the absolute path to the store directory.
	Path string
	// TotalSize is the sum of all stored transaction sizes in bytes.
	TotalSize int64
	// EntryCount is the number of stored transactions.
	EntryCount int
	// Entries contains each stored transaction, most recently accessed first.
	Entries []StoreEntry
}

// StoreEntry describes a single stored transaction.
type StoreEntry struct {
	Signature    Signature
	Slot         Slot
	Size         int64
	LastAccessed time.Time
}

// StorePruneOptions configures store pruning.
type StorePruneOptions struct {
	// MaxSize is the maximum total size in bytes.
	// Entries are evicted LRU until the store is under this limit.
	// Zero means no size limit.
	MaxSize int64

	// MaxAge is the maximum age for entries.
	// Entries not accessed within this duration are evicted.
	// Zero means no age limit.
	MaxAge time.Duration
}

// StorePruneResult contains statistics about a prune operation.
type StorePruneResult struct {
	EntriesRemoved   int
	BytesRemoved     int64
	EntriesRemaining int
	BytesRemaining   int64
}

// TransactionStoreStats returns statistics about the store at path.
// If the directory doesn't exist, returns an empty StoreInfo.
func TransactionStoreStats(path string) (*StoreInfo, error) {
	s, absPath, err := openExistingStore(path)
	if err != nil || s == nil {
		return &StoreInfo{Path: absPath}, err
	}

	entries, err := s.Entries()
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	info := &StoreInfo{
		Path:       absPath,
		EntryCount: len(entries),
		Entries:    make([]StoreEntry, len(entries)),
	}
	for i, e := range entries {
		info.TotalSize += e.Size()
		info.Entries[i] = StoreEntry{
			Signature:    e.Signature,
			Slot:         e.Slot,
			Size:         e.Size(),
			LastAccessed: e.LastAccessed,
		}
	}
	return info, nil
}

// ClearTransactionStore removes all entries from the store at path.
// Returns nil if the directory doesn't exist.
func ClearTransactionStore(path string) error {
	s, _, err := openExistingStore(path)
	if err != nil || s == nil {
		return err
	}
	if err := s.Clear(); err != nil {
		return fmt.Errorf("clear transaction store: %w", err)
	}
	return nil
}

// PruneTransactionStore removes entries based on opts.
// Entries exceeding MaxAge are removed first, then LRU eviction
// is performed until the total size is under MaxSize.
// Returns an empty result if the directory doesn't exist.
func PruneTransactionStore(ctx context.Context, path string, opts StorePruneOptions) (*StorePruneResult, error) {
	s, _, err := openExistingStore(path)
	if err != nil || s == nil {
		return &StorePruneResult{}, err
	}

	result, err := s.Prune(ctx, cache.PruneOptions{
		MaxSize: opts.MaxSize,
		MaxAge:  opts.MaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("prune transaction store: %w", err)
	}
	return &StorePruneResult{
		EntriesRemoved:   result.EntriesRemoved,
		BytesRemoved:     result.BytesRemoved,
		EntriesRemaining: result.EntriesRemaining,
		BytesRemaining:   result.BytesRemaining,
	}, nil
}

// openExistingStore opens the store at path. It returns a nil store when
// the directory does not exist.
func openExistingStore(path string) (*cache.Store, string, error) {
	absPath, err := resolveStorePath(path)
	if err != nil {
		return nil, "", err
	}
	if _, statErr := os.Stat(absPath); errors.Is(statErr, os.ErrNotExist) {
		return nil, absPath, nil
	}
	s, err := cache.OpenStore(absPath, slog.New(slog.DiscardHandler))
	if err != nil {
		return nil, absPath, err
	}
	return s, absPath, nil
}

// resolveStorePath expands ~ and converts to absolute path.
func resolveStorePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("dataanchor: transaction store path is empty")
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return absPath, nil
}
