package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/meigma/dataanchor/core"
	"github.com/meigma/dataanchor/internal/tx"
)

const entryVersion = 1

// Entry is the record stored per transaction at transactions/<signature>.json.
type Entry struct {
	// Version is the record format version.
	Version int `json:"version"`
	// Signature identifies the transaction.
	Signature core.Signature `json:"signature"`
	// Slot is the slot the transaction landed in.
	Slot core.Slot `json:"slot"`
	// Raw is the wire-encoded transaction.
	Raw []byte `json:"raw"`
	// CreatedAt is when the entry was first written.
	CreatedAt time.Time `json:"created_at"`
	// LastAccessed is when the entry was last read or written.
	LastAccessed time.Time `json:"last_accessed"`
}

// Size is the number of transaction bytes the entry holds.
func (e *Entry) Size() int64 { return int64(len(e.Raw)) }

// Store persists confirmed transactions under a directory. Entries are
// checked against their signature when read; an entry that does not verify
// is removed and reported as a miss.
//
// Only transactions that executed successfully are stored.
type Store struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger
}

// OpenStore opens or creates a store at path.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{path: path, logger: logger}
	if err := ensureDir(s.dir()); err != nil {
		return nil, fmt.Errorf("open transaction store: %w", err)
	}
	return s, nil
}

// Path returns the store directory.
func (s *Store) Path() string { return s.path }

func (s *Store) dir() string { return filepath.Join(s.path, "transactions") }

func (s *Store) entryPath(sig core.Signature) string {
	return filepath.Join(s.dir(), sig.String()+".json")
}

// Get returns the stored transaction for sig.
func (s *Store) Get(sig core.Signature) (*core.ConfirmedTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.entryPath(sig)
	entry, err := loadEntry(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("unreadable store entry", "signature", sig, "error", err)
			s.removeLocked(path)
		}
		return nil, false
	}
	if err := validate(entry, sig); err != nil {
		s.logger.Warn("discarding invalid store entry", "signature", sig, "error", err)
		s.removeLocked(path)
		return nil, false
	}

	if err := saveEntry(path, entry); err != nil {
		s.logger.Debug("failed to update access time", "signature", sig, "error", err)
	}
	return &core.ConfirmedTransaction{Signature: sig, Slot: entry.Slot, Raw: entry.Raw}, true
}

// Put stores ct. Transactions that failed execution are skipped.
func (s *Store) Put(ct *core.ConfirmedTransaction) error {
	if ct == nil || ct.Err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveEntry(s.entryPath(ct.Signature), &Entry{
		Version:   entryVersion,
		Signature: ct.Signature,
		Slot:      ct.Slot,
		Raw:       ct.Raw,
	})
}

// Remove deletes the entry for sig, if any.
func (s *Store) Remove(sig core.Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.entryPath(sig)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir()); err != nil {
		return err
	}
	return ensureDir(s.dir())
}

func (s *Store) removeLocked(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("failed to remove store entry", "path", path, "error", err)
	}
}

// validate checks that entry holds a well-formed transaction signed as sig.
func validate(entry *Entry, sig core.Signature) error {
	if entry.Version != entryVersion {
		return fmt.Errorf("unsupported entry version %d", entry.Version)
	}
	if entry.Signature != sig {
		return fmt.Errorf("entry is for signature %s", entry.Signature)
	}
	t, err := tx.Decode(entry.Raw)
	if err != nil {
		return err
	}
	if t.ID() != sig {
		return fmt.Errorf("transaction signature is %s", t.ID())
	}
	return t.Verify()
}

// loadEntry reads a store entry from disk.
func loadEntry(path string) (*Entry, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	//nolint:gosec // G304: path is derived from a signature, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}

// saveEntry writes a store entry to disk atomically.
// Uses write-to-temp + rename + fsync for durability.
func saveEntry(path string, entry *Entry) error {
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.LastAccessed = now

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync entry: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close entry: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename entry: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("store path is symlink: %s", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("store path is not a directory: %s", path)
	}
	return nil
}

func ensureFile(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("store path is symlink: %s", path)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("store path is not a regular file: %s", path)
	}
	return nil
}
