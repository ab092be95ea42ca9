package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Retention window for pending lines. Entries older than this are dropped on load.
const retention = 30 * 24 * time.Hour

// Default debounce before a mutated store is written back to disk.
const defaultSaveDelay = 500 * time.Millisecond

// PendingLine is a cart line captured while the user was unauthenticated or
// offline. At most one line exists per (ProductID, VariantID) pair; adding the
// same pair again increments Quantity. VariantID zero means no variant.
type PendingLine struct {
	ProductID    int64  `json:"productId"`
	VariantID    int64  `json:"variantId,omitempty"`
	Quantity     int    `json:"quantity"`
	ProductSlug  string `json:"productSlug"`
	ProductName  string `json:"productName"`
	ProductPrice int64  `json:"productPrice,omitempty"`
	VariantPrice int64  `json:"variantPrice,omitempty"`
	VariantName  string `json:"variantName,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// Key identifies the line within the store.
func (l PendingLine) Key() string {
	return LineKey(l.ProductID, l.VariantID)
}

// LineKey builds the (product, variant) identity used for merging.
// variantID zero maps to the "default" slot.
func LineKey(productID, variantID int64) string {
	if variantID == 0 {
		return fmt.Sprintf("%d-default", productID)
	}
	return fmt.Sprintf("%d-%d", productID, variantID)
}

// Store persists pending cart lines to a single JSON file. Writes are
// debounced; Flush forces an immediate write. The store assumes a single
// writer per file, concurrent processes race with last-write-wins.
type Store struct {
	path      string
	saveDelay time.Duration
	logger    *zap.Logger

	mu        sync.Mutex
	lines     []PendingLine
	saveTimer *time.Timer
	modified  time.Time
}

// New loads the store from path, dropping entries past the retention window.
// A missing or unreadable file yields an empty store rather than an error.
func New(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:      path,
		saveDelay: defaultSaveDelay,
		logger:    logger,
	}
	s.lines = s.load()
	return s
}

func (s *Store) load() []PendingLine {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to load local cart", zap.String("path", s.path), zap.Error(err))
		}
		return nil
	}

	var lines []PendingLine
	if err := json.Unmarshal(data, &lines); err != nil {
		s.logger.Warn("Failed to parse local cart, starting empty", zap.Error(err))
		return nil
	}

	cutoff := time.Now().Add(-retention).UnixMilli()
	kept := lines[:0]
	for _, l := range lines {
		if l.Timestamp > cutoff {
			kept = append(kept, l)
		}
	}
	return kept
}

// Lines returns a copy of the current pending lines.
func (s *Store) Lines() []PendingLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Len reports the number of pending lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// LastModified reports when the store was last mutated in this process.
func (s *Store) LastModified() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified
}

// Upsert adds a line, or increments the quantity of the existing line with
// the same (product, variant) key.
func (s *Store) Upsert(line PendingLine) {
	if line.Quantity <= 0 {
		line.Quantity = 1
	}
	line.Timestamp = time.Now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Key() == line.Key() {
			s.lines[i].Quantity += line.Quantity
			s.lines[i].Timestamp = line.Timestamp
			s.touchLocked()
			return
		}
	}
	s.lines = append(s.lines, line)
	s.touchLocked()
}

// SetQuantity replaces the quantity of the line with the given key.
// Quantities below one remove the line.
func (s *Store) SetQuantity(productID, variantID int64, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := LineKey(productID, variantID)
	for i := range s.lines {
		if s.lines[i].Key() != key {
			continue
		}
		if quantity < 1 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		} else {
			s.lines[i].Quantity = quantity
			s.lines[i].Timestamp = time.Now().UnixMilli()
		}
		s.touchLocked()
		return
	}
}

// Remove deletes the line with the given key, if present.
func (s *Store) Remove(productID, variantID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := LineKey(productID, variantID)
	for i := range s.lines {
		if s.lines[i].Key() == key {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			s.touchLocked()
			return
		}
	}
}

// Clear drops all pending lines and removes the backing file immediately.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = nil
	s.modified = time.Now()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove local cart file", zap.Error(err))
	}
}

// Flush writes the store to disk immediately, cancelling any pending save.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	lines := make([]PendingLine, len(s.lines))
	copy(lines, s.lines)
	s.mu.Unlock()

	return s.write(lines)
}

// Close flushes outstanding changes.
func (s *Store) Close() error {
	return s.Flush()
}

// touchLocked records the mutation and schedules a debounced save.
// Caller holds s.mu.
func (s *Store) touchLocked() {
	s.modified = time.Now()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(s.saveDelay, func() {
		if err := s.Flush(); err != nil {
			s.logger.Warn("Failed to save local cart", zap.Error(err))
		}
	})
}

func (s *Store) write(lines []PendingLine) error {
	if len(lines) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to marshal local cart: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
