// Package history keeps the most recent successful generations, newest first,
// and persists them as one JSON array under a fixed key.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"styleforge-server/modules/common/kvstore"
	"styleforge-server/modules/common/model"
)

// Capacity - maximum number of entries kept
const Capacity = 5

// DefaultKey - storage key of the persisted history
const DefaultKey = "generationHistory"

// ErrNotFound - no entry with the requested ID
var ErrNotFound = errors.New("history entry not found")

// Entry has the same shape as a generation result.
type Entry = model.GenerationResult

// Store is the bounded history. Safe for concurrent use.
type Store struct {
	kv  kvstore.Store
	key string
	log zerolog.Logger

	mu      sync.RWMutex
	entries []Entry
}

// Load rehydrates the history from kv. A missing, unreadable or corrupt value
// yields an empty history; Load never fails.
func Load(ctx context.Context, kv kvstore.Store, key string, log zerolog.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{kv: kv, key: key, log: log}

	raw, ok, err := kv.Get(ctx, key)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("key", key).Msg("⚠️  Failed to read history, starting empty")
		return s
	case !ok || raw == "":
		log.Info().Str("key", key).Msg("📭 No stored history")
		return s
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("⚠️  Stored history is corrupt, starting empty")
		return s
	}
	if len(entries) > Capacity {
		entries = entries[:Capacity]
	}
	s.entries = entries

	log.Info().Str("key", key).Int("entries", len(entries)).Msg("✅ History loaded")
	return s
}

// Record prepends r, drops the oldest entries beyond Capacity and persists
// the whole sequence. The in-memory history is updated even if persisting
// fails.
func (s *Store) Record(ctx context.Context, r Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Entry, 0, Capacity)
	next = append(next, r)
	next = append(next, s.entries...)
	if len(next) > Capacity {
		next = next[:Capacity]
	}
	s.entries = next

	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(payload)); err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("❌ Failed to persist history")
		return fmt.Errorf("failed to persist history: %w", err)
	}

	s.log.Debug().Str("id", r.ID).Int("entries", len(next)).Msg("💾 History recorded")
	return nil
}

// List returns a copy of the entries, most recent first.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Select returns the entry with the given ID.
func (s *Store) Select(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}
