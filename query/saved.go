/*
saved.go - Saved searches and search history

PURPOSE:
  Saved searches and the recent-search history are persisted as small
  JSON documents in the local key-value store, each list under one fixed
  key. The persisted shape {id, name, query, created_at, last_used,
  use_count} is the external contract and must round-trip exactly.
*/
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryokushen/ledger-engine/ledger"
)

// Fixed keys the documents live under.
const (
	savedSearchesKey = "ledger:saved-searches"
	searchHistoryKey = "ledger:search-history"
)

// historyLimit caps the retained history, most recent first.
const historyLimit = 25

// SavedSearch is one persisted, replayable search.
type SavedSearch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Query     Query     `json:"query"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	UseCount  int       `json:"use_count"`
}

// SavedSearchService reads and writes the saved-search documents.
// The mutex serializes read-modify-write cycles within this process;
// there is no cross-process consistency guarantee.
type SavedSearchService struct {
	kv  ledger.KVStore
	mu  sync.Mutex
	now func() time.Time
}

// NewSavedSearchService wraps a key-value store.
func NewSavedSearchService(kv ledger.KVStore) *SavedSearchService {
	return &SavedSearchService{kv: kv, now: time.Now}
}

// List returns all saved searches.
func (s *SavedSearchService) List(ctx context.Context) ([]SavedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, savedSearchesKey)
}

// Save validates and persists a new named search.
func (s *SavedSearchService) Save(ctx context.Context, name string, q Query) (*SavedSearch, error) {
	if name == "" {
		return nil, fmt.Errorf("saved search needs a name")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	searches, err := s.load(ctx, savedSearchesKey)
	if err != nil {
		return nil, err
	}

	saved := SavedSearch{
		ID:        uuid.NewString(),
		Name:      name,
		Query:     q,
		CreatedAt: s.now(),
	}
	searches = append(searches, saved)
	if err := s.persist(ctx, savedSearchesKey, searches); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Delete removes a saved search by id.
func (s *SavedSearchService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	searches, err := s.load(ctx, savedSearchesKey)
	if err != nil {
		return err
	}
	kept := searches[:0]
	found := false
	for _, sv := range searches {
		if sv.ID == id {
			found = true
			continue
		}
		kept = append(kept, sv)
	}
	if !found {
		return ledger.ErrNotFound
	}
	return s.persist(ctx, savedSearchesKey, kept)
}

// Use returns a saved search by id, bumping its use count and last-used
// timestamp.
func (s *SavedSearchService) Use(ctx context.Context, id string) (*SavedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	searches, err := s.load(ctx, savedSearchesKey)
	if err != nil {
		return nil, err
	}
	for i := range searches {
		if searches[i].ID == id {
			searches[i].UseCount++
			searches[i].LastUsed = s.now()
			if err := s.persist(ctx, savedSearchesKey, searches); err != nil {
				return nil, err
			}
			out := searches[i]
			return &out, nil
		}
	}
	return nil, ledger.ErrNotFound
}

// RecordHistory prepends a query to the search history, trimming to the
// retention cap.
func (s *SavedSearchService) RecordHistory(ctx context.Context, q Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.load(ctx, searchHistoryKey)
	if err != nil {
		return err
	}

	entry := SavedSearch{
		ID:        uuid.NewString(),
		Query:     q,
		CreatedAt: s.now(),
		LastUsed:  s.now(),
		UseCount:  1,
	}
	history = append([]SavedSearch{entry}, history...)
	if len(history) > historyLimit {
		history = history[:historyLimit]
	}
	return s.persist(ctx, searchHistoryKey, history)
}

// History returns recent searches, most recent first.
func (s *SavedSearchService) History(ctx context.Context) ([]SavedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, searchHistoryKey)
}

func (s *SavedSearchService) load(ctx context.Context, key string) ([]SavedSearch, error) {
	raw, err := s.kv.GetValue(ctx, key)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []SavedSearch
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("corrupt document under %q: %w", key, err)
	}
	return out, nil
}

func (s *SavedSearchService) persist(ctx context.Context, key string, searches []SavedSearch) error {
	raw, err := json.Marshal(searches)
	if err != nil {
		return err
	}
	return s.kv.SetValue(ctx, key, raw)
}
