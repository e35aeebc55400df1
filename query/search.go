/*
search.go - Cached search over the ledger

PURPOSE:
  Runs composite queries against the full transaction set with a short,
  bounded result cache in front (2 minute TTL, FIFO eviction). The cache
  clears itself on every transaction mutation event - serving a stale
  search result after a write would be a correctness bug.
*/
package query

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ryokushen/ledger-engine/ledger"
)

// SearchConfig tunes a SearchService. Zero values use the defaults.
type SearchConfig struct {
	CacheTTL  time.Duration
	CacheSize int
}

// SearchService evaluates queries over the ledger with result caching
// and owns the saved-search surface.
type SearchService struct {
	svc   *ledger.Service
	cache *ledger.Cache
	Saved *SavedSearchService
}

// NewSearchService builds a search service over the ledger core and a
// key-value store for saved searches. It subscribes to the ledger's
// mutation events to drop cached results the moment data changes.
func NewSearchService(svc *ledger.Service, kv ledger.KVStore, cfg SearchConfig) *SearchService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = ledger.SearchCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = ledger.DefaultSearchCacheSize
	}

	s := &SearchService{
		svc:   svc,
		cache: ledger.NewBoundedCache(cfg.CacheTTL, cfg.CacheSize),
		Saved: NewSavedSearchService(kv),
	}
	svc.Bus().Subscribe("transaction:*", func(ledger.Event) {
		s.cache.InvalidateByPattern("search:*")
	})
	return s
}

// Cache exposes the result cache, mainly for tests.
func (s *SearchService) Cache() *ledger.Cache { return s.cache }

// Search runs a composite query over all transactions.
func (s *SearchService) Search(ctx context.Context, q Query) ([]ledger.Transaction, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := searchKey(q)
	if data, ok := s.cache.Get(key); ok {
		return data.([]ledger.Transaction), nil
	}

	all, err := s.svc.List(ctx, ledger.ListFilter{})
	if err != nil {
		return nil, err
	}
	matched, err := Filter(all, q)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, matched)
	return matched, nil
}

// RunSaved replays a saved search by id, bumping its usage bookkeeping
// and recording the run in the history.
func (s *SearchService) RunSaved(ctx context.Context, id string) ([]ledger.Transaction, error) {
	saved, err := s.Saved.Use(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.Search(ctx, saved.Query)
	if err != nil {
		return nil, err
	}
	if err := s.Saved.RecordHistory(ctx, saved.Query); err != nil {
		return nil, err
	}
	return results, nil
}

// searchKey fingerprints a query. The query shape marshals
// deterministically, so equal queries share a cache slot.
func searchKey(q Query) string {
	raw, err := json.Marshal(q)
	if err != nil {
		return "search:unkeyed"
	}
	return "search:" + string(raw)
}
