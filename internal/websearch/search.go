package websearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omnichat/gateway/internal/cache"
)

const (
	// defaultMaxResults bounds a plain search.
	defaultMaxResults = 4

	// deepSearchPasses is the number of secondary searches a deep search
	// merges, each widening the query.
	deepSearchPasses = 2

	// defaultCacheCapacity bounds each cache instance.
	defaultCacheCapacity = 128

	defaultSearchTTL   = 15 * time.Minute
	defaultDeepTTL     = 30 * time.Minute
	defaultLocationTTL = 24 * time.Hour
)

// SearcherConfig configures the cached searcher. Zero values take the
// package defaults.
type SearcherConfig struct {
	MaxResults    int
	CacheCapacity int
	SearchTTL     time.Duration
	DeepTTL       time.Duration
	LocationTTL   time.Duration
}

// Searcher refines, executes, and caches web searches.
//
// State machine per query: MISS -> REFINING -> SEARCHING -> CACHED.
// Later lookups inside the TTL window return the cached results with no
// network call. The three caches are independent instances: plain search,
// deep search, and location lookups never share eviction state.
type Searcher struct {
	client     *Client
	refiner    Refiner
	maxResults int

	searchCache   *cache.TTL[[]Result]
	deepCache     *cache.TTL[[]Result]
	locationCache *cache.TTL[string]
}

// NewSearcher composes the searcher with its own cache instances. A nil
// refiner disables refinement (raw queries go straight to the search API).
func NewSearcher(client *Client, refiner Refiner, cfg SearcherConfig) *Searcher {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = defaultCacheCapacity
	}
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = defaultSearchTTL
	}
	if cfg.DeepTTL <= 0 {
		cfg.DeepTTL = defaultDeepTTL
	}
	if cfg.LocationTTL <= 0 {
		cfg.LocationTTL = defaultLocationTTL
	}

	return &Searcher{
		client:        client,
		refiner:       refiner,
		maxResults:    cfg.MaxResults,
		searchCache:   cache.New[[]Result](cfg.SearchTTL, cfg.CacheCapacity),
		deepCache:     cache.New[[]Result](cfg.DeepTTL, cfg.CacheCapacity),
		locationCache: cache.New[string](cfg.LocationTTL, cfg.CacheCapacity),
	}
}

// Search returns results for a query, from cache when fresh. On a miss the
// query is refined, searched, and the results cached under the normalized
// raw query.
func (s *Searcher) Search(ctx context.Context, query string) ([]Result, error) {
	key := normalizeKey(query)
	if results, ok := s.searchCache.Get(key); ok {
		return results, nil
	}

	refined := s.refineOrFallback(ctx, query)
	results, err := s.client.Search(ctx, refined, s.maxResults)
	if err != nil {
		return nil, err
	}

	s.searchCache.Set(key, results)
	return results, nil
}

// DeepSearch merges the primary search with a small fixed number of
// widened secondary searches. Secondary failures degrade to whatever the
// primary returned.
func (s *Searcher) DeepSearch(ctx context.Context, query string) ([]Result, error) {
	key := normalizeKey(query)
	if results, ok := s.deepCache.Get(key); ok {
		return results, nil
	}

	refined := s.refineOrFallback(ctx, query)
	results, err := s.client.Search(ctx, refined, s.maxResults)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.URL] = true
	}
	for pass := 0; pass < deepSearchPasses; pass++ {
		widened := fmt.Sprintf("%s %s", refined, deepSuffixes[pass])
		extra, err := s.client.Search(ctx, widened, s.maxResults)
		if err != nil {
			log.Warn().Err(err).Str("query", widened).Msg("deep search pass failed")
			break
		}
		for _, r := range extra {
			if !seen[r.URL] {
				seen[r.URL] = true
				results = append(results, r)
			}
		}
	}

	s.deepCache.Set(key, results)
	return results, nil
}

var deepSuffixes = [deepSearchPasses]string{"latest news", "analysis"}

// Location resolves a place query to a display name, cached long-term.
// Location data changes rarely, hence the separate cache and TTL.
func (s *Searcher) Location(ctx context.Context, query string) (string, error) {
	key := normalizeKey(query)
	if loc, ok := s.locationCache.Get(key); ok {
		return loc, nil
	}

	results, err := s.client.Search(ctx, query+" location", 1)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", &SearchProviderError{Err: fmt.Errorf("no location result for %q", query)}
	}

	s.locationCache.Set(key, results[0].Title)
	return results[0].Title, nil
}

// FormatForContext renders results as a context item for injection into
// the system prompt.
func FormatForContext(query string, results []Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Web search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s - %s (%s)\n", i+1, r.Title, r.Snippet, r.URL)
	}
	return b.String()
}

// refineOrFallback refines the query, degrading to the raw query on any
// refinement failure.
func (s *Searcher) refineOrFallback(ctx context.Context, query string) string {
	if s.refiner == nil {
		return query
	}
	refined, err := s.refiner.Refine(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("query refinement failed, using raw query")
		return query
	}
	return refined
}

// normalizeKey canonicalizes the cache key.
func normalizeKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
