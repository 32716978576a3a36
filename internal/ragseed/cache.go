package ragseed

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tributary-ai/ragseed/internal/types"
)

const defaultCacheSize = 256

// caches holds the three bounded LRU caches the pipeline consults so
// repeated queries for the same topic skip the LLM round trip.
type caches struct {
	strategy    *lru.Cache[string, *types.SearchStrategy]
	information *lru.Cache[string, []types.SearchResult]
	synthesis   *lru.Cache[string, *types.Synthesis]
}

func newCaches(size int) (*caches, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	strategyCache, err := lru.New[string, *types.SearchStrategy](size)
	if err != nil {
		return nil, err
	}
	infoCache, err := lru.New[string, []types.SearchResult](size)
	if err != nil {
		return nil, err
	}
	synthCache, err := lru.New[string, *types.Synthesis](size)
	if err != nil {
		return nil, err
	}
	return &caches{strategy: strategyCache, information: infoCache, synthesis: synthCache}, nil
}
