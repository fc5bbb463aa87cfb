// Package vocab memoizes vocabulary term metadata resolved from the
// remote mapping service. Entries are keyed by (uri, field), grow for the
// lifetime of the editing session and are never evicted; a concurrent
// process must re-fetch to observe server-side vocabulary changes.
package vocab

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/c360studio/mapspec/gateway"
)

// InfoSource resolves vocabulary type/property metadata remotely.
type InfoSource interface {
	VocabularyInfo(ctx context.Context, uri string) (*gateway.VocabularyInfo, error)
}

type cacheKey struct {
	uri   string
	field string
}

// Cache is the process-wide vocabulary info memo. A cache miss triggers
// exactly one remote lookup; a failed lookup resolves to "" and is cached
// as "no info" for that key, it is not retried.
type Cache struct {
	source InfoSource
	logger *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[cacheKey]string
}

// New creates a cache over the given info source.
func New(source InfoSource, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		source:  source,
		logger:  logger,
		entries: make(map[cacheKey]string),
	}
}

// Info returns the cached value of the given metadata field for a
// vocabulary term, fetching and memoizing it on first use. Concurrent
// misses for the same key share one remote lookup.
func (c *Cache) Info(ctx context.Context, uri, field string) string {
	key := cacheKey{uri: uri, field: field}

	c.mu.RLock()
	value, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return value
	}

	resolved, _, _ := c.group.Do(uri+"\x00"+field, func() (any, error) {
		info, err := c.source.VocabularyInfo(ctx, uri)
		value := ""
		if err != nil {
			c.logger.Debug("vocabulary info lookup failed, caching empty result",
				"uri", uri, "field", field, "error", err)
		} else if info != nil {
			value = info.GenericInfo[field]
		}

		c.mu.Lock()
		c.entries[key] = value
		c.mu.Unlock()

		return value, nil
	})

	return resolved.(string)
}

// Len returns the number of memoized entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
