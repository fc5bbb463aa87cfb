package vocab

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360studio/mapspec/gateway"
)

type fakeSource struct {
	calls atomic.Int64
	info  map[string]map[string]string
	err   error
}

func (f *fakeSource) VocabularyInfo(_ context.Context, uri string) (*gateway.VocabularyInfo, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.VocabularyInfo{GenericInfo: f.info[uri]}, nil
}

func TestCacheMemoizesPerKey(t *testing.T) {
	src := &fakeSource{info: map[string]map[string]string{
		"http://schema.org/name": {"label": "name", "description": "a name"},
	}}
	cache := New(src, nil)
	ctx := context.Background()

	assert.Equal(t, "name", cache.Info(ctx, "http://schema.org/name", "label"))
	assert.Equal(t, "name", cache.Info(ctx, "http://schema.org/name", "label"))
	assert.Equal(t, int64(1), src.calls.Load(), "second lookup must hit the cache")

	// A different field of the same term is its own cache key.
	assert.Equal(t, "a name", cache.Info(ctx, "http://schema.org/name", "description"))
	assert.Equal(t, int64(2), src.calls.Load())
	assert.Equal(t, 2, cache.Len())
}

func TestCacheMemoizesFailures(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	cache := New(src, nil)
	ctx := context.Background()

	assert.Equal(t, "", cache.Info(ctx, "http://schema.org/name", "label"))
	assert.Equal(t, "", cache.Info(ctx, "http://schema.org/name", "label"))
	assert.Equal(t, int64(1), src.calls.Load(), "failed lookups are cached as no info, not retried")
}

func TestCacheMissingField(t *testing.T) {
	src := &fakeSource{info: map[string]map[string]string{
		"http://schema.org/name": {"label": "name"},
	}}
	cache := New(src, nil)

	assert.Equal(t, "", cache.Info(context.Background(), "http://schema.org/name", "description"))
}

func TestCacheConcurrentMissesShareOneLookup(t *testing.T) {
	src := &fakeSource{info: map[string]map[string]string{
		"http://schema.org/name": {"label": "name"},
	}}
	cache := New(src, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "name", cache.Info(ctx, "http://schema.org/name", "label"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), src.calls.Load())
}
