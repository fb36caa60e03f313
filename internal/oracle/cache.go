package oracle

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/seqdesign/internal/design"
	"github.com/dgraph-io/ristretto/v2"
)

// CachedOracle memoises another oracle by canonical sequence key. Results are
// returned as fresh top-level maps so callers cannot disturb the cache.
type CachedOracle struct {
	inner  design.Oracle
	cache  *ristretto.Cache[string, design.Outputs]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedOracle wraps inner with a cache holding up to maxEntries results.
func NewCachedOracle(inner design.Oracle, maxEntries int) (*CachedOracle, error) {
	if maxEntries <= 0 {
		return nil, &design.ConfigError{Field: "cache_size", Reason: "must be positive"}
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, design.Outputs]{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
		// Cost counts entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle cache: %w", err)
	}

	return &CachedOracle{inner: inner, cache: cache}, nil
}

// Compute implements design.Oracle.
func (c *CachedOracle) Compute(ctx context.Context, seqs design.Sequences) (design.Outputs, error) {
	key := seqs.Key()
	if out, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return copyOutputs(out), nil
	}
	c.misses.Add(1)

	out, err := c.inner.Compute(ctx, seqs)
	if err != nil {
		return nil, err
	}
	if out == nil {
		// Let the aggregator report the invalid output.
		return nil, nil
	}

	c.cache.Set(key, copyOutputs(out), 1)
	c.cache.Wait()
	return out, nil
}

// Stats returns cache hit and miss counts.
func (c *CachedOracle) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close releases the cache's background goroutines.
func (c *CachedOracle) Close() error {
	c.cache.Close()
	return nil
}

func copyOutputs(out design.Outputs) design.Outputs {
	cp := make(design.Outputs, len(out))
	for k, v := range out {
		cp[k] = v
	}
	return cp
}
