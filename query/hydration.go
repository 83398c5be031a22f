package query

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/observe"
)

// Dehydrate serializes a snapshot of the store with the snapshot
// transformer.
func (f *Facade) Dehydrate(opts cache.DehydrateOptions) ([]byte, error) {
	raw, err := f.snapshots.Serialize(f.store.Dehydrate(opts))
	if err != nil {
		return nil, fmt.Errorf("query: dehydrate: %w", err)
	}
	return raw, nil
}

// UseDehydratedState decodes a snapshot produced by Dehydrate. The result
// is memoized: the same snapshot bytes return the same *DehydratedState
// until a different snapshot is decoded. An empty snapshot yields nil.
func (f *Facade) UseDehydratedState(snapshot []byte) (*cache.DehydratedState, error) {
	if len(snapshot) == 0 {
		return nil, nil
	}
	sum := sha256.Sum256(snapshot)

	f.memoMu.Lock()
	defer f.memoMu.Unlock()
	if f.memoState != nil && sum == f.memoSum {
		return f.memoState, nil
	}

	var st cache.DehydratedState
	if err := f.snapshots.Deserialize(snapshot, &st); err != nil {
		return nil, fmt.Errorf("query: decode snapshot: %w", err)
	}
	f.memoSum, f.memoState = sum, &st
	return &st, nil
}

// Hydrate decodes snapshot and merges it into the store, keeping entries
// that are newer than the snapshot. It returns the number of entries written.
func (f *Facade) Hydrate(snapshot []byte) (int, error) {
	st, err := f.UseDehydratedState(snapshot)
	if err != nil || st == nil {
		return 0, err
	}
	n := f.store.Hydrate(*st)
	f.logger.Debug(context.Background(), "hydrated cache", observe.Field{Key: "entries", Value: n})
	return n, nil
}
