package cache

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// DehydratedState is a transferable snapshot of a Store.
type DehydratedState struct {
	Queries []DehydratedQuery `json:"queries"`
}

// DehydratedQuery is one entry of a snapshot.
type DehydratedQuery struct {
	Key   Key                  `json:"queryKey"`
	Hash  string               `json:"queryHash"`
	State DehydratedQueryState `json:"state"`
}

// DehydratedQueryState carries the parts of State that survive transfer.
// DataUpdatedAt is in Unix milliseconds.
type DehydratedQueryState struct {
	Data          any    `json:"data"`
	DataUpdatedAt int64  `json:"dataUpdatedAt"`
	Status        Status `json:"status"`
	Infinite      bool   `json:"infinite,omitempty"`
}

// UnmarshalJSON decodes numbers in Data as json.Number.
func (s *DehydratedQueryState) UnmarshalJSON(data []byte) error {
	type plain DehydratedQueryState
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*s = DehydratedQueryState(p)
	return nil
}

// DehydrateOptions selects which entries go into a snapshot.
type DehydrateOptions struct {
	// ShouldDehydrate reports whether an entry is included.
	// Default: entries with StatusSuccess.
	ShouldDehydrate func(key Key, state State) bool
}

// Dehydrate snapshots the store. Queries are ordered by hash.
func (s *Store) Dehydrate(opts DehydrateOptions) DehydratedState {
	should := opts.ShouldDehydrate
	if should == nil {
		should = func(_ Key, st State) bool { return st.Status == StatusSuccess }
	}

	s.mu.RLock()
	queries := make([]DehydratedQuery, 0, len(s.entries))
	for hash, e := range s.entries {
		if !should(e.key, e.state) {
			continue
		}
		q := DehydratedQuery{
			Key:  e.key,
			Hash: hash,
			State: DehydratedQueryState{
				Data:   e.state.Data,
				Status: e.state.Status,
			},
		}
		if e.state.HasData() {
			q.State.DataUpdatedAt = e.state.DataUpdatedAt.UnixMilli()
		}
		if d, ok := e.state.Data.(InfiniteData); ok {
			q.State.Data = d
			q.State.Infinite = true
		}
		queries = append(queries, q)
	}
	s.mu.RUnlock()

	sort.Slice(queries, func(i, j int) bool { return queries[i].Hash < queries[j].Hash })
	return DehydratedState{Queries: queries}
}

// Hydrate merges a snapshot into the store. An existing entry whose data is
// newer than the snapshot's is kept. It returns the number of entries written.
func (s *Store) Hydrate(state DehydratedState) int {
	var written []string

	s.mu.Lock()
	for _, q := range state.Queries {
		if ValidateKey(q.Key) != nil {
			continue
		}
		hash, _ := q.Key.Hash()

		var updatedAt time.Time
		if q.State.DataUpdatedAt > 0 {
			updatedAt = time.UnixMilli(q.State.DataUpdatedAt)
		}
		if e, ok := s.entries[hash]; ok && !e.state.DataUpdatedAt.Before(updatedAt) && e.state.HasData() {
			continue
		}

		data := q.State.Data
		if q.State.Infinite {
			if d, ok := AsInfiniteData(data); ok {
				data = d
			}
		}

		e, ok := s.entries[hash]
		if !ok {
			e = &entry{key: q.Key, cacheTime: s.policy.EffectiveCacheTime(0)}
			s.entries[hash] = e
		}
		e.lastUsed = s.now()
		e.state.Data = data
		e.state.Status = q.State.Status
		e.state.DataUpdatedAt = updatedAt
		e.state.Err = nil
		e.state.Invalidated = false
		written = append(written, hash)
	}
	s.mu.Unlock()

	for _, h := range written {
		s.notify(h)
	}
	return len(written)
}
