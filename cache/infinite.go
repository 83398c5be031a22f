package cache

import "context"

// PageFunc fetches one page for the given page parameter.
type PageFunc func(ctx context.Context, pageParam any) (any, error)

// InfiniteData is the entry data of a paginated query: the pages fetched so
// far and the parameter each was fetched with.
type InfiniteData struct {
	Pages      []any `json:"pages"`
	PageParams []any `json:"pageParams"`
}

// LastPage returns the most recent page, or nil.
func (d InfiniteData) LastPage() any {
	if len(d.Pages) == 0 {
		return nil
	}
	return d.Pages[len(d.Pages)-1]
}

// AsInfiniteData converts entry data into InfiniteData. It accepts the
// generic map form produced by decoding a snapshot.
func AsInfiniteData(v any) (InfiniteData, bool) {
	switch d := v.(type) {
	case InfiniteData:
		return d, true
	case *InfiniteData:
		if d == nil {
			return InfiniteData{}, false
		}
		return *d, true
	case map[string]any:
		pages, okPages := d["pages"].([]any)
		params, okParams := d["pageParams"].([]any)
		if !okPages || !okParams {
			return InfiniteData{}, false
		}
		return InfiniteData{Pages: pages, PageParams: params}, true
	default:
		return InfiniteData{}, false
	}
}

// FetchInfinite returns the paginated entry for key. A stale entry is
// refetched page by page with the page parameters it already holds; a
// missing one starts with initialParam.
func (s *Store) FetchInfinite(ctx context.Context, key Key, initialParam any, fn PageFunc, opts ...FetchOption) (InfiniteData, error) {
	if err := ValidateKey(key); err != nil {
		return InfiniteData{}, err
	}
	hash, _ := key.Hash()
	o := buildFetchOptions(opts)

	if !o.force {
		if data, ok := s.fresh(hash, o.staleTime); ok {
			if d, ok := AsInfiniteData(data); ok {
				s.metrics.RecordCacheLookup(ctx, key.Path(), true)
				return d, nil
			}
		}
	}
	s.metrics.RecordCacheLookup(ctx, key.Path(), false)

	data, err := s.fetchShared(ctx, key, hash, hash, o, func(ctx context.Context) (any, error) {
		params := []any{initialParam}
		if st, ok := s.Get(key); ok {
			if d, ok := AsInfiniteData(st.Data); ok && len(d.PageParams) > 0 {
				params = d.PageParams
			}
		}
		out := InfiniteData{Pages: make([]any, 0, len(params)), PageParams: make([]any, 0, len(params))}
		for _, p := range params {
			page, err := fn(ctx, p)
			if err != nil {
				return nil, err
			}
			out.Pages = append(out.Pages, page)
			out.PageParams = append(out.PageParams, p)
		}
		return out, nil
	})
	d, _ := AsInfiniteData(data)
	return d, err
}

// FetchPage fetches one more page with pageParam and appends it to the
// entry's pages.
func (s *Store) FetchPage(ctx context.Context, key Key, pageParam any, fn PageFunc) (InfiniteData, error) {
	if err := ValidateKey(key); err != nil {
		return InfiniteData{}, err
	}
	hash, _ := key.Hash()

	data, err := s.fetchShared(ctx, key, hash, hash+"|next", fetchOptions{force: true}, func(ctx context.Context) (any, error) {
		page, err := fn(ctx, pageParam)
		if err != nil {
			return nil, err
		}
		var cur InfiniteData
		if st, ok := s.Get(key); ok {
			cur, _ = AsInfiniteData(st.Data)
		}
		return InfiniteData{
			Pages:      append(append([]any(nil), cur.Pages...), page),
			PageParams: append(append([]any(nil), cur.PageParams...), pageParam),
		}, nil
	})
	d, _ := AsInfiniteData(data)
	return d, err
}

// PrefetchInfinite fetches the first page of key unless the entry is fresh.
// Fetch failures are recorded on the entry, not returned.
func (s *Store) PrefetchInfinite(ctx context.Context, key Key, initialParam any, fn PageFunc, opts ...FetchOption) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, _ = s.FetchInfinite(ctx, key, initialParam, fn, opts...)
	return nil
}
