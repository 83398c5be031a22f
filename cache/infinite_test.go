package cache

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"
)

// pager serves pages of three numbers starting at the cursor.
type pager struct {
	mu     sync.Mutex
	params []any
}

func (p *pager) fetch(_ context.Context, param any) (any, error) {
	p.mu.Lock()
	p.params = append(p.params, param)
	p.mu.Unlock()
	start, _ := param.(int)
	return []int{start, start + 1, start + 2}, nil
}

func (p *pager) seen() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.params...)
}

func nextAfter(last any, _ []any) (any, bool) {
	page := last.([]int)
	next := page[len(page)-1] + 1
	return next, next < 9
}

func TestInfiniteObserver_Pagination(t *testing.T) {
	s := newTestStore(newFakeClock())
	p := &pager{}
	key := NewKey("post.infinite", map[string]any{"limit": 3}, KindInfiniteQuery)

	o, err := s.ObserveInfinite(context.Background(), key, p.fetch, InfiniteObserverOptions{
		InitialPageParam: 0,
		GetNextPageParam: nextAfter,
	})
	if err != nil {
		t.Fatalf("ObserveInfinite() error = %v", err)
	}
	defer o.Close()

	if _, err := o.WaitFor(waitCtx(t), func(st State) bool { return st.Status == StatusSuccess }); err != nil {
		t.Fatal(err)
	}
	if !o.HasNextPage() {
		t.Fatal("HasNextPage() = false after first page")
	}
	if _, err := o.FetchNextPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.FetchNextPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if o.HasNextPage() {
		t.Error("HasNextPage() = true after last page")
	}

	d := o.Data()
	if len(d.Pages) != 3 || !reflect.DeepEqual(d.PageParams, []any{0, 3, 6}) {
		t.Errorf("data = %+v", d)
	}

	// No next page: FetchNextPage is a no-op.
	before := len(p.seen())
	_, _ = o.FetchNextPage(context.Background())
	if len(p.seen()) != before {
		t.Error("FetchNextPage fetched without a next page")
	}
}

func TestFetchInfinite_RefetchUsesStoredParams(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	p := &pager{}
	key := NewKey("list", nil, KindInfiniteQuery)
	ctx := context.Background()

	_, _ = s.FetchInfinite(ctx, key, 0, p.fetch)
	_, _ = s.FetchPage(ctx, key, 3, p.fetch)

	clock.Advance(time.Hour)
	d, err := s.FetchInfinite(ctx, key, 0, p.fetch)
	if err != nil {
		t.Fatal(err)
	}
	if want := []any{0, 3, 0, 3}; !reflect.DeepEqual(p.seen(), want) {
		t.Errorf("params seen = %v, want %v", p.seen(), want)
	}
	if len(d.Pages) != 2 {
		t.Errorf("pages = %d, want 2", len(d.Pages))
	}
}

func TestAsInfiniteData(t *testing.T) {
	generic := map[string]any{"pages": []any{1}, "pageParams": []any{nil}}
	if d, ok := AsInfiniteData(generic); !ok || len(d.Pages) != 1 {
		t.Errorf("AsInfiniteData(map) = %+v, %v", d, ok)
	}
	if _, ok := AsInfiniteData(map[string]any{"pages": 1}); ok {
		t.Error("AsInfiniteData(malformed) ok = true")
	}
	if _, ok := AsInfiniteData((*InfiniteData)(nil)); ok {
		t.Error("AsInfiniteData(nil ptr) ok = true")
	}
}
