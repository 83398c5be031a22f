package query

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/rpcquery/rpc"
)

type page struct {
	Items []int `json:"items"`
	Next  *int  `json:"next"`
}

type listInput struct {
	Limit  int  `json:"limit"`
	Cursor *int `json:"cursor"`
}

// registerList serves the integers 0..total-1 in pages of input.Limit.
func registerList(t *testing.T, r *rpc.Router, total int, calls *atomic.Int32) {
	t.Helper()
	err := rpc.HandleQuery(r, "post.list", func(_ context.Context, in listInput) (page, error) {
		calls.Add(1)
		start := 0
		if in.Cursor != nil {
			start = *in.Cursor
		}
		end := min(start+in.Limit, total)
		p := page{Items: []int{}}
		for i := start; i < end; i++ {
			p.Items = append(p.Items, i)
		}
		if end < total {
			p.Next = &end
		}
		return p, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func nextCursor(last page, _ []page) (any, bool) {
	if last.Next == nil {
		return nil, false
	}
	return *last.Next, true
}

func TestInfiniteQuery_Pagination(t *testing.T) {
	r := rpc.NewRouter(nil)
	var calls atomic.Int32
	registerList(t, r, 5, &calls)
	f := newRouterFacade(t, r)

	q, err := UseInfiniteQuery(context.Background(), f, "post.list", map[string]any{"limit": 2}, InfiniteQueryOptions[page]{
		GetNextPageParam: nextCursor,
	})
	if err != nil {
		t.Fatalf("UseInfiniteQuery() error = %v", err)
	}
	defer q.Close()

	res, err := q.WaitFor(waitCtx(t), func(r InfiniteResult[page]) bool { return len(r.Pages) == 1 })
	if err != nil {
		t.Fatalf("WaitFor() error = %v", err)
	}
	if !reflect.DeepEqual(res.Pages[0].Items, []int{0, 1}) || !res.HasNextPage {
		t.Fatalf("first page = %+v", res)
	}

	for _, want := range [][]int{{2, 3}, {4}} {
		res, err = q.FetchNextPage(context.Background())
		if err != nil {
			t.Fatalf("FetchNextPage() error = %v", err)
		}
		if got := res.Pages[len(res.Pages)-1].Items; !reflect.DeepEqual(got, want) {
			t.Errorf("page = %v, want %v", got, want)
		}
	}
	if res.HasNextPage || q.HasNextPage() {
		t.Error("HasNextPage() = true after the last page")
	}
	if !reflect.DeepEqual(res.PageParams, []any{nil, 2, 4}) {
		t.Errorf("PageParams = %#v", res.PageParams)
	}

	before := calls.Load()
	res, _ = q.FetchNextPage(context.Background())
	if calls.Load() != before || len(res.Pages) != 3 {
		t.Error("FetchNextPage() without a next page fetched")
	}

	res, err = q.Refetch(context.Background())
	if err != nil {
		t.Fatalf("Refetch() error = %v", err)
	}
	if calls.Load() != before+3 || len(res.Pages) != 3 {
		t.Errorf("Refetch() calls = %d, pages = %d", calls.Load()-before, len(res.Pages))
	}
}

func TestInfiniteQuery_RequiresObjectInput(t *testing.T) {
	f := newRouterFacade(t, rpc.NewRouter(nil))
	_, err := UseInfiniteQuery(context.Background(), f, "post.list", "all", InfiniteQueryOptions[page]{})
	if !errors.Is(err, ErrInputNotObject) {
		t.Errorf("UseInfiniteQuery() error = %v, want ErrInputNotObject", err)
	}
}
