package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestObserver_FetchesOnMountAndSignals(t *testing.T) {
	s := newTestStore(newFakeClock())
	fn, calls := counting("hello")

	o, err := s.Observe(context.Background(), NewKey("greet", nil, KindQuery), fn, ObserverOptions{})
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	defer o.Close()

	st, err := o.WaitFor(waitCtx(t), func(st State) bool { return st.Status == StatusSuccess })
	if err != nil {
		t.Fatalf("WaitFor() error = %v", err)
	}
	if st.Data != "hello" || calls.Load() != 1 {
		t.Errorf("state = %+v, calls = %d", st, calls.Load())
	}

	select {
	case <-o.Updates():
	case <-time.After(time.Second):
		t.Error("no update signal after fetch")
	}
}

func TestObserver_FreshEntrySkipsFetch(t *testing.T) {
	s := newTestStore(newFakeClock())
	key := NewKey("num", 123, KindQuery)
	_ = s.SetData(key, 246)

	fn, calls := counting(0)
	o, err := s.Observe(context.Background(), key, fn, ObserverOptions{})
	if err != nil {
		t.Fatal(err)
	}
	o.Close()

	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
	if o.Current().Data != 246 {
		t.Errorf("Current().Data = %v, want 246", o.Current().Data)
	}
}

func TestObserver_RefetchesOnInvalidate(t *testing.T) {
	s := newTestStore(newFakeClock())
	key := NewKey("post.list", nil, KindQuery)
	var n atomic.Int32
	fn := func(context.Context) (any, error) { return int(n.Add(1)), nil }

	o, _ := s.Observe(context.Background(), key, fn, ObserverOptions{})
	defer o.Close()
	if _, err := o.WaitFor(waitCtx(t), func(st State) bool { return st.Data == 1 }); err != nil {
		t.Fatal(err)
	}

	s.Invalidate(Key{"post.list"})
	st, err := o.WaitFor(waitCtx(t), func(st State) bool { return st.Data == 2 && !st.Invalidated })
	if err != nil {
		t.Fatalf("WaitFor() after invalidate error = %v (state %+v)", err, st)
	}
}

func TestObserver_Disabled(t *testing.T) {
	s := newTestStore(newFakeClock())
	fn, calls := counting(1)

	o, _ := s.Observe(context.Background(), NewKey("p", nil, KindQuery), fn, ObserverOptions{Disabled: true})
	defer o.Close()
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("disabled observer fetched %d times", calls.Load())
	}

	st, err := o.Refetch(context.Background())
	if err != nil || st.Data != 1 {
		t.Errorf("Refetch() = %+v, %v", st, err)
	}
}

func TestObserver_CallbacksSuppressedAfterClose(t *testing.T) {
	s := newTestStore(newFakeClock())
	release := make(chan struct{})
	var called atomic.Bool

	o, _ := s.Observe(context.Background(), NewKey("p", nil, KindQuery), func(ctx context.Context) (any, error) {
		select {
		case <-release:
			return "late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, ObserverOptions{
		OnSuccess: func(any) { called.Store(true) },
		OnError:   func(error) { called.Store(true) },
	})

	o.Close()
	close(release)
	time.Sleep(10 * time.Millisecond)
	if called.Load() {
		t.Error("callback ran after Close")
	}
}

func TestObserver_OnError(t *testing.T) {
	s := newTestStore(newFakeClock())
	boom := errors.New("boom")
	errs := make(chan error, 1)

	o, _ := s.Observe(context.Background(), NewKey("p", nil, KindQuery),
		func(context.Context) (any, error) { return nil, boom },
		ObserverOptions{OnError: func(err error) { errs <- err }})
	defer o.Close()

	select {
	case err := <-errs:
		if !errors.Is(err, boom) {
			t.Errorf("OnError(%v), want boom", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnError not called")
	}
}

func TestObserver_ContextCancelStops(t *testing.T) {
	s := newTestStore(newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	fn, _ := counting(1)
	o, _ := s.Observe(ctx, NewKey("p", nil, KindQuery), fn, ObserverOptions{})

	cancel()
	if _, err := o.WaitFor(context.Background(), func(State) bool { return false }); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitFor() after cancel error = %v, want context.Canceled", err)
	}
	o.Close()
}

func TestObserve_InvalidKey(t *testing.T) {
	s := newTestStore(newFakeClock())
	if _, err := s.Observe(context.Background(), Key{}, nil, ObserverOptions{}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Observe(invalid) error = %v", err)
	}
}
