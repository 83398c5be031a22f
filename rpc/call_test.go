package rpc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCall_Wait(t *testing.T) {
	c := Go(context.Background(), func(context.Context) ([]byte, error) {
		return []byte(`"ok"`), nil
	})
	out, err := c.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if string(out) != `"ok"` {
		t.Errorf("Wait() = %s, want \"ok\"", out)
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done() not closed after completion")
	}
}

func TestCall_CancelPropagates(t *testing.T) {
	started := make(chan struct{})
	c := Go(context.Background(), func(ctx context.Context) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started
	c.Cancel()

	out, err := c.Wait(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if out != nil {
		t.Errorf("Wait() out = %s, want nil", out)
	}
}

func TestCall_WaitContextEndsFirst(t *testing.T) {
	opCtx := make(chan context.Context, 1)
	c := Go(context.Background(), func(ctx context.Context) ([]byte, error) {
		opCtx <- ctx
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want DeadlineExceeded", err)
	}

	select {
	case <-(<-opCtx).Done():
	case <-time.After(time.Second):
		t.Fatal("abandoned Wait did not cancel the operation")
	}
}

func TestResolved(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Resolved(nil, boom).Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Wait() error = %v, want boom", err)
	}
}
