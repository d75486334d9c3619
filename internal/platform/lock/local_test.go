package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	l := NewLocalLocker(2 * time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "user-1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxInside)
	}
	if len(l.keys) != 0 {
		t.Fatalf("expected key table to drain, got %d", len(l.keys))
	}
}

func TestLocalLockerTimesOut(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "user-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if _, err := l.Acquire(ctx, "user-1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	other, err := l.Acquire(ctx, "user-2")
	if err != nil {
		t.Fatalf("different key should not block: %v", err)
	}
	other()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker(time.Minute)
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "k")
	if !errors.Is(err, ErrNotAcquired) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected ErrNotAcquired wrapping context.Canceled, got %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
	release()
	again, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	again()
}
