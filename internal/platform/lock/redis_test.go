package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis lock tests")
	}
	ctx := context.Background()
	rdb, err := DialRedis(ctx, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewRedisLocker(rdb, logger.Nop(), 5*time.Second, 50*time.Millisecond)
	key := "test:" + uuid.NewString()

	release, err := l.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, key); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	release()

	again, err := l.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	again()
}
