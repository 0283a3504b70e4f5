package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails while held", func(t *testing.T) {
		locker := NewLocalLocker()

		release, err := locker.Acquire(ctx, ExamSetsLockKey(1), time.Minute)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, ExamSetsLockKey(1), time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)

		release()
		release2, err := locker.Acquire(ctx, ExamSetsLockKey(1), time.Minute)
		require.NoError(t, err)
		release2()
	})

	t.Run("keys are independent", func(t *testing.T) {
		locker := NewLocalLocker()

		r1, err := locker.Acquire(ctx, ExamSetsLockKey(1), time.Minute)
		require.NoError(t, err)
		r2, err := locker.Acquire(ctx, ExamSetsLockKey(2), time.Minute)
		require.NoError(t, err)
		r1()
		r2()
	})

	t.Run("expired lock can be taken over", func(t *testing.T) {
		locker := NewLocalLocker()
		now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
		locker.nowFn = func() time.Time { return now }

		stale, err := locker.Acquire(ctx, "k", time.Second)
		require.NoError(t, err)

		now = now.Add(2 * time.Second)
		fresh, err := locker.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)

		// The stale holder must not free the new holder's lock
		stale()
		_, err = locker.Acquire(ctx, "k", time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)
		fresh()
	})
}

func TestExamSetsLockKey(t *testing.T) {
	assert.Equal(t, "exam:42:sets", ExamSetsLockKey(42))
}

func TestNoopCache(t *testing.T) {
	var c CacheService = NoopCache{}
	var out string
	assert.NoError(t, c.Set(context.Background(), "k", "v", time.Minute))
	assert.ErrorIs(t, c.Get(context.Background(), "k", &out), ErrCacheMiss)
}
