package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	locker := NewLocalLocker()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "slot", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLockerHonorsContext(t *testing.T) {
	locker := NewLocalLocker()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := locker.WithLock(ctx, "k", func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker()

	err := locker.WithLock(context.Background(), "a", func(ctx context.Context) error {
		return locker.WithLock(ctx, "b", func(ctx context.Context) error { return nil })
	})
	assert.NoError(t, err)
}

func TestLocalLockerForgetsReleasedKeys(t *testing.T) {
	locker := NewLocalLocker().(*localLocker)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "slot"
			if i%2 == 0 {
				key = time.Duration(i).String()
			}
			assert.NoError(t, locker.WithLock(context.Background(), key, func(ctx context.Context) error {
				assert.Positive(t, locker.size())
				return nil
			}))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, locker.size())
}
