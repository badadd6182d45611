package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type product struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupCache(t *testing.T) *Cache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	c := New(client, "test:"+uuid.NewString()+":", time.Minute)
	t.Cleanup(func() {
		_ = c.DeletePattern(context.Background(), "*")
		_ = c.Close()
	})
	return c
}

func TestRememberLoadsOnce(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	var loads int32
	load := func(context.Context) (product, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(20 * time.Millisecond)
		return product{ID: 1, Name: "Lamp"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := Remember(ctx, c, "product:1", load)
			assert.NoError(t, err)
			assert.Equal(t, "Lamp", p.Name)
		}()
	}
	wg.Wait()

	p, err := Remember(ctx, c, "product:1", load)
	require.NoError(t, err)
	assert.Equal(t, uint(1), p.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	_, err := Remember(ctx, c, "product:2", func(context.Context) (product, error) {
		return product{}, errors.New("boom")
	})
	require.Error(t, err)

	var got product
	ok, err := c.Get(ctx, "product:2", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRememberWithoutCache(t *testing.T) {
	p, err := Remember(context.Background(), nil, "k", func(context.Context) (product, error) {
		return product{ID: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(3), p.ID)
}

func TestAcquireOnce(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	ok, err := c.AcquireOnce(ctx, "idem:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireOnce(ctx, "idem:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Release(ctx, "idem:1"))
	ok, err = c.AcquireOnce(ctx, "idem:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeletePattern(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "product:1", product{ID: 1}))
	require.NoError(t, c.Set(ctx, "product:2", product{ID: 2}))
	require.NoError(t, c.Set(ctx, "category:1", product{ID: 9}))

	require.NoError(t, c.DeletePattern(ctx, "product:*"))

	var got product
	ok, _ := c.Get(ctx, "product:1", &got)
	assert.False(t, ok)
	ok, _ = c.Get(ctx, "category:1", &got)
	assert.True(t, ok)
}
