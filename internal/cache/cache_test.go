/*
Copyright 2024 Phantom Vision Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCacheWithClient(client), mr
}

func TestSetGet(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "merchant:mer_1", "acct_123", time.Minute))

	var got string
	require.NoError(t, c.Get(ctx, "merchant:mer_1", &got))
	assert.Equal(t, "acct_123", got)
}

func TestGetMissIsNil(t *testing.T) {
	c, _ := testCache(t)

	var got string
	err := c.Get(context.Background(), "never-set", &got)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestDelete(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	var got string
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Empty(t, got)
}

func TestIncrIsAtomicAndExpiring(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		n, err := c.Incr(ctx, "rate:mer_1:2024-06-01-15", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := c.Count(ctx, "rate:mer_1:2024-06-01-15")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// TTL set on first increment only.
	ttl := mr.TTL("rate:mer_1:2024-06-01-15")
	assert.Equal(t, time.Hour, ttl)
}

func TestCountMissingKeyIsZero(t *testing.T) {
	c, _ := testCache(t)

	n, err := c.Count(context.Background(), "rate:none")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
