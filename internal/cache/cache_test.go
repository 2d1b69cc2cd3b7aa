package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestCache_NilClientIsAMiss(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	var dest payload
	found, err := c.GetJSON(ctx, "k", &dest)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.SetJSON(ctx, "k", payload{ID: 1}, time.Minute))
	c.Invalidate(ctx, "k")
	c.InvalidatePattern(ctx, "*")

	calls := 0
	for i := 0; i < 2; i++ {
		require.NoError(t, c.Aside(ctx, "k", &dest, time.Minute, func() error {
			calls++
			dest = payload{ID: 7}
			return nil
		}))
	}
	assert.Equal(t, 2, calls)

	var nilCache *Cache
	assert.False(t, nilCache.Enabled())
}

func TestCache_AsideStoresOnMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			*dest = payload{ID: 3, Title: "Loft"}
			return nil
		}
	}

	var first payload
	require.NoError(t, c.Aside(ctx, PostKey(3), &first, time.Minute, fetch(&first)))
	var second payload
	require.NoError(t, c.Aside(ctx, PostKey(3), &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("post:3"))
	assert.Greater(t, mr.TTL("post:3"), time.Duration(0))
}

func TestCache_AsideFetchErrorIsNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("db down")

	var dest payload
	err := c.Aside(context.Background(), "post:9", &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("post:9"))
}

func TestCache_AsideSurvivesCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("post:1", "{not json"))

	var dest payload
	err := c.Aside(context.Background(), "post:1", &dest, time.Minute, func() error {
		dest = payload{ID: 1}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(1), dest.ID)
}

func TestCache_InvalidatePost(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, k := range []string{
		PostKey(5), StepsKey(5), PostSlugKey("old-slug"), PostSlugKey("new-slug"),
		PostsListKey(""), PostsListKey("Tiny Homes"), CategoryCountsKey, PostKey(6),
	} {
		require.NoError(t, mr.Set(k, "{}"))
	}

	c.InvalidatePost(ctx, 5, "old-slug", "new-slug", "")

	assert.False(t, mr.Exists(PostKey(5)))
	assert.False(t, mr.Exists(StepsKey(5)))
	assert.False(t, mr.Exists(PostSlugKey("old-slug")))
	assert.False(t, mr.Exists(PostSlugKey("new-slug")))
	assert.False(t, mr.Exists(PostsListKey("")))
	assert.False(t, mr.Exists(PostsListKey("Tiny Homes")))
	assert.False(t, mr.Exists(CategoryCountsKey))
	assert.True(t, mr.Exists(PostKey(6)))
}

func TestCache_FillRacingInvalidateIsDropped(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var dest payload
	require.NoError(t, c.Aside(ctx, PostKey(4), &dest, time.Minute, func() error {
		dest = payload{ID: 4, Title: "before update"}
		// An update commits and invalidates while this read is in flight.
		c.InvalidatePost(ctx, 4, "loft")
		return nil
	}))
	assert.Equal(t, "before update", dest.Title)
	assert.False(t, mr.Exists(PostKey(4)))

	// The next read fills normally against the bumped version.
	var fresh payload
	require.NoError(t, c.Aside(ctx, PostKey(4), &fresh, time.Minute, func() error {
		fresh = payload{ID: 4, Title: "after update"}
		return nil
	}))
	assert.True(t, mr.Exists(PostKey(4)))
}

func TestCache_ListFillRacingInvalidateIsDropped(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := PostsListKey("Vans") + ":0:0"

	var dest []payload
	require.NoError(t, c.AsideGroup(ctx, PostsListGroup, key, &dest, time.Minute, func() error {
		dest = []payload{{ID: 1}}
		c.InvalidatePost(ctx, 2)
		return nil
	}))
	assert.False(t, mr.Exists(key))

	require.NoError(t, c.AsideGroup(ctx, PostsListGroup, key, &dest, time.Minute, func() error {
		dest = []payload{{ID: 1}, {ID: 2}}
		return nil
	}))
	assert.True(t, mr.Exists(key))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "post:12", PostKey(12))
	assert.Equal(t, "post:slug:tiny-loft", PostSlugKey("tiny-loft"))
	assert.Equal(t, "posts:list:*all*", PostsListKey(""))
	assert.Equal(t, "posts:list:Vans", PostsListKey("Vans"))
	assert.Equal(t, "post:12:steps", StepsKey(12))
}

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb := InitRedis(mr.Addr())
	require.NotNil(t, rdb)
	_ = rdb.Close()

	rdb = InitRedis("redis://" + mr.Addr() + "/0")
	require.NotNil(t, rdb)
	_ = rdb.Close()

	assert.Nil(t, InitRedis(""))
	assert.Nil(t, InitRedis("redis://%zz"))
}
