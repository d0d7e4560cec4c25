package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutAddrReturnsNil(t *testing.T) {
	assert.Nil(t, New("", "engagement:", time.Minute))
}

func TestNilCacheIsPermanentMiss(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var out int
	hit, err := c.Get(ctx, "points:total:1", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	assert.NoError(t, c.Set(ctx, "points:total:1", 10))
	assert.NoError(t, c.Delete(ctx, "points:total:1"))
	assert.NoError(t, c.Close())
}
