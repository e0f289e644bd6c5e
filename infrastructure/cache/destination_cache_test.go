package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"crosspost/infrastructure/cache"
)

func TestNewDestinationCacheNilClient(t *testing.T) {
	// A nil redis client must degrade to cache misses, never panic
	c := cache.NewDestinationCache(nil)
	assert.NotNil(t, c)

	dest, err := c.Get(context.Background(), "user-1", "chan-1", "facebook")
	assert.Error(t, err)
	assert.Nil(t, dest)

	c.Set(context.Background(), "user-1", "chan-1", "facebook", &cache.Destination{ID: "123"})
	c.Invalidate(context.Background(), "user-1", "chan-1", "facebook")
}
