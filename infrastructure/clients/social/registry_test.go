package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
)

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubAdapter{platform: model.PlatformPinterest})

	adapter, err := registry.Get("Pinterest")
	require.NoError(t, err)
	assert.Equal(t, model.PlatformPinterest, adapter.Platform())

	_, err = registry.Get("myspace")
	assert.Error(t, err)
}

func TestRegistryPlatformsSorted(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubAdapter{platform: model.PlatformYouTube})
	registry.Register(&stubAdapter{platform: model.PlatformFacebook})
	registry.Register(&stubAdapter{platform: model.PlatformInstagram})

	assert.Equal(t, []string{"facebook", "instagram", "youtube"}, registry.Platforms())
}
