package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crosspost/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

// Destination is the cached sub-destination metadata resolved for a
// credential (connected Facebook page, Pinterest board, Snapchat profile).
// Resolving these costs a remote round trip, so publishes read the cache
// before hitting the platform.
type Destination struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

type IDestinationCache interface {
	Get(ctx context.Context, userID, channelID, platform string) (*Destination, error)
	Set(ctx context.Context, userID, channelID, platform string, dest *Destination)
	Invalidate(ctx context.Context, userID, channelID, platform string)
}

type DestinationCache struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewDestinationCache(redisClient *redis.Client) IDestinationCache {
	return &DestinationCache{redisClient: redisClient, ttl: 12 * time.Hour}
}

func destinationKey(userID, channelID, platform string) string {
	return fmt.Sprintf("crosspost:destination:%s:%s:%s", userID, channelID, platform)
}

func (c *DestinationCache) Get(ctx context.Context, userID, channelID, platform string) (*Destination, error) {
	if c.redisClient == nil {
		return nil, redis.Nil
	}
	raw, err := c.redisClient.Get(ctx, destinationKey(userID, channelID, platform)).Result()
	if err != nil {
		return nil, err
	}
	dest := &Destination{}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return nil, err
	}
	return dest, nil
}

func (c *DestinationCache) Set(ctx context.Context, userID, channelID, platform string, dest *Destination) {
	if c.redisClient == nil || dest == nil {
		return
	}
	raw, err := json.Marshal(dest)
	if err != nil {
		return
	}
	if err := c.redisClient.Set(ctx, destinationKey(userID, channelID, platform), raw, c.ttl).Err(); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Failed caching destination metadata")
	}
}

func (c *DestinationCache) Invalidate(ctx context.Context, userID, channelID, platform string) {
	if c.redisClient == nil {
		return
	}
	if err := c.redisClient.Del(ctx, destinationKey(userID, channelID, platform)).Err(); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Failed invalidating destination metadata")
	}
}

// NewCache connects a redis client. Callers tolerate a nil client when the
// cache is unavailable.
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
