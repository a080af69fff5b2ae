// Package cache provides an optional Redis cache of raw model responses.
// A hit lets the orchestrator skip a billed provider call when the same
// chart is re-analyzed in the same mode shortly after.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCache stores raw inference responses keyed by image digest+mode.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a ResponseCache with the given TTL.
func New(client *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		client: client,
		ttl:    ttl,
	}
}

// Key derives the cache key for an image and analysis mode.
func Key(image []byte, mode string) string {
	sum := sha256.Sum256(image)
	return fmt.Sprintf("analysis:response:%s:%s", mode, hex.EncodeToString(sum[:]))
}

// Get returns the cached raw response, or "" on a miss.
func (c *ResponseCache) Get(ctx context.Context, image []byte, mode string) (string, error) {
	text, err := c.client.Get(ctx, Key(image, mode)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// Set stores a raw response under the image digest for the configured TTL.
func (c *ResponseCache) Set(ctx context.Context, image []byte, mode, rawText string) error {
	return c.client.Set(ctx, Key(image, mode), rawText, c.ttl).Err()
}
