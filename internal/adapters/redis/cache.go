package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// GetIssuedTicket returns the previously issued ticket code for a
// participant, so repeated page loads show the same QR image.
func (c *Cache) GetIssuedTicket(ctx context.Context, participantID string) (string, error) {
	val, err := c.client.Get(ctx, "ticket:"+participantID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Cache) SetIssuedTicket(ctx context.Context, participantID, encoded string, ttl time.Duration) error {
	return c.client.Set(ctx, "ticket:"+participantID, encoded, ttl).Err()
}
