package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "notifications:"

// RedisPublisher pushes events onto a per-recipient Redis channel so that
// subscribers connected to other processes still receive them.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps an established Redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish serializes the event and publishes it to the recipient's channel.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, redisChannelPrefix+event.UserID, payload).Err()
}

// Channel returns the Redis channel name used for a recipient.
func Channel(userID string) string {
	return redisChannelPrefix + userID
}
