package valkey

import (
	"context"
	"fmt"
	"strconv"

	"github.com/valkey-io/valkey-go"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/config"
)

type Client struct {
	client valkey.Client
}

func New(cfg *config.Config) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.GetValkeyAddress()},
		Password:    cfg.ValkeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	// Test connection
	ctx := context.Background()
	pong := client.Do(ctx, client.B().Ping().Build())
	if err := pong.Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey: %w", err)
	}

	return &Client{client: client}, nil
}

// Ping checks if the hot store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// TimelineAdd appends one serialized record to a timestamp-sorted timeline
// and maintains its rolling window, in a single pipelined round trip:
//
//  1. ZADD the member scored by its timestamp
//  2. ZREMRANGEBYSCORE everything older than the retention floor
//  3. PUBLISH the member to the timeline's live channel
//  4. EXPIRE the key to twice the retention so it self-reclaims if
//     ingestion stops entirely
//
// The pipeline is batching for throughput, not a transaction: concurrent
// writers may interleave their prune steps, which converges because
// members are monotonically timestamped.
func (c *Client) TimelineAdd(ctx context.Context, key, channel, member string, score, minScore, ttlSeconds int64) error {
	cmds := []valkey.Completed{
		c.client.B().Zadd().Key(key).ScoreMember().ScoreMember(float64(score), member).Build(),
		c.client.B().Zremrangebyscore().Key(key).Min("-inf").Max(strconv.FormatInt(minScore, 10)).Build(),
		c.client.B().Publish().Channel(channel).Message(member).Build(),
		c.client.B().Expire().Key(key).Seconds(ttlSeconds).Build(),
	}

	for _, result := range c.client.DoMulti(ctx, cmds...) {
		if err := result.Error(); err != nil {
			return fmt.Errorf("timeline write failed: %w", err)
		}
	}
	return nil
}

// TimelineRange returns the serialized members scored >= minScore, in
// score order.
func (c *Client) TimelineRange(ctx context.Context, key string, minScore int64) ([]string, error) {
	cmd := c.client.B().Zrangebyscore().
		Key(key).
		Min(strconv.FormatInt(minScore, 10)).
		Max("+inf").
		Build()

	result := c.client.Do(ctx, cmd)
	if err := result.Error(); err != nil {
		return nil, fmt.Errorf("timeline range read failed: %w", err)
	}
	return result.AsStrSlice()
}

// Subscribe delivers every message published on channel to fn, in publish
// order, until ctx is cancelled or the connection fails. There is no
// replay: messages published before the subscription are never seen.
func (c *Client) Subscribe(ctx context.Context, channel string, fn func(message string)) error {
	return c.client.Receive(ctx, c.client.B().Subscribe().Channel(channel).Build(), func(msg valkey.PubSubMessage) {
		fn(msg.Message)
	})
}

func (c *Client) Close() {
	c.client.Close()
}
