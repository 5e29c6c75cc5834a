package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Consumer reads one stream through a consumer group. Giving each instance its own
// group makes every instance see every entry.
type Consumer struct {
	client   redis.Cmdable
	registry *SchemaRegistry
	stream   string
	group    string
	name     string
	block    time.Duration
	count    int64
}

// NewConsumer builds a consumer. block bounds each read; count caps entries per read.
func NewConsumer(client redis.Cmdable, registry *SchemaRegistry, stream, group, name string, block time.Duration, count int64) *Consumer {
	if block <= 0 {
		block = 5 * time.Second
	}
	if count <= 0 {
		count = 64
	}
	return &Consumer{client: client, registry: registry, stream: stream, group: group, name: name, block: block, count: count}
}

// EnsureGroup creates the consumer group at the stream tail, tolerating an existing group.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	if c.stream == "" || c.group == "" {
		return fmt.Errorf("stream and group must be provided")
	}
	if err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "$").Err(); err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Message is one decoded stream entry.
type Message struct {
	ID       string
	Envelope Envelope
}

// Read blocks up to the configured duration for new entries. Malformed entries are
// acknowledged and skipped.
func (c *Consumer) Read(ctx context.Context) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Block:    c.block,
		Count:    c.count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var out []Message
	for _, st := range streams {
		for _, msg := range st.Messages {
			env, err := c.decode(msg)
			if err != nil {
				_ = c.Ack(ctx, msg.ID)
				continue
			}
			out = append(out, Message{ID: msg.ID, Envelope: env})
		}
	}
	return out, nil
}

// Ack acknowledges processed entries.
func (c *Consumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// DestroyGroup removes this consumer's group, used when an instance shuts down.
func (c *Consumer) DestroyGroup(ctx context.Context) error {
	if err := c.client.XGroupDestroy(ctx, c.stream, c.group).Err(); err != nil {
		return fmt.Errorf("xgroup destroy: %w", err)
	}
	return nil
}

func (c *Consumer) decode(msg redis.XMessage) (Envelope, error) {
	raw, ok := msg.Values["envelope"]
	if !ok {
		return Envelope{}, fmt.Errorf("entry %s has no envelope", msg.ID)
	}
	var b []byte
	switch v := raw.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return Envelope{}, err
		}
		b = data
	}
	env, err := UnmarshalEnvelope(b)
	if err != nil {
		return Envelope{}, err
	}
	if c.registry != nil {
		if err := c.registry.Validate(env.EventType, env.PayloadVersion, env.Data); err != nil {
			return Envelope{}, err
		}
	}
	return env, nil
}
