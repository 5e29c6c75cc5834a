package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher appends schema-checked envelopes to one Redis stream.
type Publisher struct {
	client   redis.Cmdable
	registry *SchemaRegistry
	stream   string
	origin   string
	maxLen   int64
}

// NewPublisher creates a Publisher for stream. origin identifies this instance and
// is stamped on every envelope. maxLen > 0 trims the stream approximately.
func NewPublisher(client redis.Cmdable, registry *SchemaRegistry, stream, origin string, maxLen int64) *Publisher {
	return &Publisher{client: client, registry: registry, stream: stream, origin: origin, maxLen: maxLen}
}

// Publish marshals payload, validates it against the registered schema and appends it.
func (p *Publisher) Publish(ctx context.Context, eventType, version, key string, payload any) (string, error) {
	if p.stream == "" {
		return "", fmt.Errorf("stream name is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	if p.registry != nil {
		if err := p.registry.Validate(eventType, version, data); err != nil {
			return "", err
		}
	}
	env := Envelope{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		PayloadVersion: version,
		Origin:         p.origin,
		Key:            key,
		OccurredAt:     time.Now().UTC(),
		Data:           data,
	}
	if err := env.ValidateBasic(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{"envelope": raw},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}
