package progress

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/claimcheck/internal/queue/streams"
	"github.com/mohammad-safakhou/claimcheck/models"
)

// StreamRelay is a Transport over a Redis stream. Every instance appends its events
// and reads everyone's events through a consumer group named after itself.
type StreamRelay struct {
	publisher *streams.Publisher
	consumer  *streams.Consumer
	origin    string
	logger    *zap.Logger
}

// NewStreamRelay wires a relay from a publisher/consumer pair sharing one stream.
func NewStreamRelay(pub *streams.Publisher, con *streams.Consumer, origin string, logger *zap.Logger) *StreamRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamRelay{publisher: pub, consumer: con, origin: origin, logger: logger.Named("relay")}
}

func (r *StreamRelay) Publish(ctx context.Context, ev models.ProgressEvent) error {
	_, err := r.publisher.Publish(ctx, streams.ProgressEventType, streams.ProgressEventVersion, ev.JobID, ev)
	return err
}

// Run consumes the stream until ctx ends, handing remote events to deliver.
func (r *StreamRelay) Run(ctx context.Context, deliver func(models.ProgressEvent)) error {
	if err := r.consumer.EnsureGroup(ctx); err != nil {
		return err
	}
	defer func() {
		cleanup, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.consumer.DestroyGroup(cleanup); err != nil {
			r.logger.Warn("destroy consumer group", zap.Error(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := r.consumer.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			r.logger.Warn("read progress stream", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		ids := make([]string, 0, len(msgs))
		for _, m := range msgs {
			ids = append(ids, m.ID)
			if m.Envelope.Origin == r.origin {
				continue
			}
			var ev models.ProgressEvent
			if err := m.Envelope.Decode(&ev); err != nil {
				r.logger.Warn("decode relayed event", zap.String("entry", m.ID), zap.Error(err))
				continue
			}
			deliver(ev)
		}
		if err := r.consumer.Ack(ctx, ids...); err != nil {
			r.logger.Warn("ack progress entries", zap.Error(err))
		}
	}
}
