package progress

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/claimcheck/models"
)

// Stream forwards sub's events to send, emitting a heartbeat whenever no event has
// been sent for the heartbeat interval. It returns nil after a terminal event has
// been sent, ErrSubscriberLagged when the hub dropped the subscriber, ctx.Err() when
// ctx ends, or the first error from send.
func Stream(ctx context.Context, sub *Subscription, heartbeat time.Duration, send func(models.ProgressEvent) error) error {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	timer := time.NewTimer(heartbeat)
	defer timer.Stop()

	var last models.ProgressEvent
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				if sub.Lagged() {
					return ErrSubscriberLagged
				}
				return nil
			}
			if err := send(ev); err != nil {
				return err
			}
			if ev.Terminal() {
				return nil
			}
			last = ev
			resetTimer(timer, heartbeat)
		case t := <-timer.C:
			hb := models.ProgressEvent{
				Type:      models.EventHeartbeat,
				JobID:     sub.JobID,
				Status:    last.Status,
				Progress:  last.Progress,
				Timestamp: t.UTC(),
			}
			if err := send(hb); err != nil {
				return err
			}
			timer.Reset(heartbeat)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
