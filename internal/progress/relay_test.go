package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/claimcheck/models"
)

// bus connects in-process transports the way the progress stream connects instances.
type bus struct {
	mu    sync.Mutex
	peers []*busPeer
}

type busPeer struct {
	bus *bus
	in  chan models.ProgressEvent
}

func (b *bus) join() *busPeer {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := &busPeer{bus: b, in: make(chan models.ProgressEvent, 64)}
	b.peers = append(b.peers, p)
	return p
}

func (p *busPeer) Publish(_ context.Context, ev models.ProgressEvent) error {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	for _, other := range p.bus.peers {
		if other != p {
			other.in <- ev
		}
	}
	return nil
}

func (p *busPeer) Run(ctx context.Context, deliver func(models.ProgressEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.in:
			deliver(ev)
		}
	}
}

func TestRemoteEventsReachLocalSubscribers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb := newFakeRedis()
	var b bus
	worker := NewHub(NewRedisJobStore(rdb, "", 0), WithTransport(b.join()))
	api := NewHub(NewRedisJobStore(rdb, "", 0), WithTransport(b.join()))

	runCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, h := range []*Hub{worker, api} {
		wg.Add(1)
		go func(h *Hub) {
			defer wg.Done()
			_ = h.Run(runCtx)
		}(h)
	}
	defer func() {
		stop()
		wg.Wait()
	}()

	job := newJob(t, worker)
	sub, err := api.Subscribe(ctx, job.ID)
	require.NoError(t, err)
	defer sub.Close()

	var got []models.ProgressEvent
	done := make(chan error, 1)
	go func() {
		done <- Stream(ctx, sub, time.Minute, func(ev models.ProgressEvent) error {
			got = append(got, ev)
			return nil
		})
	}()

	_, err = worker.Publish(ctx, job.ID, Update{Status: models.StatusDownloading, Step: "Downloading media", Progress: 20})
	require.NoError(t, err)
	_, err = worker.Publish(ctx, job.ID, Update{Status: models.StatusCompleted, Step: "Processing completed"})
	require.NoError(t, err)

	require.NoError(t, <-done, "terminal remote event ends the stream")
	require.Len(t, got, 3)
	assert.Equal(t, models.EventStatus, got[0].Type)
	assert.Equal(t, "Downloading media", got[1].Step)
	assert.Equal(t, models.StatusCompleted, got[2].Status)
	assert.Equal(t, 100, got[2].Progress)
}

func TestHubRunWithoutTransportReturns(t *testing.T) {
	h := NewHub(NewMemoryJobStore())
	assert.NoError(t, h.Run(context.Background()))
}
