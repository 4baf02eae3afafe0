package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/bmh-lims/lims/internal/ingest"
)

// Broadcaster fans completed runs out to in-process listeners such as the
// server-sent events endpoint. Each listener holds at most one pending event;
// slow listeners miss events instead of blocking ingestion.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// NewBroadcaster creates a Broadcaster with no listeners.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[chan Event]struct{})}
}

// Subscribe returns a channel receiving events. Call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 1)
	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.listeners, ch)
	b.mu.Unlock()
	close(ch)
}

// Broadcast sends ev to every listener without blocking.
func (b *Broadcaster) Broadcast(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Notify implements ingest.Notifier.
func (b *Broadcaster) Notify(_ context.Context, res *ingest.Result) error {
	b.Broadcast(NewEvent(res))
	return nil
}

// Fanout delivers a result to several notifiers. Every notifier is called;
// the failures are joined.
type Fanout []ingest.Notifier

// Notify implements ingest.Notifier.
func (f Fanout) Notify(ctx context.Context, res *ingest.Result) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ ingest.Notifier = (*Broadcaster)(nil)
	_ ingest.Notifier = Fanout(nil)
)
