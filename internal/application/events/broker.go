// Package events fans pipeline events out to subscribers and keeps a short
// per-application history for late joiners.
package events

import (
	"sync"
	"time"

	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/pkg/log"
)

const (
	defaultHistoryLimit = 500
	subscriberBuffer    = 128
)

// Subscription receives the events of one application, or of all
// applications when AppID is empty. C is closed when the subscription ends,
// including when the subscriber falls behind.
type Subscription struct {
	AppID string
	// History holds the events emitted before the subscription started.
	History []model.Event
	C       <-chan model.Event

	ch     chan model.Event
	broker *Broker
	once   sync.Once
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.broker.remove(s)
}

// Broker implements repository.EventSink. Emit never blocks: a subscriber
// whose buffer is full is dropped.
type Broker struct {
	mu      sync.Mutex
	seq     uint64
	limit   int
	history map[string][]model.Event
	subs    map[*Subscription]struct{}
	now     func() time.Time
}

var _ repository.EventSink = (*Broker)(nil)

func NewBroker(historyLimit int) *Broker {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Broker{
		limit:   historyLimit,
		history: make(map[string][]model.Event),
		subs:    make(map[*Subscription]struct{}),
		now:     time.Now,
	}
}

// Emit stamps event with the next sequence number and delivers it.
func (b *Broker) Emit(event model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	event.Seq = b.seq
	if event.Time.IsZero() {
		event.Time = b.now()
	}

	h := append(b.history[event.AppID], event)
	if len(h) > b.limit {
		h = append([]model.Event(nil), h[len(h)-b.limit:]...)
	}
	b.history[event.AppID] = h

	for s := range b.subs {
		if s.AppID != "" && s.AppID != event.AppID {
			continue
		}
		select {
		case s.ch <- event:
		default:
			log.Warn("Dropping slow event subscriber", "app_id", s.AppID)
			b.drop(s)
		}
	}
}

// Subscribe starts a subscription for appID; an empty appID receives every
// application's events and no history.
func (b *Broker) Subscribe(appID string) *Subscription {
	ch := make(chan model.Event, subscriberBuffer)
	s := &Subscription{AppID: appID, C: ch, ch: ch, broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if appID != "" {
		s.History = append([]model.Event(nil), b.history[appID]...)
	}
	b.subs[s] = struct{}{}
	return s
}

// History returns the retained events of appID, oldest first.
func (b *Broker) History(appID string) []model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Event(nil), b.history[appID]...)
}

// Forget drops the history of appID and ends its subscriptions.
func (b *Broker) Forget(appID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.history, appID)
	for s := range b.subs {
		if s.AppID == appID {
			b.drop(s)
		}
	}
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drop(s)
}

// drop must be called with b.mu held.
func (b *Broker) drop(s *Subscription) {
	delete(b.subs, s)
	s.once.Do(func() { close(s.ch) })
}
