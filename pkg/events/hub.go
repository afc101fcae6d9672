// Package events fans battery change notifications out to SSE subscribers.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/dispatch"
)

// subscriberBuffer is how many events a subscriber may lag behind.
const subscriberBuffer = 16

type subscriber struct {
	dropped atomic.Uint64
}

// Hub turns dispatcher changes into named events for every subscriber.
// A slow subscriber misses events instead of blocking the control
// goroutine, and every miss is counted.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]*subscriber
	onDrop func(name string)
}

// NewHub returns an empty hub. onDrop, if not nil, is called once per
// event a subscriber missed.
func NewHub(onDrop func(name string)) *Hub {
	return &Hub{
		subs:   make(map[chan Event]*subscriber),
		onDrop: onDrop,
	}
}

func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = &subscriber{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe closes ch. It is safe to call more than once.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	sub, ok := h.subs[ch]
	if ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()

	if ok {
		if n := sub.dropped.Load(); n > 0 {
			logrus.WithField("dropped", n).Info("event subscriber left after missing events")
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many events ch has missed so far.
func (h *Hub) Dropped(ch chan Event) uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sub, ok := h.subs[ch]; ok {
		return sub.dropped.Load()
	}
	return 0
}

// Notify is a dispatcher observer: it publishes c as seen at now.
func (h *Hub) Notify(c dispatch.Change, now time.Time) {
	if h == nil {
		return
	}
	h.publish(Payload(c, now))
}

func (h *Hub) publish(name string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("event", name).Error("failed to encode event")
		return
	}
	msg := Event{Name: name, Data: b}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch, sub := range h.subs {
		select {
		case ch <- msg:
		default:
			sub.dropped.Add(1)
			if h.onDrop != nil {
				h.onDrop(name)
			}
			logrus.WithField("event", name).Debug("dropping event for slow subscriber")
		}
	}
}
