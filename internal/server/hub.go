// hub.go - In-process publish/subscribe registry for push notifications.
//
// Events are a convenience signal only: the file list remains the source of
// truth, so publishing to a principal with no open stream silently drops the
// event. There is no durable queue and no replay.
package server

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event is one serialized notification frame queued for a subscriber.
type Event struct {
	Type string
	Data []byte // JSON payload
}

// Subscription is a single delivery channel for one principal. A principal
// may hold any number of concurrent subscriptions (several open desktop
// sessions, for example).
type Subscription struct {
	principal string
	C         chan Event
}

// subscriptionBuffer bounds the per-channel queue. A subscriber that cannot
// drain this many events is considered stuck and further events are dropped
// for that channel; the stream itself keeps running.
const subscriptionBuffer = 16

// Hub fans events out to every subscription currently registered for a
// principal. The registry is lock-guarded; the per-subscription channel
// needs no external lock.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
		log:  log,
	}
}

// Subscribe registers a new delivery channel for principalID.
func (h *Hub) Subscribe(principalID string) *Subscription {
	sub := &Subscription{
		principal: principalID,
		C:         make(chan Event, subscriptionBuffer),
	}

	h.mu.Lock()
	set, ok := h.subs[principalID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[principalID] = set
	}
	set[sub] = struct{}{}
	n := len(set)
	h.mu.Unlock()

	metricSSESubscribers.Inc()
	h.log.Info("listener registered",
		zap.String("principal", principalID),
		zap.Int("listeners", n))
	return sub
}

// Unsubscribe removes exactly one channel. It is safe to call more than
// once and safe on a subscription the hub no longer tracks.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	set, ok := h.subs[sub.principal]
	if ok {
		if _, member := set[sub]; member {
			delete(set, sub)
			close(sub.C)
			metricSSESubscribers.Dec()
		}
		if len(set) == 0 {
			delete(h.subs, sub.principal)
		}
	}
	h.mu.Unlock()
}

// Publish enqueues one event to every channel registered for principalID.
// Delivery is best effort: a full channel or an absent subscriber drops the
// event rather than blocking the publisher.
func (h *Hub) Publish(principalID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("event marshal failed",
			zap.String("event", eventType), zap.Error(err))
		return
	}
	ev := Event{Type: eventType, Data: data}

	h.mu.Lock()
	set := h.subs[principalID]
	delivered, dropped := 0, 0
	for sub := range set {
		select {
		case sub.C <- ev:
			delivered++
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	metricEventsPublished.WithLabelValues(eventType).Inc()
	if dropped > 0 {
		metricEventsDropped.Add(float64(dropped))
	}
	if delivered == 0 && dropped == 0 {
		h.log.Debug("no listeners for principal", zap.String("principal", principalID))
		return
	}
	h.log.Info("event published",
		zap.String("event", eventType),
		zap.String("principal", principalID),
		zap.Int("delivered", delivered),
		zap.Int("dropped", dropped))
}

// listenerCount reports how many channels are registered for a principal.
func (h *Hub) listenerCount(principalID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[principalID])
}
