package realtime

import "sync"

// Subscription is one subscriber's feed of change events for a topic.
// Cancel must be called when the owning scope goes away; a leaked
// subscription is a defect.
type Subscription struct {
	Topic    Topic
	C        chan ChangeEvent
	registry *Registry
	once     sync.Once
}

// Cancel releases the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.registry.remove(s)
	})
}

// Registry tracks change-event subscribers by typed topic.
type Registry struct {
	mu     sync.RWMutex
	subs   map[Topic]map[*Subscription]struct{}
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[Topic]map[*Subscription]struct{})}
}

func (r *Registry) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		Topic:    topic,
		C:        make(chan ChangeEvent, 8),
		registry: r,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(sub.C)
		return sub
	}
	if r.subs[topic] == nil {
		r.subs[topic] = make(map[*Subscription]struct{})
	}
	r.subs[topic][sub] = struct{}{}
	return sub
}

func (r *Registry) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if set, ok := r.subs[sub.Topic]; ok {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			close(sub.C)
		}
		if len(set) == 0 {
			delete(r.subs, sub.Topic)
		}
	}
}

// Dispatch fans an event out to the topic's subscribers. The topic is
// passed separately so an event can also reach watchers of projections
// derived from its resource. A slow consumer drops events rather than
// blocking the stream loop; the TTL backstop keeps a dropped consumer
// from staying stale forever.
func (r *Registry) Dispatch(topic Topic, event ChangeEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sub := range r.subs[topic] {
		select {
		case sub.C <- event:
		default:
		}
	}
}

// HasSubscribers reports whether anyone currently watches the topic.
func (r *Registry) HasSubscribers(topic Topic) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[topic]) > 0
}

// Count returns the number of live subscriptions across all topics.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, set := range r.subs {
		total += len(set)
	}
	return total
}

// Close cancels every subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, set := range r.subs {
		for sub := range set {
			close(sub.C)
		}
	}
	r.subs = nil
}
