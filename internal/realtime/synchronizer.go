package realtime

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ScopeFetch loads the authoritative projection for one scope id.
type ScopeFetch func(ctx context.Context, scopeID uuid.UUID) (interface{}, error)

// Synchronizer keeps cached projections consistent with the store. On a
// change event it invalidates the topic's cache entry, fans the event out
// to subscribers, and refetches scopes that are actively watched.
type Synchronizer struct {
	stream   Stream
	cache    *Cache
	registry *Registry
	fetchers map[Resource]ScopeFetch
	logger   *zap.Logger

	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
}

func NewSynchronizer(stream Stream, cache *Cache, registry *Registry, fetchers map[Resource]ScopeFetch, concurrency int, logger *zap.Logger) *Synchronizer {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	return &Synchronizer{
		stream:   stream,
		cache:    cache,
		registry: registry,
		fetchers: fetchers,
		logger:   logger,
		group:    group,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Run consumes the change stream until Close is called or the stream
// ends. It is single-threaded; only refetches fan out, bounded by the
// concurrency cap. Every change invalidates its own topic and the
// projections derived from it, so a ledger or attendance write also
// refreshes the cached membership snapshot.
func (s *Synchronizer) Run() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	defer close(s.done)
	for event := range s.stream.Events() {
		for _, topic := range event.affectedTopics() {
			s.cache.Invalidate(topic)
			s.registry.Dispatch(topic, event)

			if !s.registry.HasSubscribers(topic) {
				continue
			}
			fetch, ok := s.fetchers[topic.Resource]
			if !ok {
				continue
			}
			s.refetch(topic, fetch)
		}
	}
}

// refetch schedules a cache refresh for one topic. TryGo keeps a
// notification burst from piling up goroutines: past the cap the entry
// just stays invalidated and the next read fetches it.
func (s *Synchronizer) refetch(topic Topic, fetch ScopeFetch) {
	scheduled := s.group.TryGo(func() error {
		if _, err := s.cache.GetOrFetch(s.ctx, topic, func(ctx context.Context) (interface{}, error) {
			return fetch(ctx, topic.ScopeID)
		}); err != nil && s.ctx.Err() == nil {
			s.logger.Warn("refetch failed",
				zap.String("resource", string(topic.Resource)),
				zap.String("scope_id", topic.ScopeID.String()),
				zap.Error(err))
		}
		return nil
	})
	if !scheduled {
		s.logger.Debug("refetch deferred to next read",
			zap.String("resource", string(topic.Resource)))
	}
}

// Watch subscribes to a topic's change events and primes its cache
// entry. The caller must Cancel the subscription when its scope goes
// away.
func (s *Synchronizer) Watch(topic Topic) *Subscription {
	return s.registry.Subscribe(topic)
}

// Get reads a projection through the cache, fetching on miss.
func (s *Synchronizer) Get(ctx context.Context, topic Topic) (interface{}, error) {
	fetch, ok := s.fetchers[topic.Resource]
	if !ok {
		return nil, fmt.Errorf("no fetcher for resource %q", topic.Resource)
	}
	return s.cache.GetOrFetch(ctx, topic, func(ctx context.Context) (interface{}, error) {
		return fetch(ctx, topic.ScopeID)
	})
}

// Close tears everything down: pending refetches are cancelled, the
// stream and every subscription are released. Ledger writes are not
// affected; they run detached under their own deadline.
func (s *Synchronizer) Close() error {
	err := s.stream.Close()
	// Wait for the loop only if it ever ran; a teardown before Run (a
	// failed startup) must not hang here.
	if s.started.Load() {
		<-s.done
	}
	s.cancel()
	s.group.Wait()
	s.registry.Close()
	return err
}
